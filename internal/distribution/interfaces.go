package distribution

import (
	"context"
)

// RevenueSource claims the quote revenue accrued since the previous claim.
// The engine calls it at most once per day.
type RevenueSource interface {
	Claim(ctx context.Context, dayKey int64) (uint64, error)
}

// VestingOracle returns the amount of a stream still locked at ts.
// It has no side effects: 0 once fully vested, the full allocation before
// vesting starts, linear in between.
type VestingOracle interface {
	LockedAmount(ctx context.Context, streamID string, ts int64) (uint64, error)
}

// TransferKind labels why value moved.
type TransferKind string

const (
	TransferParticipantPayout TransferKind = "participant_payout"
	TransferRemainder         TransferKind = "remainder"
)

// Transfer is one outbound movement of quote from the treasury.
type Transfer struct {
	From      string       `json:"from"`
	To        string       `json:"to"`
	Amount    uint64       `json:"amount"`
	Kind      TransferKind `json:"kind"`
	DayKey    int64        `json:"day_key"`
	PageKey   string       `json:"page_key"`
	Reference string       `json:"reference"`
}

// TransferService moves value between accounts. Any error aborts the page.
type TransferService interface {
	Transfer(ctx context.Context, t Transfer) error
}

// BatchTransferService applies a page's transfers all-or-nothing. The engine
// prefers it when the TransferService also implements it.
type BatchTransferService interface {
	TransferBatch(ctx context.Context, transfers []Transfer) error
}

// ProgressStore is the transactional home of DayProgress records.
//
// Update loads the record for dayKey (or NewDayProgress(dayKey) when absent),
// passes a private copy to fn, and persists it only if fn returns nil.
// Updates to the same key are serialized.
type ProgressStore interface {
	Update(ctx context.Context, dayKey int64, fn func(p *DayProgress) error) error
	Get(ctx context.Context, dayKey int64) (*DayProgress, error)
}
