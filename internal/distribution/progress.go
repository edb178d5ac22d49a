package distribution

import (
	fpmath "FeeDistributor/internal/math"
	"slices"
)

// Phase is the per-day state machine position.
type Phase string

const (
	PhaseNotStarted   Phase = "not_started"
	PhaseClaimed      Phase = "claimed"
	PhaseDistributing Phase = "distributing"
	PhaseClosed       Phase = "closed"
)

// DayProgress is the durable per-day record. One record exists per day key;
// every page call of that day reads and rewrites it inside one transaction.
type DayProgress struct {
	DayKey                int64    `json:"day_key"`
	DayID                 int64    `json:"day_id"`
	LastDistributionTs    int64    `json:"last_distribution_ts"`
	ClaimedQuoteForDay    uint64   `json:"claimed_quote_for_day"`
	CumulativeDistributed uint64   `json:"cumulative_distributed_today"`
	CarryOver             uint64   `json:"carry_over"`
	PaginationCursor      uint64   `json:"pagination_cursor"`
	PolicyHash            string   `json:"policy_hash,omitempty"`
	ProcessedPages        []string `json:"processed_pages,omitempty"`
	ReceiptHash           string   `json:"receipt_hash,omitempty"`
	LockedSeen            uint64   `json:"locked_seen"`
	RemainderPaid         uint64   `json:"remainder_paid"`
	Closed                bool     `json:"closed"`
	ClosedAt              int64    `json:"closed_at,omitempty"`
}

// NewDayProgress returns the zero record for a day that has never been touched.
func NewDayProgress(dayKey int64) *DayProgress {
	return &DayProgress{
		DayKey: dayKey,
		DayID:  dayKey,
	}
}

// Clone returns a deep copy.
func (p *DayProgress) Clone() *DayProgress {
	c := *p
	c.ProcessedPages = slices.Clone(p.ProcessedPages)
	return &c
}

// Phase derives the state machine position from the stored fields.
func (p *DayProgress) Phase() Phase {
	switch {
	case p.Closed:
		return PhaseClosed
	case p.LastDistributionTs == 0:
		return PhaseNotStarted
	case p.PaginationCursor == 0:
		return PhaseClaimed
	default:
		return PhaseDistributing
	}
}

// CheckDay rejects a started record whose day id no longer matches the day
// being requested. A closed day has rolled its id forward and always fails.
func (p *DayProgress) CheckDay(dayKey int64) error {
	if p.LastDistributionTs != 0 && p.DayID != dayKey {
		return dayGateError("requested day %d but stored progress is at day %d", dayKey, p.DayID)
	}
	if p.Closed {
		return dayGateError("day %d is closed", dayKey)
	}
	return nil
}

// HasProcessedPage reports whether pageKey was already applied this day.
func (p *DayProgress) HasProcessedPage(pageKey string) bool {
	return slices.Contains(p.ProcessedPages, pageKey)
}

// Undistributed is claimed - cumulative - carry. A negative balance is an
// invariant fault, never clamped.
func (p *DayProgress) Undistributed() (uint64, error) {
	spent, err := fpmath.CheckedAdd(p.CumulativeDistributed, p.CarryOver)
	if err != nil {
		return 0, arithmeticError("cumulative + carry", err)
	}
	if spent > p.ClaimedQuoteForDay {
		return 0, invariantError("day %d: distributed %d + carry %d exceeds claimed %d",
			p.DayKey, p.CumulativeDistributed, p.CarryOver, p.ClaimedQuoteForDay)
	}
	return p.ClaimedQuoteForDay - spent, nil
}
