package event

import (
	"FeeDistributor/internal/distribution"
	"fmt"
	"time"
)

// QuoteFeesClaimed is emitted once per day when revenue is claimed.
// Idempotency key: "{day_id}:claimed".
type QuoteFeesClaimed struct {
	Day       int64  `json:"day_id"`
	Amount    uint64 `json:"amount"`
	Timestamp int64  `json:"ts"`
}

func (e *QuoteFeesClaimed) IdempotencyKey() string { return fmt.Sprintf("%d:claimed", e.Day) }
func (e *QuoteFeesClaimed) EventType() EventType   { return EventTypeQuoteFeesClaimed }
func (e *QuoteFeesClaimed) DayID() int64           { return e.Day }

// InvestorPayoutPage summarizes one applied page.
// Idempotency key: "{day_id}:page:{page_key}".
type InvestorPayoutPage struct {
	Day         int64                     `json:"day_id"`
	PageKey     string                    `json:"page_key"`
	Cursor      uint64                    `json:"cursor"`
	Distributed uint64                    `json:"distributed"`
	Withheld    uint64                    `json:"withheld"`
	Capped      bool                      `json:"capped"`
	Payouts     []distribution.PayoutLine `json:"payouts"`
}

func (e *InvestorPayoutPage) IdempotencyKey() string {
	return fmt.Sprintf("%d:page:%s", e.Day, e.PageKey)
}
func (e *InvestorPayoutPage) EventType() EventType { return EventTypeInvestorPayoutPage }
func (e *InvestorPayoutPage) DayID() int64         { return e.Day }

// CreatorPayoutDayClosed is emitted by the final page of a day.
// Idempotency key: "{day_id}:closed".
type CreatorPayoutDayClosed struct {
	Day       int64  `json:"day_id"`
	Remainder uint64 `json:"remainder"`
	Recipient string `json:"recipient"`
	NextDayID int64  `json:"next_day_id"`
}

func (e *CreatorPayoutDayClosed) IdempotencyKey() string { return fmt.Sprintf("%d:closed", e.Day) }
func (e *CreatorPayoutDayClosed) EventType() EventType   { return EventTypeCreatorPayoutDayClosed }
func (e *CreatorPayoutDayClosed) DayID() int64           { return e.Day }

// FromReceipt returns the events an applied page produced, in order:
// the claim (first applied page of the day), the page, and the close (final
// page only). Duplicate receipts produce none.
func FromReceipt(r *distribution.PageReceipt) ([]*EventEnvelope, error) {
	if r == nil || r.Duplicate {
		return nil, nil
	}

	ts := time.Unix(r.Timestamp, 0).UTC()
	var evts []Event

	if r.ClaimedThisCall || r.Cursor == 1 {
		evts = append(evts, &QuoteFeesClaimed{
			Day:       r.DayKey,
			Amount:    r.ClaimedQuoteForDay,
			Timestamp: r.Timestamp,
		})
	}

	evts = append(evts, &InvestorPayoutPage{
		Day:         r.DayKey,
		PageKey:     r.PageKey,
		Cursor:      r.Cursor,
		Distributed: r.PageDistributed,
		Withheld:    r.PageWithheld,
		Capped:      r.Capped,
		Payouts:     r.Payouts,
	})

	if r.Final {
		evts = append(evts, &CreatorPayoutDayClosed{
			Day:       r.DayKey,
			Remainder: r.Remainder,
			Recipient: r.Recipient,
			NextDayID: r.NextDayID,
		})
	}

	out := make([]*EventEnvelope, 0, len(evts))
	for _, evt := range evts {
		env, err := Wrap(evt, ts, r.ReceiptHash)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}
