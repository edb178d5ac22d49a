package event

import (
	"FeeDistributor/internal/revenue"
)

// FeesAccrued is the inbound fee accrual message.
// Idempotency key: accrual_id.
type FeesAccrued struct {
	AccrualID  string `json:"accrual_id"`
	PositionID string `json:"position_id"`
	Amount     uint64 `json:"amount"`
	Timestamp  int64  `json:"ts"`
}

func (e *FeesAccrued) IdempotencyKey() string { return e.AccrualID }
func (e *FeesAccrued) EventType() EventType   { return EventTypeFeesAccrued }
func (e *FeesAccrued) DayID() int64           { return 0 }

// Accrual converts the message into the pool's record type.
func (e *FeesAccrued) Accrual() revenue.Accrual {
	return revenue.Accrual{
		AccrualID:  e.AccrualID,
		PositionID: e.PositionID,
		Amount:     e.Amount,
		Timestamp:  e.Timestamp,
	}
}
