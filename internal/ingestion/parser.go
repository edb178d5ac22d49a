package ingestion

import (
	"FeeDistributor/internal/distribution"
	"FeeDistributor/internal/event"
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ParseRawEvent converts a RawEvent into a typed event.Event. The subject
// resolver picks eventType; payloads are validated here so the pool only
// sees well-formed records.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "FeesAccrued":
		return parseFeesAccrued(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// --- JSON wire formats ---
// Field names use snake_case to match upstream producers.

// quoteAmount accepts a JSON number or a decimal string. Producers that
// cannot represent the full u64 range as numbers send strings.
type quoteAmount uint64

func (q *quoteAmount) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("quote amount %s: %w", data, err)
	}
	*q = quoteAmount(v)
	return nil
}

type feesAccruedJSON struct {
	AccrualID  string      `json:"accrual_id"`
	PositionID string      `json:"position_id"`
	Amount     quoteAmount `json:"amount"`
	Timestamp  int64       `json:"ts"`
}

func parseFeesAccrued(data []byte) (*event.FeesAccrued, error) {
	var j feesAccruedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse FeesAccrued: %w", err)
	}

	if j.AccrualID == "" {
		return nil, fmt.Errorf("parse FeesAccrued: missing accrual_id")
	}
	if err := distribution.ValidateAccountID(j.PositionID); err != nil {
		return nil, fmt.Errorf("parse position_id: %w", err)
	}
	if j.Amount == 0 {
		return nil, fmt.Errorf("parse FeesAccrued: amount must be positive")
	}
	if j.Timestamp <= 0 {
		return nil, fmt.Errorf("parse FeesAccrued: ts must be positive")
	}

	return &event.FeesAccrued{
		AccrualID:  j.AccrualID,
		PositionID: j.PositionID,
		Amount:     uint64(j.Amount),
		Timestamp:  j.Timestamp,
	}, nil
}
