package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeQuoteFeesClaimed
	EventTypeInvestorPayoutPage
	EventTypeCreatorPayoutDayClosed
	EventTypeFeesAccrued
)

// EventEnvelope wraps every event in the log
type EventEnvelope struct {
	// Monotonic sequence assigned by the event writer
	Sequence int64 `json:"sequence"`

	// Stable idempotency key, unique per event
	IdempotencyKey string `json:"idempotency_key"`

	EventType EventType `json:"event_type"`

	// Distribution day the event belongs to
	DayID int64 `json:"day_id"`

	// Call timestamp the event was produced at (not wall clock)
	Timestamp time.Time `json:"timestamp"`

	// JSON-encoded event-specific data
	Payload json.RawMessage `json:"payload"`

	// Receipt chain tip after the page, empty for claims and accruals
	ReceiptHash string `json:"receipt_hash,omitempty"`
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// DayID returns the distribution day, 0 when not tied to one
	DayID() int64
}

// Wrap encodes evt into an envelope. Sequence is left for the writer.
func Wrap(evt Event, ts time.Time, receiptHash string) (*EventEnvelope, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", evt.EventType(), err)
	}
	return &EventEnvelope{
		IdempotencyKey: evt.IdempotencyKey(),
		EventType:      evt.EventType(),
		DayID:          evt.DayID(),
		Timestamp:      ts,
		Payload:        payload,
		ReceiptHash:    receiptHash,
	}, nil
}

// Subject returns the NATS subject the envelope is published on.
func (e *EventEnvelope) Subject() string {
	return fmt.Sprintf("fees.distribution.%s.%d", e.EventType.Token(), e.DayID)
}

func (et EventType) String() string {
	switch et {
	case EventTypeQuoteFeesClaimed:
		return "QuoteFeesClaimed"
	case EventTypeInvestorPayoutPage:
		return "InvestorPayoutPage"
	case EventTypeCreatorPayoutDayClosed:
		return "CreatorPayoutDayClosed"
	case EventTypeFeesAccrued:
		return "FeesAccrued"
	default:
		return "Unknown"
	}
}

// Token is the lowercase subject token for the type.
func (et EventType) Token() string {
	switch et {
	case EventTypeQuoteFeesClaimed:
		return "claimed"
	case EventTypeInvestorPayoutPage:
		return "page"
	case EventTypeCreatorPayoutDayClosed:
		return "closed"
	case EventTypeFeesAccrued:
		return "accrued"
	default:
		return "unknown"
	}
}

// ParseEventType is the inverse of String.
func ParseEventType(s string) (EventType, error) {
	for _, et := range []EventType{
		EventTypeQuoteFeesClaimed,
		EventTypeInvestorPayoutPage,
		EventTypeCreatorPayoutDayClosed,
		EventTypeFeesAccrued,
	} {
		if et.String() == s {
			return et, nil
		}
	}
	return EventTypeUnknown, fmt.Errorf("unknown event type %q", s)
}
