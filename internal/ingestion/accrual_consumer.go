package ingestion

import (
	"FeeDistributor/internal/event"
	"FeeDistributor/internal/revenue"
	"context"

	"github.com/rs/zerolog"
)

// AccrualRecorder is the sink for parsed accruals (revenue.Pool).
type AccrualRecorder interface {
	Record(ctx context.Context, a revenue.Accrual) error
}

// AccrualConsumer drains raw NATS messages into the accrual pool.
// Messages are acked after the pool has durably recorded them, acked and
// dropped when unparseable, and nak'ed when recording fails.
type AccrualConsumer struct {
	recorder AccrualRecorder
	subjects []SubjectConfig
	log      zerolog.Logger
}

func NewAccrualConsumer(recorder AccrualRecorder, subjects []SubjectConfig, logger zerolog.Logger) *AccrualConsumer {
	return &AccrualConsumer{
		recorder: recorder,
		subjects: subjects,
		log:      logger,
	}
}

// Run blocks until ctx is done or rawChan is closed.
func (c *AccrualConsumer) Run(ctx context.Context, rawChan <-chan RawEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-rawChan:
			if !ok {
				return nil
			}
			c.handle(ctx, raw)
		}
	}
}

func (c *AccrualConsumer) handle(ctx context.Context, raw RawEvent) {
	eventType := ResolveEventType(raw.Subject, c.subjects)
	if eventType == "" {
		c.log.Warn().Str("subject", raw.Subject).Msg("unknown NATS subject")
		raw.AckFunc()
		return
	}

	evt, err := ParseRawEvent(raw, eventType)
	if err != nil {
		c.log.Warn().Err(err).Str("subject", raw.Subject).Msg("parse event failed")
		raw.AckFunc()
		return
	}

	accrued, ok := evt.(*event.FeesAccrued)
	if !ok {
		c.log.Warn().Str("type", evt.EventType().String()).Msg("unexpected inbound event")
		raw.AckFunc()
		return
	}

	if err := c.recorder.Record(ctx, accrued.Accrual()); err != nil {
		c.log.Error().Err(err).Str("accrual_id", accrued.AccrualID).Msg("record accrual failed")
		raw.NakFunc()
		return
	}
	raw.AckFunc()
}
