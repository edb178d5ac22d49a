package ingestion

import (
	"FeeDistributor/internal/event"
	"FeeDistributor/internal/observability"
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// OutboundPublisher publishes distribution events to NATS after they have
// been persisted. Subjects follow fees.distribution.{type}.{day_id}.
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan *event.EventEnvelope
	log       zerolog.Logger
	metrics   *observability.Metrics
}

func NewOutboundPublisher(
	js jetstream.JetStream,
	inputChan <-chan *event.EventEnvelope,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		log:       logger,
		metrics:   metrics,
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, env); err != nil {
				// Non-fatal: consumers can read distribution.events directly.
				op.log.Warn().Err(err).Int64("seq", env.Sequence).Str("subject", env.Subject()).Msg("outbound publish failed")
				if op.metrics != nil {
					op.metrics.PublishErrors.Inc()
				}
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, env *event.EventEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// Msg id lets JetStream drop republished envelopes.
	_, err = op.js.Publish(ctx, env.Subject(), data, jetstream.WithMsgID(env.IdempotencyKey))
	return err
}
