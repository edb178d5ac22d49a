package persistence

import (
	"FeeDistributor/internal/event"
	"FeeDistributor/internal/observability"
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"
)

// PersistenceWorker drains event envelopes and batch-writes them to
// Postgres. Newly written envelopes are forwarded to the publish channel,
// so nothing is published before it is durable.
type PersistenceWorker struct {
	db           *sql.DB
	writer       *EventLogWriter
	inputChan    <-chan *event.EventEnvelope
	publishChan  chan<- *event.EventEnvelope
	batchSize    int
	flushTimeout time.Duration
	log          zerolog.Logger
	metrics      *observability.Metrics
}

func NewPersistenceWorker(
	db *sql.DB,
	inputChan <-chan *event.EventEnvelope,
	publishChan chan<- *event.EventEnvelope,
	batchSize int,
	flushTimeout time.Duration,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *PersistenceWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &PersistenceWorker{
		db:           db,
		writer:       NewEventLogWriter(db),
		inputChan:    inputChan,
		publishChan:  publishChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		log:          logger,
		metrics:      metrics,
	}
}

// Run batches incoming envelopes and flushes when the batch is full or the
// flush timeout expires. Blocks until ctx is cancelled or the input closes.
func (pw *PersistenceWorker) Run(ctx context.Context) error {
	batch := make([]*event.EventEnvelope, 0, pw.batchSize)

	timer := time.NewTimer(pw.flushTimeout)
	defer timer.Stop()

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := pw.flushWithRetry(ctx, batch); err != nil {
			pw.log.Error().Err(err).Int("events", len(batch)).Msg("event flush failed")
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush(context.Background())
			return ctx.Err()

		case env, ok := <-pw.inputChan:
			if !ok {
				flush(context.Background())
				return nil
			}

			batch = append(batch, env)
			if len(batch) >= pw.batchSize {
				flush(ctx)
				timer.Reset(pw.flushTimeout)
			}

		case <-timer.C:
			flush(ctx)
			timer.Reset(pw.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff until the write succeeds
// or ctx is cancelled, in which case one last attempt runs detached.
func (pw *PersistenceWorker) flushWithRetry(ctx context.Context, envs []*event.EventEnvelope) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			pw.log.Warn().Int("attempt", attempt).Dur("backoff", backoff).Int("events", len(envs)).Msg("persistence retry")
			select {
			case <-ctx.Done():
				return pw.flush(context.Background(), envs)
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
		}

		err := pw.flush(ctx, envs)
		if err == nil {
			if attempt > 0 {
				pw.log.Info().Int("retries", attempt).Msg("persistence flush recovered")
			}
			return nil
		}

		if pw.metrics != nil {
			pw.metrics.PersistErrors.WithLabelValues("retry").Inc()
		}
	}
}

func (pw *PersistenceWorker) flush(ctx context.Context, envs []*event.EventEnvelope) error {
	start := time.Now()

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		pw.fail("tx_begin")
		return err
	}
	defer tx.Rollback()

	inserted, err := pw.writer.WriteEventBatch(ctx, tx, envs)
	if err != nil {
		pw.fail("write_events")
		return err
	}

	if err := tx.Commit(); err != nil {
		pw.fail("tx_commit")
		return err
	}

	if pw.metrics != nil {
		pw.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		pw.metrics.PersistBatchSize.Observe(float64(len(envs)))
		pw.metrics.PersistEventsWritten.Add(float64(len(inserted)))
	}

	pw.forward(inserted)
	return nil
}

// forward hands persisted envelopes to the publisher without blocking.
// Dropped envelopes stay readable from distribution.events.
func (pw *PersistenceWorker) forward(envs []*event.EventEnvelope) {
	if pw.publishChan == nil {
		return
	}
	for _, env := range envs {
		select {
		case pw.publishChan <- env:
		default:
			if pw.metrics != nil {
				pw.metrics.PublishDrops.Inc()
			}
		}
	}
}

func (pw *PersistenceWorker) fail(kind string) {
	if pw.metrics != nil {
		pw.metrics.PersistErrors.WithLabelValues(kind).Inc()
	}
}
