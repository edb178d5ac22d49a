package persistence

import (
	"FeeDistributor/internal/event"
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// EventLogWriter writes distribution events to distribution.events using
// multi-row INSERTs. Sequences are assigned by the table.
type EventLogWriter struct {
	db *sql.DB
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch inserts envelopes and stamps each newly inserted one with
// its sequence. Envelopes whose idempotency key already exists are skipped
// and left with Sequence 0. It returns the inserted envelopes in input order.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, db execer, envs []*event.EventEnvelope) ([]*event.EventEnvelope, error) {
	if len(envs) == 0 {
		return nil, nil
	}

	const cols = 6
	values := make([]string, 0, len(envs))
	args := make([]any, 0, len(envs)*cols)
	for i, e := range envs {
		values = append(values, placeholders(i*cols, cols))
		args = append(args,
			e.EventType.String(), e.IdempotencyKey, e.DayID,
			[]byte(e.Payload), e.ReceiptHash, e.Timestamp,
		)
	}

	query := `INSERT INTO distribution.events
		(event_type, idempotency_key, day_id, payload, receipt_hash, timestamp)
		VALUES ` + strings.Join(values, ", ") + `
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING idempotency_key, sequence`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert events: %w", err)
	}
	defer rows.Close()

	seqs := make(map[string]int64, len(envs))
	for rows.Next() {
		var (
			key string
			seq int64
		)
		if err := rows.Scan(&key, &seq); err != nil {
			return nil, err
		}
		seqs[key] = seq
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	inserted := make([]*event.EventEnvelope, 0, len(seqs))
	for _, e := range envs {
		if seq, ok := seqs[e.IdempotencyKey]; ok {
			e.Sequence = seq
			inserted = append(inserted, e)
		}
	}
	return inserted, nil
}
