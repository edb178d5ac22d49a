package projection

import (
	"FeeDistributor/internal/ledger"
	"FeeDistributor/internal/observability"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ProjectionWorker maintains projections.account_totals from applied
// journal batches. Its input is lossy: when it falls behind, batches are
// dropped and Rebuild restores the projection from distribution.journal.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan *ledger.Batch
	lastSeq   atomic.Int64
	log       zerolog.Logger
	metrics   *observability.Metrics
}

func NewProjectionWorker(
	db *sql.DB,
	inputChan <-chan *ledger.Batch,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
		log:       logger,
		metrics:   metrics,
	}
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case batch, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			start := time.Now()
			if err := pw.apply(ctx, batch); err != nil {
				// Eventually consistent; Rebuild recovers.
				pw.log.Warn().Err(err).Int64("seq", batch.Sequence).Msg("projection update failed")
				continue
			}
			pw.lastSeq.Store(batch.Sequence)
			if pw.metrics != nil {
				pw.metrics.ProjectionUpdateDur.Observe(time.Since(start).Seconds())
			}
		}
	}
}

// LastSequence returns the sequence of the last applied batch.
func (pw *ProjectionWorker) LastSequence() int64 {
	return pw.lastSeq.Load()
}

func (pw *ProjectionWorker) apply(ctx context.Context, batch *ledger.Batch) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, j := range batch.Journals {
		amount := strconv.FormatUint(j.Amount, 10)
		if err := bump(ctx, tx, j.DebitAccount.AccountPath(), "debits", amount, batch.Sequence); err != nil {
			return fmt.Errorf("debit projection: %w", err)
		}
		if err := bump(ctx, tx, j.CreditAccount.AccountPath(), "credits", amount, batch.Sequence); err != nil {
			return fmt.Errorf("credit projection: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('account_totals', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, batch.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

// bump adds amount to one side of an account's totals. side is a fixed
// column name, never caller input.
func bump(ctx context.Context, tx *sql.Tx, account, side, amount string, seq int64) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO projections.account_totals (account_path, %[1]s, last_sequence)
		VALUES ($1, $2::numeric, $3)
		ON CONFLICT (account_path) DO UPDATE SET
			%[1]s = projections.account_totals.%[1]s + $2::numeric,
			last_sequence = GREATEST(projections.account_totals.last_sequence, $3),
			updated_at = NOW()
	`, side), account, amount, seq)
	return err
}

// Rebuild recomputes projections.account_totals from distribution.journal.
func Rebuild(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`TRUNCATE projections.account_totals`,
		`DELETE FROM projections.watermark WHERE worker_id = 'account_totals'`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.account_totals (account_path, debits, credits, last_sequence)
		SELECT account_path, SUM(debits), SUM(credits), MAX(sequence)
		FROM (
			SELECT debit_account AS account_path, amount AS debits, 0 AS credits, sequence
			FROM distribution.journal
			UNION ALL
			SELECT credit_account, 0, amount, sequence
			FROM distribution.journal
		) legs
		GROUP BY account_path
	`); err != nil {
		return fmt.Errorf("rebuild account totals: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		SELECT 'account_totals', COALESCE(MAX(sequence), 0), NOW() FROM distribution.journal
	`); err != nil {
		return fmt.Errorf("rebuild watermark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	logger.Info().Msg("projection rebuild complete")
	return nil
}
