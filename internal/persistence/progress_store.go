package persistence

import (
	"FeeDistributor/internal/distribution"
	"FeeDistributor/internal/storage"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ProgressStore keeps DayProgress rows in distribution.day_progress.
// Update runs the callback between SELECT ... FOR UPDATE and the UPDATE of
// one transaction, so concurrent calls for the same day serialize on the
// row lock.
type ProgressStore struct {
	db *sql.DB
}

var _ distribution.ProgressStore = (*ProgressStore)(nil)

func NewProgressStore(db *sql.DB) *ProgressStore {
	return &ProgressStore{db: db}
}

const progressColumns = `day_key, day_id, last_distribution_ts, claimed_quote::text,
	cumulative_distributed::text, carry_over::text, pagination_cursor::text,
	policy_hash, processed_pages, receipt_hash, locked_seen::text,
	remainder_paid::text, closed, closed_at`

// Update implements distribution.ProgressStore.
func (s *ProgressStore) Update(ctx context.Context, dayKey int64, fn func(p *distribution.DayProgress) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin progress tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO distribution.day_progress (day_key, day_id)
		VALUES ($1, $1)
		ON CONFLICT (day_key) DO NOTHING
	`, dayKey); err != nil {
		return fmt.Errorf("seed day %d: %w", dayKey, err)
	}

	p, err := scanProgress(tx.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM distribution.day_progress WHERE day_key = $1 FOR UPDATE`,
		dayKey))
	if err != nil {
		return fmt.Errorf("lock day %d: %w", dayKey, err)
	}

	if err := fn(p); err != nil {
		return err
	}
	if p.DayKey != dayKey {
		return fmt.Errorf("%w: record for day %d rewritten with key %d", storage.ErrInvalidInput, dayKey, p.DayKey)
	}

	// A nil array would be written as NULL.
	pages := p.ProcessedPages
	if pages == nil {
		pages = []string{}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE distribution.day_progress SET
			day_id = $2,
			last_distribution_ts = $3,
			claimed_quote = $4,
			cumulative_distributed = $5,
			carry_over = $6,
			pagination_cursor = $7,
			policy_hash = $8,
			processed_pages = $9,
			receipt_hash = $10,
			locked_seen = $11,
			remainder_paid = $12,
			closed = $13,
			closed_at = $14,
			updated_at = NOW()
		WHERE day_key = $1
	`,
		p.DayKey, p.DayID, p.LastDistributionTs,
		amountArg(p.ClaimedQuoteForDay), amountArg(p.CumulativeDistributed),
		amountArg(p.CarryOver), amountArg(p.PaginationCursor),
		p.PolicyHash, pq.Array(pages), p.ReceiptHash,
		amountArg(p.LockedSeen), amountArg(p.RemainderPaid),
		p.Closed, p.ClosedAt,
	); err != nil {
		return fmt.Errorf("save day %d: %w", dayKey, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit day %d: %w", dayKey, err)
	}
	return nil
}

// Get implements distribution.ProgressStore.
func (s *ProgressStore) Get(ctx context.Context, dayKey int64) (*distribution.DayProgress, error) {
	p, err := scanProgress(s.db.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM distribution.day_progress WHERE day_key = $1`, dayKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("day %d: %w", dayKey, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get day %d: %w", dayKey, err)
	}
	return p, nil
}

// Latest returns the most recently touched day, or storage.ErrNotFound.
func (s *ProgressStore) Latest(ctx context.Context) (*distribution.DayProgress, error) {
	p, err := scanProgress(s.db.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM distribution.day_progress ORDER BY day_key DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no days: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest day: %w", err)
	}
	return p, nil
}

func scanProgress(row *sql.Row) (*distribution.DayProgress, error) {
	var (
		p                           distribution.DayProgress
		claimed, cum, carry, cursor string
		lockedSeen, remainder       string
		pages                       pq.StringArray
	)
	if err := row.Scan(
		&p.DayKey, &p.DayID, &p.LastDistributionTs, &claimed,
		&cum, &carry, &cursor,
		&p.PolicyHash, &pages, &p.ReceiptHash, &lockedSeen,
		&remainder, &p.Closed, &p.ClosedAt,
	); err != nil {
		return nil, err
	}

	var err error
	for _, f := range []struct {
		name string
		src  string
		dst  *uint64
	}{
		{"claimed_quote", claimed, &p.ClaimedQuoteForDay},
		{"cumulative_distributed", cum, &p.CumulativeDistributed},
		{"carry_over", carry, &p.CarryOver},
		{"pagination_cursor", cursor, &p.PaginationCursor},
		{"locked_seen", lockedSeen, &p.LockedSeen},
		{"remainder_paid", remainder, &p.RemainderPaid},
	} {
		if *f.dst, err = parseAmount(f.name, f.src); err != nil {
			return nil, err
		}
	}

	if len(pages) > 0 {
		p.ProcessedPages = []string(pages)
	}
	return &p, nil
}
