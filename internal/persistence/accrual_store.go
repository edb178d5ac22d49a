package persistence

import (
	fpmath "FeeDistributor/internal/math"
	"FeeDistributor/internal/revenue"
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// assignLockKey serializes AssignDay across processes.
const assignLockKey = 0x6665655f61737369

// AccrualStore keeps fee accruals in revenue.accruals and day claims in
// revenue.day_claims.
type AccrualStore struct {
	db *sql.DB
}

var _ revenue.AccrualStore = (*AccrualStore)(nil)

func NewAccrualStore(db *sql.DB) *AccrualStore {
	return &AccrualStore{db: db}
}

// Record implements revenue.AccrualStore.
func (s *AccrualStore) Record(ctx context.Context, a revenue.Accrual) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO revenue.accruals (accrual_id, position_id, amount, ts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (accrual_id) DO NOTHING
	`, a.AccrualID, a.PositionID, amountArg(a.Amount), a.Timestamp)
	if err != nil {
		return false, fmt.Errorf("insert accrual: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AssignDay implements revenue.AccrualStore.
func (s *AccrualStore) AssignDay(ctx context.Context, dayKey int64) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin assign tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(assignLockKey)); err != nil {
		return 0, fmt.Errorf("assign lock: %w", err)
	}

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT amount::text FROM revenue.day_claims WHERE day_id = $1`, dayKey,
	).Scan(&existing)
	switch {
	case err == nil:
		return parseAmount("amount", existing)
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("read day claim %d: %w", dayKey, err)
	}

	rows, err := tx.QueryContext(ctx, `
		UPDATE revenue.accruals SET day_id = $1
		WHERE day_id IS NULL
		RETURNING amount::text
	`, dayKey)
	if err != nil {
		return 0, fmt.Errorf("assign accruals: %w", err)
	}
	total, err := sumAmounts(rows)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO revenue.day_claims (day_id, amount) VALUES ($1, $2)`,
		dayKey, amountArg(total),
	); err != nil {
		return 0, fmt.Errorf("record day claim %d: %w", dayKey, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit assign: %w", err)
	}
	return total, nil
}

// Pending implements revenue.AccrualStore.
func (s *AccrualStore) Pending(ctx context.Context) (uint64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT amount::text FROM revenue.accruals WHERE day_id IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("pending accruals: %w", err)
	}
	return sumAmounts(rows)
}

// sumAmounts sums a single text amount column in Go so an overflow past
// u64 surfaces as an error instead of a NUMERIC that cannot be scanned.
func sumAmounts(rows *sql.Rows) (uint64, error) {
	defer rows.Close()

	var total uint64
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return 0, err
		}
		v, err := parseAmount("amount", s)
		if err != nil {
			return 0, err
		}
		if total, err = fpmath.CheckedAdd(total, v); err != nil {
			return 0, fmt.Errorf("accrual total: %w", err)
		}
	}
	return total, rows.Err()
}
