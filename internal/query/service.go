package query

import (
	"FeeDistributor/internal/observability"
	"FeeDistributor/internal/storage"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// QueryService provides read-only access to the event log, journal and
// projection tables. Account responses carry as_of_sequence for freshness.
type QueryService struct {
	db      *sql.DB
	metrics *observability.Metrics
}

func NewQueryService(db *sql.DB, metrics *observability.Metrics) *QueryService {
	return &QueryService{db: db, metrics: metrics}
}

// ListDayReceipts returns the stored events of a day in sequence order,
// starting after afterSequence.
func (qs *QueryService) ListDayReceipts(
	ctx context.Context,
	dayID int64,
	limit int,
	afterSequence int64,
) (entries []ReceiptEntry, err error) {
	defer qs.observe("list_day_receipts", time.Now(), &err)

	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT sequence, event_type, day_id, payload, receipt_hash, timestamp
		FROM distribution.events
		WHERE day_id = $1 AND sequence > $2
		ORDER BY sequence
		LIMIT $3
	`, dayID, afterSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e       ReceiptEntry
			payload []byte
		)
		if err := rows.Scan(&e.Sequence, &e.EventType, &e.DayID, &payload, &e.ReceiptHash, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Payload = payload
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetAccountTotals returns the projected totals of one account.
func (qs *QueryService) GetAccountTotals(ctx context.Context, accountPath string) (resp *AccountTotalsResponse, err error) {
	defer qs.observe("get_account_totals", time.Now(), &err)

	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var debits, credits string
	err = qs.db.QueryRowContext(ctx, `
		SELECT debits::text, credits::text
		FROM projections.account_totals
		WHERE account_path = $1
	`, accountPath).Scan(&debits, &credits)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", accountPath, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	resp = &AccountTotalsResponse{AccountPath: accountPath, AsOfSequence: asOfSeq}
	if resp.Debits, err = strconv.ParseUint(debits, 10, 64); err != nil {
		return nil, fmt.Errorf("debits: %w", err)
	}
	if resp.Credits, err = strconv.ParseUint(credits, 10, 64); err != nil {
		return nil, fmt.Errorf("credits: %w", err)
	}
	resp.Balance = signedDiff(resp.Debits, resp.Credits)
	return resp, nil
}

// GetJournalHistory returns journal entries touching an account, newest
// first, before beforeSequence when it is set.
func (qs *QueryService) GetJournalHistory(
	ctx context.Context,
	accountPath string,
	limit int,
	beforeSequence *int64,
) (entries []JournalHistoryEntry, err error) {
	defer qs.observe("get_journal_history", time.Now(), &err)

	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT journal_id, batch_id, event_ref, sequence,
		       debit_account, credit_account, amount::text, journal_type, day_id, timestamp
		FROM distribution.journal
		WHERE (debit_account = $1 OR credit_account = $1)
	`
	args := []any{accountPath}
	argIdx := 2

	if beforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC, journal_id"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e      JournalHistoryEntry
			amount string
		)
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &amount,
			&e.JournalType, &e.DayID, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		if e.Amount, err = strconv.ParseUint(amount, 10, 64); err != nil {
			return nil, fmt.Errorf("amount: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks that the projected ledger is zero-sum and that every
// day's progress totals agree with what its journals actually moved.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (report *IntegrityReport, err error) {
	defer qs.observe("verify_integrity", time.Now(), &err)

	report = &IntegrityReport{}

	// Projected debits and credits must net to zero across all accounts.
	var debits, credits string
	if err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(debits), 0)::text, COALESCE(SUM(credits), 0)::text
		FROM projections.account_totals
	`).Scan(&debits, &credits); err != nil {
		return nil, err
	}
	if report.LedgerDebits, err = strconv.ParseUint(debits, 10, 64); err != nil {
		return nil, fmt.Errorf("ledger debits: %w", err)
	}
	if report.LedgerCredits, err = strconv.ParseUint(credits, 10, 64); err != nil {
		return nil, fmt.Errorf("ledger credits: %w", err)
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT p.day_key, field, progress::text, journaled::text
		FROM distribution.day_progress p
		CROSS JOIN LATERAL (
			SELECT 'cumulative_distributed' AS field,
			       p.cumulative_distributed AS progress,
			       COALESCE((SELECT SUM(amount) FROM distribution.journal j
			                 WHERE j.day_id = p.day_key AND j.journal_type = 1), 0) AS journaled
			UNION ALL
			SELECT 'remainder_paid',
			       p.remainder_paid,
			       COALESCE((SELECT SUM(amount) FROM distribution.journal j
			                 WHERE j.day_id = p.day_key AND j.journal_type = 2), 0)
		) legs
		WHERE progress <> journaled
		ORDER BY p.day_key
		LIMIT 100
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m                   DayMismatch
			progress, journaled string
		)
		if err := rows.Scan(&m.DayID, &m.Field, &progress, &journaled); err != nil {
			return nil, err
		}
		m.Progress, _ = strconv.ParseUint(progress, 10, 64)
		m.Journaled, _ = strconv.ParseUint(journaled, 10, 64)
		report.DayMismatches = append(report.DayMismatches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = report.LedgerDebits == report.LedgerCredits && len(report.DayMismatches) == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM projections.watermark WHERE worker_id = 'account_totals'
	`).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return seq, err
}

func (qs *QueryService) observe(endpoint string, start time.Time, err *error) {
	if qs.metrics == nil {
		return
	}
	status := "ok"
	switch {
	case *err == nil:
	case errors.Is(*err, storage.ErrNotFound):
		status = "not_found"
	default:
		status = "error"
	}
	qs.metrics.QueryRequests.WithLabelValues(endpoint, status).Inc()
	qs.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func signedDiff(a, b uint64) string {
	d := new(big.Int).SetUint64(a)
	return d.Sub(d, new(big.Int).SetUint64(b)).String()
}
