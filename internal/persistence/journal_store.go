package persistence

import (
	"FeeDistributor/internal/ledger"
	"FeeDistributor/internal/observability"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JournalStore is the durable ledger.JournalSink. Batches are written in
// one multi-row INSERT inside a transaction and replayed on start.
type JournalStore struct {
	db      *sql.DB
	metrics *observability.Metrics
}

var _ ledger.JournalSink = (*JournalStore)(nil)

func NewJournalStore(db *sql.DB, metrics *observability.Metrics) *JournalStore {
	return &JournalStore{db: db, metrics: metrics}
}

// JournalRow represents a row in distribution.journal
type JournalRow struct {
	JournalID     string
	BatchID       string
	EventRef      string
	Sequence      int64
	DebitAccount  string
	CreditAccount string
	Amount        uint64
	JournalType   int32
	DayID         int64
	Timestamp     int64
}

// JournalRows flattens a batch into rows.
func JournalRows(b *ledger.Batch) []JournalRow {
	rows := make([]JournalRow, 0, len(b.Journals))
	for _, j := range b.Journals {
		rows = append(rows, JournalRow{
			JournalID:     j.JournalID.String(),
			BatchID:       j.BatchID.String(),
			EventRef:      j.EventRef,
			Sequence:      j.Sequence,
			DebitAccount:  j.DebitAccount.AccountPath(),
			CreditAccount: j.CreditAccount.AccountPath(),
			Amount:        j.Amount,
			JournalType:   int32(j.JournalType),
			DayID:         j.DayKey,
			Timestamp:     j.Timestamp,
		})
	}
	return rows
}

// AppendBatch implements ledger.JournalSink.
func (s *JournalStore) AppendBatch(ctx context.Context, b *ledger.Batch) error {
	start := time.Now()
	rows := JournalRows(b)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.fail("tx_begin")
		return err
	}
	defer tx.Rollback()

	if err := writeJournalRows(ctx, tx, rows); err != nil {
		s.fail("write_journals")
		return err
	}
	if err := tx.Commit(); err != nil {
		s.fail("tx_commit")
		return err
	}

	if s.metrics != nil {
		s.metrics.PersistJournalsWritten.Add(float64(len(rows)))
		s.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
	}
	return nil
}

// LoadBatches returns every persisted batch in sequence order.
func (s *JournalStore) LoadBatches(ctx context.Context) ([]*ledger.Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT journal_id, batch_id, event_ref, sequence, debit_account, credit_account,
		       amount::text, journal_type, day_id, timestamp
		FROM distribution.journal
		ORDER BY sequence, batch_id, journal_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load journals: %w", err)
	}
	defer rows.Close()

	var (
		batches []*ledger.Batch
		current *ledger.Batch
	)
	for rows.Next() {
		var (
			r             JournalRow
			amount        string
			debit, credit string
		)
		if err := rows.Scan(&r.JournalID, &r.BatchID, &r.EventRef, &r.Sequence,
			&debit, &credit, &amount, &r.JournalType, &r.DayID, &r.Timestamp); err != nil {
			return nil, err
		}

		j, err := journalFromRow(r, debit, credit, amount)
		if err != nil {
			return nil, err
		}

		if current == nil || current.BatchID != j.BatchID {
			current = &ledger.Batch{
				BatchID:   j.BatchID,
				Sequence:  j.Sequence,
				Timestamp: j.Timestamp,
			}
			batches = append(batches, current)
		}
		current.Journals = append(current.Journals, j)
	}
	return batches, rows.Err()
}

func journalFromRow(r JournalRow, debit, credit, amount string) (ledger.Journal, error) {
	journalID, err := uuid.Parse(r.JournalID)
	if err != nil {
		return ledger.Journal{}, fmt.Errorf("journal_id: %w", err)
	}
	batchID, err := uuid.Parse(r.BatchID)
	if err != nil {
		return ledger.Journal{}, fmt.Errorf("batch_id: %w", err)
	}
	debitKey, err := ledger.ParseAccountPath(debit)
	if err != nil {
		return ledger.Journal{}, err
	}
	creditKey, err := ledger.ParseAccountPath(credit)
	if err != nil {
		return ledger.Journal{}, err
	}
	amt, err := parseAmount("amount", amount)
	if err != nil {
		return ledger.Journal{}, err
	}

	return ledger.Journal{
		JournalID:     journalID,
		BatchID:       batchID,
		EventRef:      r.EventRef,
		Sequence:      r.Sequence,
		DebitAccount:  debitKey,
		CreditAccount: creditKey,
		Amount:        amt,
		JournalType:   ledger.JournalType(r.JournalType),
		DayKey:        r.DayID,
		Timestamp:     r.Timestamp,
	}, nil
}

// writeJournalRows writes rows with a multi-row INSERT.
func writeJournalRows(ctx context.Context, db execer, journals []JournalRow) error {
	if len(journals) == 0 {
		return nil
	}

	const cols = 10
	values := make([]string, 0, len(journals))
	args := make([]any, 0, len(journals)*cols)

	for i, j := range journals {
		values = append(values, placeholders(i*cols, cols))
		args = append(args,
			j.JournalID, j.BatchID, j.EventRef, j.Sequence,
			j.DebitAccount, j.CreditAccount, amountArg(j.Amount),
			j.JournalType, j.DayID, j.Timestamp,
		)
	}

	query := `INSERT INTO distribution.journal
		(journal_id, batch_id, event_ref, sequence, debit_account, credit_account, amount, journal_type, day_id, timestamp)
		VALUES ` + strings.Join(values, ", ")

	_, err := db.ExecContext(ctx, query, args...)
	return err
}

// placeholders renders "($base+1, ..., $base+n)".
func placeholders(base, n int) string {
	var b strings.Builder
	b.WriteByte('(')
	for k := 1; k <= n; k++ {
		if k > 1 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", base+k)
	}
	b.WriteByte(')')
	return b.String()
}

func (s *JournalStore) fail(kind string) {
	if s.metrics != nil {
		s.metrics.PersistErrors.WithLabelValues(kind).Inc()
	}
}
