package ledger

import (
	"FeeDistributor/internal/distribution"
	"fmt"

	"github.com/google/uuid"
)

// JournalGenerator creates balanced journal batches from treasury movements
type JournalGenerator struct {
	sequence int64
	treasury AccountKey
}

func NewJournalGenerator(startSequence int64, treasury AccountKey) *JournalGenerator {
	return &JournalGenerator{
		sequence: startSequence,
		treasury: treasury,
	}
}

// Sequence returns the sequence the next batch will carry.
func (jg *JournalGenerator) Sequence() int64 {
	return jg.sequence
}

// ClaimRef is the journal reference of a day's revenue claim.
func ClaimRef(dayKey int64) string {
	return fmt.Sprintf("%d:claim", dayKey)
}

// GenerateRevenueClaim moves the day's claimed quote into the treasury.
// Moves funds: external:fees → system:treasury
func (jg *JournalGenerator) GenerateRevenueClaim(dayKey int64, amount uint64, timestamp int64) (*Batch, error) {
	if amount == 0 {
		return nil, fmt.Errorf("revenue claim for day %d has zero amount", dayKey)
	}

	batch := jg.newBatch(timestamp, 1)
	batch.Journals = append(batch.Journals, Journal{
		JournalID:     uuid.New(),
		BatchID:       batch.BatchID,
		EventRef:      ClaimRef(dayKey),
		Sequence:      batch.Sequence,
		DebitAccount:  jg.treasury,
		CreditAccount: FeeSourceKey(),
		Amount:        amount,
		JournalType:   JournalTypeRevenueClaim,
		DayKey:        dayKey,
		Timestamp:     timestamp,
	})

	jg.sequence++
	return batch, nil
}

// GenerateTransfers turns one page's planned transfers into a single batch.
// Moves funds: system:treasury → participant:<dest> | recipient:<dest>
func (jg *JournalGenerator) GenerateTransfers(transfers []distribution.Transfer, timestamp int64) (*Batch, error) {
	batch := jg.newBatch(timestamp, len(transfers))
	treasuryPath := jg.treasury.AccountPath()

	for _, t := range transfers {
		if t.From != treasuryPath {
			return nil, fmt.Errorf("transfer %s debits %q, not the treasury %q", t.Reference, t.From, treasuryPath)
		}
		if t.Amount == 0 {
			return nil, fmt.Errorf("transfer %s has zero amount", t.Reference)
		}

		var (
			debit AccountKey
			jt    JournalType
		)
		switch t.Kind {
		case distribution.TransferParticipantPayout:
			debit, jt = NewParticipantKey(t.To), JournalTypeParticipantPayout
		case distribution.TransferRemainder:
			debit, jt = NewRecipientKey(t.To), JournalTypeRemainder
		default:
			return nil, fmt.Errorf("transfer %s has unknown kind %q", t.Reference, t.Kind)
		}

		batch.Journals = append(batch.Journals, Journal{
			JournalID:     uuid.New(),
			BatchID:       batch.BatchID,
			EventRef:      t.Reference,
			Sequence:      batch.Sequence,
			DebitAccount:  debit,
			CreditAccount: jg.treasury,
			Amount:        t.Amount,
			JournalType:   jt,
			DayKey:        t.DayKey,
			Timestamp:     timestamp,
		})
	}

	jg.sequence++
	return batch, nil
}

// Rewind gives back the sequence of a batch that was never applied.
func (jg *JournalGenerator) Rewind(batch *Batch) {
	if batch != nil && batch.Sequence == jg.sequence-1 {
		jg.sequence--
	}
}

// Advance moves the sequence past a replayed batch.
func (jg *JournalGenerator) Advance(seq int64) {
	if seq >= jg.sequence {
		jg.sequence = seq + 1
	}
}

func (jg *JournalGenerator) newBatch(timestamp int64, size int) *Batch {
	return &Batch{
		BatchID:   uuid.New(),
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, size),
	}
}
