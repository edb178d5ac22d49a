package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// JournalType represents the purpose of a journal entry
type JournalType int32

const (
	JournalTypeRevenueClaim JournalType = iota
	JournalTypeParticipantPayout
	JournalTypeRemainder
)

func (t JournalType) String() string {
	switch t {
	case JournalTypeRevenueClaim:
		return "revenue_claim"
	case JournalTypeParticipantPayout:
		return "participant_payout"
	case JournalTypeRemainder:
		return "remainder"
	default:
		return "unknown"
	}
}

// Journal represents a single double-entry journal entry
type Journal struct {
	JournalID     uuid.UUID   // Unique identifier
	BatchID       uuid.UUID   // Groups balanced entries
	EventRef      string      // Transfer reference, unique per journal
	Sequence      int64       // Batch sequence
	DebitAccount  AccountKey  // Account receiving debit (balance increases)
	CreditAccount AccountKey  // Account receiving credit (balance decreases)
	Amount        uint64      // Quote units, always positive
	JournalType   JournalType // Entry type
	DayKey        int64       // Distribution day the entry belongs to
	Timestamp     int64       // Unix seconds
}

// Batch is the set of journals applied all-or-nothing.
type Batch struct {
	BatchID   uuid.UUID
	Sequence  int64
	Timestamp int64
	Journals  []Journal
}

// Validate ensures the batch is well-formed. Each journal moves a single
// positive amount from its credit to its debit account, so every entry is
// balanced by construction.
func (b *Batch) Validate() error {
	if len(b.Journals) == 0 {
		return fmt.Errorf("batch %s is empty", b.BatchID)
	}

	refs := make(map[string]struct{}, len(b.Journals))
	for _, j := range b.Journals {
		if j.Amount == 0 {
			return fmt.Errorf("journal %s has zero amount", j.JournalID)
		}
		if j.BatchID != b.BatchID {
			return fmt.Errorf("journal %s has mismatched batch_id", j.JournalID)
		}
		if j.DebitAccount == j.CreditAccount {
			return fmt.Errorf("journal %s has same debit and credit account", j.JournalID)
		}
		if j.EventRef == "" {
			return fmt.Errorf("journal %s has no event ref", j.JournalID)
		}
		if _, dup := refs[j.EventRef]; dup {
			return fmt.Errorf("journal ref %q repeated in batch %s", j.EventRef, b.BatchID)
		}
		refs[j.EventRef] = struct{}{}
	}

	return nil
}
