package query

import (
	"encoding/json"
	"time"
)

// ReceiptEntry is one stored distribution event.
type ReceiptEntry struct {
	Sequence    int64           `json:"sequence"`
	EventType   string          `json:"event_type"`
	DayID       int64           `json:"day_id"`
	Payload     json.RawMessage `json:"payload"`
	ReceiptHash string          `json:"receipt_hash,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// AccountTotalsResponse is the projected state of one ledger account.
type AccountTotalsResponse struct {
	AccountPath  string `json:"account_path"`
	Debits       uint64 `json:"debits"`
	Credits      uint64 `json:"credits"`
	Balance      string `json:"balance"` // signed decimal debits - credits
	AsOfSequence int64  `json:"as_of_sequence"`
}

// JournalHistoryEntry represents a journal entry for API queries.
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	Amount        uint64 `json:"amount"`
	JournalType   int32  `json:"journal_type"`
	DayID         int64  `json:"day_id"`
	Timestamp     int64  `json:"timestamp"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy     bool          `json:"is_healthy"`
	LedgerDebits  uint64        `json:"ledger_debits"`
	LedgerCredits uint64        `json:"ledger_credits"`
	DayMismatches []DayMismatch `json:"day_mismatches,omitempty"`
}

// DayMismatch is a day whose progress record disagrees with its journals.
type DayMismatch struct {
	DayID     int64  `json:"day_id"`
	Field     string `json:"field"`
	Progress  uint64 `json:"progress"`
	Journaled uint64 `json:"journaled"`
}
