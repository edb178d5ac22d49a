package distribution

// PageReceipt is returned by every ProcessPage call.
type PageReceipt struct {
	DayKey    int64  `json:"day_key"`
	PageKey   string `json:"page_key"`
	Cursor    uint64 `json:"cursor"`
	Timestamp int64  `json:"timestamp"`

	// Duplicate is set when the page key was already applied; nothing moved.
	Duplicate bool `json:"duplicate"`

	ClaimedThisCall    bool   `json:"claimed_this_call"`
	ClaimedQuoteForDay uint64 `json:"claimed_quote_for_day"`

	PageLockedTotal  uint64 `json:"page_locked_total"`
	LockedBps        uint64 `json:"locked_bps"`
	InvestorFeeQuote uint64 `json:"investor_fee_quote"`
	EffectiveQuote   uint64 `json:"effective_quote"`
	Capped           bool   `json:"capped"`

	Payouts         []PayoutLine `json:"payouts"`
	PageDistributed uint64       `json:"page_distributed"`
	PageWithheld    uint64       `json:"page_withheld"`

	CumulativeDistributed uint64 `json:"cumulative_distributed_today"`
	CarryOver             uint64 `json:"carry_over"`

	Final     bool   `json:"final"`
	Remainder uint64 `json:"remainder"`
	Recipient string `json:"recipient,omitempty"`
	NextDayID int64  `json:"next_day_id,omitempty"`

	ReceiptHash string `json:"receipt_hash"`
}

// Output is what the engine emits after a page commits.
type Output struct {
	Receipt   *PageReceipt
	Transfers []Transfer
}
