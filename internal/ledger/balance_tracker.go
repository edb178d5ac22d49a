package ledger

import (
	fpmath "FeeDistributor/internal/math"
	"fmt"
)

// Totals are the lifetime debits and credits of one account. The balance
// is Debits - Credits; keeping both sides unsigned avoids a signed range
// narrower than the quote amounts.
type Totals struct {
	Debits  uint64
	Credits uint64
}

// Balance returns Debits - Credits, or an error when credits exceed debits.
func (t Totals) Balance() (uint64, error) {
	if t.Credits > t.Debits {
		return 0, fmt.Errorf("negative balance: debits=%d credits=%d", t.Debits, t.Credits)
	}
	return t.Debits - t.Credits, nil
}

// BalanceTracker maintains in-memory account totals
type BalanceTracker struct {
	totals map[AccountKey]Totals
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		totals: make(map[AccountKey]Totals),
	}
}

// Preview returns the totals of every account the batch touches as they
// would be after applying it, without changing the tracker.
func (bt *BalanceTracker) Preview(batch *Batch) (map[AccountKey]Totals, error) {
	if err := batch.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch: %w", err)
	}

	next := make(map[AccountKey]Totals)
	get := func(k AccountKey) Totals {
		if t, ok := next[k]; ok {
			return t
		}
		return bt.totals[k]
	}

	for _, j := range batch.Journals {
		debit := get(j.DebitAccount)
		d, err := fpmath.CheckedAdd(debit.Debits, j.Amount)
		if err != nil {
			return nil, fmt.Errorf("debit %s: %w", j.DebitAccount.AccountPath(), err)
		}
		debit.Debits = d
		next[j.DebitAccount] = debit

		credit := get(j.CreditAccount)
		c, err := fpmath.CheckedAdd(credit.Credits, j.Amount)
		if err != nil {
			return nil, fmt.Errorf("credit %s: %w", j.CreditAccount.AccountPath(), err)
		}
		credit.Credits = c
		next[j.CreditAccount] = credit
	}

	return next, nil
}

// Commit installs totals produced by Preview.
func (bt *BalanceTracker) Commit(next map[AccountKey]Totals) {
	for k, t := range next {
		bt.totals[k] = t
	}
}

// ApplyBatch applies all journals in a batch or none of them.
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	next, err := bt.Preview(batch)
	if err != nil {
		return err
	}
	bt.Commit(next)
	return nil
}

// GetTotals returns the current totals for an account
func (bt *BalanceTracker) GetTotals(key AccountKey) Totals {
	return bt.totals[key]
}

// ValidateNonNegative checks that a specific account balance is >= 0
func (bt *BalanceTracker) ValidateNonNegative(key AccountKey) error {
	if _, err := bt.totals[key].Balance(); err != nil {
		return fmt.Errorf("account %s: %w", key.AccountPath(), err)
	}
	return nil
}

// ComputeGlobalTotals sums both sides across all accounts. A consistent
// ledger has equal debits and credits.
func (bt *BalanceTracker) ComputeGlobalTotals() (Totals, error) {
	var global Totals
	var err error
	for key, t := range bt.totals {
		if global.Debits, err = fpmath.CheckedAdd(global.Debits, t.Debits); err != nil {
			return Totals{}, fmt.Errorf("sum debits at %s: %w", key.AccountPath(), err)
		}
		if global.Credits, err = fpmath.CheckedAdd(global.Credits, t.Credits); err != nil {
			return Totals{}, fmt.Errorf("sum credits at %s: %w", key.AccountPath(), err)
		}
	}
	return global, nil
}

// Snapshot returns a copy of all totals
func (bt *BalanceTracker) Snapshot() map[AccountKey]Totals {
	snapshot := make(map[AccountKey]Totals, len(bt.totals))
	for k, v := range bt.totals {
		snapshot[k] = v
	}
	return snapshot
}
