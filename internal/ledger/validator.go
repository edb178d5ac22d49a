package ledger

import (
	"fmt"
)

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidatePreview rejects a previewed batch that would overdraw any
// non-external account.
func (v *InvariantValidator) ValidatePreview(next map[AccountKey]Totals) error {
	for key, t := range next {
		if key.Scope == AccountScopeExternal {
			continue
		}
		if _, err := t.Balance(); err != nil {
			return fmt.Errorf("account %s would go negative: %w", key.AccountPath(), err)
		}
	}
	return nil
}

// ValidateGlobalBalance verifies the ledger is zero-sum.
func (v *InvariantValidator) ValidateGlobalBalance() error {
	global, err := v.tracker.ComputeGlobalTotals()
	if err != nil {
		return err
	}
	if global.Debits != global.Credits {
		return fmt.Errorf("global ledger not balanced: debits=%d credits=%d", global.Debits, global.Credits)
	}
	return nil
}
