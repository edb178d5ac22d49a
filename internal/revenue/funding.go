package revenue

import (
	"FeeDistributor/internal/distribution"
	"context"
	"fmt"
)

// Depositor credits claimed revenue to the account transfers are paid from.
type Depositor interface {
	Deposit(ctx context.Context, dayKey int64, amount uint64) error
}

// FundedSource wraps a RevenueSource so every successful claim is deposited
// before the engine sees it.
type FundedSource struct {
	source    distribution.RevenueSource
	depositor Depositor
}

var _ distribution.RevenueSource = (*FundedSource)(nil)

func NewFundedSource(source distribution.RevenueSource, depositor Depositor) *FundedSource {
	return &FundedSource{source: source, depositor: depositor}
}

// Claim implements distribution.RevenueSource. A zero claim is passed
// through without a deposit.
func (f *FundedSource) Claim(ctx context.Context, dayKey int64) (uint64, error) {
	amount, err := f.source.Claim(ctx, dayKey)
	if err != nil || amount == 0 {
		return amount, err
	}
	if err := f.depositor.Deposit(ctx, dayKey, amount); err != nil {
		return 0, fmt.Errorf("deposit day %d claim: %w", dayKey, err)
	}
	return amount, nil
}
