// Package revenue supplies the quote the distributor claims each day.
//
// Fee accruals arrive as events (NATS or gRPC), are recorded once per
// accrual id, and are assigned to a day when that day is claimed.
package revenue

import (
	"FeeDistributor/internal/distribution"
	"FeeDistributor/internal/observability"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var ErrInvalidAccrual = errors.New("invalid accrual")

// Accrual is one fee amount credited to the pool.
type Accrual struct {
	AccrualID  string `json:"accrual_id"`
	PositionID string `json:"position_id"`
	Amount     uint64 `json:"amount"`
	Timestamp  int64  `json:"timestamp"`
}

func (a Accrual) Validate() error {
	if a.AccrualID == "" {
		return fmt.Errorf("%w: empty accrual id", ErrInvalidAccrual)
	}
	if a.Amount == 0 {
		return fmt.Errorf("%w: accrual %s has zero amount", ErrInvalidAccrual, a.AccrualID)
	}
	if a.Timestamp <= 0 {
		return fmt.Errorf("%w: accrual %s has timestamp %d", ErrInvalidAccrual, a.AccrualID, a.Timestamp)
	}
	return nil
}

// AccrualStore records accruals and assigns them to days.
type AccrualStore interface {
	// Record stores a, returning false when the accrual id was seen before.
	Record(ctx context.Context, a Accrual) (bool, error)

	// AssignDay assigns every unassigned accrual to dayKey and returns their
	// total. If dayKey already has accruals assigned, it returns that total
	// and assigns nothing new.
	AssignDay(ctx context.Context, dayKey int64) (uint64, error)

	// Pending returns the total not yet assigned to any day.
	Pending(ctx context.Context) (uint64, error)
}

// Pool is the accrual-backed distribution.RevenueSource.
type Pool struct {
	store   AccrualStore
	recent  *recentAccruals
	log     zerolog.Logger
	metrics *observability.Metrics
}

var _ distribution.RevenueSource = (*Pool)(nil)

func NewPool(store AccrualStore, logger zerolog.Logger, metrics *observability.Metrics) *Pool {
	return &Pool{
		store:   store,
		recent:  newRecentAccruals(DefaultRecentCapacity),
		log:     logger,
		metrics: metrics,
	}
}

// Record adds an accrual. Redelivered accruals are acknowledged and ignored.
func (p *Pool) Record(ctx context.Context, a Accrual) error {
	if err := a.Validate(); err != nil {
		p.count("invalid", 0)
		return err
	}
	if p.recent.Contains(a.AccrualID) {
		p.count("duplicate", 0)
		return nil
	}

	fresh, err := p.store.Record(ctx, a)
	if err != nil {
		p.count("error", 0)
		return fmt.Errorf("record accrual %s: %w", a.AccrualID, err)
	}
	p.recent.Add(a.AccrualID)
	if !fresh {
		p.count("duplicate", 0)
		p.log.Debug().Str("accrual_id", a.AccrualID).Msg("duplicate accrual ignored")
		return nil
	}

	p.count("recorded", a.Amount)
	return nil
}

// Claim implements distribution.RevenueSource.
func (p *Pool) Claim(ctx context.Context, dayKey int64) (uint64, error) {
	amount, err := p.store.AssignDay(ctx, dayKey)
	if err != nil {
		return 0, fmt.Errorf("assign accruals to day %d: %w", dayKey, err)
	}

	p.log.Info().Int64("day_id", dayKey).Uint64("amount", amount).Msg("accruals claimed")
	return amount, nil
}

// Pending returns the unclaimed accrued total.
func (p *Pool) Pending(ctx context.Context) (uint64, error) {
	return p.store.Pending(ctx)
}

func (p *Pool) count(outcome string, amount uint64) {
	if p.metrics == nil {
		return
	}
	p.metrics.AccrualsReceived.WithLabelValues(outcome).Inc()
	if amount > 0 {
		p.metrics.AccruedQuote.Add(float64(amount))
	}
}
