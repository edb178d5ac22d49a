package revenue_test

import (
	"FeeDistributor/internal/revenue"
	"FeeDistributor/internal/storage/memory"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPool() *revenue.Pool {
	return revenue.NewPool(memory.NewAccrualStore(), zerolog.Nop(), nil)
}

func accrual(id string, amount uint64) revenue.Accrual {
	return revenue.Accrual{AccrualID: id, PositionID: "pos-1", Amount: amount, Timestamp: 1_700_000_000}
}

// ============================================================================
// Test: Pool
// ============================================================================

func TestPool_ClaimAssignsPendingAccruals(t *testing.T) {
	ctx := context.Background()
	pool := newPool()

	require.NoError(t, pool.Record(ctx, accrual("a1", 600)))
	require.NoError(t, pool.Record(ctx, accrual("a2", 400)))

	pending, err := pool.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), pending)

	got, err := pool.Claim(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), got)

	pending, err = pool.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestPool_DuplicateAccrualIgnored(t *testing.T) {
	ctx := context.Background()
	pool := newPool()

	require.NoError(t, pool.Record(ctx, accrual("a1", 600)))
	require.NoError(t, pool.Record(ctx, accrual("a1", 600)))

	got, err := pool.Claim(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), got)
}

func TestPool_ReclaimSameDayIsStable(t *testing.T) {
	ctx := context.Background()
	pool := newPool()

	require.NoError(t, pool.Record(ctx, accrual("a1", 600)))
	first, err := pool.Claim(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, pool.Record(ctx, accrual("a2", 50)))
	again, err := pool.Claim(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	next, err := pool.Claim(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), next)
}

func TestPool_EmptyClaimIsZero(t *testing.T) {
	got, err := newPool().Claim(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestPool_RejectsInvalidAccrual(t *testing.T) {
	pool := newPool()
	err := pool.Record(context.Background(), revenue.Accrual{AccrualID: "x", Timestamp: 1})
	assert.ErrorIs(t, err, revenue.ErrInvalidAccrual)
}

// ============================================================================
// Test: FundedSource
// ============================================================================

type fakeDepositor struct {
	deposits map[int64]uint64
	err      error
}

func (d *fakeDepositor) Deposit(_ context.Context, day int64, amount uint64) error {
	if d.err != nil {
		return d.err
	}
	d.deposits[day] += amount
	return nil
}

func TestFundedSource_DepositsClaim(t *testing.T) {
	ctx := context.Background()
	pool := newPool()
	require.NoError(t, pool.Record(ctx, accrual("a1", 900)))

	dep := &fakeDepositor{deposits: map[int64]uint64{}}
	src := revenue.NewFundedSource(pool, dep)

	got, err := src.Claim(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(900), got)
	assert.Equal(t, uint64(900), dep.deposits[3])
}

func TestFundedSource_ZeroClaimSkipsDeposit(t *testing.T) {
	dep := &fakeDepositor{deposits: map[int64]uint64{}}
	got, err := revenue.NewFundedSource(newPool(), dep).Claim(context.Background(), 3)
	require.NoError(t, err)
	assert.Zero(t, got)
	assert.Empty(t, dep.deposits)
}

func TestFundedSource_DepositFailure(t *testing.T) {
	ctx := context.Background()
	pool := newPool()
	require.NoError(t, pool.Record(ctx, accrual("a1", 900)))

	dep := &fakeDepositor{deposits: map[int64]uint64{}, err: errors.New("ledger down")}
	_, err := revenue.NewFundedSource(pool, dep).Claim(ctx, 3)
	assert.Error(t, err)
}

type countingStore struct {
	revenue.AccrualStore
	records int
}

func (s *countingStore) Record(ctx context.Context, a revenue.Accrual) (bool, error) {
	s.records++
	return s.AccrualStore.Record(ctx, a)
}

func TestPool_RedeliverySkipsStore(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{AccrualStore: memory.NewAccrualStore()}
	pool := revenue.NewPool(store, zerolog.Nop(), nil)

	for range 3 {
		require.NoError(t, pool.Record(ctx, accrual("a1", 600)))
	}
	assert.Equal(t, 1, store.records)
}
