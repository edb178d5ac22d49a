package vesting_test

import (
	"FeeDistributor/internal/storage/memory"
	"FeeDistributor/internal/vesting"
	"context"
	stdmath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test: Linear Unlock
// ============================================================================

func TestLockedAt_Boundaries(t *testing.T) {
	s := vesting.Schedule{StreamID: "s1", Allocation: 1_000, StartTs: 100, EndTs: 200}

	cases := []struct {
		name string
		ts   int64
		want uint64
	}{
		{"before start", 50, 1_000},
		{"at start", 100, 1_000},
		{"quarter", 125, 750},
		{"half", 150, 500},
		{"one second before end", 199, 10},
		{"at end", 200, 0},
		{"after end", 10_000, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.LockedAt(tc.ts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLockedAt_UnlockedRoundsDown(t *testing.T) {
	// unlocked = floor(10 * 1 / 3) = 3, so 7 stays locked.
	s := vesting.Schedule{StreamID: "s1", Allocation: 10, StartTs: 0, EndTs: 3}
	got, err := s.LockedAt(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got)
}

func TestLockedAt_LargeAllocation(t *testing.T) {
	s := vesting.Schedule{StreamID: "s1", Allocation: stdmath.MaxUint64, StartTs: 0, EndTs: 4}
	got, err := s.LockedAt(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(stdmath.MaxUint64)-uint64(stdmath.MaxUint64)/2, got)
}

func TestLockedAt_NonIncreasing(t *testing.T) {
	s := vesting.Schedule{StreamID: "s1", Allocation: 987_654_321, StartTs: 1_000, EndTs: 87_400}

	prev := uint64(stdmath.MaxUint64)
	for ts := int64(0); ts <= 90_000; ts += 777 {
		got, err := s.LockedAt(ts)
		require.NoError(t, err)
		assert.LessOrEqual(t, got, prev, "ts=%d", ts)
		prev = got
	}
}

func TestSchedule_Validate(t *testing.T) {
	assert.NoError(t, vesting.Schedule{StreamID: "s", StartTs: 5, EndTs: 5}.Validate())
	assert.ErrorIs(t, vesting.Schedule{StreamID: "s", StartTs: 6, EndTs: 5}.Validate(), vesting.ErrInvalidSchedule)
	assert.ErrorIs(t, vesting.Schedule{StartTs: 1, EndTs: 5}.Validate(), vesting.ErrInvalidSchedule)
}

// ============================================================================
// Test: Oracle
// ============================================================================

func TestScheduleOracle_LockedAmount(t *testing.T) {
	ctx := context.Background()
	store := memory.NewScheduleStore()
	require.NoError(t, store.PutSchedule(ctx, vesting.Schedule{
		StreamID: "stream-a", Allocation: 400, StartTs: 0, EndTs: 400,
	}))

	oracle := vesting.NewScheduleOracle(store)

	got, err := oracle.LockedAmount(ctx, "stream-a", 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), got)

	_, err = oracle.LockedAmount(ctx, "missing", 100)
	assert.ErrorIs(t, err, vesting.ErrStreamNotFound)
}

func TestScheduleOracle_RejectsInvalidSchedule(t *testing.T) {
	store := memory.NewScheduleStore()
	err := store.PutSchedule(context.Background(), vesting.Schedule{StreamID: "x", StartTs: 10, EndTs: 1})
	assert.Error(t, err)
}
