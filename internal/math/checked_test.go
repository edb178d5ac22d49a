package math_test

import (
	fpmath "FeeDistributor/internal/math"
	stdmath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test: MulDiv
// ============================================================================

func TestMulDiv_Floor(t *testing.T) {
	got, err := fpmath.MulDivFloor(1_000_000, 5_000, 10_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000), got)

	got, err = fpmath.MulDivFloor(7, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got)
}

func TestMulDiv_WideIntermediate(t *testing.T) {
	// a*b overflows 64 bits but the quotient fits.
	got, err := fpmath.MulDivFloor(stdmath.MaxUint64, stdmath.MaxUint64, stdmath.MaxUint64)
	require.NoError(t, err)
	assert.Equal(t, uint64(stdmath.MaxUint64), got)
}

func TestMulDiv_QuotientOverflow(t *testing.T) {
	_, err := fpmath.MulDivFloor(stdmath.MaxUint64, 10_000, 2)
	require.ErrorIs(t, err, fpmath.ErrOverflow)
}

func TestMulDiv_DivideByZero(t *testing.T) {
	_, err := fpmath.MulDivFloor(1, 1, 0)
	require.ErrorIs(t, err, fpmath.ErrDivideByZero)
}

func TestMulDiv_RoundingModes(t *testing.T) {
	cases := []struct {
		name        string
		a, b, d     uint64
		mode        fpmath.RoundingMode
		want        uint64
	}{
		{"down", 5, 1, 2, fpmath.RoundDown, 2},
		{"up", 5, 1, 2, fpmath.RoundUp, 3},
		{"half even to even", 5, 1, 2, fpmath.RoundHalfEven, 2},
		{"half even odd rounds up", 7, 1, 2, fpmath.RoundHalfEven, 4},
		{"half even above half", 5, 1, 3, fpmath.RoundHalfEven, 2},
		{"exact", 6, 1, 3, fpmath.RoundUp, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := fpmath.MulDiv(tc.a, tc.b, tc.d, tc.mode)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// ============================================================================
// Test: checked add / sub
// ============================================================================

func TestCheckedAdd(t *testing.T) {
	got, err := fpmath.CheckedAdd(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got)

	_, err = fpmath.CheckedAdd(stdmath.MaxUint64, 1)
	require.ErrorIs(t, err, fpmath.ErrOverflow)
}

func TestCheckedSub(t *testing.T) {
	got, err := fpmath.CheckedSub(5, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got)

	_, err = fpmath.CheckedSub(2, 5)
	require.ErrorIs(t, err, fpmath.ErrUnderflow)
}

func TestSaturatingSub(t *testing.T) {
	assert.Equal(t, uint64(0), fpmath.SaturatingSub(3, 10))
	assert.Equal(t, uint64(7), fpmath.SaturatingSub(10, 3))
}

func TestSum_Overflow(t *testing.T) {
	_, err := fpmath.Sum(stdmath.MaxUint64, 1)
	require.ErrorIs(t, err, fpmath.ErrOverflow)

	got, err := fpmath.Sum(1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), got)
}

// ============================================================================
// Test: ProRataSplit
// ============================================================================

func TestProRataSplit_Residual(t *testing.T) {
	shares, residual, err := fpmath.ProRataSplit(100, []uint64{1, 1, 1}, 3)
	require.NoError(t, err)
	require.Len(t, shares, 3)
	for _, s := range shares {
		assert.Equal(t, uint64(33), s.Amount)
	}
	assert.Equal(t, uint64(1), residual)
}

func TestProRataSplit_ZeroTotal(t *testing.T) {
	shares, residual, err := fpmath.ProRataSplit(100, []uint64{0, 0}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), shares[0].Amount+shares[1].Amount)
	assert.Equal(t, uint64(100), residual)
}

func TestProRataSplit_WeightsExceedTotal(t *testing.T) {
	_, _, err := fpmath.ProRataSplit(100, []uint64{3, 3}, 3)
	require.ErrorIs(t, err, fpmath.ErrUnderflow)
}
