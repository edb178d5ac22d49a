package math

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	ErrOverflow     = errors.New("arithmetic overflow")
	ErrUnderflow    = errors.New("arithmetic underflow")
	ErrDivideByZero = errors.New("division by zero")
)

// BpsDenominator is the basis-point scale (100% = 10_000).
const BpsDenominator uint64 = 10_000

type RoundingMode int

const (
	RoundDown RoundingMode = iota // Truncation, the default for payouts
	RoundUp
	RoundHalfEven
)

// MulDiv computes a * b / denominator with a 128-bit intermediate product.
// The quotient must fit in 64 bits, otherwise ErrOverflow is returned.
func MulDiv(a, b, denominator uint64, mode RoundingMode) (uint64, error) {
	if denominator == 0 {
		return 0, ErrDivideByZero
	}

	hi, lo := bits.Mul64(a, b)
	if hi >= denominator {
		return 0, fmt.Errorf("%w: %d * %d / %d", ErrOverflow, a, b, denominator)
	}

	quo, rem := bits.Div64(hi, lo, denominator)
	if rem == 0 {
		return quo, nil
	}

	roundUp := false
	switch mode {
	case RoundUp:
		roundUp = true
	case RoundHalfEven:
		// Compare rem with denominator-rem to avoid doubling rem past 2^64.
		other := denominator - rem
		if rem > other || (rem == other && quo%2 == 1) {
			roundUp = true
		}
	}

	if roundUp {
		if quo == ^uint64(0) {
			return 0, fmt.Errorf("%w: rounding %d up", ErrOverflow, quo)
		}
		quo++
	}
	return quo, nil
}

// MulDivFloor is MulDiv with RoundDown.
func MulDivFloor(a, b, denominator uint64) (uint64, error) {
	return MulDiv(a, b, denominator, RoundDown)
}

// CheckedAdd returns a + b or ErrOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return sum, nil
}

// CheckedSub returns a - b or ErrUnderflow when b > a.
func CheckedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, fmt.Errorf("%w: %d - %d", ErrUnderflow, a, b)
	}
	return diff, nil
}

// SaturatingSub returns max(0, a - b).
func SaturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

// Sum adds all values, failing on the first overflow.
func Sum(values ...uint64) (uint64, error) {
	var total uint64
	for _, v := range values {
		next, err := CheckedAdd(total, v)
		if err != nil {
			return 0, err
		}
		total = next
	}
	return total, nil
}
