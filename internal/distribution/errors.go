package distribution

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every error returned by the engine wraps exactly one of these.
var (
	// ErrConfig: bad policy or input. Not retryable, raised before any transfer.
	ErrConfig = errors.New("config error")

	// ErrDayGate: the requested day does not match stored progress.
	ErrDayGate = errors.New("day gate not passed")

	// ErrInsufficientRevenue: the first claim of the day returned nothing.
	ErrInsufficientRevenue = errors.New("insufficient claimed revenue")

	// ErrArithmetic: a multiply/divide/add step left the uint64 range.
	ErrArithmetic = errors.New("arithmetic fault")

	// ErrTransferFailure: the transfer service rejected the page. Progress is unchanged.
	ErrTransferFailure = errors.New("transfer failure")

	// ErrInvariant: progress totals are inconsistent with the claimed amount.
	ErrInvariant = errors.New("internal consistency fault")

	// ErrUpstream: the revenue source or vesting oracle failed.
	ErrUpstream = errors.New("upstream call failed")
)

// ErrorKind returns a stable label for metrics, logs and transport status mapping.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrDayGate):
		return "day_gate"
	case errors.Is(err, ErrInsufficientRevenue):
		return "insufficient_revenue"
	case errors.Is(err, ErrArithmetic):
		return "arithmetic"
	case errors.Is(err, ErrTransferFailure):
		return "transfer"
	case errors.Is(err, ErrInvariant):
		return "invariant"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	default:
		return "internal"
	}
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

func dayGateError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDayGate, fmt.Sprintf(format, args...))
}

func arithmeticError(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrArithmetic, step, err)
}

func invariantError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
