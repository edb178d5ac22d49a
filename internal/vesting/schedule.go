// Package vesting answers "how much of a stream is still locked at time t"
// from linear vesting schedules.
package vesting

import (
	fpmath "FeeDistributor/internal/math"
	"errors"
	"fmt"
)

var (
	ErrStreamNotFound  = errors.New("stream not found")
	ErrInvalidSchedule = errors.New("invalid vesting schedule")
)

// Schedule is a linear unlock of Allocation between StartTs and EndTs
// (unix seconds).
type Schedule struct {
	StreamID   string `json:"stream_id"`
	Allocation uint64 `json:"allocation"`
	StartTs    int64  `json:"start_ts"`
	EndTs      int64  `json:"end_ts"`
}

// Validate rejects schedules whose end precedes their start.
func (s Schedule) Validate() error {
	if s.StreamID == "" {
		return fmt.Errorf("%w: empty stream id", ErrInvalidSchedule)
	}
	if s.EndTs < s.StartTs {
		return fmt.Errorf("%w: stream %s ends at %d before it starts at %d",
			ErrInvalidSchedule, s.StreamID, s.EndTs, s.StartTs)
	}
	return nil
}

// LockedAt returns the still-locked amount at ts:
// the full allocation up to StartTs, zero from EndTs on, and
// allocation - floor(allocation * elapsed / duration) in between.
func (s Schedule) LockedAt(ts int64) (uint64, error) {
	switch {
	case ts >= s.EndTs:
		return 0, nil
	case ts <= s.StartTs:
		return s.Allocation, nil
	}

	duration := uint64(s.EndTs - s.StartTs)
	elapsed := uint64(ts - s.StartTs)

	unlocked, err := fpmath.MulDivFloor(s.Allocation, elapsed, duration)
	if err != nil {
		return 0, fmt.Errorf("stream %s unlocked amount: %w", s.StreamID, err)
	}
	return s.Allocation - unlocked, nil
}
