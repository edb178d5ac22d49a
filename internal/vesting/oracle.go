package vesting

import (
	"FeeDistributor/internal/storage"
	"context"
	"errors"
	"fmt"
)

// ScheduleStore persists vesting schedules by stream id.
type ScheduleStore interface {
	GetSchedule(ctx context.Context, streamID string) (*Schedule, error)
	PutSchedule(ctx context.Context, s Schedule) error
}

// ScheduleOracle implements the distribution engine's vesting lookup on top
// of a ScheduleStore.
type ScheduleOracle struct {
	store ScheduleStore
}

func NewScheduleOracle(store ScheduleStore) *ScheduleOracle {
	return &ScheduleOracle{store: store}
}

// LockedAmount returns the locked amount of streamID at ts.
func (o *ScheduleOracle) LockedAmount(ctx context.Context, streamID string, ts int64) (uint64, error) {
	s, err := o.store.GetSchedule(ctx, streamID)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("%w: %s", ErrStreamNotFound, streamID)
	}
	if err != nil {
		return 0, fmt.Errorf("load schedule %s: %w", streamID, err)
	}
	return s.LockedAt(ts)
}
