package memory

import (
	"FeeDistributor/internal/storage"
	"FeeDistributor/internal/vesting"
	"context"
	"fmt"
	"sync"
)

// ScheduleStore is an in-memory vesting.ScheduleStore.
type ScheduleStore struct {
	mu        sync.RWMutex
	schedules map[string]vesting.Schedule
}

var _ vesting.ScheduleStore = (*ScheduleStore)(nil)

func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{
		schedules: make(map[string]vesting.Schedule),
	}
}

// GetSchedule implements vesting.ScheduleStore.
func (s *ScheduleStore) GetSchedule(ctx context.Context, streamID string) (*vesting.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sched, ok := s.schedules[streamID]
	if !ok {
		return nil, fmt.Errorf("schedule %s: %w", streamID, storage.ErrNotFound)
	}
	return &sched, nil
}

// PutSchedule implements vesting.ScheduleStore. Existing schedules are replaced.
func (s *ScheduleStore) PutSchedule(ctx context.Context, sched vesting.Schedule) error {
	if err := sched.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[sched.StreamID] = sched
	return nil
}
