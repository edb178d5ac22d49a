// Package memory provides in-process stores for tests and single-node runs.
package memory

import (
	"FeeDistributor/internal/distribution"
	"FeeDistributor/internal/storage"
	"context"
	"fmt"
	"sort"
	"sync"
)

// ProgressStore keeps DayProgress records in a map. Update holds the store
// mutex for the whole callback, so updates are fully serialized.
type ProgressStore struct {
	mu      sync.Mutex
	records map[int64]*distribution.DayProgress
}

var _ distribution.ProgressStore = (*ProgressStore)(nil)

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		records: make(map[int64]*distribution.DayProgress),
	}
}

// Update implements distribution.ProgressStore.
func (s *ProgressStore) Update(ctx context.Context, dayKey int64, fn func(p *distribution.DayProgress) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := distribution.NewDayProgress(dayKey)
	if stored, ok := s.records[dayKey]; ok {
		working = stored.Clone()
	}

	if err := fn(working); err != nil {
		return err
	}
	if working.DayKey != dayKey {
		return fmt.Errorf("%w: record for day %d rewritten with key %d", storage.ErrInvalidInput, dayKey, working.DayKey)
	}

	s.records[dayKey] = working
	return nil
}

// Get returns a copy of the record for dayKey.
func (s *ProgressStore) Get(ctx context.Context, dayKey int64) (*distribution.DayProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[dayKey]
	if !ok {
		return nil, fmt.Errorf("day %d: %w", dayKey, storage.ErrNotFound)
	}
	return stored.Clone(), nil
}

// Put stores a record as-is, replacing any existing one.
func (s *ProgressStore) Put(p *distribution.DayProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[p.DayKey] = p.Clone()
}

// Days returns all stored day keys in ascending order.
func (s *ProgressStore) Days() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]int64, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
