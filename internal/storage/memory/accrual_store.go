package memory

import (
	fpmath "FeeDistributor/internal/math"
	"FeeDistributor/internal/revenue"
	"context"
	"fmt"
	"sync"
)

type accrualEntry struct {
	accrual revenue.Accrual
	day     int64
	claimed bool
}

// AccrualStore is an in-memory revenue.AccrualStore.
type AccrualStore struct {
	mu      sync.Mutex
	entries map[string]*accrualEntry
	order   []string
	byDay   map[int64]uint64
}

var _ revenue.AccrualStore = (*AccrualStore)(nil)

func NewAccrualStore() *AccrualStore {
	return &AccrualStore{
		entries: make(map[string]*accrualEntry),
		byDay:   make(map[int64]uint64),
	}
}

// Record implements revenue.AccrualStore.
func (s *AccrualStore) Record(ctx context.Context, a revenue.Accrual) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[a.AccrualID]; ok {
		return false, nil
	}
	s.entries[a.AccrualID] = &accrualEntry{accrual: a}
	s.order = append(s.order, a.AccrualID)
	return true, nil
}

// AssignDay implements revenue.AccrualStore.
func (s *AccrualStore) AssignDay(ctx context.Context, dayKey int64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if total, ok := s.byDay[dayKey]; ok {
		return total, nil
	}

	var total uint64
	var claimed []*accrualEntry
	for _, id := range s.order {
		e := s.entries[id]
		if e.claimed {
			continue
		}
		next, err := fpmath.CheckedAdd(total, e.accrual.Amount)
		if err != nil {
			return 0, fmt.Errorf("day %d accrual total: %w", dayKey, err)
		}
		total = next
		claimed = append(claimed, e)
	}

	if len(claimed) == 0 {
		return 0, nil
	}
	for _, e := range claimed {
		e.claimed = true
		e.day = dayKey
	}
	s.byDay[dayKey] = total
	return total, nil
}

// Pending implements revenue.AccrualStore.
func (s *AccrualStore) Pending(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total uint64
	for _, e := range s.entries {
		if e.claimed {
			continue
		}
		next, err := fpmath.CheckedAdd(total, e.accrual.Amount)
		if err != nil {
			return 0, err
		}
		total = next
	}
	return total, nil
}
