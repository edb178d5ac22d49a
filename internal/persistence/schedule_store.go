package persistence

import (
	"FeeDistributor/internal/storage"
	"FeeDistributor/internal/vesting"
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ScheduleStore keeps vesting schedules in vesting.schedules.
type ScheduleStore struct {
	db *sql.DB
}

var _ vesting.ScheduleStore = (*ScheduleStore)(nil)

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// GetSchedule implements vesting.ScheduleStore.
func (s *ScheduleStore) GetSchedule(ctx context.Context, streamID string) (*vesting.Schedule, error) {
	var (
		sched      vesting.Schedule
		allocation string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT stream_id, allocation::text, start_ts, end_ts
		FROM vesting.schedules
		WHERE stream_id = $1
	`, streamID).Scan(&sched.StreamID, &allocation, &sched.StartTs, &sched.EndTs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schedule %s: %w", streamID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule %s: %w", streamID, err)
	}

	if sched.Allocation, err = parseAmount("allocation", allocation); err != nil {
		return nil, err
	}
	return &sched, nil
}

// PutSchedule implements vesting.ScheduleStore. Existing schedules are replaced.
func (s *ScheduleStore) PutSchedule(ctx context.Context, sched vesting.Schedule) error {
	if err := sched.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vesting.schedules (stream_id, allocation, start_ts, end_ts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (stream_id) DO UPDATE SET
			allocation = EXCLUDED.allocation,
			start_ts = EXCLUDED.start_ts,
			end_ts = EXCLUDED.end_ts,
			updated_at = NOW()
	`, sched.StreamID, amountArg(sched.Allocation), sched.StartTs, sched.EndTs)
	if err != nil {
		return fmt.Errorf("put schedule %s: %w", sched.StreamID, err)
	}
	return nil
}
