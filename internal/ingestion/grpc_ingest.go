package ingestion

import (
	"FeeDistributor/internal/distribution"
	"FeeDistributor/internal/event"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// GRPCIngestService provides manual accrual injection for the RPC surface.
// High-throughput ingestion goes through NATS.
type GRPCIngestService struct {
	recorder AccrualRecorder
	clock    clockwork.Clock
}

func NewGRPCIngestService(recorder AccrualRecorder, clock clockwork.Clock) *GRPCIngestService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &GRPCIngestService{recorder: recorder, clock: clock}
}

// InjectAccrual records a fee accrual for positionID. An empty accrualID is
// replaced with a fresh UUID, and a zero timestamp with the current time.
// It returns the accrual id used.
func (s *GRPCIngestService) InjectAccrual(
	ctx context.Context,
	accrualID string,
	positionID string,
	amount uint64,
	timestamp int64,
) (string, error) {
	if amount == 0 {
		return "", fmt.Errorf("amount must be positive")
	}
	if err := distribution.ValidateAccountID(positionID); err != nil {
		return "", fmt.Errorf("position_id: %w", err)
	}
	if accrualID == "" {
		accrualID = uuid.NewString()
	}
	if timestamp == 0 {
		timestamp = s.clock.Now().Unix()
	}

	evt := &event.FeesAccrued{
		AccrualID:  accrualID,
		PositionID: positionID,
		Amount:     amount,
		Timestamp:  timestamp,
	}
	if err := s.recorder.Record(ctx, evt.Accrual()); err != nil {
		return "", err
	}
	return accrualID, nil
}
