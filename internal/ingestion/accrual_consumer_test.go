package ingestion_test

import (
	"FeeDistributor/internal/ingestion"
	"FeeDistributor/internal/revenue"
	"FeeDistributor/internal/testutil"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorderStub struct {
	mu       sync.Mutex
	recorded []revenue.Accrual
	err      error
}

func (r *recorderStub) Record(_ context.Context, a revenue.Accrual) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.recorded = append(r.recorded, a)
	return nil
}

type ackTracker struct {
	acks, naks int
}

func (a *ackTracker) raw(subject string, data []byte) ingestion.RawEvent {
	return ingestion.RawEvent{
		Subject: subject,
		Data:    data,
		AckFunc: func() { a.acks++ },
		NakFunc: func() { a.naks++ },
	}
}

func accrualPayload(t *testing.T, id string, amount uint64) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"accrual_id":  id,
		"position_id": testutil.AccountID("pos"),
		"amount":      amount,
		"ts":          1_700_000_000,
	})
	require.NoError(t, err)
	return data
}

// runConsumer feeds events through a consumer until the channel drains.
func runConsumer(t *testing.T, rec ingestion.AccrualRecorder, events ...ingestion.RawEvent) {
	t.Helper()
	ch := make(chan ingestion.RawEvent, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)

	c := ingestion.NewAccrualConsumer(rec, ingestion.DefaultSubjects(), zerolog.Nop())
	require.NoError(t, c.Run(context.Background(), ch))
}

func TestAccrualConsumer_RecordsAndAcks(t *testing.T) {
	rec := &recorderStub{}
	acks := &ackTracker{}

	runConsumer(t, rec,
		acks.raw("fees.accrued.pos", accrualPayload(t, "a1", 100)),
		acks.raw("fees.accrued.pos", accrualPayload(t, "a2", 250)),
	)

	require.Len(t, rec.recorded, 2)
	assert.Equal(t, "a1", rec.recorded[0].AccrualID)
	assert.Equal(t, uint64(250), rec.recorded[1].Amount)
	assert.Equal(t, 2, acks.acks)
	assert.Zero(t, acks.naks)
}

func TestAccrualConsumer_PoisonMessagesAreAcked(t *testing.T) {
	rec := &recorderStub{}
	acks := &ackTracker{}

	runConsumer(t, rec,
		acks.raw("fees.accrued.pos", []byte("not json")),
		acks.raw("unknown.subject", accrualPayload(t, "a1", 1)),
	)

	assert.Empty(t, rec.recorded)
	assert.Equal(t, 2, acks.acks)
	assert.Zero(t, acks.naks)
}

func TestAccrualConsumer_RecordFailureNaks(t *testing.T) {
	rec := &recorderStub{err: errors.New("db down")}
	acks := &ackTracker{}

	runConsumer(t, rec, acks.raw("fees.accrued.pos", accrualPayload(t, "a1", 1)))

	assert.Zero(t, acks.acks)
	assert.Equal(t, 1, acks.naks)
}

func TestGRPCIngestService_InjectAccrual(t *testing.T) {
	rec := &recorderStub{}
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_123, 0))
	svc := ingestion.NewGRPCIngestService(rec, clock)

	id, err := svc.InjectAccrual(context.Background(), "", testutil.AccountID("pos"), 42, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Len(t, rec.recorded, 1)
	assert.Equal(t, id, rec.recorded[0].AccrualID)
	assert.Equal(t, int64(1_700_000_123), rec.recorded[0].Timestamp)

	_, err = svc.InjectAccrual(context.Background(), "x", testutil.AccountID("pos"), 0, 0)
	assert.Error(t, err)

	_, err = svc.InjectAccrual(context.Background(), "x", "not-an-account", 1, 0)
	assert.Error(t, err)
}
