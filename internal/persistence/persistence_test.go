package persistence_test

import (
	"FeeDistributor/internal/distribution"
	"FeeDistributor/internal/event"
	"FeeDistributor/internal/ledger"
	"FeeDistributor/internal/persistence"
	"FeeDistributor/internal/revenue"
	"FeeDistributor/internal/storage"
	"FeeDistributor/internal/testutil"
	"FeeDistributor/internal/vesting"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressStore_RoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := persistence.NewProgressStore(db)
	ctx := context.Background()

	_, err := store.Get(ctx, 10)
	require.ErrorIs(t, err, storage.ErrNotFound)

	err = store.Update(ctx, 10, func(p *distribution.DayProgress) error {
		assert.Equal(t, distribution.PhaseNotStarted, p.Phase())
		p.LastDistributionTs = 864_100
		p.ClaimedQuoteForDay = ^uint64(0) >> 1
		p.CumulativeDistributed = 40
		p.CarryOver = 2
		p.PaginationCursor = 1
		p.PolicyHash = "ph"
		p.ProcessedPages = []string{"idx:0"}
		p.ReceiptHash = "rh"
		return nil
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.DayID)
	assert.Equal(t, ^uint64(0)>>1, got.ClaimedQuoteForDay)
	assert.Equal(t, []string{"idx:0"}, got.ProcessedPages)
	assert.Equal(t, distribution.PhaseDistributing, got.Phase())

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), latest.DayKey)
}

func TestProgressStore_FailedCallbackLeavesRow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := persistence.NewProgressStore(db)
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, 4, func(p *distribution.DayProgress) error {
		p.LastDistributionTs = 1
		p.ClaimedQuoteForDay = 100
		return nil
	}))

	boom := errors.New("boom")
	err := store.Update(ctx, 4, func(p *distribution.DayProgress) error {
		p.CumulativeDistributed = 99
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.Get(ctx, 4)
	require.NoError(t, err)
	assert.Zero(t, got.CumulativeDistributed)
}

func TestProgressStore_ConcurrentUpdatesSerialize(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := persistence.NewProgressStore(db)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Update(ctx, 7, func(p *distribution.DayProgress) error {
				p.PaginationCursor++
				return nil
			}))
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(workers), got.PaginationCursor)
}

func TestAccrualStore_AssignDay(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := persistence.NewAccrualStore(db)
	ctx := context.Background()
	pos := testutil.AccountID("pos")

	fresh, err := store.Record(ctx, revenue.Accrual{AccrualID: "a1", PositionID: pos, Amount: 100, Timestamp: 1})
	require.NoError(t, err)
	assert.True(t, fresh)
	fresh, err = store.Record(ctx, revenue.Accrual{AccrualID: "a1", PositionID: pos, Amount: 100, Timestamp: 1})
	require.NoError(t, err)
	assert.False(t, fresh)
	_, err = store.Record(ctx, revenue.Accrual{AccrualID: "a2", PositionID: pos, Amount: 50, Timestamp: 2})
	require.NoError(t, err)

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), pending)

	total, err := store.AssignDay(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), total)

	_, err = store.Record(ctx, revenue.Accrual{AccrualID: "a3", PositionID: pos, Amount: 7, Timestamp: 3})
	require.NoError(t, err)

	again, err := store.AssignDay(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), again, "re-claiming a day must not pick up later accruals")

	next, err := store.AssignDay(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), next)

	empty, err := store.AssignDay(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, empty)
}

func TestScheduleStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := persistence.NewScheduleStore(db)
	ctx := context.Background()
	stream := testutil.AccountID("stream")

	_, err := store.GetSchedule(ctx, stream)
	require.ErrorIs(t, err, storage.ErrNotFound)

	sched := vesting.Schedule{StreamID: stream, Allocation: 1_000, StartTs: 100, EndTs: 200}
	require.NoError(t, store.PutSchedule(ctx, sched))

	got, err := store.GetSchedule(ctx, stream)
	require.NoError(t, err)
	assert.Equal(t, sched, *got)

	oracle := vesting.NewScheduleOracle(store)
	locked, err := oracle.LockedAmount(ctx, stream, 150)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), locked)
}

func newTreasury(t *testing.T, sink ledger.JournalSink) *ledger.Treasury {
	t.Helper()
	tr, err := ledger.NewTreasury("it", ledger.TreasuryDeps{
		Sink:   sink,
		Clock:  clockwork.NewFakeClockAt(time.Unix(1_000, 0)),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return tr
}

func TestJournalStore_TreasuryRestore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	journals := persistence.NewJournalStore(db, nil)
	ctx := context.Background()

	tr := newTreasury(t, journals)
	require.NoError(t, tr.Deposit(ctx, 5, 1_000))

	dest := testutil.AccountID("dest")
	require.NoError(t, tr.TransferBatch(ctx, []distribution.Transfer{
		{From: tr.Account(), To: dest, Amount: 600, Kind: distribution.TransferParticipantPayout, DayKey: 5, PageKey: "idx:0", Reference: "5:idx:0:0"},
		{From: tr.Account(), To: dest, Amount: 100, Kind: distribution.TransferRemainder, DayKey: 5, PageKey: "idx:0", Reference: "5:close"},
	}))

	batches, err := journals.LoadBatches(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Len(t, batches[1].Journals, 2)

	restored := newTreasury(t, journals)
	require.NoError(t, restored.Restore(batches))
	assert.Equal(t, tr.Balance(), restored.Balance())
	assert.Equal(t, uint64(300), restored.Balance())

	// A replayed reference is a no-op after restore.
	require.NoError(t, restored.Transfer(ctx, distribution.Transfer{
		From: tr.Account(), To: dest, Amount: 600, Kind: distribution.TransferParticipantPayout, DayKey: 5, PageKey: "idx:0", Reference: "5:idx:0:0",
	}))
	assert.Equal(t, uint64(300), restored.Balance())
}

func TestEventLogWriter_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	writer := persistence.NewEventLogWriter(db)
	ctx := context.Background()

	build := func() []*event.EventEnvelope {
		envs, err := event.FromReceipt(&distribution.PageReceipt{
			DayKey: 8, PageKey: "idx:0", Cursor: 1, Timestamp: 700_000,
			ClaimedThisCall: true, ClaimedQuoteForDay: 10, PageDistributed: 4,
		})
		require.NoError(t, err)
		return envs
	}

	inserted, err := writer.WriteEventBatch(ctx, db, build())
	require.NoError(t, err)
	require.Len(t, inserted, 2)
	assert.Less(t, inserted[0].Sequence, inserted[1].Sequence)

	again, err := writer.WriteEventBatch(ctx, db, build())
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestPersistenceWorker_WritesAndForwards(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan *event.EventEnvelope, 4)
	out := make(chan *event.EventEnvelope, 4)
	worker := persistence.NewPersistenceWorker(db, in, out, 10, 20*time.Millisecond, zerolog.Nop(), nil)

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	envs, err := event.FromReceipt(&distribution.PageReceipt{DayKey: 9, PageKey: "idx:2", Timestamp: 1})
	require.NoError(t, err)
	for _, e := range envs {
		in <- e
	}

	select {
	case env := <-out:
		assert.Equal(t, "9:page:idx:2", env.IdempotencyKey)
		assert.NotZero(t, env.Sequence)
	case <-time.After(10 * time.Second):
		t.Fatal("envelope was not forwarded")
	}

	close(in)
	require.NoError(t, <-done)
}
