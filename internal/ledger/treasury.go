package ledger

import (
	"FeeDistributor/internal/distribution"
	"FeeDistributor/internal/observability"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

var (
	ErrInsufficientTreasury = errors.New("insufficient treasury balance")
	ErrPartialReplay        = errors.New("batch partially applied before")
)

// JournalSink durably records applied batches. A batch is only applied in
// memory after AppendBatch succeeds.
type JournalSink interface {
	AppendBatch(ctx context.Context, batch *Batch) error
}

type TreasuryDeps struct {
	Sink    JournalSink
	Clock   clockwork.Clock
	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Treasury is the quote account the distributor pays out of. It implements
// distribution.TransferService and distribution.BatchTransferService on top
// of the double-entry ledger. Transfers are deduplicated by reference.
type Treasury struct {
	mu        sync.Mutex
	key       AccountKey
	tracker   *BalanceTracker
	validator *InvariantValidator
	generator *JournalGenerator
	applied   map[string]struct{}

	sink    JournalSink
	clock   clockwork.Clock
	log     zerolog.Logger
	metrics *observability.Metrics
}

var (
	_ distribution.TransferService      = (*Treasury)(nil)
	_ distribution.BatchTransferService = (*Treasury)(nil)
)

func NewTreasury(owner string, deps TreasuryDeps) (*Treasury, error) {
	if owner == "" {
		return nil, fmt.Errorf("treasury owner is required")
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	key := NewTreasuryKey(owner)
	tracker := NewBalanceTracker()

	return &Treasury{
		key:       key,
		tracker:   tracker,
		validator: NewInvariantValidator(tracker),
		generator: NewJournalGenerator(1, key),
		applied:   make(map[string]struct{}),
		sink:      deps.Sink,
		clock:     deps.Clock,
		log:       deps.Logger,
		metrics:   deps.Metrics,
	}, nil
}

// Account returns the treasury's account path, the From of every transfer.
func (t *Treasury) Account() string {
	return t.key.AccountPath()
}

// Deposit credits a day's claimed revenue to the treasury. Repeating a
// deposit for the same day is a no-op.
func (t *Treasury) Deposit(ctx context.Context, dayKey int64, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.applied[ClaimRef(dayKey)]; ok {
		return nil
	}

	batch, err := t.generator.GenerateRevenueClaim(dayKey, amount, t.clock.Now().Unix())
	if err != nil {
		return err
	}
	return t.apply(ctx, batch)
}

// Transfer implements distribution.TransferService.
func (t *Treasury) Transfer(ctx context.Context, tr distribution.Transfer) error {
	return t.TransferBatch(ctx, []distribution.Transfer{tr})
}

// TransferBatch implements distribution.BatchTransferService. Either every
// transfer is applied or none is. A batch whose references were all applied
// before is a no-op.
func (t *Treasury) TransferBatch(ctx context.Context, transfers []distribution.Transfer) error {
	if len(transfers) == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	seen := 0
	for _, tr := range transfers {
		if _, ok := t.applied[tr.Reference]; ok {
			seen++
		}
	}
	switch {
	case seen == len(transfers):
		t.log.Debug().Int("transfers", seen).Msg("transfer batch already applied")
		return nil
	case seen > 0:
		t.failed()
		return fmt.Errorf("%w: %d of %d references", ErrPartialReplay, seen, len(transfers))
	}

	batch, err := t.generator.GenerateTransfers(transfers, t.clock.Now().Unix())
	if err != nil {
		t.generator.Rewind(batch)
		t.failed()
		return err
	}
	if err := t.apply(ctx, batch); err != nil {
		t.failed()
		return err
	}
	return nil
}

// apply runs with t.mu held.
func (t *Treasury) apply(ctx context.Context, batch *Batch) error {
	next, err := t.tracker.Preview(batch)
	if err != nil {
		t.generator.Rewind(batch)
		return err
	}
	if err := t.validator.ValidatePreview(next); err != nil {
		t.generator.Rewind(batch)
		return fmt.Errorf("%w: %w", ErrInsufficientTreasury, err)
	}

	if t.sink != nil {
		if err := t.sink.AppendBatch(ctx, batch); err != nil {
			t.generator.Rewind(batch)
			return fmt.Errorf("record batch %s: %w", batch.BatchID, err)
		}
	}

	t.tracker.Commit(next)
	for _, j := range batch.Journals {
		t.applied[j.EventRef] = struct{}{}
	}
	t.observe(batch)
	return nil
}

// Restore replays persisted batches in sequence order, rebuilding balances
// and the applied-reference set.
func (t *Treasury) Restore(batches []*Batch) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, b := range batches {
		if err := t.tracker.ApplyBatch(b); err != nil {
			return fmt.Errorf("replay batch %d: %w", b.Sequence, err)
		}
		for _, j := range b.Journals {
			t.applied[j.EventRef] = struct{}{}
		}
		t.generator.Advance(b.Sequence)
	}

	if err := t.validator.ValidateGlobalBalance(); err != nil {
		return fmt.Errorf("replayed ledger: %w", err)
	}
	if err := t.tracker.ValidateNonNegative(t.key); err != nil {
		return fmt.Errorf("replayed ledger: %w", err)
	}

	if t.metrics != nil {
		bal, _ := t.tracker.GetTotals(t.key).Balance()
		t.metrics.TreasuryBalance.Set(float64(bal))
	}
	t.log.Info().
		Int("batches", len(batches)).
		Int64("next_sequence", t.generator.Sequence()).
		Msg("treasury restored")
	return nil
}

// Balance returns the current treasury balance.
func (t *Treasury) Balance() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	bal, _ := t.tracker.GetTotals(t.key).Balance()
	return bal
}

// Totals returns the totals of any account.
func (t *Treasury) Totals(key AccountKey) Totals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracker.GetTotals(key)
}

// Snapshot returns a copy of every account's totals.
func (t *Treasury) Snapshot() map[AccountKey]Totals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracker.Snapshot()
}

func (t *Treasury) observe(batch *Batch) {
	if t.metrics == nil {
		return
	}
	for _, j := range batch.Journals {
		t.metrics.JournalsApplied.WithLabelValues(j.JournalType.String()).Inc()
	}
	bal, _ := t.tracker.GetTotals(t.key).Balance()
	t.metrics.TreasuryBalance.Set(float64(bal))
}

func (t *Treasury) failed() {
	if t.metrics != nil {
		t.metrics.TransferFailures.Inc()
	}
}
