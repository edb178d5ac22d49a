package distribution

import (
	fpmath "FeeDistributor/internal/math"
	"FeeDistributor/internal/observability"
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// EngineConfig holds the static settings of an Engine.
type EngineConfig struct {
	WindowSeconds   int64
	TreasuryAccount string

	// Recipient receives each day's remainder on its final page.
	Recipient string
}

// EngineDeps are the collaborators an Engine is wired to.
type EngineDeps struct {
	Store     ProgressStore
	Revenue   RevenueSource
	Vesting   VestingOracle
	Transfers TransferService
	Clock     clockwork.Clock
	Logger    zerolog.Logger
	Metrics   *observability.Metrics

	// Outputs receives one Output per applied page (blocking send). Optional.
	Outputs chan<- Output
}

// Engine runs the daily paginated distribution.
type Engine struct {
	cfg       EngineConfig
	store     ProgressStore
	revenue   RevenueSource
	vesting   VestingOracle
	transfers TransferService
	clock     clockwork.Clock
	log       zerolog.Logger
	metrics   *observability.Metrics
	outputs   chan<- Output
}

func NewEngine(cfg EngineConfig, deps EngineDeps) (*Engine, error) {
	if cfg.WindowSeconds == 0 {
		cfg.WindowSeconds = DefaultWindowSeconds
	}
	if cfg.WindowSeconds < 0 {
		return nil, configError("window length must be positive, got %d", cfg.WindowSeconds)
	}
	if cfg.TreasuryAccount == "" {
		return nil, configError("treasury account is required")
	}
	if err := ValidateAccountID(cfg.Recipient); err != nil {
		return nil, configError("recipient: %v", err)
	}
	if deps.Store == nil || deps.Revenue == nil || deps.Vesting == nil || deps.Transfers == nil {
		return nil, configError("store, revenue source, vesting oracle and transfer service are required")
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	return &Engine{
		cfg:       cfg,
		store:     deps.Store,
		revenue:   deps.Revenue,
		vesting:   deps.Vesting,
		transfers: deps.Transfers,
		clock:     deps.Clock,
		log:       deps.Logger,
		metrics:   deps.Metrics,
		outputs:   deps.Outputs,
	}, nil
}

// PageRequest is one process_page call.
type PageRequest struct {
	// WindowStart is any timestamp inside the day being distributed.
	WindowStart  int64               `json:"window_start"`
	Participants []ParticipantRecord `json:"participants"`
	Policy       PolicyParameters    `json:"policy"`
	IsFinalPage  bool                `json:"is_final_page"`

	// PageIndex, when set, is the replay key for the page.
	PageIndex *uint32 `json:"page_index,omitempty"`
}

// WindowSeconds returns the configured day length.
func (e *Engine) WindowSeconds() int64 {
	return e.cfg.WindowSeconds
}

// Progress returns the stored record for a day key.
func (e *Engine) Progress(ctx context.Context, dayKey int64) (*DayProgress, error) {
	return e.store.Get(ctx, dayKey)
}

// ProcessPage is the permissionless entry point. Each call either applies the
// whole page (all qualifying transfers plus the progress update) or nothing.
func (e *Engine) ProcessPage(ctx context.Context, req PageRequest) (*PageReceipt, error) {
	start := e.clock.Now()

	receipt, err := e.processPage(ctx, req)

	outcome := "applied"
	switch {
	case err != nil:
		outcome = ErrorKind(err)
	case receipt.Duplicate:
		outcome = "duplicate"
	}

	if e.metrics != nil {
		e.metrics.PagesProcessed.WithLabelValues(outcome).Inc()
		e.metrics.PageDuration.Observe(e.clock.Since(start).Seconds())
	}

	if err != nil {
		e.log.Warn().Err(err).
			Str("kind", ErrorKind(err)).
			Int64("window_start", req.WindowStart).
			Int("participants", len(req.Participants)).
			Bool("final", req.IsFinalPage).
			Msg("page rejected")
		return nil, err
	}

	e.log.Info().
		Int64("day_id", receipt.DayKey).
		Str("page_key", receipt.PageKey).
		Uint64("cursor", receipt.Cursor).
		Bool("duplicate", receipt.Duplicate).
		Uint64("distributed", receipt.PageDistributed).
		Uint64("withheld", receipt.PageWithheld).
		Bool("final", receipt.Final).
		Uint64("remainder", receipt.Remainder).
		Msg("page processed")

	return receipt, nil
}

func (e *Engine) processPage(ctx context.Context, req PageRequest) (*PageReceipt, error) {
	// Step 1: validate everything that does not need state.
	now := e.clock.Now().Unix()
	if now <= 0 {
		return nil, configError("clock reads %d, expected a positive unix time", now)
	}

	if err := req.Policy.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateParticipants(req.Participants); err != nil {
		return nil, err
	}

	dayKey, err := DayKey(req.WindowStart, e.cfg.WindowSeconds)
	if err != nil {
		return nil, err
	}
	currentDay, err := DayKey(now, e.cfg.WindowSeconds)
	if err != nil {
		return nil, err
	}
	if dayKey > currentDay {
		return nil, dayGateError("day %d has not started (current day %d)", dayKey, currentDay)
	}

	policyHash := req.Policy.Fingerprint()
	pageKey := PageKey(req.PageIndex, req.Participants)

	// Step 2: NotStarted -> Claimed, committed on its own.
	claimedNow, err := e.claimDay(ctx, dayKey, policyHash, now)
	if err != nil {
		return nil, err
	}

	// Step 3: apply the page inside one read-modify-write scope.
	var out Output
	err = e.store.Update(ctx, dayKey, func(p *DayProgress) error {
		if p.HasProcessedPage(pageKey) {
			out = Output{Receipt: duplicateReceipt(p, pageKey, now)}
			return nil
		}
		if err := p.CheckDay(dayKey); err != nil {
			return err
		}
		if p.LastDistributionTs == 0 {
			return dayGateError("day %d has not been claimed", dayKey)
		}
		if p.PolicyHash != policyHash {
			return configError("policy parameters differ from the ones day %d was claimed with", dayKey)
		}

		o, err := e.applyPage(ctx, p, req, pageKey, now)
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	out.Receipt.ClaimedThisCall = claimedNow

	// Step 4: emit. Duplicates moved nothing and are not re-emitted.
	if !out.Receipt.Duplicate {
		e.recordMetrics(out.Receipt)
		if e.outputs != nil {
			e.outputs <- out
		}
	}

	return out.Receipt, nil
}

// claimDay pulls the day's revenue exactly once.
func (e *Engine) claimDay(ctx context.Context, dayKey int64, policyHash string, now int64) (bool, error) {
	claimed := false

	err := e.store.Update(ctx, dayKey, func(p *DayProgress) error {
		if p.LastDistributionTs != 0 {
			return nil
		}

		amount, err := e.revenue.Claim(ctx, dayKey)
		if err != nil {
			return fmt.Errorf("%w: claim revenue for day %d: %w", ErrUpstream, dayKey, err)
		}
		if amount == 0 {
			return fmt.Errorf("%w: day %d claimed 0", ErrInsufficientRevenue, dayKey)
		}

		p.LastDistributionTs = now
		p.ClaimedQuoteForDay = amount
		p.PolicyHash = policyHash
		claimed = true
		return nil
	})
	if err != nil {
		if e.metrics != nil {
			e.metrics.Claims.WithLabelValues(ErrorKind(err)).Inc()
		}
		return false, err
	}

	if claimed {
		e.log.Info().Int64("day_id", dayKey).Msg("revenue claimed")
		if e.metrics != nil {
			e.metrics.Claims.WithLabelValues("ok").Inc()
		}
	}
	return claimed, nil
}

// applyPage mutates p (a private copy owned by the store transaction) and
// executes the page's transfers. Any error discards the copy.
func (e *Engine) applyPage(
	ctx context.Context,
	p *DayProgress,
	req PageRequest,
	pageKey string,
	now int64,
) (Output, error) {
	policy := req.Policy

	// Locked amounts, one oracle call per participant.
	locked := make([]uint64, len(req.Participants))
	var pageLocked uint64
	for i, part := range req.Participants {
		amount, err := e.vesting.LockedAmount(ctx, part.StreamID, now)
		if err != nil {
			return Output{}, fmt.Errorf("%w: locked amount for stream %s: %w", ErrUpstream, part.StreamID, err)
		}
		locked[i] = amount
		if pageLocked, err = fpmath.CheckedAdd(pageLocked, amount); err != nil {
			return Output{}, arithmeticError("page locked total", err)
		}
	}

	lockedSeen, err := fpmath.CheckedAdd(p.LockedSeen, pageLocked)
	if err != nil {
		return Output{}, arithmeticError("day locked total", err)
	}
	if policy.Mode() == LockedTotalWholeDay && lockedSeen > policy.DayLockedTotal {
		return Output{}, configError("pages of day %d report %d locked, above declared day total %d",
			p.DayKey, lockedSeen, policy.DayLockedTotal)
	}

	share, err := ComputeShare(ShareInput{
		PageLockedTotal:       pageLocked,
		Y0:                    policy.Y0,
		InvestorFeeShareBps:   policy.InvestorFeeShareBps,
		ClaimedQuote:          p.ClaimedQuoteForDay,
		DailyCap:              policy.DailyCap,
		CumulativeDistributed: p.CumulativeDistributed,
		CarryOver:             p.CarryOver,
		Mode:                  policy.Mode(),
		DayLockedTotal:        policy.DayLockedTotal,
	})
	if err != nil {
		return Output{}, err
	}

	page, err := DistributePage(PageInput{
		Participants:    req.Participants,
		Locked:          locked,
		PageLockedTotal: pageLocked,
		EffectiveQuote:  share.EffectiveQuote,
		MinPayout:       policy.MinPayout,
	})
	if err != nil {
		return Output{}, err
	}

	// Fold the page into progress.
	if p.CumulativeDistributed, err = fpmath.CheckedAdd(p.CumulativeDistributed, page.Distributed); err != nil {
		return Output{}, arithmeticError("cumulative distributed", err)
	}
	if p.CarryOver, err = fpmath.CheckedAdd(p.CarryOver, page.Withheld); err != nil {
		return Output{}, arithmeticError("carry over", err)
	}
	if _, err := p.Undistributed(); err != nil {
		return Output{}, err
	}
	p.LockedSeen = lockedSeen
	p.PaginationCursor++

	transfers := page.Transfers(e.cfg.TreasuryAccount, p.DayKey, pageKey)

	receipt := &PageReceipt{
		DayKey:             p.DayKey,
		PageKey:            pageKey,
		Cursor:             p.PaginationCursor,
		Timestamp:          now,
		ClaimedQuoteForDay: p.ClaimedQuoteForDay,
		PageLockedTotal:    pageLocked,
		LockedBps:          share.LockedBps,
		InvestorFeeQuote:   share.InvestorFeeQuote,
		EffectiveQuote:     share.EffectiveQuote,
		Capped:             share.Capped,
		Payouts:            page.Payouts,
		PageDistributed:    page.Distributed,
		PageWithheld:       page.Withheld,
	}

	if req.IsFinalPage {
		closed, err := CloseDay(p, e.cfg.Recipient, now)
		if err != nil {
			return Output{}, err
		}
		if t := closed.RemainderTransfer(e.cfg.TreasuryAccount, p.DayKey, pageKey); t != nil {
			transfers = append(transfers, *t)
		}
		receipt.Final = true
		receipt.Remainder = closed.Remainder
		receipt.Recipient = closed.Recipient
		receipt.NextDayID = closed.NextDayID
	}

	receipt.CumulativeDistributed = p.CumulativeDistributed
	receipt.CarryOver = p.CarryOver

	// Transfers go last: nothing after this point can fail.
	if err := e.execute(ctx, transfers); err != nil {
		return Output{}, err
	}

	hasher, err := NewReceiptHasher(p.DayKey, p.ReceiptHash)
	if err != nil {
		return Output{}, err
	}
	hasher.ComputeHash(p.PaginationCursor, receiptDigest(receipt))
	p.ReceiptHash = hasher.Tip()
	p.ProcessedPages = append(p.ProcessedPages, pageKey)
	receipt.ReceiptHash = p.ReceiptHash

	return Output{Receipt: receipt, Transfers: transfers}, nil
}

func (e *Engine) execute(ctx context.Context, transfers []Transfer) error {
	if len(transfers) == 0 {
		return nil
	}

	if batch, ok := e.transfers.(BatchTransferService); ok {
		if err := batch.TransferBatch(ctx, transfers); err != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailure, err)
		}
		return nil
	}

	for _, t := range transfers {
		if err := e.transfers.Transfer(ctx, t); err != nil {
			return fmt.Errorf("%w: %s -> %s (%d): %w", ErrTransferFailure, t.From, t.To, t.Amount, err)
		}
	}
	return nil
}

func (e *Engine) recordMetrics(r *PageReceipt) {
	if e.metrics == nil {
		return
	}
	e.metrics.QuoteDistributed.Add(float64(r.PageDistributed))
	e.metrics.QuoteWithheld.Add(float64(r.PageWithheld))
	e.metrics.PayoutLines.WithLabelValues("paid").Add(float64(countLines(r.Payouts, false)))
	e.metrics.PayoutLines.WithLabelValues("withheld").Add(float64(countLines(r.Payouts, true)))
	e.metrics.PageCursor.Set(float64(r.Cursor))
	if r.Capped {
		e.metrics.CapHits.Inc()
	}
	if r.Final {
		e.metrics.DaysClosed.Inc()
		e.metrics.QuoteRemainder.Add(float64(r.Remainder))
		e.metrics.LastClosedDay.Set(float64(r.DayKey))
	}
}

func countLines(lines []PayoutLine, withheld bool) int {
	n := 0
	for _, l := range lines {
		if l.Withheld == withheld {
			n++
		}
	}
	return n
}

func duplicateReceipt(p *DayProgress, pageKey string, now int64) *PageReceipt {
	return &PageReceipt{
		DayKey:                p.DayKey,
		PageKey:               pageKey,
		Cursor:                p.PaginationCursor,
		Timestamp:             now,
		Duplicate:             true,
		ClaimedQuoteForDay:    p.ClaimedQuoteForDay,
		CumulativeDistributed: p.CumulativeDistributed,
		CarryOver:             p.CarryOver,
		Final:                 p.Closed,
		ReceiptHash:           p.ReceiptHash,
	}
}
