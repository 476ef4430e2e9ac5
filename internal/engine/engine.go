// Package engine owns a simulation run's lifecycle and fans external events
// out to the ledger, the strategy evaluators, the cooldown scheduler, the
// snapshot recorder and the market resolver, one strategy portfolio at a
// time, serialized per (run, strategy) pair.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"polycopy-sim/internal/cooldown"
	"polycopy-sim/internal/domain"
	"polycopy-sim/internal/idhash"
	"polycopy-sim/internal/ledger"
	"polycopy-sim/internal/observability"
	"polycopy-sim/internal/resolver"
	"polycopy-sim/internal/snapshot"
	"polycopy-sim/internal/storage"
	"polycopy-sim/internal/strategy"
)

// Engine errors
var (
	ErrInvalidConfig  = errors.New("invalid run config")
	ErrInvalidSignal  = errors.New("invalid trade signal")
	ErrRunNotActive   = errors.New("run is not active")
	ErrNoOpenPosition = errors.New("no open position on market")
)

// Engine is the simulation orchestrator. It holds no run state of its own:
// every operation loads state from the stores, mutates it in memory and
// persists it back, so a long-running simulation survives process restarts.
type Engine struct {
	runs       storage.RunStore
	portfolios storage.PortfolioStore
	positions  storage.PositionStore
	snapshots  storage.SnapshotStore

	// equity is a best-effort analytics sink; nil disables the export.
	equity storage.EquityPointStore

	locks   *lockTable
	metrics *observability.Metrics
	log     *zap.Logger
	now     func() time.Time
}

// Options configures an Engine.
type Options struct {
	RunStore       storage.RunStore
	PortfolioStore storage.PortfolioStore
	PositionStore  storage.PositionStore
	SnapshotStore  storage.SnapshotStore

	// EquityStore is an optional analytics sink; failures are logged rather
	// than failing the tick.
	EquityStore storage.EquityPointStore

	// Metrics is optional; nil disables instrumentation.
	Metrics *observability.Metrics
	// Logger is optional; nil uses a no-op logger.
	Logger *zap.Logger
	// Now is optional; nil uses time.Now. Backtests inject replay time.
	Now func() time.Time
}

// New creates an Engine.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		runs:       opts.RunStore,
		portfolios: opts.PortfolioStore,
		positions:  opts.PositionStore,
		snapshots:  opts.SnapshotStore,
		equity:     opts.EquityStore,
		locks:      newLockTable(),
		metrics:    opts.Metrics,
		log:        log,
		now:        now,
	}
}

// RunConfig is the input to Create.
type RunConfig struct {
	Mode           domain.RunMode
	InitialCapital float64
	Duration       time.Duration
	SlippagePct    float64
	Cooldown       time.Duration
	Strategies     []domain.StrategyConfig
	// StartedAt is optional; zero means now. Backtests set it to the
	// replay window's start.
	StartedAt time.Time
}

func (c *RunConfig) validate() error {
	if c.Mode != domain.RunModeLive && c.Mode != domain.RunModeBacktest {
		return fmt.Errorf("%w: mode must be live or backtest", ErrInvalidConfig)
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial capital must be positive", ErrInvalidConfig)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidConfig)
	}
	if c.SlippagePct < 0 || c.SlippagePct >= 1 {
		return fmt.Errorf("%w: slippage must be in [0, 1)", ErrInvalidConfig)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("%w: cooldown must not be negative", ErrInvalidConfig)
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("%w: at least one strategy required", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(c.Strategies))
	for _, cfg := range c.Strategies {
		if _, dup := seen[cfg.ID()]; dup {
			return fmt.Errorf("%w: duplicate strategy %s", ErrInvalidConfig, cfg.ID())
		}
		seen[cfg.ID()] = struct{}{}
		if _, err := strategy.FromConfig(cfg); err != nil {
			return fmt.Errorf("%w: strategy %s: %v", ErrInvalidConfig, cfg.ID(), err)
		}
	}
	return nil
}

// Create allocates a run with one seeded portfolio per configured strategy
// and records the hour-0 snapshot for each.
func (e *Engine) Create(ctx context.Context, cfg RunConfig) (*domain.SimulationRun, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = e.now()
	}

	run := &domain.SimulationRun{
		RunID:          idhash.RunID(string(cfg.Mode), e.now()),
		Mode:           cfg.Mode,
		Status:         domain.RunStatusActive,
		InitialCapital: cfg.InitialCapital,
		Duration:       cfg.Duration,
		SlippagePct:    cfg.SlippagePct,
		Cooldown:       cfg.Cooldown,
		Strategies:     cfg.Strategies,
		StartedAt:      startedAt,
	}

	if err := e.runs.Insert(ctx, run); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	for _, sc := range cfg.Strategies {
		p := &domain.StrategyPortfolio{
			RunID:          run.RunID,
			StrategyID:     sc.ID(),
			InitialCapital: cfg.InitialCapital,
			Available:      cfg.InitialCapital,
			PeakValue:      cfg.InitialCapital,
		}
		if err := e.portfolios.Insert(ctx, p); err != nil {
			return nil, fmt.Errorf("insert portfolio %s: %w", sc.ID(), err)
		}

		state := &domain.PortfolioState{Portfolio: p}
		snap := snapshot.Record(run, state, nil, startedAt)
		if err := e.snapshots.Upsert(ctx, snap); err != nil {
			return nil, fmt.Errorf("record initial snapshot %s: %w", sc.ID(), err)
		}
	}

	if e.metrics != nil {
		e.metrics.ActiveRuns.Inc()
	}
	e.log.Info("simulation run created",
		zap.String("run_id", run.RunID),
		zap.String("mode", string(run.Mode)),
		zap.Float64("initial_capital", run.InitialCapital),
		zap.Int("strategies", len(run.Strategies)),
	)
	return run, nil
}

// StrategyResult reports one strategy's handling of a signal.
type StrategyResult struct {
	StrategyID string
	Entered    bool
	SkipReason string
	PositionID string
	SizeUSD    float64
	Err        string
}

// SignalReport is the per-strategy outcome of ProcessSignal.
type SignalReport struct {
	RunID   string
	Results []StrategyResult
}

// Entered counts strategies that opened a position.
func (r *SignalReport) Entered() int {
	n := 0
	for _, res := range r.Results {
		if res.Entered {
			n++
		}
	}
	return n
}

func validateSignal(sig *domain.TradeSignal) error {
	if sig == nil || sig.MarketID == "" {
		return fmt.Errorf("%w: missing market id", ErrInvalidSignal)
	}
	if sig.Outcome != domain.OutcomeYes && sig.Outcome != domain.OutcomeNo {
		return fmt.Errorf("%w: outcome %q", ErrInvalidSignal, sig.Outcome)
	}
	if sig.Price <= 0 || sig.Price >= 1 {
		return fmt.Errorf("%w: price %.4f outside (0, 1)", ErrInvalidSignal, sig.Price)
	}
	if sig.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidSignal)
	}
	return nil
}

// ProcessSignal evaluates the signal once per active strategy and applies
// accepted entries through the ledger. Evaluation and ledger failures are
// isolated per strategy; a storage failure aborts the invocation, leaving
// the store at whatever whole-portfolio states already committed. The
// operation is safe to re-run, since replaying the signal skips strategies
// that already hold the market.
func (e *Engine) ProcessSignal(ctx context.Context, runID string, sig *domain.TradeSignal) (*SignalReport, error) {
	start := e.now()

	if err := validateSignal(sig); err != nil {
		return nil, err
	}

	run, err := e.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	if run.Status != domain.RunStatusActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrRunNotActive, runID, run.Status)
	}

	report := &SignalReport{RunID: runID}
	for _, sc := range run.Strategies {
		res := e.processSignalForStrategy(ctx, run, sc, sig)
		report.Results = append(report.Results, res.StrategyResult)
		if res.persistErr != nil {
			return nil, res.persistErr
		}
	}

	if e.metrics != nil {
		e.metrics.SignalsProcessed.Inc()
		e.metrics.OpDuration.WithLabelValues("process_signal").Observe(e.now().Sub(start).Seconds())
	}
	return report, nil
}

// strategyResult extends StrategyResult with the error that must abort the
// whole invocation, if any. Kept internal to ProcessSignal.
type strategyResult struct {
	StrategyResult
	persistErr error
}

func (e *Engine) processSignalForStrategy(ctx context.Context, run *domain.SimulationRun, sc domain.StrategyConfig, sig *domain.TradeSignal) *strategyResult {
	res := &strategyResult{StrategyResult: StrategyResult{StrategyID: sc.ID()}}

	ev, err := strategy.FromConfig(sc)
	if err != nil {
		res.Err = err.Error()
		return res
	}

	unlock := e.locks.acquire(run.RunID, sc.ID())
	defer unlock()

	state, err := e.portfolios.LoadState(ctx, run.RunID, sc.ID())
	if err != nil {
		res.Err = err.Error()
		res.persistErr = fmt.Errorf("load portfolio %s: %w", sc.ID(), err)
		return res
	}

	decision, err := ev.Evaluate(ctx, &strategy.Input{
		Signal: sig,
		State:  state,
		Run:    run,
	})
	if err != nil {
		res.Err = err.Error()
		if e.metrics != nil {
			e.metrics.StrategyErrors.WithLabelValues(sc.ID()).Inc()
		}
		return res
	}

	if !decision.Enter {
		res.SkipReason = decision.SkipReason
		if e.metrics != nil {
			e.metrics.SignalsSkipped.WithLabelValues(sc.ID(), decision.SkipReason).Inc()
		}
		return res
	}

	pos, err := ledger.OpenPosition(state, sig, decision.SizeUSD, run.SlippagePct, sig.Timestamp)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientCapital) {
			res.SkipReason = strategy.SkipInsufficientCapital
			return res
		}
		// Invariant violations land here: fatal for this portfolio, the
		// mutated state is discarded, never persisted.
		res.Err = err.Error()
		e.log.Error("ledger rejected entry",
			zap.String("run_id", run.RunID),
			zap.String("strategy", sc.ID()),
			zap.Error(err),
		)
		if e.metrics != nil {
			e.metrics.StrategyErrors.WithLabelValues(sc.ID()).Inc()
		}
		return res
	}

	if err := e.portfolios.SaveState(ctx, state); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) && e.metrics != nil {
			e.metrics.SaveConflicts.Inc()
		}
		res.Err = err.Error()
		res.persistErr = fmt.Errorf("save portfolio %s: %w", sc.ID(), err)
		return res
	}

	res.Entered = true
	res.PositionID = pos.PositionID
	res.SizeUSD = pos.Invested
	if e.metrics != nil {
		e.metrics.PositionsOpened.WithLabelValues(sc.ID()).Inc()
	}
	e.log.Debug("position opened",
		zap.String("run_id", run.RunID),
		zap.String("strategy", sc.ID()),
		zap.String("market", sig.MarketID),
		zap.Float64("size_usd", pos.Invested),
	)
	return res
}

// TickReport summarizes one periodic tick.
type TickReport struct {
	RunID             string
	Hour              int64
	ReleasedUSD       map[string]float64
	SnapshotsRecorded int
	Completed         bool
}

// Tick releases matured cooldown capital and records one hourly snapshot
// per portfolio, then completes the run if its duration has elapsed.
func (e *Engine) Tick(ctx context.Context, runID string, now time.Time) (*TickReport, error) {
	start := e.now()

	run, err := e.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	if run.Status != domain.RunStatusActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrRunNotActive, runID, run.Status)
	}

	report := &TickReport{
		RunID:       runID,
		Hour:        snapshot.HourIndex(run.StartedAt, now),
		ReleasedUSD: make(map[string]float64),
	}

	for _, sc := range run.Strategies {
		if err := e.tickStrategy(ctx, run, sc.ID(), now, report); err != nil {
			return nil, err
		}
	}

	if run.Ended(now) {
		if err := e.End(ctx, runID); err != nil {
			return nil, err
		}
		report.Completed = true
	}

	if e.metrics != nil {
		e.metrics.TicksTotal.Inc()
		e.metrics.OpDuration.WithLabelValues("tick").Observe(e.now().Sub(start).Seconds())
	}
	return report, nil
}

func (e *Engine) tickStrategy(ctx context.Context, run *domain.SimulationRun, strategyID string, now time.Time, report *TickReport) error {
	unlock := e.locks.acquire(run.RunID, strategyID)
	defer unlock()

	state, err := e.portfolios.LoadState(ctx, run.RunID, strategyID)
	if err != nil {
		return fmt.Errorf("load portfolio %s: %w", strategyID, err)
	}

	released, err := cooldown.Release(state, now)
	if err != nil {
		return fmt.Errorf("release cooldowns %s: %w", strategyID, err)
	}
	if released > 0 {
		if err := e.portfolios.SaveState(ctx, state); err != nil {
			return fmt.Errorf("save portfolio %s: %w", strategyID, err)
		}
		report.ReleasedUSD[strategyID] = released
		if e.metrics != nil {
			e.metrics.CooldownReleases.Inc()
			e.metrics.CooldownReleased.Add(released)
		}
	}

	prev, err := e.snapshots.GetLatest(ctx, run.RunID, strategyID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load latest snapshot %s: %w", strategyID, err)
	}

	snap := snapshot.Record(run, state, prev, now)
	if err := e.snapshots.Upsert(ctx, snap); err != nil {
		return fmt.Errorf("record snapshot %s: %w", strategyID, err)
	}
	report.SnapshotsRecorded++
	if e.metrics != nil {
		e.metrics.SnapshotsRecorded.Inc()
	}

	if e.equity != nil {
		point := domain.EquityPointFromSnapshot(snap, state.Portfolio.Drawdown)
		if err := e.equity.InsertBatch(ctx, []*domain.EquityPoint{point}); err != nil {
			e.log.Warn("equity export failed",
				zap.String("run_id", run.RunID),
				zap.String("strategy", strategyID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// ResolveMarket settles every OPEN position on marketID across the run's
// portfolios. Already-terminal positions are skipped, so a duplicate
// resolution notification is a no-op. Returns the number settled.
func (e *Engine) ResolveMarket(ctx context.Context, runID, marketID, winningOutcome string) (int, error) {
	start := e.now()

	run, err := e.runs.GetByID(ctx, runID)
	if err != nil {
		return 0, fmt.Errorf("load run: %w", err)
	}
	if run.Status != domain.RunStatusActive {
		return 0, fmt.Errorf("%w: %s is %s", ErrRunNotActive, runID, run.Status)
	}

	open, err := e.positions.GetOpenByMarket(ctx, runID, marketID)
	if err != nil {
		return 0, fmt.Errorf("load open positions: %w", err)
	}
	holders := make(map[string]bool, len(open))
	for _, pos := range open {
		holders[pos.StrategyID] = true
	}

	now := e.now()
	total := 0
	for _, sc := range run.Strategies {
		if !holders[sc.ID()] {
			continue
		}
		n, err := e.resolveForStrategy(ctx, run, sc.ID(), marketID, winningOutcome, now)
		if err != nil {
			return total, err
		}
		total += n
	}

	if e.metrics != nil {
		e.metrics.MarketsResolved.Inc()
		e.metrics.OpDuration.WithLabelValues("resolve_market").Observe(e.now().Sub(start).Seconds())
	}
	e.log.Info("market resolved",
		zap.String("run_id", runID),
		zap.String("market", marketID),
		zap.String("winning_outcome", winningOutcome),
		zap.Int("positions_settled", total),
	)
	return total, nil
}

func (e *Engine) resolveForStrategy(ctx context.Context, run *domain.SimulationRun, strategyID, marketID, winningOutcome string, now time.Time) (int, error) {
	unlock := e.locks.acquire(run.RunID, strategyID)
	defer unlock()

	state, err := e.portfolios.LoadState(ctx, run.RunID, strategyID)
	if err != nil {
		return 0, fmt.Errorf("load portfolio %s: %w", strategyID, err)
	}

	n, err := resolver.ResolveMarket(state, marketID, winningOutcome, run.Cooldown, now)
	if err != nil {
		return 0, fmt.Errorf("resolve %s for %s: %w", marketID, strategyID, err)
	}
	if n == 0 {
		return 0, nil
	}

	if err := e.portfolios.SaveState(ctx, state); err != nil {
		return 0, fmt.Errorf("save portfolio %s: %w", strategyID, err)
	}

	if e.metrics != nil {
		for _, pos := range state.Positions {
			if pos.MarketID != marketID || pos.ExitedAt == nil || !pos.ExitedAt.Equal(now) {
				continue
			}
			e.metrics.PositionsSettled.WithLabelValues(string(pos.Status)).Inc()
		}
	}
	return n, nil
}

// ClosePosition settles one strategy's open position on marketID at a
// caller-supplied exit price, marking it USER_CLOSED. Proceeds enter the
// cooldown queue exactly as a market resolution would.
func (e *Engine) ClosePosition(ctx context.Context, runID, strategyID, marketID string, exitPrice float64) error {
	run, err := e.runs.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	if run.Status != domain.RunStatusActive {
		return fmt.Errorf("%w: %s is %s", ErrRunNotActive, runID, run.Status)
	}

	unlock := e.locks.acquire(runID, strategyID)
	defer unlock()

	state, err := e.portfolios.LoadState(ctx, runID, strategyID)
	if err != nil {
		return fmt.Errorf("load portfolio %s: %w", strategyID, err)
	}

	pos := state.OpenPositionOnMarket(marketID)
	if pos == nil {
		return fmt.Errorf("%w: %s in %s", ErrNoOpenPosition, marketID, strategyID)
	}

	now := e.now()
	if err := ledger.ClosePosition(state, pos, exitPrice, run.Cooldown, now); err != nil {
		return fmt.Errorf("close %s for %s: %w", marketID, strategyID, err)
	}

	if err := e.portfolios.SaveState(ctx, state); err != nil {
		return fmt.Errorf("save portfolio %s: %w", strategyID, err)
	}

	if e.metrics != nil {
		e.metrics.PositionsSettled.WithLabelValues(string(domain.PositionUserClosed)).Inc()
	}
	e.log.Info("position closed",
		zap.String("run_id", runID),
		zap.String("strategy", strategyID),
		zap.String("market", marketID),
		zap.Float64("exit_price", exitPrice),
	)
	return nil
}

// End marks the run completed, freezing further processing. Ending an
// already-completed run is a no-op.
func (e *Engine) End(ctx context.Context, runID string) error {
	run, err := e.runs.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	if run.Status == domain.RunStatusCompleted {
		return nil
	}

	now := e.now()
	run.Status = domain.RunStatusCompleted
	run.EndedAt = &now
	if err := e.runs.Update(ctx, run); err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	e.locks.releaseRun(runID)

	if e.metrics != nil {
		e.metrics.ActiveRuns.Dec()
		e.metrics.RunsEnded.Inc()
	}
	e.log.Info("simulation run completed", zap.String("run_id", runID))
	return nil
}

// ActiveRuns lists runs with status active.
func (e *Engine) ActiveRuns(ctx context.Context) ([]*domain.SimulationRun, error) {
	return e.runs.ListActive(ctx)
}
