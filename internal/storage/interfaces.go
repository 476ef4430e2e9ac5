package storage

import (
	"context"

	"polycopy-sim/internal/domain"
)

// RunStore provides access to simulation_runs storage.
type RunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.SimulationRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.SimulationRun, error)

	// Update persists status and end timestamp changes.
	// Returns ErrNotFound if the run does not exist.
	Update(ctx context.Context, r *domain.SimulationRun) error

	// ListActive retrieves all runs with status active.
	ListActive(ctx context.Context) ([]*domain.SimulationRun, error)
}

// PortfolioStore provides access to strategy_portfolios storage along with
// each portfolio's positions and cooldown queue.
type PortfolioStore interface {
	// Insert adds a freshly seeded portfolio at version 0.
	// Returns ErrDuplicateKey if (run_id, strategy_id) exists.
	Insert(ctx context.Context, p *domain.StrategyPortfolio) error

	// GetByRunStrategy retrieves a portfolio. Returns ErrNotFound if not exists.
	GetByRunStrategy(ctx context.Context, runID, strategyID string) (*domain.StrategyPortfolio, error)

	// ListByRun retrieves all portfolios of a run, ordered by strategy_id ASC.
	ListByRun(ctx context.Context, runID string) ([]*domain.StrategyPortfolio, error)

	// LoadState retrieves the portfolio together with its positions and
	// cooldown queue. Returns ErrNotFound if the portfolio does not exist.
	LoadState(ctx context.Context, runID, strategyID string) (*domain.PortfolioState, error)

	// SaveState persists the portfolio, upserts its positions and replaces
	// its cooldown queue atomically: either the full state lands or nothing
	// does. The save is guarded by the portfolio version stamp; on mismatch
	// it returns ErrVersionConflict and leaves the store untouched. On
	// success the persisted (and in-memory) version is incremented.
	SaveState(ctx context.Context, state *domain.PortfolioState) error
}

// PositionStore provides read access to positions across portfolios.
// Position writes go through PortfolioStore.SaveState only.
type PositionStore interface {
	// GetByPortfolio retrieves all positions of a portfolio, ordered by
	// entered_at ASC.
	GetByPortfolio(ctx context.Context, runID, strategyID string) ([]*domain.Position, error)

	// GetOpenByMarket retrieves OPEN positions referencing marketID across
	// all of the run's portfolios.
	GetOpenByMarket(ctx context.Context, runID, marketID string) ([]*domain.Position, error)
}

// EquityPointStore is the analytics sink for equity samples. Writes are
// best-effort: the engine logs failures instead of failing the tick, so the
// sink must tolerate re-inserted (run, strategy, hour) keys.
type EquityPointStore interface {
	// InsertBatch records a batch of equity samples.
	InsertBatch(ctx context.Context, points []*domain.EquityPoint) error

	// GetByRun retrieves all samples of a run, ordered by (strategy_id, hour) ASC.
	GetByRun(ctx context.Context, runID string) ([]*domain.EquityPoint, error)
}

// SnapshotStore provides access to hourly_snapshots storage.
type SnapshotStore interface {
	// Upsert records a snapshot. Re-recording the same (run, strategy, hour)
	// key overwrites the previous sample, keeping at most one per hour.
	Upsert(ctx context.Context, s *domain.HourlySnapshot) error

	// GetLatest retrieves the most recent snapshot of a portfolio.
	// Returns ErrNotFound if none exists.
	GetLatest(ctx context.Context, runID, strategyID string) (*domain.HourlySnapshot, error)

	// GetByPortfolio retrieves all snapshots of a portfolio, ordered by hour ASC.
	GetByPortfolio(ctx context.Context, runID, strategyID string) ([]*domain.HourlySnapshot, error)
}
