package postgres

import (
	"context"
	"fmt"

	"polycopy-sim/internal/domain"
	"polycopy-sim/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL. It only
// reads; position writes happen inside PortfolioStore.SaveState.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `
	position_id, run_id, strategy_id, market_id, outcome,
	raw_price, entry_price, shares, invested, entered_at,
	status, exit_price, exited_at, pnl, roi,
	edge_score, trader_wallet
`

// GetByPortfolio retrieves all positions of a portfolio, ordered by
// entered_at ASC.
func (s *PositionStore) GetByPortfolio(ctx context.Context, runID, strategyID string) ([]*domain.Position, error) {
	return queryPositions(ctx, s.pool, `
		SELECT `+positionColumns+`
		FROM positions
		WHERE run_id = $1 AND strategy_id = $2
		ORDER BY entered_at ASC, position_id ASC
	`, runID, strategyID)
}

// GetOpenByMarket retrieves OPEN positions referencing marketID across all
// of the run's portfolios.
func (s *PositionStore) GetOpenByMarket(ctx context.Context, runID, marketID string) ([]*domain.Position, error) {
	return queryPositions(ctx, s.pool, `
		SELECT `+positionColumns+`
		FROM positions
		WHERE run_id = $1 AND market_id = $2 AND status = 'OPEN'
		ORDER BY strategy_id ASC, position_id ASC
	`, runID, marketID)
}

// queryPositions runs a position select and scans all rows.
func queryPositions(ctx context.Context, pool *Pool, query string, args ...any) ([]*domain.Position, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		var p domain.Position
		var status string

		err := rows.Scan(
			&p.PositionID, &p.RunID, &p.StrategyID, &p.MarketID, &p.Outcome,
			&p.RawPrice, &p.EntryPrice, &p.Shares, &p.Invested, &p.EnteredAt,
			&status, &p.ExitPrice, &p.ExitedAt, &p.PnL, &p.ROI,
			&p.EdgeScore, &p.TraderWallet,
		)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}

		p.Status = domain.PositionStatus(status)
		positions = append(positions, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}

	return positions, nil
}
