package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"polycopy-sim/internal/domain"
	"polycopy-sim/internal/storage"
)

// PortfolioStore implements storage.PortfolioStore using PostgreSQL.
type PortfolioStore struct {
	pool *Pool
}

// NewPortfolioStore creates a new PortfolioStore.
func NewPortfolioStore(pool *Pool) *PortfolioStore {
	return &PortfolioStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PortfolioStore = (*PortfolioStore)(nil)

const portfolioColumns = `
	run_id, strategy_id, initial_capital, available, locked, cooldown,
	realized_pnl, trades, wins, losses, peak_value, drawdown, version
`

// Insert adds a freshly seeded portfolio at version 0.
// Returns ErrDuplicateKey if (run_id, strategy_id) exists.
func (s *PortfolioStore) Insert(ctx context.Context, p *domain.StrategyPortfolio) error {
	query := `
		INSERT INTO strategy_portfolios (` + portfolioColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.pool.Exec(ctx, query,
		p.RunID, p.StrategyID, p.InitialCapital,
		p.Available, p.Locked, p.Cooldown,
		p.RealizedPnL, p.Trades, p.Wins, p.Losses,
		p.PeakValue, p.Drawdown, p.Version,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert portfolio: %w", err)
	}
	return nil
}

// GetByRunStrategy retrieves a portfolio. Returns ErrNotFound if not exists.
func (s *PortfolioStore) GetByRunStrategy(ctx context.Context, runID, strategyID string) (*domain.StrategyPortfolio, error) {
	query := `
		SELECT ` + portfolioColumns + `
		FROM strategy_portfolios
		WHERE run_id = $1 AND strategy_id = $2
	`

	row := s.pool.QueryRow(ctx, query, runID, strategyID)
	p, err := scanPortfolio(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get portfolio: %w", err)
	}
	return p, nil
}

// ListByRun retrieves all portfolios of a run, ordered by strategy_id ASC.
func (s *PortfolioStore) ListByRun(ctx context.Context, runID string) ([]*domain.StrategyPortfolio, error) {
	query := `
		SELECT ` + portfolioColumns + `
		FROM strategy_portfolios
		WHERE run_id = $1
		ORDER BY strategy_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list portfolios by run: %w", err)
	}
	defer rows.Close()

	var portfolios []*domain.StrategyPortfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("scan portfolio row: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate portfolio rows: %w", err)
	}
	return portfolios, nil
}

// LoadState retrieves the portfolio with its positions and cooldown queue.
func (s *PortfolioStore) LoadState(ctx context.Context, runID, strategyID string) (*domain.PortfolioState, error) {
	p, err := s.GetByRunStrategy(ctx, runID, strategyID)
	if err != nil {
		return nil, err
	}

	positions, err := queryPositions(ctx, s.pool, `
		SELECT `+positionColumns+`
		FROM positions
		WHERE run_id = $1 AND strategy_id = $2
		ORDER BY entered_at ASC, position_id ASC
	`, runID, strategyID)
	if err != nil {
		return nil, err
	}

	cooldownRows, err := s.pool.Query(ctx, `
		SELECT amount, available_at
		FROM cooldown_entries
		WHERE run_id = $1 AND strategy_id = $2
		ORDER BY available_at ASC, id ASC
	`, runID, strategyID)
	if err != nil {
		return nil, fmt.Errorf("query cooldown entries: %w", err)
	}
	defer cooldownRows.Close()

	var cooldowns []*domain.CooldownEntry
	for cooldownRows.Next() {
		var ce domain.CooldownEntry
		if err := cooldownRows.Scan(&ce.Amount, &ce.AvailableAt); err != nil {
			return nil, fmt.Errorf("scan cooldown row: %w", err)
		}
		cooldowns = append(cooldowns, &ce)
	}
	if err := cooldownRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cooldown rows: %w", err)
	}

	return &domain.PortfolioState{
		Portfolio: p,
		Positions: positions,
		Cooldowns: cooldowns,
	}, nil
}

// SaveState persists the full state in one transaction, guarded by the
// portfolio version stamp. The portfolio row update carries the version
// predicate; zero rows affected means a concurrent writer got there first
// and the transaction rolls back with ErrVersionConflict.
func (s *PortfolioStore) SaveState(ctx context.Context, state *domain.PortfolioState) error {
	if state == nil || state.Portfolio == nil {
		return storage.ErrInvalidInput
	}
	p := state.Portfolio

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save state: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE strategy_portfolios
		SET available = $3, locked = $4, cooldown = $5, realized_pnl = $6,
		    trades = $7, wins = $8, losses = $9, peak_value = $10,
		    drawdown = $11, version = version + 1
		WHERE run_id = $1 AND strategy_id = $2 AND version = $12
	`,
		p.RunID, p.StrategyID,
		p.Available, p.Locked, p.Cooldown, p.RealizedPnL,
		p.Trades, p.Wins, p.Losses, p.PeakValue,
		p.Drawdown, p.Version,
	)
	if err != nil {
		return fmt.Errorf("update portfolio: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a stale version from a missing portfolio.
		var exists bool
		err := s.pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM strategy_portfolios
				WHERE run_id = $1 AND strategy_id = $2
			)
		`, p.RunID, p.StrategyID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check portfolio exists: %w", err)
		}
		if !exists {
			return storage.ErrNotFound
		}
		return storage.ErrVersionConflict
	}

	for _, pos := range state.Positions {
		if err := upsertPosition(ctx, tx, pos); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM cooldown_entries
		WHERE run_id = $1 AND strategy_id = $2
	`, p.RunID, p.StrategyID); err != nil {
		return fmt.Errorf("clear cooldown entries: %w", err)
	}
	for _, ce := range state.Cooldowns {
		if _, err := tx.Exec(ctx, `
			INSERT INTO cooldown_entries (run_id, strategy_id, amount, available_at)
			VALUES ($1, $2, $3, $4)
		`, p.RunID, p.StrategyID, ce.Amount, ce.AvailableAt); err != nil {
			return fmt.Errorf("insert cooldown entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save state: %w", err)
	}

	p.Version++
	return nil
}

func upsertPosition(ctx context.Context, tx pgx.Tx, pos *domain.Position) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO positions (`+positionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (position_id) DO UPDATE SET
			status = EXCLUDED.status,
			exit_price = EXCLUDED.exit_price,
			exited_at = EXCLUDED.exited_at,
			pnl = EXCLUDED.pnl,
			roi = EXCLUDED.roi
	`,
		pos.PositionID, pos.RunID, pos.StrategyID,
		pos.MarketID, pos.Outcome,
		pos.RawPrice, pos.EntryPrice, pos.Shares, pos.Invested, pos.EnteredAt,
		string(pos.Status), pos.ExitPrice, pos.ExitedAt, pos.PnL, pos.ROI,
		pos.EdgeScore, pos.TraderWallet,
	)
	if err != nil {
		return fmt.Errorf("upsert position %s: %w", pos.PositionID, err)
	}
	return nil
}

// scanPortfolio scans a single row into a StrategyPortfolio.
func scanPortfolio(row pgx.Row) (*domain.StrategyPortfolio, error) {
	var p domain.StrategyPortfolio
	err := row.Scan(
		&p.RunID, &p.StrategyID, &p.InitialCapital,
		&p.Available, &p.Locked, &p.Cooldown,
		&p.RealizedPnL, &p.Trades, &p.Wins, &p.Losses,
		&p.PeakValue, &p.Drawdown, &p.Version,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
