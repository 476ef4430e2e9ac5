package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"polycopy-sim/internal/domain"
	"polycopy-sim/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

const snapshotColumns = `
	run_id, strategy_id, hour, total_value, available, locked, cooldown,
	open_positions, trades_delta, resolutions_delta, pnl_delta,
	trades, resolutions, realized_pnl, recorded_at
`

// Upsert records a snapshot, overwriting any previous sample at the same
// (run, strategy, hour) key.
func (s *SnapshotStore) Upsert(ctx context.Context, snap *domain.HourlySnapshot) error {
	if snap == nil || snap.RunID == "" || snap.StrategyID == "" || snap.Hour < 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO hourly_snapshots (` + snapshotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (run_id, strategy_id, hour) DO UPDATE SET
			total_value = EXCLUDED.total_value,
			available = EXCLUDED.available,
			locked = EXCLUDED.locked,
			cooldown = EXCLUDED.cooldown,
			open_positions = EXCLUDED.open_positions,
			trades_delta = EXCLUDED.trades_delta,
			resolutions_delta = EXCLUDED.resolutions_delta,
			pnl_delta = EXCLUDED.pnl_delta,
			trades = EXCLUDED.trades,
			resolutions = EXCLUDED.resolutions,
			realized_pnl = EXCLUDED.realized_pnl,
			recorded_at = EXCLUDED.recorded_at
	`

	_, err := s.pool.Exec(ctx, query,
		snap.RunID, snap.StrategyID, snap.Hour,
		snap.TotalValue, snap.Available, snap.Locked, snap.Cooldown,
		snap.OpenPositions, snap.TradesDelta, snap.ResolutionsDelta, snap.PnLDelta,
		snap.Trades, snap.Resolutions, snap.RealizedPnL, snap.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// GetLatest retrieves the snapshot with the highest hour index.
// Returns ErrNotFound if none exists.
func (s *SnapshotStore) GetLatest(ctx context.Context, runID, strategyID string) (*domain.HourlySnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM hourly_snapshots
		WHERE run_id = $1 AND strategy_id = $2
		ORDER BY hour DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, runID, strategyID)
	snap, err := scanSnapshot(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return snap, nil
}

// GetByPortfolio retrieves all snapshots of a portfolio, ordered by hour ASC.
func (s *SnapshotStore) GetByPortfolio(ctx context.Context, runID, strategyID string) ([]*domain.HourlySnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM hourly_snapshots
		WHERE run_id = $1 AND strategy_id = $2
		ORDER BY hour ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, strategyID)
	if err != nil {
		return nil, fmt.Errorf("get snapshots by portfolio: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.HourlySnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return snapshots, nil
}

// scanSnapshot scans a single row into an HourlySnapshot.
func scanSnapshot(row pgx.Row) (*domain.HourlySnapshot, error) {
	var snap domain.HourlySnapshot
	err := row.Scan(
		&snap.RunID, &snap.StrategyID, &snap.Hour,
		&snap.TotalValue, &snap.Available, &snap.Locked, &snap.Cooldown,
		&snap.OpenPositions, &snap.TradesDelta, &snap.ResolutionsDelta, &snap.PnLDelta,
		&snap.Trades, &snap.Resolutions, &snap.RealizedPnL, &snap.RecordedAt,
	)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
