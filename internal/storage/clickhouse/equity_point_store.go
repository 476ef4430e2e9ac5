package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"polycopy-sim/internal/domain"
	"polycopy-sim/internal/storage"
)

// EquityPointStore implements storage.EquityPointStore using ClickHouse.
type EquityPointStore struct {
	conn *Conn
}

// NewEquityPointStore creates a new EquityPointStore.
func NewEquityPointStore(conn *Conn) *EquityPointStore {
	return &EquityPointStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EquityPointStore = (*EquityPointStore)(nil)

// InsertBatch records a batch of equity samples. Re-inserted keys are
// collapsed by the ReplacingMergeTree engine, so retried ticks are safe.
func (s *EquityPointStore) InsertBatch(ctx context.Context, points []*domain.EquityPoint) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO equity_points (
			run_id, strategy_id, hour, total_value, available, locked,
			cooldown, open_positions, realized_pnl, drawdown, recorded_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.RunID, p.StrategyID, uint64(p.Hour),
			p.TotalValue, p.Available, p.Locked, p.Cooldown,
			uint32(p.OpenPositions), p.RealizedPnL, p.Drawdown,
			p.RecordedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRun retrieves all samples of a run, ordered by (strategy_id, hour) ASC.
// FINAL collapses duplicate keys left by re-recorded hours.
func (s *EquityPointStore) GetByRun(ctx context.Context, runID string) ([]*domain.EquityPoint, error) {
	query := `
		SELECT run_id, strategy_id, hour, total_value, available, locked,
		       cooldown, open_positions, realized_pnl, drawdown, recorded_at
		FROM equity_points FINAL
		WHERE run_id = ?
		ORDER BY strategy_id ASC, hour ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query equity points by run: %w", err)
	}
	defer rows.Close()

	return scanEquityPoints(rows)
}

// scanEquityPoints scans multiple rows.
func scanEquityPoints(rows driver.Rows) ([]*domain.EquityPoint, error) {
	var points []*domain.EquityPoint

	for rows.Next() {
		var p domain.EquityPoint
		var hour uint64
		var openPositions uint32

		err := rows.Scan(
			&p.RunID, &p.StrategyID, &hour,
			&p.TotalValue, &p.Available, &p.Locked, &p.Cooldown,
			&openPositions, &p.RealizedPnL, &p.Drawdown,
			&p.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan equity point row: %w", err)
		}

		p.Hour = int64(hour)
		p.OpenPositions = int(openPositions)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity point rows: %w", err)
	}

	return points, nil
}
