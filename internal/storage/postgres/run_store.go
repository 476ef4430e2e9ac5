package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"polycopy-sim/internal/domain"
	"polycopy-sim/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.SimulationRun) error {
	strategies, err := json.Marshal(r.Strategies)
	if err != nil {
		return fmt.Errorf("marshal strategies: %w", err)
	}

	query := `
		INSERT INTO simulation_runs (
			run_id, mode, status, initial_capital, duration_seconds,
			slippage_pct, cooldown_seconds, strategies, started_at, ended_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = s.pool.Exec(ctx, query,
		r.RunID,
		string(r.Mode),
		string(r.Status),
		r.InitialCapital,
		int64(r.Duration.Seconds()),
		r.SlippagePct,
		int64(r.Cooldown.Seconds()),
		strategies,
		r.StartedAt,
		r.EndedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.SimulationRun, error) {
	query := `
		SELECT run_id, mode, status, initial_capital, duration_seconds,
		       slippage_pct, cooldown_seconds, strategies, started_at, ended_at
		FROM simulation_runs
		WHERE run_id = $1
	`

	row := s.pool.QueryRow(ctx, query, runID)
	r, err := scanRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}
	return r, nil
}

// Update persists status and end timestamp changes.
func (s *RunStore) Update(ctx context.Context, r *domain.SimulationRun) error {
	query := `
		UPDATE simulation_runs
		SET status = $2, ended_at = $3
		WHERE run_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, r.RunID, string(r.Status), r.EndedAt)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListActive retrieves all runs with status active, ordered by started_at ASC.
func (s *RunStore) ListActive(ctx context.Context) ([]*domain.SimulationRun, error) {
	query := `
		SELECT run_id, mode, status, initial_capital, duration_seconds,
		       slippage_pct, cooldown_seconds, strategies, started_at, ended_at
		FROM simulation_runs
		WHERE status = $1
		ORDER BY started_at ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(domain.RunStatusActive))
	if err != nil {
		return nil, fmt.Errorf("list active runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.SimulationRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// scanRun scans a single row into a SimulationRun.
func scanRun(row pgx.Row) (*domain.SimulationRun, error) {
	var r domain.SimulationRun
	var mode, status string
	var durationSec, cooldownSec int64
	var strategies []byte

	err := row.Scan(
		&r.RunID,
		&mode,
		&status,
		&r.InitialCapital,
		&durationSec,
		&r.SlippagePct,
		&cooldownSec,
		&strategies,
		&r.StartedAt,
		&r.EndedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(strategies, &r.Strategies); err != nil {
		return nil, fmt.Errorf("unmarshal strategies: %w", err)
	}

	r.Mode = domain.RunMode(mode)
	r.Status = domain.RunStatus(status)
	r.Duration = time.Duration(durationSec) * time.Second
	r.Cooldown = time.Duration(cooldownSec) * time.Second
	return &r, nil
}
