// Package memory provides in-memory storage implementations, used by
// backtests and unit tests. All stores are safe for concurrent use and
// return copies to prevent external mutation.
package memory

import (
	"context"
	"sort"
	"sync"

	"polycopy-sim/internal/domain"
	"polycopy-sim/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SimulationRun // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.SimulationRun),
	}
}

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, r *domain.SimulationRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.RunID] = copyRun(r)
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.SimulationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRun(r), nil
}

// Update persists status and end timestamp changes.
func (s *RunStore) Update(_ context.Context, r *domain.SimulationRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; !exists {
		return storage.ErrNotFound
	}

	s.data[r.RunID] = copyRun(r)
	return nil
}

// ListActive retrieves all runs with status active, ordered by started_at ASC.
func (s *RunStore) ListActive(_ context.Context) ([]*domain.SimulationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SimulationRun
	for _, r := range s.data {
		if r.Status == domain.RunStatusActive {
			result = append(result, copyRun(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})

	return result, nil
}

// copyRun clones a run, including its strategy config slice and end
// timestamp, so callers cannot mutate stored state.
func copyRun(r *domain.SimulationRun) *domain.SimulationRun {
	runCopy := *r
	if r.Strategies != nil {
		runCopy.Strategies = make([]domain.StrategyConfig, len(r.Strategies))
		copy(runCopy.Strategies, r.Strategies)
	}
	if r.EndedAt != nil {
		t := *r.EndedAt
		runCopy.EndedAt = &t
	}
	return &runCopy
}

// Verify interface compliance at compile time.
var _ storage.RunStore = (*RunStore)(nil)
