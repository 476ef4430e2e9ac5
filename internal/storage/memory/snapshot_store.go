package memory

import (
	"context"
	"sort"
	"sync"

	"polycopy-sim/internal/domain"
	"polycopy-sim/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]*domain.HourlySnapshot // run_id|strategy_id -> hour
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string]map[int64]*domain.HourlySnapshot),
	}
}

// Upsert records a snapshot, overwriting any previous sample at the same
// (run, strategy, hour) key.
func (s *SnapshotStore) Upsert(_ context.Context, snap *domain.HourlySnapshot) error {
	if snap == nil || snap.RunID == "" || snap.StrategyID == "" || snap.Hour < 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := portfolioKey(snap.RunID, snap.StrategyID)
	if s.data[key] == nil {
		s.data[key] = make(map[int64]*domain.HourlySnapshot)
	}

	snapCopy := *snap
	s.data[key][snap.Hour] = &snapCopy
	return nil
}

// GetLatest retrieves the snapshot with the highest hour index.
// Returns ErrNotFound if none exists.
func (s *SnapshotStore) GetLatest(_ context.Context, runID, strategyID string) (*domain.HourlySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hours := s.data[portfolioKey(runID, strategyID)]
	if len(hours) == 0 {
		return nil, storage.ErrNotFound
	}

	var latest *domain.HourlySnapshot
	for _, snap := range hours {
		if latest == nil || snap.Hour > latest.Hour {
			latest = snap
		}
	}

	snapCopy := *latest
	return &snapCopy, nil
}

// GetByPortfolio retrieves all snapshots of a portfolio, ordered by hour ASC.
func (s *SnapshotStore) GetByPortfolio(_ context.Context, runID, strategyID string) ([]*domain.HourlySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.HourlySnapshot
	for _, snap := range s.data[portfolioKey(runID, strategyID)] {
		snapCopy := *snap
		result = append(result, &snapCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Hour < result[j].Hour
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)
