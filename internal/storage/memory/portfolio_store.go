package memory

import (
	"context"
	"sort"
	"sync"

	"polycopy-sim/internal/domain"
	"polycopy-sim/internal/storage"
)

// PortfolioStore is an in-memory implementation of storage.PortfolioStore.
// It also implements storage.PositionStore, since positions live inside
// portfolio states and have no independent write path.
type PortfolioStore struct {
	mu         sync.RWMutex
	portfolios map[string]*domain.StrategyPortfolio // keyed by run_id|strategy_id
	positions  map[string][]*domain.Position        // same key
	cooldowns  map[string][]*domain.CooldownEntry   // same key
}

// NewPortfolioStore creates a new in-memory portfolio store.
func NewPortfolioStore() *PortfolioStore {
	return &PortfolioStore{
		portfolios: make(map[string]*domain.StrategyPortfolio),
		positions:  make(map[string][]*domain.Position),
		cooldowns:  make(map[string][]*domain.CooldownEntry),
	}
}

func portfolioKey(runID, strategyID string) string {
	return runID + "|" + strategyID
}

// Insert adds a freshly seeded portfolio.
// Returns ErrDuplicateKey if (run_id, strategy_id) exists.
func (s *PortfolioStore) Insert(_ context.Context, p *domain.StrategyPortfolio) error {
	if p == nil || p.RunID == "" || p.StrategyID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := portfolioKey(p.RunID, p.StrategyID)
	if _, exists := s.portfolios[key]; exists {
		return storage.ErrDuplicateKey
	}

	portfolioCopy := *p
	s.portfolios[key] = &portfolioCopy
	return nil
}

// GetByRunStrategy retrieves a portfolio. Returns ErrNotFound if not exists.
func (s *PortfolioStore) GetByRunStrategy(_ context.Context, runID, strategyID string) (*domain.StrategyPortfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.portfolios[portfolioKey(runID, strategyID)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	portfolioCopy := *p
	return &portfolioCopy, nil
}

// ListByRun retrieves all portfolios of a run, ordered by strategy_id ASC.
func (s *PortfolioStore) ListByRun(_ context.Context, runID string) ([]*domain.StrategyPortfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.StrategyPortfolio
	for _, p := range s.portfolios {
		if p.RunID == runID {
			portfolioCopy := *p
			result = append(result, &portfolioCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StrategyID < result[j].StrategyID
	})

	return result, nil
}

// LoadState retrieves the portfolio with its positions and cooldown queue.
func (s *PortfolioStore) LoadState(_ context.Context, runID, strategyID string) (*domain.PortfolioState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := portfolioKey(runID, strategyID)
	p, exists := s.portfolios[key]
	if !exists {
		return nil, storage.ErrNotFound
	}

	portfolioCopy := *p
	state := &domain.PortfolioState{Portfolio: &portfolioCopy}
	for _, pos := range s.positions[key] {
		state.Positions = append(state.Positions, copyPosition(pos))
	}
	for _, ce := range s.cooldowns[key] {
		entryCopy := *ce
		state.Cooldowns = append(state.Cooldowns, &entryCopy)
	}
	return state, nil
}

// SaveState persists the full state under the portfolio's version stamp.
// On version mismatch it returns ErrVersionConflict and changes nothing;
// on success the stored and in-memory versions are both incremented.
func (s *PortfolioStore) SaveState(_ context.Context, state *domain.PortfolioState) error {
	if state == nil || state.Portfolio == nil || state.Portfolio.RunID == "" || state.Portfolio.StrategyID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := portfolioKey(state.Portfolio.RunID, state.Portfolio.StrategyID)
	current, exists := s.portfolios[key]
	if !exists {
		return storage.ErrNotFound
	}
	if current.Version != state.Portfolio.Version {
		return storage.ErrVersionConflict
	}

	state.Portfolio.Version++
	portfolioCopy := *state.Portfolio
	s.portfolios[key] = &portfolioCopy

	positions := make([]*domain.Position, 0, len(state.Positions))
	for _, pos := range state.Positions {
		positions = append(positions, copyPosition(pos))
	}
	s.positions[key] = positions

	cooldowns := make([]*domain.CooldownEntry, 0, len(state.Cooldowns))
	for _, ce := range state.Cooldowns {
		entryCopy := *ce
		cooldowns = append(cooldowns, &entryCopy)
	}
	s.cooldowns[key] = cooldowns

	return nil
}

// GetByPortfolio retrieves all positions of a portfolio, ordered by
// entered_at ASC.
func (s *PortfolioStore) GetByPortfolio(_ context.Context, runID, strategyID string) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for _, pos := range s.positions[portfolioKey(runID, strategyID)] {
		result = append(result, copyPosition(pos))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].EnteredAt.Before(result[j].EnteredAt)
	})

	return result, nil
}

// GetOpenByMarket retrieves OPEN positions referencing marketID across all
// of the run's portfolios.
func (s *PortfolioStore) GetOpenByMarket(_ context.Context, runID, marketID string) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for _, positions := range s.positions {
		for _, pos := range positions {
			if pos.RunID == runID && pos.MarketID == marketID && pos.Status == domain.PositionOpen {
				result = append(result, copyPosition(pos))
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StrategyID < result[j].StrategyID
	})

	return result, nil
}

// copyPosition clones a position, including its exit pointer fields.
func copyPosition(p *domain.Position) *domain.Position {
	posCopy := *p
	posCopy.ExitPrice = copyFloat(p.ExitPrice)
	posCopy.PnL = copyFloat(p.PnL)
	posCopy.ROI = copyFloat(p.ROI)
	posCopy.EdgeScore = copyFloat(p.EdgeScore)
	if p.ExitedAt != nil {
		t := *p.ExitedAt
		posCopy.ExitedAt = &t
	}
	return &posCopy
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Verify interface compliance at compile time.
var (
	_ storage.PortfolioStore = (*PortfolioStore)(nil)
	_ storage.PositionStore  = (*PortfolioStore)(nil)
)
