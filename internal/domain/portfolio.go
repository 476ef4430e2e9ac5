package domain

import "time"

// StrategyPortfolio tracks one strategy's capital within a run. Capital is
// never created or destroyed: it moves between the available, locked and
// cooldown buckets, and changes only through realized P&L on settlement.
type StrategyPortfolio struct {
	RunID      string
	StrategyID string

	InitialCapital float64
	Available      float64 // spendable now
	Locked         float64 // invested in open positions
	Cooldown       float64 // released but not yet spendable

	RealizedPnL float64
	Trades      int
	Wins        int
	Losses      int

	PeakValue float64
	Drawdown  float64 // max(0, PeakValue - Value()) at last settlement

	// Version is the optimistic-concurrency stamp; stores reject a save
	// whose version does not match the persisted row.
	Version int64
}

// Value is the portfolio's total worth across all three buckets.
func (p *StrategyPortfolio) Value() float64 {
	return p.Available + p.Locked + p.Cooldown
}

// ROI returns percentage return on initial capital.
func (p *StrategyPortfolio) ROI() float64 {
	if p.InitialCapital == 0 {
		return 0
	}
	return (p.Value() - p.InitialCapital) / p.InitialCapital * 100
}

// CooldownEntry is capital released by a settled position, spendable again
// once AvailableAt passes.
type CooldownEntry struct {
	Amount      float64
	AvailableAt time.Time
}

// PortfolioState is the load-mutate-save aggregate for one (run, strategy)
// pair: the portfolio, its positions and its cooldown queue. Stores persist
// a state atomically or not at all.
type PortfolioState struct {
	Portfolio *StrategyPortfolio
	Positions []*Position
	Cooldowns []*CooldownEntry
}

// OpenPositions returns the non-terminal positions in the state.
func (s *PortfolioState) OpenPositions() []*Position {
	var open []*Position
	for _, p := range s.Positions {
		if !p.Terminal() {
			open = append(open, p)
		}
	}
	return open
}

// OpenPositionOnMarket returns the open position on marketID, if any.
func (s *PortfolioState) OpenPositionOnMarket(marketID string) *Position {
	for _, p := range s.Positions {
		if !p.Terminal() && p.MarketID == marketID {
			return p
		}
	}
	return nil
}

// TradesOnDay counts positions entered on the same UTC day as t.
func (s *PortfolioState) TradesOnDay(t time.Time) int {
	day := t.UTC().Truncate(24 * time.Hour)
	count := 0
	for _, p := range s.Positions {
		if p.EnteredAt.UTC().Truncate(24*time.Hour) == day {
			count++
		}
	}
	return count
}
