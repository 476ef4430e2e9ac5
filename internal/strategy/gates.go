package strategy

import "polycopy-sim/internal/domain"

// commonGates applies the capital-lifecycle checks every variant shares, in
// a fixed order. Returns a skip decision, or nil when all gates pass.
func commonGates(input *Input, cfg domain.StrategyConfig) *Decision {
	state := input.State

	if cfg.MaxTradesPerDay > 0 && state.TradesOnDay(input.Signal.Timestamp) >= cfg.MaxTradesPerDay {
		return skip(SkipDailyTradeLimit)
	}

	if cfg.MaxOpenPositions > 0 && len(state.OpenPositions()) >= cfg.MaxOpenPositions {
		return skip(SkipMaxOpenPositions)
	}

	// At most one open position per market. Replaying the same signal
	// against a portfolio that already holds the market skips instead of
	// duplicating.
	if state.OpenPositionOnMarket(input.Signal.MarketID) != nil {
		return skip(SkipMarketAlreadyHeld)
	}

	return nil
}

// sizeOrSkip runs the shared sizing function and converts a zero size into
// an insufficient-capital skip.
func sizeOrSkip(input *Input, cfg domain.StrategyConfig) *Decision {
	size := positionSize(input.State.Portfolio.Available, input.Signal.Edge(), cfg.Sizing)
	if size == 0 {
		return skip(SkipInsufficientCapital)
	}
	return enter(size)
}
