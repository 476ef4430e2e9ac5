// Package resolver settles open positions when a market's outcome becomes
// known.
package resolver

import (
	"errors"
	"time"

	"polycopy-sim/internal/domain"
	"polycopy-sim/internal/ledger"
)

// Resolver errors
var (
	ErrInvalidOutcome = errors.New("winning outcome must be YES or NO")
)

// ResolveMarket settles every OPEN position on marketID held by the state's
// portfolio, classifying each as a win when its outcome side matches
// winningOutcome. Terminal positions are skipped, never re-evaluated, which
// makes resolving the same market twice a no-op the second time.
// Returns the number of positions settled.
func ResolveMarket(state *domain.PortfolioState, marketID, winningOutcome string, cooldown time.Duration, now time.Time) (int, error) {
	if winningOutcome != domain.OutcomeYes && winningOutcome != domain.OutcomeNo {
		return 0, ErrInvalidOutcome
	}

	resolved := 0
	for _, pos := range state.Positions {
		if pos.Terminal() || pos.MarketID != marketID {
			continue
		}

		won := pos.Outcome == winningOutcome
		if err := ledger.SettlePosition(state, pos, won, cooldown, now); err != nil {
			return resolved, err
		}
		resolved++
	}

	// Zero settlements is not an error: the portfolio may simply never
	// have touched the market.
	return resolved, nil
}
