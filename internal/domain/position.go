package domain

import "time"

// PositionStatus is the lifecycle state of a paper position.
type PositionStatus string

const (
	PositionOpen         PositionStatus = "OPEN"
	PositionResolvedWin  PositionStatus = "RESOLVED_WIN"
	PositionResolvedLoss PositionStatus = "RESOLVED_LOSS"
	PositionUserClosed   PositionStatus = "USER_CLOSED"
)

// Position is a simulated holding of one outcome side of a market,
// belonging to exactly one strategy portfolio. Once terminal it is never
// mutated again.
type Position struct {
	PositionID string // deterministic hash, see idhash.PositionID
	RunID      string
	StrategyID string

	MarketID string
	Outcome  string // outcome side held, e.g. "YES" / "NO"

	RawPrice   float64 // quoted price at signal time
	EntryPrice float64 // post-slippage effective price
	Shares     float64
	Invested   float64 // USD moved from available to locked
	EnteredAt  time.Time

	Status    PositionStatus
	ExitPrice *float64
	ExitedAt  *time.Time
	PnL       *float64
	ROI       *float64 // PnL / Invested

	// Diagnostic metadata captured at entry; never re-evaluated.
	EdgeScore    *float64
	TraderWallet string
}

// Terminal reports whether the position has reached a final status.
func (p *Position) Terminal() bool {
	return p.Status != PositionOpen
}
