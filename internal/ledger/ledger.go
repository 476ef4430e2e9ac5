// Package ledger implements per-strategy capital and position bookkeeping.
// All capital movement between the available, locked and cooldown buckets
// goes through this package, and every mutation re-checks the conservation
// invariant before returning.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"time"

	"polycopy-sim/internal/domain"
	"polycopy-sim/internal/idhash"
)

// Ledger errors
var (
	// ErrInsufficientCapital is a normal sizing outcome, not a fault:
	// the portfolio cannot fund the requested position.
	ErrInsufficientCapital = errors.New("insufficient available capital")

	// ErrPositionTerminal is returned when settling an already-terminal
	// position.
	ErrPositionTerminal = errors.New("position already terminal")
)

// Tolerance for float comparison of capital buckets.
const Tolerance = 1e-6

// MaxEntryPrice caps the post-slippage effective entry price. Prices at or
// above $1.00 would make a winning share worthless.
const MaxEntryPrice = 0.99

// InvariantError reports a capital-conservation violation. It is fatal: the
// mutated state must not be persisted and the portfolio must not be mutated
// further.
type InvariantError struct {
	RunID      string
	StrategyID string
	Detail     string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation on portfolio %s/%s: %s", e.RunID, e.StrategyID, e.Detail)
}

// CheckInvariant verifies capital conservation:
//
//	available + locked + cooldown == initialCapital + realizedPnL
//
// and that the locked bucket matches the sum of open positions' invested
// amounts. Returns *InvariantError on violation.
func CheckInvariant(state *domain.PortfolioState) error {
	p := state.Portfolio

	got := p.Available + p.Locked + p.Cooldown
	want := p.InitialCapital + p.RealizedPnL
	if math.Abs(got-want) > Tolerance {
		return &InvariantError{
			RunID:      p.RunID,
			StrategyID: p.StrategyID,
			Detail: fmt.Sprintf("buckets sum to %.6f, expected initial+pnl %.6f (available=%.6f locked=%.6f cooldown=%.6f)",
				got, want, p.Available, p.Locked, p.Cooldown),
		}
	}

	var invested float64
	for _, pos := range state.Positions {
		if !pos.Terminal() {
			invested += pos.Invested
		}
	}
	if math.Abs(invested-p.Locked) > Tolerance {
		return &InvariantError{
			RunID:      p.RunID,
			StrategyID: p.StrategyID,
			Detail:     fmt.Sprintf("open positions hold %.6f but locked bucket is %.6f", invested, p.Locked),
		}
	}

	var queued float64
	for _, c := range state.Cooldowns {
		queued += c.Amount
	}
	if math.Abs(queued-p.Cooldown) > Tolerance {
		return &InvariantError{
			RunID:      p.RunID,
			StrategyID: p.StrategyID,
			Detail:     fmt.Sprintf("cooldown queue holds %.6f but cooldown bucket is %.6f", queued, p.Cooldown),
		}
	}

	return nil
}

// EffectivePrice applies run-level slippage to a quoted price, capped at
// MaxEntryPrice.
func EffectivePrice(rawPrice, slippagePct float64) float64 {
	return math.Min(rawPrice*(1+slippagePct), MaxEntryPrice)
}

// OpenPosition moves size from available to locked and appends an OPEN
// position priced at the post-slippage effective price. Returns
// ErrInsufficientCapital when the portfolio cannot fund size.
func OpenPosition(state *domain.PortfolioState, signal *domain.TradeSignal, size, slippagePct float64, now time.Time) (*domain.Position, error) {
	p := state.Portfolio

	if size <= 0 || size > p.Available+Tolerance {
		return nil, ErrInsufficientCapital
	}

	effective := EffectivePrice(signal.Price, slippagePct)

	pos := &domain.Position{
		PositionID: idhash.PositionID(p.RunID, p.StrategyID, signal.MarketID, signal.Outcome, now.UnixMilli()),
		RunID:      p.RunID,
		StrategyID: p.StrategyID,
		MarketID:   signal.MarketID,
		Outcome:    signal.Outcome,
		RawPrice:   signal.Price,
		EntryPrice: effective,
		Shares:     size / effective,
		Invested:   size,
		EnteredAt:  now,
		Status:     domain.PositionOpen,

		EdgeScore:    signal.EdgeScore,
		TraderWallet: signal.TraderWallet,
	}

	p.Available -= size
	p.Locked += size
	p.Trades++
	state.Positions = append(state.Positions, pos)

	if err := CheckInvariant(state); err != nil {
		return nil, err
	}
	return pos, nil
}

// SettlePosition closes an OPEN position against its market outcome.
// A win pays shares x $1.00; a loss pays nothing. The position's locked
// capital leaves the locked bucket and the payout (clamped >= 0) enters the
// cooldown queue, maturing at now + cooldown. Realized P&L, counters, peak
// capital and drawdown are updated.
func SettlePosition(state *domain.PortfolioState, pos *domain.Position, won bool, cooldown time.Duration, now time.Time) error {
	if pos.Terminal() {
		return ErrPositionTerminal
	}

	p := state.Portfolio

	var payout, exitPrice float64
	if won {
		payout = pos.Shares // $1.00 per share
		exitPrice = 1.0
		pos.Status = domain.PositionResolvedWin
		p.Wins++
	} else {
		payout = 0
		exitPrice = 0
		pos.Status = domain.PositionResolvedLoss
		p.Losses++
	}

	pnl := payout - pos.Invested
	roi := 0.0
	if pos.Invested > 0 {
		roi = pnl / pos.Invested
	}

	pos.ExitPrice = &exitPrice
	pos.ExitedAt = &now
	pos.PnL = &pnl
	pos.ROI = &roi

	p.Locked -= pos.Invested
	p.RealizedPnL += pnl

	if payout > 0 {
		p.Cooldown += payout
		state.Cooldowns = append(state.Cooldowns, &domain.CooldownEntry{
			Amount:      payout,
			AvailableAt: now.Add(cooldown),
		})
	}

	updatePeak(p)

	return CheckInvariant(state)
}

// ClosePosition settles an OPEN position at an arbitrary exit price (a user
// closing out before resolution). Payout = shares x exitPrice, routed
// through the cooldown queue like a resolution.
func ClosePosition(state *domain.PortfolioState, pos *domain.Position, exitPrice float64, cooldown time.Duration, now time.Time) error {
	if pos.Terminal() {
		return ErrPositionTerminal
	}
	if exitPrice < 0 || exitPrice > 1 {
		return fmt.Errorf("exit price %.4f outside [0, 1]", exitPrice)
	}

	p := state.Portfolio

	payout := pos.Shares * exitPrice
	pnl := payout - pos.Invested
	roi := 0.0
	if pos.Invested > 0 {
		roi = pnl / pos.Invested
	}

	pos.Status = domain.PositionUserClosed
	pos.ExitPrice = &exitPrice
	pos.ExitedAt = &now
	pos.PnL = &pnl
	pos.ROI = &roi

	p.Locked -= pos.Invested
	p.RealizedPnL += pnl

	if payout > 0 {
		p.Cooldown += payout
		state.Cooldowns = append(state.Cooldowns, &domain.CooldownEntry{
			Amount:      payout,
			AvailableAt: now.Add(cooldown),
		})
	}

	updatePeak(p)

	return CheckInvariant(state)
}

// updatePeak tracks the high-water mark and current drawdown.
func updatePeak(p *domain.StrategyPortfolio) {
	value := p.Value()
	if value > p.PeakValue {
		p.PeakValue = value
	}
	p.Drawdown = math.Max(0, p.PeakValue-value)
}
