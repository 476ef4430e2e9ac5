package ledger

import (
	"errors"
	"math"
	"testing"
	"time"

	"polycopy-sim/internal/domain"
)

func newState(initial float64) *domain.PortfolioState {
	return &domain.PortfolioState{
		Portfolio: &domain.StrategyPortfolio{
			RunID:          "run1",
			StrategyID:     "FOLLOW_WINNERS",
			InitialCapital: initial,
			Available:      initial,
			PeakValue:      initial,
		},
	}
}

func signalAt(price float64) *domain.TradeSignal {
	return &domain.TradeSignal{
		MarketID:  "0xmarket",
		Outcome:   domain.OutcomeYes,
		Price:     price,
		SizeUSD:   500,
		Timestamp: time.Unix(1700000000, 0),
	}
}

func TestOpenPosition_MovesCapitalToLocked(t *testing.T) {
	state := newState(10000)
	now := time.Unix(1700000000, 0)

	pos, err := OpenPosition(state, signalAt(0.60), 1000, 0, now)
	if err != nil {
		t.Fatalf("OpenPosition failed: %v", err)
	}

	p := state.Portfolio
	if p.Available != 9000 {
		t.Errorf("available: got %.2f, want 9000", p.Available)
	}
	if p.Locked != 1000 {
		t.Errorf("locked: got %.2f, want 1000", p.Locked)
	}
	if pos.Status != domain.PositionOpen {
		t.Errorf("status: got %s, want OPEN", pos.Status)
	}
	if math.Abs(pos.Shares-1666.6667) > 0.01 {
		t.Errorf("shares: got %.4f, want 1666.67", pos.Shares)
	}
	if p.Trades != 1 {
		t.Errorf("trades: got %d, want 1", p.Trades)
	}
}

func TestOpenPosition_InsufficientCapital(t *testing.T) {
	state := newState(100)
	now := time.Unix(1700000000, 0)

	_, err := OpenPosition(state, signalAt(0.60), 1000, 0, now)
	if !errors.Is(err, ErrInsufficientCapital) {
		t.Errorf("expected ErrInsufficientCapital, got %v", err)
	}

	// No state change on rejection.
	if state.Portfolio.Available != 100 || state.Portfolio.Locked != 0 {
		t.Errorf("portfolio mutated on rejected entry: %+v", state.Portfolio)
	}
}

func TestEffectivePrice_SlippageAndCap(t *testing.T) {
	if got := EffectivePrice(0.50, 0.04); math.Abs(got-0.52) > 1e-9 {
		t.Errorf("slippage: got %.4f, want 0.52", got)
	}
	if got := EffectivePrice(0.98, 0.10); got != MaxEntryPrice {
		t.Errorf("cap: got %.4f, want %.2f", got, MaxEntryPrice)
	}
}

// Scenario: $10,000 capital, $1,000 position at $0.60, market resolves WIN.
// Shares = 1,666.67 pay $1.00 each: P&L +$666.67, $1,666.67 queued in
// cooldown, conservation holds throughout.
func TestSettlePosition_WinScenario(t *testing.T) {
	state := newState(10000)
	now := time.Unix(1700000000, 0)

	pos, err := OpenPosition(state, signalAt(0.60), 1000, 0, now)
	if err != nil {
		t.Fatalf("OpenPosition failed: %v", err)
	}

	if err := SettlePosition(state, pos, true, 24*time.Hour, now); err != nil {
		t.Fatalf("SettlePosition failed: %v", err)
	}

	p := state.Portfolio
	if math.Abs(p.RealizedPnL-666.6667) > 0.01 {
		t.Errorf("realized pnl: got %.4f, want 666.67", p.RealizedPnL)
	}
	if p.Locked != 0 {
		t.Errorf("locked: got %.2f, want 0", p.Locked)
	}
	if math.Abs(p.Cooldown-1666.6667) > 0.01 {
		t.Errorf("cooldown: got %.4f, want 1666.67", p.Cooldown)
	}
	if p.Available != 9000 {
		t.Errorf("available: got %.2f, want 9000", p.Available)
	}
	if len(state.Cooldowns) != 1 {
		t.Fatalf("expected 1 cooldown entry, got %d", len(state.Cooldowns))
	}
	if got := state.Cooldowns[0].AvailableAt; !got.Equal(now.Add(24 * time.Hour)) {
		t.Errorf("cooldown matures at %v, want %v", got, now.Add(24*time.Hour))
	}
	if pos.Status != domain.PositionResolvedWin {
		t.Errorf("status: got %s, want RESOLVED_WIN", pos.Status)
	}
	if p.Wins != 1 || p.Losses != 0 {
		t.Errorf("counters: wins=%d losses=%d", p.Wins, p.Losses)
	}
}

// Scenario: same setup, market resolves LOSS. P&L -$1,000, nothing queued
// in cooldown, available stays at $9,000.
func TestSettlePosition_LossScenario(t *testing.T) {
	state := newState(10000)
	now := time.Unix(1700000000, 0)

	pos, err := OpenPosition(state, signalAt(0.60), 1000, 0, now)
	if err != nil {
		t.Fatalf("OpenPosition failed: %v", err)
	}

	if err := SettlePosition(state, pos, false, 24*time.Hour, now); err != nil {
		t.Fatalf("SettlePosition failed: %v", err)
	}

	p := state.Portfolio
	if p.RealizedPnL != -1000 {
		t.Errorf("realized pnl: got %.2f, want -1000", p.RealizedPnL)
	}
	if p.Cooldown != 0 || len(state.Cooldowns) != 0 {
		t.Errorf("loss enqueued cooldown capital: %.2f (%d entries)", p.Cooldown, len(state.Cooldowns))
	}
	if p.Available != 9000 {
		t.Errorf("available: got %.2f, want 9000", p.Available)
	}
	if pos.Status != domain.PositionResolvedLoss {
		t.Errorf("status: got %s, want RESOLVED_LOSS", pos.Status)
	}
	if p.Drawdown != 1000 {
		t.Errorf("drawdown: got %.2f, want 1000", p.Drawdown)
	}
}

func TestSettlePosition_TerminalRejected(t *testing.T) {
	state := newState(10000)
	now := time.Unix(1700000000, 0)

	pos, _ := OpenPosition(state, signalAt(0.60), 1000, 0, now)
	if err := SettlePosition(state, pos, true, time.Hour, now); err != nil {
		t.Fatalf("first settle failed: %v", err)
	}

	err := SettlePosition(state, pos, true, time.Hour, now)
	if !errors.Is(err, ErrPositionTerminal) {
		t.Errorf("expected ErrPositionTerminal, got %v", err)
	}
}

func TestClosePosition_MidPriceExit(t *testing.T) {
	state := newState(10000)
	now := time.Unix(1700000000, 0)

	pos, _ := OpenPosition(state, signalAt(0.50), 1000, 0, now)

	// Exit at $0.75: payout = 2000 shares * 0.75 = $1500, pnl +$500.
	if err := ClosePosition(state, pos, 0.75, time.Hour, now); err != nil {
		t.Fatalf("ClosePosition failed: %v", err)
	}

	p := state.Portfolio
	if math.Abs(p.RealizedPnL-500) > Tolerance {
		t.Errorf("realized pnl: got %.2f, want 500", p.RealizedPnL)
	}
	if math.Abs(p.Cooldown-1500) > Tolerance {
		t.Errorf("cooldown: got %.2f, want 1500", p.Cooldown)
	}
	if pos.Status != domain.PositionUserClosed {
		t.Errorf("status: got %s, want USER_CLOSED", pos.Status)
	}
}

func TestCheckInvariant_DetectsCorruption(t *testing.T) {
	state := newState(10000)
	now := time.Unix(1700000000, 0)

	if _, err := OpenPosition(state, signalAt(0.60), 1000, 0, now); err != nil {
		t.Fatalf("OpenPosition failed: %v", err)
	}
	if err := CheckInvariant(state); err != nil {
		t.Fatalf("consistent state flagged: %v", err)
	}

	state.Portfolio.Available += 50 // conjure capital from nowhere

	err := CheckInvariant(state)
	var invErr *InvariantError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected *InvariantError, got %v", err)
	}
	if invErr.RunID != "run1" || invErr.StrategyID != "FOLLOW_WINNERS" {
		t.Errorf("error identifies wrong portfolio: %+v", invErr)
	}
}

// Conservation holds across an arbitrary sequence of opens, settlements and
// releases.
func TestCapitalConservation_Sequence(t *testing.T) {
	state := newState(10000)
	now := time.Unix(1700000000, 0)

	prices := []float64{0.30, 0.55, 0.72, 0.45, 0.61}
	for i, price := range prices {
		sig := signalAt(price)
		sig.MarketID = sig.MarketID + string(rune('a'+i))
		pos, err := OpenPosition(state, sig, 800, 0.04, now.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("open %d failed: %v", i, err)
		}
		if err := SettlePosition(state, pos, i%2 == 0, 24*time.Hour, now.Add(time.Duration(i+1)*time.Minute)); err != nil {
			t.Fatalf("settle %d failed: %v", i, err)
		}
	}

	p := state.Portfolio
	got := p.Available + p.Locked + p.Cooldown
	want := p.InitialCapital + p.RealizedPnL
	if math.Abs(got-want) > Tolerance {
		t.Errorf("conservation violated: buckets %.6f vs initial+pnl %.6f", got, want)
	}
}
