package resolver

import (
	"errors"
	"math"
	"testing"
	"time"

	"polycopy-sim/internal/domain"
	"polycopy-sim/internal/ledger"
)

func openPosition(t *testing.T, state *domain.PortfolioState, marketID, outcome string, size, price float64, now time.Time) *domain.Position {
	t.Helper()
	sig := &domain.TradeSignal{
		MarketID:  marketID,
		Outcome:   outcome,
		Price:     price,
		Timestamp: now,
	}
	pos, err := ledger.OpenPosition(state, sig, size, 0, now)
	if err != nil {
		t.Fatalf("open position on %s failed: %v", marketID, err)
	}
	return pos
}

func newState() *domain.PortfolioState {
	return &domain.PortfolioState{
		Portfolio: &domain.StrategyPortfolio{
			RunID:          "run1",
			StrategyID:     "COPY_ALL",
			InitialCapital: 10000,
			Available:      10000,
			PeakValue:      10000,
		},
	}
}

func TestResolveMarket_ClassifiesWinAndLoss(t *testing.T) {
	state := newState()
	now := time.Unix(1700000000, 0)

	yes := openPosition(t, state, "0xsuperbowl", domain.OutcomeYes, 600, 0.60, now)
	no := openPosition(t, state, "0xelection", domain.OutcomeNo, 400, 0.40, now)

	resolved, err := ResolveMarket(state, "0xsuperbowl", domain.OutcomeYes, 24*time.Hour, now)
	if err != nil {
		t.Fatalf("ResolveMarket failed: %v", err)
	}
	if resolved != 1 {
		t.Errorf("resolved: got %d, want 1", resolved)
	}
	if yes.Status != domain.PositionResolvedWin {
		t.Errorf("yes position: got %s, want RESOLVED_WIN", yes.Status)
	}
	if no.Status != domain.PositionOpen {
		t.Errorf("unrelated market settled: %s", no.Status)
	}

	resolved, err = ResolveMarket(state, "0xelection", domain.OutcomeYes, 24*time.Hour, now)
	if err != nil {
		t.Fatalf("ResolveMarket failed: %v", err)
	}
	if resolved != 1 {
		t.Errorf("resolved: got %d, want 1", resolved)
	}
	if no.Status != domain.PositionResolvedLoss {
		t.Errorf("no position: got %s, want RESOLVED_LOSS", no.Status)
	}
}

// Resolving the same market twice yields the same final state as once.
func TestResolveMarket_Idempotent(t *testing.T) {
	state := newState()
	now := time.Unix(1700000000, 0)

	openPosition(t, state, "0xmarket", domain.OutcomeYes, 1000, 0.50, now)

	if _, err := ResolveMarket(state, "0xmarket", domain.OutcomeYes, 24*time.Hour, now); err != nil {
		t.Fatalf("first resolution failed: %v", err)
	}

	pnlAfterFirst := state.Portfolio.RealizedPnL
	cooldownAfterFirst := state.Portfolio.Cooldown

	resolved, err := ResolveMarket(state, "0xmarket", domain.OutcomeYes, 24*time.Hour, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second resolution failed: %v", err)
	}
	if resolved != 0 {
		t.Errorf("second resolution settled %d positions, want 0", resolved)
	}
	if state.Portfolio.RealizedPnL != pnlAfterFirst {
		t.Errorf("pnl double-settled: %.2f -> %.2f", pnlAfterFirst, state.Portfolio.RealizedPnL)
	}
	if state.Portfolio.Cooldown != cooldownAfterFirst {
		t.Errorf("cooldown double-queued: %.2f -> %.2f", cooldownAfterFirst, state.Portfolio.Cooldown)
	}
	if len(state.Cooldowns) != 1 {
		t.Errorf("cooldown queue: got %d entries, want 1", len(state.Cooldowns))
	}
}

func TestResolveMarket_UnknownMarketNoOp(t *testing.T) {
	state := newState()
	now := time.Unix(1700000000, 0)

	resolved, err := ResolveMarket(state, "0xnever-traded", domain.OutcomeNo, time.Hour, now)
	if err != nil {
		t.Fatalf("ResolveMarket failed: %v", err)
	}
	if resolved != 0 {
		t.Errorf("resolved: got %d, want 0", resolved)
	}
}

func TestResolveMarket_InvalidOutcome(t *testing.T) {
	state := newState()

	_, err := ResolveMarket(state, "0xmarket", "MAYBE", time.Hour, time.Unix(1700000000, 0))
	if !errors.Is(err, ErrInvalidOutcome) {
		t.Errorf("expected ErrInvalidOutcome, got %v", err)
	}
}

func TestResolveMarket_ConservationAfterMixedSettlement(t *testing.T) {
	state := newState()
	now := time.Unix(1700000000, 0)

	// Two positions on the same market, opposite sides: one wins, one loses.
	openPosition(t, state, "0xmarket", domain.OutcomeYes, 500, 0.50, now)
	openPosition(t, state, "0xmarket", domain.OutcomeNo, 500, 0.50, now.Add(time.Second))

	resolved, err := ResolveMarket(state, "0xmarket", domain.OutcomeYes, 24*time.Hour, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("ResolveMarket failed: %v", err)
	}
	if resolved != 2 {
		t.Errorf("resolved: got %d, want 2", resolved)
	}

	p := state.Portfolio
	got := p.Available + p.Locked + p.Cooldown
	want := p.InitialCapital + p.RealizedPnL
	if math.Abs(got-want) > ledger.Tolerance {
		t.Errorf("conservation violated: buckets %.6f vs initial+pnl %.6f", got, want)
	}
}
