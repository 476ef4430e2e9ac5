// Package snapshot samples a portfolio's equity curve once per simulation
// hour.
package snapshot

import (
	"time"

	"polycopy-sim/internal/domain"
)

// HourIndex derives the snapshot hour from elapsed simulation time, not from
// wall-clock date. Missed ticks therefore show up as skipped hour indices
// instead of silently merging into the next sample.
func HourIndex(startedAt, now time.Time) int64 {
	elapsed := now.Sub(startedAt)
	if elapsed < 0 {
		return 0
	}
	return int64(elapsed / time.Hour)
}

// Record builds the snapshot for state at now. prev is the most recent
// recorded snapshot, or nil at hour 0; per-hour deltas are derived from its
// cumulative counters. When prev falls in the same hour index, its deltas
// carry forward so a re-tick within the hour refreshes the balances without
// collapsing the hour's deltas to "since the previous tick".
func Record(run *domain.SimulationRun, state *domain.PortfolioState, prev *domain.HourlySnapshot, now time.Time) *domain.HourlySnapshot {
	p := state.Portfolio

	resolutions := p.Wins + p.Losses

	snap := &domain.HourlySnapshot{
		RunID:      p.RunID,
		StrategyID: p.StrategyID,
		Hour:       HourIndex(run.StartedAt, now),

		TotalValue: p.Value(),
		Available:  p.Available,
		Locked:     p.Locked,
		Cooldown:   p.Cooldown,

		OpenPositions: len(state.OpenPositions()),

		Trades:      p.Trades,
		Resolutions: resolutions,
		RealizedPnL: p.RealizedPnL,

		RecordedAt: now,
	}

	if prev != nil {
		snap.TradesDelta = p.Trades - prev.Trades
		snap.ResolutionsDelta = resolutions - prev.Resolutions
		snap.PnLDelta = p.RealizedPnL - prev.RealizedPnL
		if prev.Hour == snap.Hour {
			snap.TradesDelta += prev.TradesDelta
			snap.ResolutionsDelta += prev.ResolutionsDelta
			snap.PnLDelta += prev.PnLDelta
		}
	} else {
		snap.TradesDelta = p.Trades
		snap.ResolutionsDelta = resolutions
		snap.PnLDelta = p.RealizedPnL
	}

	return snap
}
