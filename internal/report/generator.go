package report

import (
	"context"
	"sort"
	"time"

	"polycopy-sim/internal/domain"
	"polycopy-sim/internal/storage"
)

// Generator produces run reports from stored data.
type Generator struct {
	runStore      storage.RunStore
	portfolios    storage.PortfolioStore
	snapshotStore storage.SnapshotStore
	now           func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	runStore storage.RunStore,
	portfolios storage.PortfolioStore,
	snapshotStore storage.SnapshotStore,
) *Generator {
	return &Generator{
		runStore:      runStore,
		portfolios:    portfolios,
		snapshotStore: snapshotStore,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete report for one run.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	var leaderboard []LeaderboardRow
	var settlements []SettlementRow
	var curves []EquityCurveRow

	for _, sc := range run.Strategies {
		state, err := g.portfolios.LoadState(ctx, runID, sc.ID())
		if err != nil {
			return nil, err
		}

		leaderboard = append(leaderboard, buildLeaderboardRow(state))
		settlements = append(settlements, buildSettlementRows(state.Positions)...)

		snaps, err := g.snapshotStore.GetByPortfolio(ctx, runID, sc.ID())
		if err != nil {
			return nil, err
		}
		for _, s := range snaps {
			curves = append(curves, EquityCurveRow{
				StrategyID:  s.StrategyID,
				Hour:        s.Hour,
				TotalValue:  s.TotalValue,
				PnLDelta:    s.PnLDelta,
				TradesDelta: s.TradesDelta,
			})
		}
	}

	rankLeaderboard(leaderboard)
	sortSettlements(settlements)
	sortCurves(curves)

	return &Report{
		GeneratedAt:    g.now(),
		RunID:          run.RunID,
		Mode:           string(run.Mode),
		Status:         string(run.Status),
		InitialCapital: run.InitialCapital,
		StartedAt:      run.StartedAt,
		ElapsedHours:   int64(run.Elapsed(g.now()).Hours()),
		Leaderboard:    leaderboard,
		Settlements:    settlements,
		EquityCurves:   curves,
	}, nil
}

// buildLeaderboardRow flattens one portfolio state into a leaderboard row.
func buildLeaderboardRow(state *domain.PortfolioState) LeaderboardRow {
	p := state.Portfolio

	winRate := 0.0
	if resolved := p.Wins + p.Losses; resolved > 0 {
		winRate = float64(p.Wins) / float64(resolved)
	}

	return LeaderboardRow{
		StrategyID:    p.StrategyID,
		Value:         p.Value(),
		Available:     p.Available,
		Locked:        p.Locked,
		Cooldown:      p.Cooldown,
		RealizedPnL:   p.RealizedPnL,
		ROI:           p.ROI(),
		Trades:        p.Trades,
		Wins:          p.Wins,
		Losses:        p.Losses,
		WinRate:       winRate,
		OpenPositions: len(state.OpenPositions()),
		PeakValue:     p.PeakValue,
		Drawdown:      p.Drawdown,
	}
}

// buildSettlementRows extracts terminal positions as settlement rows.
func buildSettlementRows(positions []*domain.Position) []SettlementRow {
	var rows []SettlementRow
	for _, pos := range positions {
		if !pos.Terminal() || pos.ExitedAt == nil {
			continue
		}

		row := SettlementRow{
			StrategyID: pos.StrategyID,
			MarketID:   pos.MarketID,
			Outcome:    pos.Outcome,
			Status:     string(pos.Status),
			EntryPrice: pos.EntryPrice,
			Invested:   pos.Invested,
			ExitedAt:   *pos.ExitedAt,
		}
		if pos.PnL != nil {
			row.PnL = *pos.PnL
		}
		if pos.ROI != nil {
			row.ROI = *pos.ROI
		}
		rows = append(rows, row)
	}
	return rows
}

// rankLeaderboard sorts by value descending (strategy_id breaks ties) and
// assigns ranks starting at 1.
func rankLeaderboard(rows []LeaderboardRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Value != rows[j].Value {
			return rows[i].Value > rows[j].Value
		}
		return rows[i].StrategyID < rows[j].StrategyID
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
}

// sortSettlements sorts by (exited_at, strategy_id, market_id).
func sortSettlements(rows []SettlementRow) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].ExitedAt.Equal(rows[j].ExitedAt) {
			return rows[i].ExitedAt.Before(rows[j].ExitedAt)
		}
		if rows[i].StrategyID != rows[j].StrategyID {
			return rows[i].StrategyID < rows[j].StrategyID
		}
		return rows[i].MarketID < rows[j].MarketID
	})
}

// sortCurves sorts by (strategy_id, hour).
func sortCurves(rows []EquityCurveRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].StrategyID != rows[j].StrategyID {
			return rows[i].StrategyID < rows[j].StrategyID
		}
		return rows[i].Hour < rows[j].Hour
	})
}
