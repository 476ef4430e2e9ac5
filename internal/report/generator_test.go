package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"polycopy-sim/internal/domain"
	"polycopy-sim/internal/storage/memory"
)

var testStart = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

func setupTestData(t *testing.T) (*memory.RunStore, *memory.PortfolioStore, *memory.SnapshotStore) {
	ctx := context.Background()

	runStore := memory.NewRunStore()
	portfolios := memory.NewPortfolioStore()
	snapshots := memory.NewSnapshotStore()

	run := &domain.SimulationRun{
		RunID:          "run_report",
		Mode:           domain.RunModeLive,
		Status:         domain.RunStatusActive,
		InitialCapital: 10000,
		Duration:       7 * 24 * time.Hour,
		SlippagePct:    0.02,
		Cooldown:       24 * time.Hour,
		Strategies: []domain.StrategyConfig{
			{StrategyType: domain.StrategyTypeCopyAll, Sizing: domain.SizingConfig{PositionSizePct: 0.10, MaxPositionUSD: 1000, MinPositionUSD: 10, EdgeFullScale: 0.25}},
			{StrategyType: domain.StrategyTypeFollowWinners, Sizing: domain.SizingConfig{PositionSizePct: 0.10, MaxPositionUSD: 1000, MinPositionUSD: 10, EdgeFullScale: 0.25}},
		},
		StartedAt: testStart,
	}
	if err := runStore.Insert(ctx, run); err != nil {
		t.Fatalf("Insert run failed: %v", err)
	}

	// COPY_ALL traded once and won; FOLLOW_WINNERS is untouched.
	exitPrice := 1.0
	pnl := 380.0
	roi := 0.38
	exitedAt := testStart.Add(30 * time.Hour)
	winner := &domain.PortfolioState{
		Portfolio: &domain.StrategyPortfolio{
			RunID:          "run_report",
			StrategyID:     domain.StrategyTypeCopyAll,
			InitialCapital: 10000,
			Available:      9000,
			Cooldown:       1380,
			RealizedPnL:    380,
			Trades:         1,
			Wins:           1,
			PeakValue:      10380,
		},
		Positions: []*domain.Position{{
			PositionID: "pos1",
			RunID:      "run_report",
			StrategyID: domain.StrategyTypeCopyAll,
			MarketID:   "mkt_a",
			Outcome:    domain.OutcomeYes,
			RawPrice:   0.71,
			EntryPrice: 0.7242,
			Shares:     1380.8,
			Invested:   1000,
			EnteredAt:  testStart.Add(2 * time.Hour),
			Status:     domain.PositionResolvedWin,
			ExitPrice:  &exitPrice,
			ExitedAt:   &exitedAt,
			PnL:        &pnl,
			ROI:        &roi,
		}},
		Cooldowns: []*domain.CooldownEntry{{Amount: 1380, AvailableAt: exitedAt.Add(24 * time.Hour)}},
	}
	if err := portfolios.Insert(ctx, winner.Portfolio); err != nil {
		t.Fatalf("Insert portfolio failed: %v", err)
	}
	if err := portfolios.SaveState(ctx, winner); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}

	idle := &domain.StrategyPortfolio{
		RunID:          "run_report",
		StrategyID:     domain.StrategyTypeFollowWinners,
		InitialCapital: 10000,
		Available:      10000,
		PeakValue:      10000,
	}
	if err := portfolios.Insert(ctx, idle); err != nil {
		t.Fatalf("Insert portfolio failed: %v", err)
	}

	for hour := int64(0); hour <= 2; hour++ {
		for _, strategyID := range []string{domain.StrategyTypeCopyAll, domain.StrategyTypeFollowWinners} {
			snap := &domain.HourlySnapshot{
				RunID:      "run_report",
				StrategyID: strategyID,
				Hour:       hour,
				TotalValue: 10000,
				Available:  10000,
				RecordedAt: testStart.Add(time.Duration(hour) * time.Hour),
			}
			if err := snapshots.Upsert(ctx, snap); err != nil {
				t.Fatalf("Upsert snapshot failed: %v", err)
			}
		}
	}

	return runStore, portfolios, snapshots
}

func TestGenerate_Leaderboard(t *testing.T) {
	ctx := context.Background()
	runStore, portfolios, snapshots := setupTestData(t)

	fixedTime := testStart.Add(48 * time.Hour)
	generator := NewGenerator(runStore, portfolios, snapshots).WithClock(func() time.Time {
		return fixedTime
	})

	report, err := generator.Generate(ctx, "run_report")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !report.GeneratedAt.Equal(fixedTime) {
		t.Errorf("Expected GeneratedAt %v, got %v", fixedTime, report.GeneratedAt)
	}
	if report.ElapsedHours != 48 {
		t.Errorf("Expected ElapsedHours 48, got %d", report.ElapsedHours)
	}

	if len(report.Leaderboard) != 2 {
		t.Fatalf("Expected 2 leaderboard rows, got %d", len(report.Leaderboard))
	}

	first := report.Leaderboard[0]
	if first.StrategyID != domain.StrategyTypeCopyAll || first.Rank != 1 {
		t.Errorf("Expected COPY_ALL at rank 1, got %s at %d", first.StrategyID, first.Rank)
	}
	if first.Value != 10380 {
		t.Errorf("Expected value 10380, got %.2f", first.Value)
	}
	if first.WinRate != 1.0 {
		t.Errorf("Expected win rate 1.0, got %.4f", first.WinRate)
	}

	second := report.Leaderboard[1]
	if second.StrategyID != domain.StrategyTypeFollowWinners || second.Rank != 2 {
		t.Errorf("Expected FOLLOW_WINNERS at rank 2, got %s at %d", second.StrategyID, second.Rank)
	}
	if second.WinRate != 0 {
		t.Errorf("Expected win rate 0 with no resolutions, got %.4f", second.WinRate)
	}
}

func TestGenerate_Settlements(t *testing.T) {
	ctx := context.Background()
	runStore, portfolios, snapshots := setupTestData(t)
	generator := NewGenerator(runStore, portfolios, snapshots)

	report, err := generator.Generate(ctx, "run_report")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(report.Settlements) != 1 {
		t.Fatalf("Expected 1 settlement, got %d", len(report.Settlements))
	}
	s := report.Settlements[0]
	if s.MarketID != "mkt_a" || s.Status != string(domain.PositionResolvedWin) {
		t.Errorf("Unexpected settlement row: %+v", s)
	}
	if s.PnL != 380 {
		t.Errorf("Expected PnL 380, got %.2f", s.PnL)
	}
}

func TestGenerate_EquityCurvesSorted(t *testing.T) {
	ctx := context.Background()
	runStore, portfolios, snapshots := setupTestData(t)
	generator := NewGenerator(runStore, portfolios, snapshots)

	report, err := generator.Generate(ctx, "run_report")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(report.EquityCurves) != 6 {
		t.Fatalf("Expected 6 equity rows, got %d", len(report.EquityCurves))
	}
	for i := 1; i < len(report.EquityCurves); i++ {
		prev, cur := report.EquityCurves[i-1], report.EquityCurves[i]
		if cur.StrategyID < prev.StrategyID {
			t.Fatalf("Rows not sorted by strategy: %s before %s", prev.StrategyID, cur.StrategyID)
		}
		if cur.StrategyID == prev.StrategyID && cur.Hour <= prev.Hour {
			t.Fatalf("Hours not ascending for %s", cur.StrategyID)
		}
	}
}

func TestRenderMarkdown_Format(t *testing.T) {
	ctx := context.Background()
	runStore, portfolios, snapshots := setupTestData(t)
	generator := NewGenerator(runStore, portfolios, snapshots)

	report, err := generator.Generate(ctx, "run_report")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(report)

	requiredSections := []string{
		"# Simulation Report",
		"## Leaderboard",
		"## Settlements",
		"## Equity Curves",
	}
	for _, section := range requiredSections {
		if !strings.Contains(md, section) {
			t.Errorf("Markdown missing section: %s", section)
		}
	}
	if !strings.Contains(md, domain.StrategyTypeCopyAll) {
		t.Error("Markdown should list the COPY_ALL strategy")
	}
}

func TestRenderCSV_LeaderboardOrder(t *testing.T) {
	rows := []LeaderboardRow{
		{StrategyID: "HIGH_CONVICTION", Value: 9500},
		{StrategyID: "COPY_ALL", Value: 10380},
		{StrategyID: "FOLLOW_WINNERS", Value: 10000},
	}
	rankLeaderboard(rows)

	csv := RenderCSV(rows)
	lines := strings.Split(csv, "\n")

	// Header + 3 data rows + trailing newline
	if len(lines) < 4 {
		t.Fatalf("Expected at least 4 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "rank,strategy_id,value") {
		t.Error("CSV header is incorrect")
	}
	if !strings.HasPrefix(lines[1], "1,COPY_ALL") {
		t.Errorf("Expected first row 1,COPY_ALL, got: %s", lines[1])
	}
	if !strings.HasPrefix(lines[2], "2,FOLLOW_WINNERS") {
		t.Errorf("Expected second row 2,FOLLOW_WINNERS, got: %s", lines[2])
	}
	if !strings.HasPrefix(lines[3], "3,HIGH_CONVICTION") {
		t.Errorf("Expected third row 3,HIGH_CONVICTION, got: %s", lines[3])
	}
}
