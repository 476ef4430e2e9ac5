package report

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Simulation Report: %s\n\n", r.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Mode: %s | Status: %s | Elapsed: %dh\n\n", r.Mode, r.Status, r.ElapsedHours))
	sb.WriteString(fmt.Sprintf("Initial capital per strategy: $%.2f\n\n", r.InitialCapital))

	// Leaderboard
	sb.WriteString("## Leaderboard\n\n")
	if len(r.Leaderboard) > 0 {
		sb.WriteString("| Rank | Strategy | Value | Available | Locked | Cooldown | PnL | ROI% | Trades | W/L | WinRate | Open | Drawdown |\n")
		sb.WriteString("|------|----------|-------|-----------|--------|----------|-----|------|--------|-----|---------|------|----------|\n")
		for _, row := range r.Leaderboard {
			sb.WriteString(fmt.Sprintf("| %d | %s | %.2f | %.2f | %.2f | %.2f | %+.2f | %+.2f | %d | %d/%d | %.4f | %d | %.2f |\n",
				row.Rank, row.StrategyID, row.Value, row.Available, row.Locked, row.Cooldown,
				row.RealizedPnL, row.ROI, row.Trades, row.Wins, row.Losses, row.WinRate,
				row.OpenPositions, row.Drawdown))
		}
	} else {
		sb.WriteString("No strategies in this run.\n")
	}
	sb.WriteString("\n")

	// Settlements
	sb.WriteString("## Settlements\n\n")
	if len(r.Settlements) > 0 {
		sb.WriteString("| Strategy | Market | Outcome | Result | Entry | Invested | PnL | ROI | Exited |\n")
		sb.WriteString("|----------|--------|---------|--------|-------|----------|-----|-----|--------|\n")
		for _, s := range r.Settlements {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %.4f | %.2f | %+.2f | %+.4f | %s |\n",
				s.StrategyID, s.MarketID, s.Outcome, s.Status,
				s.EntryPrice, s.Invested, s.PnL, s.ROI,
				s.ExitedAt.Format(time.RFC3339)))
		}
	} else {
		sb.WriteString("No settled positions yet.\n")
	}
	sb.WriteString("\n")

	// Equity curves
	sb.WriteString("## Equity Curves\n\n")
	if len(r.EquityCurves) > 0 {
		sb.WriteString("| Strategy | Hour | Value | PnL Delta | Trades Delta |\n")
		sb.WriteString("|----------|------|-------|-----------|-------------|\n")
		for _, c := range r.EquityCurves {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f | %+.2f | %d |\n",
				c.StrategyID, c.Hour, c.TotalValue, c.PnLDelta, c.TradesDelta))
		}
	} else {
		sb.WriteString("No snapshots recorded yet.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
