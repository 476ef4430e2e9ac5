package report

import (
	"fmt"
	"strings"
)

// RenderCSV renders the leaderboard as a CSV string.
func RenderCSV(rows []LeaderboardRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("rank,strategy_id,value,available,locked,cooldown,realized_pnl,roi,")
	sb.WriteString("trades,wins,losses,win_rate,open_positions,peak_value,drawdown\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%d,%s,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%d,%d,%d,%.6f,%d,%.6f,%.6f\n",
			r.Rank,
			r.StrategyID,
			r.Value,
			r.Available,
			r.Locked,
			r.Cooldown,
			r.RealizedPnL,
			r.ROI,
			r.Trades,
			r.Wins,
			r.Losses,
			r.WinRate,
			r.OpenPositions,
			r.PeakValue,
			r.Drawdown,
		))
	}

	return sb.String()
}
