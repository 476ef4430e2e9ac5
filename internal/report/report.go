package report

import "time"

// Report is the rendered summary of one simulation run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	Mode        string
	Status      string

	InitialCapital float64
	StartedAt      time.Time
	ElapsedHours   int64

	// Leaderboard (sorted by portfolio value descending)
	Leaderboard []LeaderboardRow

	// Settled positions (sorted by exited_at, strategy_id, market_id)
	Settlements []SettlementRow

	// Hourly equity samples (sorted by strategy_id, hour)
	EquityCurves []EquityCurveRow
}

// LeaderboardRow represents one strategy's standing in the run.
type LeaderboardRow struct {
	Rank       int
	StrategyID string

	Value       float64
	Available   float64
	Locked      float64
	Cooldown    float64
	RealizedPnL float64
	ROI         float64

	Trades  int
	Wins    int
	Losses  int
	WinRate float64 // Wins / (Wins + Losses), 0 when no resolutions

	OpenPositions int
	PeakValue     float64
	Drawdown      float64
}

// SettlementRow represents one resolved position.
type SettlementRow struct {
	StrategyID string
	MarketID   string
	Outcome    string
	Status     string
	EntryPrice float64
	Invested   float64
	PnL        float64
	ROI        float64
	ExitedAt   time.Time
}

// EquityCurveRow is one hourly equity sample.
type EquityCurveRow struct {
	StrategyID  string
	Hour        int64
	TotalValue  float64
	PnLDelta    float64
	TradesDelta int
}
