package domain

import "time"

// EquityPoint is an analytics sample of a portfolio's equity, exported to
// the columnar store. It carries the same (run, strategy, hour) key as the
// hourly snapshot it was derived from.
type EquityPoint struct {
	RunID      string
	StrategyID string
	Hour       int64

	TotalValue float64
	Available  float64
	Locked     float64
	Cooldown   float64

	OpenPositions int
	RealizedPnL   float64
	Drawdown      float64

	RecordedAt time.Time
}

// EquityPointFromSnapshot derives an analytics sample from a snapshot.
// Drawdown is not part of the snapshot and is supplied by the caller.
func EquityPointFromSnapshot(s *HourlySnapshot, drawdown float64) *EquityPoint {
	return &EquityPoint{
		RunID:         s.RunID,
		StrategyID:    s.StrategyID,
		Hour:          s.Hour,
		TotalValue:    s.TotalValue,
		Available:     s.Available,
		Locked:        s.Locked,
		Cooldown:      s.Cooldown,
		OpenPositions: s.OpenPositions,
		RealizedPnL:   s.RealizedPnL,
		Drawdown:      drawdown,
		RecordedAt:    s.RecordedAt,
	}
}
