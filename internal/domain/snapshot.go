package domain

import "time"

// HourlySnapshot is a point-in-time sample of a portfolio, keyed by
// (run, strategy, hour). Hour is the number of whole hours elapsed since the
// run started, so missed ticks leave visible gaps instead of merging.
// Snapshots are append-only: at most one exists per key and it is never
// mutated after creation.
type HourlySnapshot struct {
	RunID      string
	StrategyID string
	Hour       int64

	TotalValue float64
	Available  float64
	Locked     float64
	Cooldown   float64

	OpenPositions int

	// Deltas cover activity since the previous recorded snapshot.
	TradesDelta      int
	ResolutionsDelta int
	PnLDelta         float64

	// Cumulative counters at sample time, used to derive the next deltas.
	Trades      int
	Resolutions int
	RealizedPnL float64

	RecordedAt time.Time
}
