package domain

import "time"

// RunMode distinguishes live simulations from historical replays.
type RunMode string

const (
	RunModeLive     RunMode = "live"
	RunModeBacktest RunMode = "backtest"
)

// RunStatus is the lifecycle state of a simulation run.
type RunStatus string

const (
	RunStatusActive    RunStatus = "active"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPaused    RunStatus = "paused"
)

// SimulationRun is a multi-strategy paper-trading run. Each configured
// strategy trades an independent portfolio seeded with InitialCapital.
type SimulationRun struct {
	RunID          string
	Mode           RunMode
	Status         RunStatus
	InitialCapital float64 // USD seeded into every strategy portfolio
	Duration       time.Duration
	SlippagePct    float64 // applied to every entry price, e.g. 0.04 = 4%
	Cooldown       time.Duration
	Strategies     []StrategyConfig
	StartedAt      time.Time
	EndedAt        *time.Time
}

// Ended reports whether the run's configured duration has elapsed at now.
func (r *SimulationRun) Ended(now time.Time) bool {
	return !now.Before(r.StartedAt.Add(r.Duration))
}

// Elapsed returns time since the run started, clamped to [0, Duration].
func (r *SimulationRun) Elapsed(now time.Time) time.Duration {
	elapsed := now.Sub(r.StartedAt)
	if elapsed < 0 {
		return 0
	}
	if elapsed > r.Duration {
		return r.Duration
	}
	return elapsed
}

// Remaining returns time until the run's duration elapses, clamped to >= 0.
func (r *SimulationRun) Remaining(now time.Time) time.Duration {
	return r.Duration - r.Elapsed(now)
}
