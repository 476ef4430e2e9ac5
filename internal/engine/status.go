package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"polycopy-sim/internal/domain"
)

// StrategyStatus is one strategy's row in a status report.
type StrategyStatus struct {
	StrategyID    string  `json:"strategy_id"`
	Rank          int     `json:"rank"`
	Value         float64 `json:"value"`
	Available     float64 `json:"available"`
	Locked        float64 `json:"locked"`
	Cooldown      float64 `json:"cooldown"`
	RealizedPnL   float64 `json:"realized_pnl"`
	ROI           float64 `json:"roi"`
	Trades        int     `json:"trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	OpenPositions int     `json:"open_positions"`
	PeakValue     float64 `json:"peak_value"`
	Drawdown      float64 `json:"drawdown"`
}

// StatusReport is a point-in-time view of a run and its strategies, ranked
// by portfolio value descending.
type StatusReport struct {
	RunID          string           `json:"run_id"`
	Mode           domain.RunMode   `json:"mode"`
	Status         domain.RunStatus `json:"status"`
	InitialCapital float64          `json:"initial_capital"`
	StartedAt      time.Time        `json:"started_at"`
	ElapsedHours   float64          `json:"elapsed_hours"`
	RemainingHours float64          `json:"remaining_hours"`
	Strategies     []StrategyStatus `json:"strategies"`
}

// Status assembles a report for the run. Ranking is by value descending;
// ties break by strategy id ascending so ordering is deterministic.
func (e *Engine) Status(ctx context.Context, runID string) (*StatusReport, error) {
	run, err := e.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}

	now := e.now()
	report := &StatusReport{
		RunID:          run.RunID,
		Mode:           run.Mode,
		Status:         run.Status,
		InitialCapital: run.InitialCapital,
		StartedAt:      run.StartedAt,
		ElapsedHours:   run.Elapsed(now).Hours(),
		RemainingHours: run.Remaining(now).Hours(),
	}

	for _, sc := range run.Strategies {
		state, err := e.portfolios.LoadState(ctx, run.RunID, sc.ID())
		if err != nil {
			return nil, fmt.Errorf("load portfolio %s: %w", sc.ID(), err)
		}
		p := state.Portfolio
		report.Strategies = append(report.Strategies, StrategyStatus{
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
			OpenPositions: len(state.OpenPositions()),
			PeakValue:     p.PeakValue,
			Drawdown:      p.Drawdown,
		})
	}

	sort.Slice(report.Strategies, func(i, j int) bool {
		a, b := report.Strategies[i], report.Strategies[j]
		if a.Value != b.Value {
			return a.Value > b.Value
		}
		return a.StrategyID < b.StrategyID
	})
	for i := range report.Strategies {
		report.Strategies[i].Rank = i + 1
	}
	return report, nil
}
