package strategy

import (
	"context"

	"polycopy-sim/internal/domain"
)

// FollowWinnersStrategy copies trades of traders with a proven record:
// minimum win rate over a minimum resolved history, positive edge
// (win rate minus entry price) above a threshold, and a statistics
// confidence tier at or above the configured floor.
type FollowWinnersStrategy struct {
	Config            domain.StrategyConfig
	MinWinRate        float64
	MinResolvedTrades int
	MinEdgePct        float64
	MinConfidence     domain.Confidence
}

// NewFollowWinnersStrategy creates a FollowWinnersStrategy.
func NewFollowWinnersStrategy(cfg domain.StrategyConfig, minWinRate float64, minResolvedTrades int, minEdgePct float64, minConfidence domain.Confidence) *FollowWinnersStrategy {
	return &FollowWinnersStrategy{
		Config:            cfg,
		MinWinRate:        minWinRate,
		MinResolvedTrades: minResolvedTrades,
		MinEdgePct:        minEdgePct,
		MinConfidence:     minConfidence,
	}
}

// ID returns the strategy identifier.
func (s *FollowWinnersStrategy) ID() string {
	return domain.StrategyTypeFollowWinners
}

// Evaluate enters when the copied trader's statistics clear every threshold.
func (s *FollowWinnersStrategy) Evaluate(_ context.Context, input *Input) (*Decision, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	if d := commonGates(input, s.Config); d != nil {
		return d, nil
	}

	sig := input.Signal

	if !sig.Confidence.AtLeast(s.MinConfidence) {
		return skip(SkipLowConfidence), nil
	}
	if sig.TraderResolvedTrades == nil || *sig.TraderResolvedTrades < s.MinResolvedTrades {
		return skip(SkipThinHistory), nil
	}
	if sig.TraderWinRate == nil || *sig.TraderWinRate < s.MinWinRate {
		return skip(SkipLowWinRate), nil
	}
	if sig.Edge() < s.MinEdgePct {
		return skip(SkipLowEdge), nil
	}

	return sizeOrSkip(input, s.Config), nil
}

// Ensure FollowWinnersStrategy implements Evaluator
var _ Evaluator = (*FollowWinnersStrategy)(nil)
