package strategy

import (
	"context"

	"polycopy-sim/internal/domain"
)

// HighConvictionStrategy copies only trades where the tracked trader put
// serious money behind the position: the copied trade's own size must clear
// a floor, statistics confidence must be HIGH, and the edge threshold must
// hold.
type HighConvictionStrategy struct {
	Config           domain.StrategyConfig
	MinCopiedSizeUSD float64
	MinEdgePct       float64
}

// NewHighConvictionStrategy creates a HighConvictionStrategy.
func NewHighConvictionStrategy(cfg domain.StrategyConfig, minCopiedSizeUSD, minEdgePct float64) *HighConvictionStrategy {
	return &HighConvictionStrategy{
		Config:           cfg,
		MinCopiedSizeUSD: minCopiedSizeUSD,
		MinEdgePct:       minEdgePct,
	}
}

// ID returns the strategy identifier.
func (s *HighConvictionStrategy) ID() string {
	return domain.StrategyTypeHighConviction
}

// Evaluate enters on large, high-confidence copied trades with edge.
func (s *HighConvictionStrategy) Evaluate(_ context.Context, input *Input) (*Decision, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	if d := commonGates(input, s.Config); d != nil {
		return d, nil
	}

	sig := input.Signal

	if sig.SizeUSD < s.MinCopiedSizeUSD {
		return skip(SkipSmallCopiedTrade), nil
	}
	if !sig.Confidence.AtLeast(domain.ConfidenceHigh) {
		return skip(SkipLowConfidence), nil
	}
	if sig.Edge() < s.MinEdgePct {
		return skip(SkipLowEdge), nil
	}

	return sizeOrSkip(input, s.Config), nil
}

// Ensure HighConvictionStrategy implements Evaluator
var _ Evaluator = (*HighConvictionStrategy)(nil)
