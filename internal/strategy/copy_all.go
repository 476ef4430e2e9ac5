package strategy

import (
	"context"

	"polycopy-sim/internal/domain"
)

// CopyAllStrategy is the baseline: it copies every signal that clears the
// shared capital-lifecycle gates, with no entry thresholds of its own.
// Comparing the filtered variants against it isolates the value of their
// entry criteria.
type CopyAllStrategy struct {
	Config domain.StrategyConfig
}

// NewCopyAllStrategy creates a CopyAllStrategy.
func NewCopyAllStrategy(cfg domain.StrategyConfig) *CopyAllStrategy {
	return &CopyAllStrategy{Config: cfg}
}

// ID returns the strategy identifier.
func (s *CopyAllStrategy) ID() string {
	return domain.StrategyTypeCopyAll
}

// Evaluate enters whenever gates and sizing allow.
func (s *CopyAllStrategy) Evaluate(_ context.Context, input *Input) (*Decision, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	if d := commonGates(input, s.Config); d != nil {
		return d, nil
	}

	return sizeOrSkip(input, s.Config), nil
}

// Ensure CopyAllStrategy implements Evaluator
var _ Evaluator = (*CopyAllStrategy)(nil)
