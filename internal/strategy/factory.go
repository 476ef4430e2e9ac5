package strategy

import (
	"errors"

	"polycopy-sim/internal/domain"
)

// Factory errors
var (
	ErrUnknownStrategyType      = errors.New("unknown strategy type")
	ErrMissingMinWinRate        = errors.New("FOLLOW_WINNERS requires MinWinRate")
	ErrMissingMinResolvedTrades = errors.New("FOLLOW_WINNERS requires MinResolvedTrades")
	ErrMissingMinEdgePct        = errors.New("FOLLOW_WINNERS/HIGH_CONVICTION requires MinEdgePct")
	ErrMissingMinConfidence     = errors.New("FOLLOW_WINNERS requires MinConfidence")
	ErrMissingMinCopiedSize     = errors.New("HIGH_CONVICTION requires MinCopiedSizeUSD")
	ErrInvalidSizing            = errors.New("sizing requires PositionSizePct in (0, 1] and EdgeFullScale > 0")
)

// FromConfig creates an Evaluator from domain.StrategyConfig.
// Validates required parameters per strategy type.
// Returns clear errors for missing/invalid params.
func FromConfig(cfg domain.StrategyConfig) (Evaluator, error) {
	if cfg.Sizing.PositionSizePct <= 0 || cfg.Sizing.PositionSizePct > 1 || cfg.Sizing.EdgeFullScale <= 0 {
		return nil, ErrInvalidSizing
	}

	switch cfg.StrategyType {
	case domain.StrategyTypeFollowWinners:
		return fromFollowWinnersConfig(cfg)
	case domain.StrategyTypeHighConviction:
		return fromHighConvictionConfig(cfg)
	case domain.StrategyTypeCopyAll:
		return NewCopyAllStrategy(cfg), nil
	default:
		return nil, ErrUnknownStrategyType
	}
}

// fromFollowWinnersConfig creates FollowWinnersStrategy from config.
func fromFollowWinnersConfig(cfg domain.StrategyConfig) (*FollowWinnersStrategy, error) {
	if cfg.MinWinRate == nil {
		return nil, ErrMissingMinWinRate
	}
	if cfg.MinResolvedTrades == nil {
		return nil, ErrMissingMinResolvedTrades
	}
	if cfg.MinEdgePct == nil {
		return nil, ErrMissingMinEdgePct
	}
	if cfg.MinConfidence == nil {
		return nil, ErrMissingMinConfidence
	}

	return NewFollowWinnersStrategy(
		cfg,
		*cfg.MinWinRate,
		*cfg.MinResolvedTrades,
		*cfg.MinEdgePct,
		*cfg.MinConfidence,
	), nil
}

// fromHighConvictionConfig creates HighConvictionStrategy from config.
func fromHighConvictionConfig(cfg domain.StrategyConfig) (*HighConvictionStrategy, error) {
	if cfg.MinCopiedSizeUSD == nil {
		return nil, ErrMissingMinCopiedSize
	}
	if cfg.MinEdgePct == nil {
		return nil, ErrMissingMinEdgePct
	}

	return NewHighConvictionStrategy(cfg, *cfg.MinCopiedSizeUSD, *cfg.MinEdgePct), nil
}
