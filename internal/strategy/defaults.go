package strategy

import "polycopy-sim/internal/domain"

// Default entry-gate parameters for the standard lineup.
const (
	DefaultMinWinRate        = 0.55
	DefaultMinResolvedTrades = 30
	DefaultMinEdgePct        = 0.05
	DefaultMinCopiedSizeUSD  = 500.0
	DefaultMaxOpenPositions  = 10
)

// DefaultConfigs returns the standard three-strategy lineup: one instance
// per variant, all sharing the default sizing so performance differences
// come from entry criteria alone.
func DefaultConfigs() []domain.StrategyConfig {
	minWinRate := DefaultMinWinRate
	minResolvedTrades := DefaultMinResolvedTrades
	minEdgePct := DefaultMinEdgePct
	minConfidence := domain.ConfidenceMedium
	minCopiedSize := DefaultMinCopiedSizeUSD

	return []domain.StrategyConfig{
		{
			StrategyType:     domain.StrategyTypeCopyAll,
			Sizing:           DefaultSizing(),
			MaxOpenPositions: DefaultMaxOpenPositions,
		},
		{
			StrategyType:      domain.StrategyTypeFollowWinners,
			Sizing:            DefaultSizing(),
			MaxOpenPositions:  DefaultMaxOpenPositions,
			MinWinRate:        &minWinRate,
			MinResolvedTrades: &minResolvedTrades,
			MinEdgePct:        &minEdgePct,
			MinConfidence:     &minConfidence,
		},
		{
			StrategyType:     domain.StrategyTypeHighConviction,
			Sizing:           DefaultSizing(),
			MaxOpenPositions: DefaultMaxOpenPositions,
			MinEdgePct:       &minEdgePct,
			MinCopiedSizeUSD: &minCopiedSize,
		},
	}
}
