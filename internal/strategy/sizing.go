package strategy

import "polycopy-sim/internal/domain"

// Default sizing parameters, matching the production configuration.
const (
	DefaultPositionSizePct = 0.05
	DefaultMaxPositionUSD  = 100.0
	DefaultMinPositionUSD  = 1.0
	DefaultEdgeFullScale   = 0.25
)

// DefaultSizing returns the shared sizing defaults.
func DefaultSizing() domain.SizingConfig {
	return domain.SizingConfig{
		PositionSizePct: DefaultPositionSizePct,
		MaxPositionUSD:  DefaultMaxPositionUSD,
		MinPositionUSD:  DefaultMinPositionUSD,
		EdgeFullScale:   DefaultEdgeFullScale,
	}
}

// positionSize computes the USD size for an entry. Every strategy variant
// uses this function and nothing else; sizing parity across variants is a
// design invariant.
//
// Size is a fixed fraction of available capital scaled by the signal's edge
// score: multiplier 1x at zero edge, saturating at 2x once edge reaches
// EdgeFullScale. The result is capped by MaxPositionUSD and by available
// capital. Sizes below MinPositionUSD return 0 (nothing worth entering).
func positionSize(available, edge float64, cfg domain.SizingConfig) float64 {
	base := available * cfg.PositionSizePct

	scale := edge / cfg.EdgeFullScale
	if scale < 0 {
		scale = 0
	}
	if scale > 1 {
		scale = 1
	}
	size := base * (1 + scale)

	if cfg.MaxPositionUSD > 0 && size > cfg.MaxPositionUSD {
		size = cfg.MaxPositionUSD
	}
	if size > available {
		size = available
	}
	if size < cfg.MinPositionUSD {
		return 0
	}
	return size
}
