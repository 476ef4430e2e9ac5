package domain

// Strategy type constants
const (
	StrategyTypeFollowWinners  = "FOLLOW_WINNERS"
	StrategyTypeHighConviction = "HIGH_CONVICTION"
	StrategyTypeCopyAll        = "COPY_ALL"
)

// Confidence tiers for a copied trader's statistics, ordered strongest
// first. Tier filters are inclusive: requiring MEDIUM admits HIGH.
type Confidence string

const (
	ConfidenceHigh         Confidence = "HIGH"
	ConfidenceMedium       Confidence = "MEDIUM"
	ConfidenceLow          Confidence = "LOW"
	ConfidenceInsufficient Confidence = "INSUFFICIENT"
)

// rank maps tiers to a comparable order; stronger tiers rank lower.
var confidenceRank = map[Confidence]int{
	ConfidenceHigh:         0,
	ConfidenceMedium:       1,
	ConfidenceLow:          2,
	ConfidenceInsufficient: 3,
}

// AtLeast reports whether c is the same tier as min or stronger.
func (c Confidence) AtLeast(min Confidence) bool {
	cr, ok := confidenceRank[c]
	if !ok {
		return false
	}
	mr, ok := confidenceRank[min]
	if !ok {
		return false
	}
	return cr <= mr
}

// SizingConfig holds the sizing parameters every strategy shares. Sizing is
// edge-scaled and common across variants so that performance differences
// reflect entry criteria, not sizing differences.
type SizingConfig struct {
	PositionSizePct float64 // fraction of available capital per entry
	MaxPositionUSD  float64 // hard per-position cap
	MinPositionUSD  float64 // entries below this are skipped
	EdgeFullScale   float64 // edge score at which the size multiplier saturates at 2x
}

// StrategyConfig configures one strategy within a run.
type StrategyConfig struct {
	StrategyType string // FOLLOW_WINNERS | HIGH_CONVICTION | COPY_ALL

	Sizing SizingConfig

	// Common gates
	MaxOpenPositions int // 0 = unlimited
	MaxTradesPerDay  int // 0 = unlimited

	// FOLLOW_WINNERS parameters
	MinWinRate        *float64
	MinResolvedTrades *int
	MinEdgePct        *float64
	MinConfidence     *Confidence

	// HIGH_CONVICTION parameters
	MinCopiedSizeUSD *float64
}

// ID returns the strategy identifier used as the portfolio key. Parameters
// are deliberately excluded: a run configures at most one instance per type.
func (c StrategyConfig) ID() string {
	return c.StrategyType
}
