// Package strategy implements the entry-decision layer. Each variant is one
// Evaluator implementation; all variants share the same gate order and the
// same edge-scaled sizing function, so that performance differences between
// strategies reflect entry-criteria quality rather than sizing differences.
package strategy

import (
	"context"
	"errors"

	"polycopy-sim/internal/domain"
)

// Skip reason codes
const (
	SkipInsufficientCapital = "INSUFFICIENT_CAPITAL"
	SkipMaxOpenPositions    = "MAX_OPEN_POSITIONS"
	SkipMarketAlreadyHeld   = "MARKET_ALREADY_HELD"
	SkipDailyTradeLimit     = "DAILY_TRADE_LIMIT"
	SkipLowWinRate          = "LOW_WIN_RATE"
	SkipThinHistory         = "THIN_HISTORY"
	SkipLowEdge             = "LOW_EDGE"
	SkipLowConfidence       = "LOW_CONFIDENCE"
	SkipSmallCopiedTrade    = "SMALL_COPIED_TRADE"
)

// Input validation errors
var (
	ErrMissingMarketID = errors.New("signal missing market id")
	ErrInvalidOutcome  = errors.New("signal outcome must be YES or NO")
	ErrInvalidPrice    = errors.New("signal price must be in (0, 1)")
)

// Evaluator decides whether a portfolio enters a position on a signal.
type Evaluator interface {
	// Evaluate returns an enter decision with a position size, or a skip
	// with a reason. Skips are normal outcomes, not errors.
	Evaluate(ctx context.Context, input *Input) (*Decision, error)

	// ID returns the strategy identifier (the portfolio key).
	ID() string
}

// Input holds everything an evaluation may consult. The portfolio state is
// read-only here; applying an accepted entry is the ledger's job.
type Input struct {
	Signal *domain.TradeSignal
	State  *domain.PortfolioState
	Run    *domain.SimulationRun
}

// Validate checks the signal at the package boundary.
func (in *Input) Validate() error {
	if in.Signal.MarketID == "" {
		return ErrMissingMarketID
	}
	if in.Signal.Outcome != domain.OutcomeYes && in.Signal.Outcome != domain.OutcomeNo {
		return ErrInvalidOutcome
	}
	if in.Signal.Price <= 0 || in.Signal.Price >= 1 {
		return ErrInvalidPrice
	}
	return nil
}

// Decision is the outcome of one evaluation.
type Decision struct {
	Enter      bool
	SkipReason string  // set when Enter is false
	SizeUSD    float64 // set when Enter is true
}

func enter(size float64) *Decision {
	return &Decision{Enter: true, SizeUSD: size}
}

func skip(reason string) *Decision {
	return &Decision{SkipReason: reason}
}
