package domain

import "time"

// Outcome side constants for binary prediction markets.
const (
	OutcomeYes = "YES"
	OutcomeNo  = "NO"
)

// TradeSignal is a normalized external trade notification: a tracked trader
// took a position and the engine may copy it. Signals are ephemeral; only
// the positions they produce are persisted.
type TradeSignal struct {
	MarketID  string
	Outcome   string  // side the trader bought
	Price     float64 // quoted price in (0, 1)
	SizeUSD   float64 // size of the copied trader's own trade
	Timestamp time.Time

	// Scoring metadata a strategy may consult. Edge is conventionally the
	// trader's win rate minus the entry price.
	EdgeScore            *float64
	TraderWallet         string
	TraderWinRate        *float64
	TraderResolvedTrades *int
	Confidence           Confidence
}

// Edge returns the signal's edge score, or 0 when absent.
func (s *TradeSignal) Edge() float64 {
	if s.EdgeScore == nil {
		return 0
	}
	return *s.EdgeScore
}
