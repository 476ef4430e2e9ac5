// Package feed consumes the upstream trade-notification stream over
// WebSocket and decodes it into domain events.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"polycopy-sim/internal/domain"
)

// Event type discriminators on the wire.
const (
	EventTypeTradeSignal      = "trade_signal"
	EventTypeMarketResolution = "market_resolution"
)

// Decode errors
var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrMalformedEvent   = errors.New("malformed event")
)

// Event is one decoded feed message. Exactly one of Signal and Resolution
// is set, according to Type.
type Event struct {
	Type       string
	Signal     *domain.TradeSignal
	Resolution *Resolution
}

// Resolution is a market settlement notification.
type Resolution struct {
	MarketID       string
	WinningOutcome string
	ResolvedAt     time.Time
}

// envelope is the wire framing of every feed message.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// signalPayload is the wire form of a trade signal.
type signalPayload struct {
	MarketID             string   `json:"market_id"`
	Outcome              string   `json:"outcome"`
	Price                float64  `json:"price"`
	SizeUSD              float64  `json:"size_usd"`
	TimestampMs          int64    `json:"timestamp_ms"`
	EdgeScore            *float64 `json:"edge_score,omitempty"`
	TraderWallet         string   `json:"trader_wallet,omitempty"`
	TraderWinRate        *float64 `json:"trader_win_rate,omitempty"`
	TraderResolvedTrades *int     `json:"trader_resolved_trades,omitempty"`
	Confidence           string   `json:"confidence,omitempty"`
}

// resolutionPayload is the wire form of a market resolution.
type resolutionPayload struct {
	MarketID       string `json:"market_id"`
	WinningOutcome string `json:"winning_outcome"`
	ResolvedAtMs   int64  `json:"resolved_at_ms"`
}

// DecodeEvent parses one raw feed message.
func DecodeEvent(data []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch env.Type {
	case EventTypeTradeSignal:
		var p signalPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("%w: signal payload: %v", ErrMalformedEvent, err)
		}
		if p.MarketID == "" || p.TimestampMs == 0 {
			return nil, fmt.Errorf("%w: signal missing market_id or timestamp_ms", ErrMalformedEvent)
		}
		return &Event{
			Type: EventTypeTradeSignal,
			Signal: &domain.TradeSignal{
				MarketID:             p.MarketID,
				Outcome:              p.Outcome,
				Price:                p.Price,
				SizeUSD:              p.SizeUSD,
				Timestamp:            time.UnixMilli(p.TimestampMs).UTC(),
				EdgeScore:            p.EdgeScore,
				TraderWallet:         p.TraderWallet,
				TraderWinRate:        p.TraderWinRate,
				TraderResolvedTrades: p.TraderResolvedTrades,
				Confidence:           domain.Confidence(p.Confidence),
			},
		}, nil

	case EventTypeMarketResolution:
		var p resolutionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("%w: resolution payload: %v", ErrMalformedEvent, err)
		}
		if p.MarketID == "" || p.WinningOutcome == "" {
			return nil, fmt.Errorf("%w: resolution missing market_id or winning_outcome", ErrMalformedEvent)
		}
		return &Event{
			Type: EventTypeMarketResolution,
			Resolution: &Resolution{
				MarketID:       p.MarketID,
				WinningOutcome: p.WinningOutcome,
				ResolvedAt:     time.UnixMilli(p.ResolvedAtMs).UTC(),
			},
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}
}
