package strategy

import (
	"errors"
	"testing"

	"polycopy-sim/internal/domain"
)

func floatPtr(f float64) *float64          { return &f }
func intPtr(i int) *int                    { return &i }
func confPtr(c domain.Confidence) *domain.Confidence { return &c }

func validFollowWinnersConfig() domain.StrategyConfig {
	return domain.StrategyConfig{
		StrategyType:      domain.StrategyTypeFollowWinners,
		Sizing:            DefaultSizing(),
		MinWinRate:        floatPtr(0.55),
		MinResolvedTrades: intPtr(30),
		MinEdgePct:        floatPtr(0.05),
		MinConfidence:     confPtr(domain.ConfidenceMedium),
	}
}

func TestFromConfig_FollowWinners(t *testing.T) {
	ev, err := FromConfig(validFollowWinnersConfig())
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	fw, ok := ev.(*FollowWinnersStrategy)
	if !ok {
		t.Fatalf("expected *FollowWinnersStrategy, got %T", ev)
	}
	if fw.MinWinRate != 0.55 || fw.MinResolvedTrades != 30 {
		t.Errorf("params not carried over: %+v", fw)
	}
	if ev.ID() != domain.StrategyTypeFollowWinners {
		t.Errorf("ID: got %s", ev.ID())
	}
}

func TestFromConfig_FollowWinners_MissingParams(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.StrategyConfig)
		want   error
	}{
		{"win rate", func(c *domain.StrategyConfig) { c.MinWinRate = nil }, ErrMissingMinWinRate},
		{"resolved trades", func(c *domain.StrategyConfig) { c.MinResolvedTrades = nil }, ErrMissingMinResolvedTrades},
		{"edge", func(c *domain.StrategyConfig) { c.MinEdgePct = nil }, ErrMissingMinEdgePct},
		{"confidence", func(c *domain.StrategyConfig) { c.MinConfidence = nil }, ErrMissingMinConfidence},
	}

	for _, tc := range cases {
		cfg := validFollowWinnersConfig()
		tc.mutate(&cfg)
		_, err := FromConfig(cfg)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestFromConfig_HighConviction(t *testing.T) {
	cfg := domain.StrategyConfig{
		StrategyType:     domain.StrategyTypeHighConviction,
		Sizing:           DefaultSizing(),
		MinCopiedSizeUSD: floatPtr(500),
		MinEdgePct:       floatPtr(0.05),
	}

	ev, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if _, ok := ev.(*HighConvictionStrategy); !ok {
		t.Fatalf("expected *HighConvictionStrategy, got %T", ev)
	}

	cfg.MinCopiedSizeUSD = nil
	if _, err := FromConfig(cfg); !errors.Is(err, ErrMissingMinCopiedSize) {
		t.Errorf("expected ErrMissingMinCopiedSize, got %v", err)
	}
}

func TestFromConfig_CopyAll(t *testing.T) {
	ev, err := FromConfig(domain.StrategyConfig{
		StrategyType: domain.StrategyTypeCopyAll,
		Sizing:       DefaultSizing(),
	})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if ev.ID() != domain.StrategyTypeCopyAll {
		t.Errorf("ID: got %s", ev.ID())
	}
}

func TestFromConfig_UnknownType(t *testing.T) {
	_, err := FromConfig(domain.StrategyConfig{StrategyType: "MARTINGALE", Sizing: DefaultSizing()})
	if !errors.Is(err, ErrUnknownStrategyType) {
		t.Errorf("expected ErrUnknownStrategyType, got %v", err)
	}
}

func TestFromConfig_InvalidSizing(t *testing.T) {
	cfg := validFollowWinnersConfig()
	cfg.Sizing.PositionSizePct = 0

	if _, err := FromConfig(cfg); !errors.Is(err, ErrInvalidSizing) {
		t.Errorf("expected ErrInvalidSizing, got %v", err)
	}
}
