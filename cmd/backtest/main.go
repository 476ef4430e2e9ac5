// Package main replays a recorded feed event log through the simulation
// engine against in-memory storage and prints the resulting run report.
// Event files are JSONL: one feed envelope per line, in chronological order.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"polycopy-sim/internal/domain"
	"polycopy-sim/internal/engine"
	"polycopy-sim/internal/feed"
	"polycopy-sim/internal/report"
	"polycopy-sim/internal/storage/memory"
	"polycopy-sim/internal/strategy"
)

func main() {
	// Parse flags
	eventsPath := flag.String("events", "", "Path to JSONL feed event log (required)")
	strategiesPath := flag.String("strategies", "", "Path to JSON strategy configs (default: standard lineup)")
	initialCapital := flag.Float64("capital", 10000, "Initial capital per strategy (USD)")
	durationHours := flag.Int("duration-hours", 168, "Run duration in hours")
	slippagePct := flag.Float64("slippage", 0.02, "Entry slippage fraction")
	cooldownHours := flag.Int("cooldown-hours", 24, "Cooldown duration in hours")

	// Output
	format := flag.String("format", "markdown", "Output format: markdown, csv, json")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	if *eventsPath == "" {
		logger.Fatal("--events is required")
	}
	if *format != "markdown" && *format != "csv" && *format != "json" {
		logger.Fatalf("Invalid format: %s. Must be markdown, csv, or json", *format)
	}

	events, err := loadEvents(*eventsPath)
	if err != nil {
		logger.Fatalf("Load events: %v", err)
	}
	if len(events) == 0 {
		logger.Fatal("Event log is empty")
	}

	strategies := strategy.DefaultConfigs()
	if *strategiesPath != "" {
		strategies, err = loadStrategies(*strategiesPath)
		if err != nil {
			logger.Fatalf("Load strategies: %v", err)
		}
	}

	ctx := context.Background()

	clock := &replayClock{now: eventTime(events[0])}

	mem := memory.NewPortfolioStore()
	runStore := memory.NewRunStore()
	snapshots := memory.NewSnapshotStore()

	eng := engine.New(engine.Options{
		RunStore:       runStore,
		PortfolioStore: mem,
		PositionStore:  mem,
		SnapshotStore:  snapshots,
		Now:            clock.Now,
	})

	run, err := eng.Create(ctx, engine.RunConfig{
		Mode:           domain.RunModeBacktest,
		InitialCapital: *initialCapital,
		Duration:       time.Duration(*durationHours) * time.Hour,
		SlippagePct:    *slippagePct,
		Cooldown:       time.Duration(*cooldownHours) * time.Hour,
		Strategies:     strategies,
		StartedAt:      clock.Now(),
	})
	if err != nil {
		logger.Fatalf("Create run: %v", err)
	}

	logger.Printf("Replaying %d events into run %s (%d strategies)", len(events), run.RunID, len(strategies))

	stats, err := replay(ctx, eng, run, events, clock)
	if err != nil {
		logger.Fatalf("Replay: %v", err)
	}
	logger.Printf("Replay done: %d signals (%d entries), %d resolutions (%d settled), %d ticks",
		stats.signals, stats.entries, stats.resolutions, stats.settled, stats.ticks)

	generator := report.NewGenerator(runStore, mem, snapshots).WithClock(clock.Now)
	rep, err := generator.Generate(ctx, run.RunID)
	if err != nil {
		logger.Fatalf("Generate report: %v", err)
	}

	switch *format {
	case "markdown":
		fmt.Print(report.RenderMarkdown(rep))
	case "csv":
		fmt.Print(report.RenderCSV(rep.Leaderboard))
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			logger.Fatalf("Encode report: %v", err)
		}
	}
}

// replayClock is the injected time source. Replay advances it to each
// event's timestamp so the engine sees simulated time, not wall clock.
type replayClock struct {
	now time.Time
}

func (c *replayClock) Now() time.Time { return c.now }

func (c *replayClock) advance(to time.Time) {
	if to.After(c.now) {
		c.now = to
	}
}

type replayStats struct {
	signals     int
	entries     int
	resolutions int
	settled     int
	ticks       int
}

// replay feeds events through the engine in order, emitting one tick per
// elapsed simulated hour so cooldown release and snapshots happen at the
// same cadence a live run would see.
func replay(ctx context.Context, eng *engine.Engine, run *domain.SimulationRun, events []feed.Event, clock *replayClock) (*replayStats, error) {
	stats := &replayStats{}
	tickedHour := int64(0)

	tickThrough := func(now time.Time) error {
		targetHour := int64(now.Sub(run.StartedAt) / time.Hour)
		maxHour := int64(run.Duration / time.Hour)
		if targetHour > maxHour {
			targetHour = maxHour
		}
		for h := tickedHour + 1; h <= targetHour; h++ {
			at := run.StartedAt.Add(time.Duration(h) * time.Hour)
			clock.advance(at)
			if _, err := eng.Tick(ctx, run.RunID, at); err != nil {
				return fmt.Errorf("tick hour %d: %w", h, err)
			}
			stats.ticks++
			tickedHour = h
		}
		return nil
	}

	endAt := run.StartedAt.Add(run.Duration)
	for _, event := range events {
		at := eventTime(event)
		if !at.Before(endAt) {
			// The run's window is over; the final tick below completes it.
			break
		}
		if err := tickThrough(at); err != nil {
			return nil, err
		}
		clock.advance(at)

		switch event.Type {
		case feed.EventTypeTradeSignal:
			rep, err := eng.ProcessSignal(ctx, run.RunID, event.Signal)
			if err != nil {
				return nil, fmt.Errorf("signal %s: %w", event.Signal.MarketID, err)
			}
			stats.signals++
			stats.entries += rep.Entered()

		case feed.EventTypeMarketResolution:
			n, err := eng.ResolveMarket(ctx, run.RunID, event.Resolution.MarketID, event.Resolution.WinningOutcome)
			if err != nil {
				return nil, fmt.Errorf("resolution %s: %w", event.Resolution.MarketID, err)
			}
			stats.resolutions++
			stats.settled += n
		}
	}

	// Drain the rest of the run so cooldowns mature and the run completes.
	if err := tickThrough(run.StartedAt.Add(run.Duration)); err != nil {
		return nil, err
	}

	return stats, nil
}

// eventTime returns the simulated timestamp an event carries.
func eventTime(e feed.Event) time.Time {
	switch e.Type {
	case feed.EventTypeTradeSignal:
		return e.Signal.Timestamp
	case feed.EventTypeMarketResolution:
		return e.Resolution.ResolvedAt
	}
	return time.Time{}
}

// loadEvents reads and decodes a JSONL feed event log, sorted by timestamp.
func loadEvents(path string) ([]feed.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []feed.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		event, err := feed.DecodeEvent(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, *event)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(events, func(i, j int) bool {
		return eventTime(events[i]).Before(eventTime(events[j]))
	})
	return events, nil
}

// loadStrategies reads strategy configs from a JSON file.
func loadStrategies(path string) ([]domain.StrategyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var configs []domain.StrategyConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return configs, nil
}
