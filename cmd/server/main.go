// Package main provides the simulation server that runs all components together:
// - Feed consumer (continuous): trade-signal and market-resolution websocket events
// - Tick scheduler (periodic): cooldown release + hourly snapshots for active runs
// - HTTP API: health, Prometheus metrics, run status, run reports
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"polycopy-sim/internal/config"
	"polycopy-sim/internal/domain"
	"polycopy-sim/internal/engine"
	"polycopy-sim/internal/feed"
	"polycopy-sim/internal/logger"
	"polycopy-sim/internal/observability"
	"polycopy-sim/internal/report"
	"polycopy-sim/internal/storage"
	chstore "polycopy-sim/internal/storage/clickhouse"
	"polycopy-sim/internal/storage/memory"
	"polycopy-sim/internal/storage/migrations"
	pgstore "polycopy-sim/internal/storage/postgres"
	"polycopy-sim/internal/strategy"
)

// Server holds all components of the simulation service.
type Server struct {
	cfg    config.Config
	stores *allStores

	engine  *engine.Engine
	reports *report.Generator
	feed    *feed.Client
	logger  *zap.Logger

	// State
	mu                  sync.Mutex
	started             time.Time
	lastTick            time.Time
	signalsConsumed     int
	resolutionsConsumed int
	ticksRun            int
}

// allStores holds all storage implementations.
type allStores struct {
	runStore       storage.RunStore
	portfolioStore storage.PortfolioStore
	positionStore  storage.PositionStore
	snapshotStore  storage.SnapshotStore
	equityStore    storage.EquityPointStore // nil when ClickHouse is not configured
}

func main() {
	configPath := flag.String("config", ".", "Directory containing config.yaml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Feed.URL == "" {
		log.Fatal("feed.url is required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to create stores", zap.Error(err))
	}
	defer cleanup()

	metrics := observability.NewMetrics("polycopy")

	eng := engine.New(engine.Options{
		RunStore:       stores.runStore,
		PortfolioStore: stores.portfolioStore,
		PositionStore:  stores.positionStore,
		SnapshotStore:  stores.snapshotStore,
		EquityStore:    stores.equityStore,
		Metrics:        metrics,
		Logger:         log.Named("engine"),
	})

	server := &Server{
		cfg:     cfg,
		stores:  stores,
		engine:  eng,
		reports: report.NewGenerator(stores.runStore, stores.portfolioStore, stores.snapshotStore),
		logger:  log,
		started: time.Now().UTC(),
	}

	if err := server.ensureRun(ctx); err != nil {
		log.Fatal("Failed to bootstrap run", zap.Error(err))
	}

	feedClient, err := feed.NewClient(ctx, cfg.Feed.URL, nil, log.Named("feed"))
	if err != nil {
		log.Fatal("Failed to connect to feed", zap.Error(err))
	}
	defer feedClient.Close()
	server.feed = feedClient

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("Received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			log.Warn("Received second signal, forcing immediate shutdown", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	go server.startHTTPServer(cfg.Server.Addr)

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("Server error", zap.Error(err))
	}

	log.Info("Shutdown complete")
}

// createStores creates all required stores. An empty database DSN selects
// in-memory storage; an empty clickhouse DSN disables the equity sink.
func createStores(ctx context.Context, cfg config.Config) (*allStores, func(), error) {
	if cfg.Database.DSN == "" {
		mem := memory.NewPortfolioStore()
		stores := &allStores{
			runStore:       memory.NewRunStore(),
			portfolioStore: mem,
			positionStore:  mem,
			snapshotStore:  memory.NewSnapshotStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	stores := &allStores{
		runStore:       pgstore.NewRunStore(pool),
		portfolioStore: pgstore.NewPortfolioStore(pool),
		positionStore:  pgstore.NewPositionStore(pool),
		snapshotStore:  pgstore.NewSnapshotStore(pool),
	}

	var chConn *chstore.Conn
	if cfg.Clickhouse.DSN != "" {
		chConn, err = migrations.RunClickhouseMigrations(ctx, cfg.Clickhouse.DSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		stores.equityStore = chstore.NewEquityPointStore(chConn)
	}

	cleanup := func() {
		if chConn != nil {
			chConn.Close()
		}
		pool.Close()
	}

	return stores, cleanup, nil
}

// ensureRun starts a default run when auto_start is set and no run is active.
func (s *Server) ensureRun(ctx context.Context) error {
	active, err := s.engine.ActiveRuns(ctx)
	if err != nil {
		return err
	}
	if len(active) > 0 {
		for _, run := range active {
			s.logger.Info("Resuming active run",
				zap.String("run_id", run.RunID),
				zap.Int("strategies", len(run.Strategies)))
		}
		return nil
	}
	if !s.cfg.Simulation.AutoStart {
		s.logger.Info("No active runs; waiting for one to be created")
		return nil
	}

	strategies, err := loadStrategies(s.cfg.Simulation.StrategiesFile)
	if err != nil {
		return fmt.Errorf("load strategies: %w", err)
	}

	run, err := s.engine.Create(ctx, engine.RunConfig{
		Mode:           domain.RunModeLive,
		InitialCapital: s.cfg.Simulation.InitialCapitalUSD,
		Duration:       time.Duration(s.cfg.Simulation.DurationHours) * time.Hour,
		SlippagePct:    s.cfg.Simulation.SlippagePct,
		Cooldown:       time.Duration(s.cfg.Simulation.CooldownHours) * time.Hour,
		Strategies:     strategies,
	})
	if err != nil {
		return err
	}

	s.logger.Info("Started run",
		zap.String("run_id", run.RunID),
		zap.Float64("initial_capital", run.InitialCapital),
		zap.Int("strategies", len(run.Strategies)))
	return nil
}

// loadStrategies reads strategy configs from a JSON file, falling back to
// the default three-strategy lineup when no file is configured.
func loadStrategies(path string) ([]domain.StrategyConfig, error) {
	if path == "" {
		return strategy.DefaultConfigs(), nil
	}

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

// Run starts the feed consumer and tick scheduler.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting simulation server")

	errCh := make(chan error, 2)

	go func() {
		err := s.consumeFeed(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("feed consumer: %w", err)
		}
	}()

	go func() {
		err := s.runTickScheduler(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("tick scheduler: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// consumeFeed dispatches feed events to every active run.
func (s *Server) consumeFeed(ctx context.Context) error {
	s.logger.Info("Starting feed consumer", zap.String("url", s.cfg.Feed.URL))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-s.feed.Events():
			if !ok {
				return errors.New("feed closed")
			}
			s.handleEvent(ctx, event)
		}
	}
}

// handleEvent applies one feed event to every active run. A failure on one
// run is logged and does not block the others.
func (s *Server) handleEvent(ctx context.Context, event feed.Event) {
	runs, err := s.engine.ActiveRuns(ctx)
	if err != nil {
		s.logger.Error("List active runs failed", zap.Error(err))
		return
	}

	switch event.Type {
	case feed.EventTypeTradeSignal:
		for _, run := range runs {
			rep, err := s.engine.ProcessSignal(ctx, run.RunID, event.Signal)
			if err != nil {
				s.logger.Error("Process signal failed",
					zap.String("run_id", run.RunID),
					zap.String("market_id", event.Signal.MarketID),
					zap.Error(err))
				continue
			}
			s.logger.Info("Signal processed",
				zap.String("run_id", run.RunID),
				zap.String("market_id", event.Signal.MarketID),
				zap.Int("entered", rep.Entered()),
				zap.Int("strategies", len(rep.Results)))
		}
		s.mu.Lock()
		s.signalsConsumed++
		s.mu.Unlock()

	case feed.EventTypeMarketResolution:
		for _, run := range runs {
			settled, err := s.engine.ResolveMarket(ctx, run.RunID, event.Resolution.MarketID, event.Resolution.WinningOutcome)
			if err != nil {
				s.logger.Error("Resolve market failed",
					zap.String("run_id", run.RunID),
					zap.String("market_id", event.Resolution.MarketID),
					zap.Error(err))
				continue
			}
			if settled > 0 {
				s.logger.Info("Market resolved",
					zap.String("run_id", run.RunID),
					zap.String("market_id", event.Resolution.MarketID),
					zap.Int("settled", settled))
			}
		}
		s.mu.Lock()
		s.resolutionsConsumed++
		s.mu.Unlock()
	}
}

// runTickScheduler advances every active run on the configured cadence.
func (s *Server) runTickScheduler(ctx context.Context) error {
	interval := time.Duration(s.cfg.Simulation.TickIntervalSec) * time.Second
	s.logger.Info("Starting tick scheduler", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tickAll(ctx)
		}
	}
}

// tickAll runs one tick over every active run.
func (s *Server) tickAll(ctx context.Context) {
	runs, err := s.engine.ActiveRuns(ctx)
	if err != nil {
		s.logger.Error("List active runs failed", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	for _, run := range runs {
		rep, err := s.engine.Tick(ctx, run.RunID, now)
		if err != nil {
			s.logger.Error("Tick failed", zap.String("run_id", run.RunID), zap.Error(err))
			continue
		}
		s.logger.Info("Tick completed",
			zap.String("run_id", run.RunID),
			zap.Int64("hour", rep.Hour),
			zap.Int("snapshots", rep.SnapshotsRecorded),
			zap.Bool("completed", rep.Completed))
	}

	s.mu.Lock()
	s.lastTick = now
	s.ticksRun++
	s.mu.Unlock()
}

// startHTTPServer starts the HTTP server for health/metrics/status/reports.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/runs/", s.handleRun)

	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("HTTP server error", zap.Error(err))
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status              string                 `json:"status"`
	Uptime              string                 `json:"uptime"`
	LastTick            time.Time              `json:"last_tick,omitempty"`
	TicksRun            int                    `json:"ticks_run"`
	SignalsConsumed     int                    `json:"signals_consumed"`
	ResolutionsConsumed int                    `json:"resolutions_consumed"`
	Runs                []*engine.StatusReport `json:"runs"`
}

// handleStatus returns server and per-run status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	runs, err := s.engine.ActiveRuns(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	resp := StatusResponse{
		Status:              "running",
		Uptime:              time.Since(s.started).String(),
		LastTick:            s.lastTick,
		TicksRun:            s.ticksRun,
		SignalsConsumed:     s.signalsConsumed,
		ResolutionsConsumed: s.resolutionsConsumed,
	}
	s.mu.Unlock()

	for _, run := range runs {
		runStatus, err := s.engine.Status(ctx, run.RunID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp.Runs = append(resp.Runs, runStatus)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleRun serves /runs/{id} (JSON status) and /runs/{id}/report (Markdown).
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	path := strings.TrimPrefix(r.URL.Path, "/runs/")
	runID, wantReport := strings.CutSuffix(path, "/report")
	if runID == "" {
		http.Error(w, "run id required", http.StatusBadRequest)
		return
	}

	if wantReport {
		rep, err := s.reports.Generate(ctx, runID)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(report.RenderMarkdown(rep)))
		return
	}

	status, err := s.engine.Status(ctx, runID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
