package postgres

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"polycopy-sim/internal/domain"
)

// setupTestDB creates a PostgreSQL container for testing and applies
// migrations. Returns a cleanup function that must be called after tests
// complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	runMigrations(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// runMigrations applies the SQL files from the migrations package directory.
// The migrations package itself is not imported to avoid an import cycle.
func runMigrations(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	projectRoot := findProjectRoot(t)
	migrationsDir := filepath.Join(projectRoot, "internal", "storage", "migrations", "postgres")

	entries, err := os.ReadDir(migrationsDir)
	require.NoError(t, err, "failed to read migrations directory")

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".sql" {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		sql, err := os.ReadFile(filepath.Join(migrationsDir, file))
		require.NoError(t, err, "failed to read migration file: %s", file)

		_, err = pool.Exec(ctx, string(sql))
		require.NoError(t, err, "failed to execute migration: %s", file)

		t.Logf("Applied migration: %s", file)
	}
}

// findProjectRoot walks up from current directory to find go.mod.
func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err, "failed to get working directory")

	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// seedRun inserts a run row so portfolio foreign keys hold.
func seedRun(t *testing.T, ctx context.Context, pool *Pool, runID string) *domain.SimulationRun {
	t.Helper()

	run := &domain.SimulationRun{
		RunID:          runID,
		Mode:           domain.RunModeLive,
		Status:         domain.RunStatusActive,
		InitialCapital: 10000,
		Duration:       7 * 24 * time.Hour,
		SlippagePct:    0.02,
		Cooldown:       24 * time.Hour,
		Strategies:     []domain.StrategyConfig{{StrategyType: domain.StrategyTypeCopyAll}},
		StartedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, NewRunStore(pool).Insert(ctx, run), "failed to seed run")
	return run
}

// seedPortfolio inserts a seeded portfolio under an existing run.
func seedPortfolio(t *testing.T, ctx context.Context, pool *Pool, runID, strategyID string) *domain.StrategyPortfolio {
	t.Helper()

	p := &domain.StrategyPortfolio{
		RunID:          runID,
		StrategyID:     strategyID,
		InitialCapital: 10000,
		Available:      10000,
		PeakValue:      10000,
	}
	require.NoError(t, NewPortfolioStore(pool).Insert(ctx, p), "failed to seed portfolio")
	return p
}

// ptr is a helper to create pointers to values.
func ptr[T any](v T) *T {
	return &v
}
