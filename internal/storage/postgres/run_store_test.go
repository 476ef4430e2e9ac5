package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polycopy-sim/internal/domain"
	"polycopy-sim/internal/storage"
)

func TestRunStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	run := &domain.SimulationRun{
		RunID:          "sim_20260115_120000_deadbeef",
		Mode:           domain.RunModeLive,
		Status:         domain.RunStatusActive,
		InitialCapital: 10000,
		Duration:       7 * 24 * time.Hour,
		SlippagePct:    0.02,
		Cooldown:       24 * time.Hour,
		Strategies: []domain.StrategyConfig{
			{
				StrategyType: domain.StrategyTypeFollowWinners,
				Sizing: domain.SizingConfig{
					PositionSizePct: 0.05,
					MaxPositionUSD:  100,
					MinPositionUSD:  1,
					EdgeFullScale:   0.25,
				},
				MinWinRate:        ptr(0.55),
				MinResolvedTrades: ptr(30),
				MinEdgePct:        ptr(0.05),
				MinConfidence:     ptr(domain.ConfidenceMedium),
			},
		},
		StartedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	err := store.Insert(ctx, run)
	require.NoError(t, err)

	retrieved, err := store.GetByID(ctx, run.RunID)
	require.NoError(t, err)

	assert.Equal(t, run.RunID, retrieved.RunID)
	assert.Equal(t, run.Mode, retrieved.Mode)
	assert.Equal(t, run.Status, retrieved.Status)
	assert.Equal(t, run.InitialCapital, retrieved.InitialCapital)
	assert.Equal(t, run.Duration, retrieved.Duration)
	assert.Equal(t, run.SlippagePct, retrieved.SlippagePct)
	assert.Equal(t, run.Cooldown, retrieved.Cooldown)
	assert.True(t, run.StartedAt.Equal(retrieved.StartedAt))
	assert.Nil(t, retrieved.EndedAt)

	// Strategy config round-trips through jsonb, pointer params included
	require.Len(t, retrieved.Strategies, 1)
	sc := retrieved.Strategies[0]
	assert.Equal(t, domain.StrategyTypeFollowWinners, sc.StrategyType)
	assert.Equal(t, 0.05, sc.Sizing.PositionSizePct)
	require.NotNil(t, sc.MinWinRate)
	assert.Equal(t, 0.55, *sc.MinWinRate)
	require.NotNil(t, sc.MinResolvedTrades)
	assert.Equal(t, 30, *sc.MinResolvedTrades)
	require.NotNil(t, sc.MinConfidence)
	assert.Equal(t, domain.ConfidenceMedium, *sc.MinConfidence)
}

func TestRunStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	run := seedRun(t, ctx, pool, "sim_dup")

	err := store.Insert(ctx, run)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRunStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	_, err := store.GetByID(ctx, "nonexistent-id")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_Update(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	run := seedRun(t, ctx, pool, "sim_update")

	endedAt := time.Now().UTC().Truncate(time.Microsecond)
	run.Status = domain.RunStatusCompleted
	run.EndedAt = &endedAt
	require.NoError(t, store.Update(ctx, run))

	retrieved, err := store.GetByID(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, retrieved.Status)
	require.NotNil(t, retrieved.EndedAt)
	assert.True(t, endedAt.Equal(*retrieved.EndedAt))

	// Updating a missing run reports not found
	missing := *run
	missing.RunID = "nonexistent-id"
	err = store.Update(ctx, &missing)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_ListActive(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	seedRun(t, ctx, pool, "sim_a")
	seedRun(t, ctx, pool, "sim_b")
	completed := seedRun(t, ctx, pool, "sim_c")

	endedAt := time.Now().UTC()
	completed.Status = domain.RunStatusCompleted
	completed.EndedAt = &endedAt
	require.NoError(t, store.Update(ctx, completed))

	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, r := range active {
		assert.Equal(t, domain.RunStatusActive, r.Status)
	}
}
