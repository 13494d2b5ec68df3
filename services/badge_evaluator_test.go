package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streakAPI/internal/achievement"
	"streakAPI/internal/store"
	"streakAPI/internal/types/streak"
)

func TestEvaluateAwardsOnceUnderConcurrency(t *testing.T) {
	mem := store.NewMemoryStore()
	svc := newTestService(t, mem)
	values := MetricValuesFromStreak(streak.Streak{CurrentStreak: 3, LongestStreak: 3, TotalLogs: 3})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		awarded []achievement.Badge
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Evaluator().Evaluate(context.Background(), "u1", values)
			assert.NoError(t, err)

			mu.Lock()
			awarded = append(awarded, result.Awarded...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, awarded, 1)
	assert.Equal(t, achievement.BadgeType("streak_3"), awarded[0].Type)
	assert.True(t, awarded[0].IsNew)

	stored, err := mem.ListBadges(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, achievement.BadgeType("streak_3"), stored[0].Type)
}

func TestEvaluateSkipsEarnedBadges(t *testing.T) {
	mem := store.NewMemoryStore()
	svc := newTestService(t, mem)
	values := MetricValuesFromStreak(streak.Streak{CurrentStreak: 8, LongestStreak: 8, TotalLogs: 8})

	first, err := svc.Evaluator().Evaluate(context.Background(), "u1", values)
	require.NoError(t, err)
	assert.Len(t, first.Awarded, 2)

	second, err := svc.Evaluator().Evaluate(context.Background(), "u1", values)
	require.NoError(t, err)
	assert.Empty(t, second.Awarded)
}

func TestEvaluateReportsProgress(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore())
	values := MetricValuesFromStreak(streak.Streak{CurrentStreak: 5, LongestStreak: 5, TotalLogs: 20})

	result, err := svc.Evaluator().Evaluate(context.Background(), "u1", values)
	require.NoError(t, err)
	require.Len(t, result.Awarded, 1)

	byType := map[achievement.BadgeType]achievement.Progress{}
	for _, p := range result.Progress {
		byType[p.Type] = p
	}
	assert.Equal(t, achievement.Progress{Type: "streak_7", Name: "Full Week", Metric: achievement.MetricCurrentStreak, Current: 5, Target: 7}, byType["streak_7"])
	assert.Equal(t, 20, byType["logs_50"].Current)
	assert.NotContains(t, byType, achievement.BadgeType("streak_3"))
	assert.NotContains(t, byType, achievement.BadgeType("body_scans_10"))
}

func TestProgressIsReadOnly(t *testing.T) {
	mem := store.NewMemoryStore()
	svc := newTestService(t, mem)
	values := MetricValuesFromStreak(streak.Streak{CurrentStreak: 30, LongestStreak: 30, TotalLogs: 30})

	progress, err := svc.Evaluator().Progress(context.Background(), "u1", values)
	require.NoError(t, err)
	assert.NotEmpty(t, progress)

	badges, err := mem.ListBadges(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, badges)
}

func TestEvaluateCustomTable(t *testing.T) {
	table, err := achievement.NewTable([]achievement.Definition{
		{Type: "best_5", Metric: achievement.MetricLongestStreak, Target: 5},
	})
	require.NoError(t, err)

	svc := newTestService(t, store.NewMemoryStore(), func(cfg *StreakServiceConfig) { cfg.Table = table })

	result, err := svc.Evaluator().Evaluate(context.Background(), "u1", MetricValuesFromStreak(streak.Streak{CurrentStreak: 0, LongestStreak: 6, TotalLogs: 6}))
	require.NoError(t, err)
	require.Len(t, result.Awarded, 1)
	assert.Equal(t, achievement.BadgeType("best_5"), result.Awarded[0].Type)
	assert.Equal(t, "best_5", result.Awarded[0].Name)
}

type failingBadgeStore struct {
	*store.MemoryStore
}

func (failingBadgeStore) ListBadges(context.Context, string) ([]achievement.Badge, error) {
	return nil, errBackendDown
}

func TestEvaluateStoreFailure(t *testing.T) {
	mem := store.NewMemoryStore()
	svc := newTestService(t, mem, func(cfg *StreakServiceConfig) { cfg.Badges = failingBadgeStore{mem} })

	_, err := svc.Evaluator().Evaluate(context.Background(), "u1", MetricValues{achievement.MetricCurrentStreak: 3})
	assert.ErrorIs(t, err, errBackendDown)
}
