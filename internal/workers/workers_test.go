package workers

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streakAPI/internal/store"
	"streakAPI/internal/types/streak"
	"streakAPI/services"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type stubReconciler struct {
	mu       sync.Mutex
	seen     map[string]string
	outcomes map[string]services.ValidationOutcome
	fail     map[string]bool
}

func (s *stubReconciler) Validate(_ context.Context, uid string, today string) (services.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[uid] = today
	if s.fail[uid] {
		return services.ValidationResult{}, errors.New("oracle down")
	}
	return services.ValidationResult{Outcome: s.outcomes[uid]}, nil
}

type listerFunc func(ctx context.Context) ([]string, error)

func (f listerFunc) ListActiveUIDs(ctx context.Context) ([]string, error) { return f(ctx) }

func TestRunOnceCountsOutcomes(t *testing.T) {
	lister := listerFunc(func(context.Context) ([]string, error) {
		return []string{"a", "b", "c", "d", "e"}, nil
	})
	rec := &stubReconciler{
		seen: map[string]string{},
		outcomes: map[string]services.ValidationOutcome{
			"a": services.OutcomeReset,
			"b": services.OutcomePreserved,
			"c": services.OutcomeAdvanced,
			"d": services.OutcomeUnchanged,
		},
		fail: map[string]bool{"e": true},
	}

	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	w := NewReconciliationWorker(lister, rec, loc, quietLogger())
	w.now = func() time.Time { return time.Date(2024, 1, 9, 20, 0, 0, 0, time.UTC) }
	w.concurrency = 2

	summary, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RunSummary{
		Today:     "2024-01-10",
		Checked:   5,
		Advanced:  1,
		Preserved: 1,
		Reset:     1,
		Unchanged: 1,
		Failed:    1,
	}, summary)
	assert.Len(t, rec.seen, 5)
	for _, day := range rec.seen {
		assert.Equal(t, "2024-01-10", day)
	}
}

func TestRunOnceListFailure(t *testing.T) {
	lister := listerFunc(func(context.Context) ([]string, error) {
		return nil, errors.New("db gone")
	})
	w := NewReconciliationWorker(lister, &stubReconciler{seen: map[string]string{}}, nil, quietLogger())

	_, err := w.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestRunOnceResetsBrokenStreaks(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.SetStreak(streak.Streak{UID: "idle", CurrentStreak: 4, LongestStreak: 4, LastLogDate: "2024-01-05", StreakStartDate: "2024-01-02", TotalLogs: 4})
	mem.SetStreak(streak.Streak{UID: "active", CurrentStreak: 2, LongestStreak: 2, LastLogDate: "2024-01-09", StreakStartDate: "2024-01-08", TotalLogs: 2})
	mem.SetStreak(streak.Streak{UID: "gone", CurrentStreak: 0, LongestStreak: 9, LastLogDate: "2023-06-01", TotalLogs: 9})
	require.NoError(t, mem.RecordActivity(context.Background(), "active", "2024-01-09", "log"))

	svc, err := services.NewStreakService(services.StreakServiceConfig{
		Streaks: mem,
		Badges:  mem,
		Oracle:  mem,
		Logger:  quietLogger(),
	})
	require.NoError(t, err)

	w := NewReconciliationWorker(mem, svc, time.UTC, quietLogger())
	w.now = func() time.Time { return time.Date(2024, 1, 10, 0, 15, 0, 0, time.UTC) }

	summary, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Reset)
	assert.Equal(t, 1, summary.Preserved)

	idle, _, _ := mem.GetStreak(context.Background(), "idle")
	assert.Equal(t, 0, idle.CurrentStreak)
	active, _, _ := mem.GetStreak(context.Background(), "active")
	assert.Equal(t, 2, active.CurrentStreak)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	w := NewReconciliationWorker(store.NewMemoryStore(), &stubReconciler{}, time.UTC, quietLogger())
	assert.Error(t, w.Start("not a schedule"))

	// Stop without a running cron is a no-op.
	w.Stop(context.Background())
}

func TestStartAndStop(t *testing.T) {
	w := NewReconciliationWorker(store.NewMemoryStore(), &stubReconciler{seen: map[string]string{}}, time.UTC, quietLogger())
	require.NoError(t, w.Start("15 0 * * *"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Stop(ctx)
}
