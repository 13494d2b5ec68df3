package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"streakAPI/internal/store"
	"streakAPI/internal/types/streak"
)

var fixedNow = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestService(t *testing.T, mem *store.MemoryStore, opts ...func(*StreakServiceConfig)) *StreakService {
	t.Helper()

	cfg := StreakServiceConfig{
		Streaks: mem,
		Badges:  mem,
		Oracle:  mem,
		Counter: mem,
		Logger:  quietLogger(),
		Now:     func() time.Time { return fixedNow },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	svc, err := NewStreakService(cfg)
	require.NoError(t, err)
	return svc
}

func recordDays(t *testing.T, mem *store.MemoryStore, uid string, days ...string) {
	t.Helper()
	for _, day := range days {
		require.NoError(t, mem.RecordActivity(context.Background(), uid, day, "log"))
	}
}

// scriptedOracle answers from fn and counts calls per day.
type scriptedOracle struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(day string, call int) (bool, error)
}

func newScriptedOracle(fn func(day string, call int) (bool, error)) *scriptedOracle {
	return &scriptedOracle{calls: make(map[string]int), fn: fn}
}

func (o *scriptedOracle) HasActivity(ctx context.Context, uid string, day string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	o.mu.Lock()
	o.calls[day]++
	call := o.calls[day]
	o.mu.Unlock()
	return o.fn(day, call)
}

func (o *scriptedOracle) total() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, c := range o.calls {
		n += c
	}
	return n
}

// interferingStore lets a hook run before each PutStreak, simulating a
// writer that races the one under test.
type interferingStore struct {
	*store.MemoryStore
	mu     sync.Mutex
	puts   int
	before func(put int)
}

func (s *interferingStore) PutStreak(ctx context.Context, uid string, expectedVersion int64, st streak.Streak) error {
	s.mu.Lock()
	s.puts++
	put := s.puts
	s.mu.Unlock()

	if s.before != nil {
		s.before(put)
	}
	return s.MemoryStore.PutStreak(ctx, uid, expectedVersion, st)
}

var errBackendDown = errors.New("backend down")
