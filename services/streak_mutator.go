package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"streakAPI/internal/types/streak"
)

const DefaultMaxAttempts = 3

// mutation computes the next record from a freshly read one. Returning
// write=false leaves the store untouched.
type mutation func(ctx context.Context, prev streak.Streak, found bool) (next streak.Streak, reason Transition, write bool, err error)

// streakMutator runs read-modify-write cycles against a StreakStore. A
// conflicting write reruns the whole mutation from a fresh read.
type streakMutator struct {
	store       StreakStore
	calc        *StreakCalculator
	log         *logrus.Logger
	metrics     *Metrics
	maxAttempts int
	now         func() time.Time
}

func (m *streakMutator) load(ctx context.Context, uid string) (streak.Streak, bool, error) {
	s, found, err := m.store.GetStreak(ctx, uid)
	if err != nil {
		return streak.Streak{}, false, fmt.Errorf("failed to load streak: %w", err)
	}
	if !found {
		s = streak.Streak{}
	}
	s.UID = uid

	normalized, nerr := m.calc.Normalize(s)
	if nerr != nil {
		m.metrics.corrupt()
		m.log.WithFields(logrus.Fields{
			"uid":     uid,
			"version": s.Version,
		}).WithError(nerr).Warn("normalized corrupt streak record")
	}
	return normalized, found, nil
}

func (m *streakMutator) mutate(ctx context.Context, uid string, fn mutation) (streak.Streak, Transition, error) {
	attempts := m.maxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return streak.Streak{}, "", err
		}

		prev, found, err := m.load(ctx, uid)
		if err != nil {
			return streak.Streak{}, "", err
		}

		next, reason, write, err := fn(ctx, prev, found)
		if err != nil {
			return streak.Streak{}, "", err
		}
		if !write {
			return prev, reason, nil
		}

		next.UID = uid
		next.Version = prev.Version
		err = m.store.PutStreak(ctx, uid, prev.Version, next)
		if err == nil {
			next.Version = prev.Version + 1
			m.metrics.transition(reason)
			m.logTransition(prev, next, reason)
			return next, reason, nil
		}

		if !errors.Is(err, streak.ErrStoreConflict) {
			return streak.Streak{}, "", fmt.Errorf("failed to save streak: %w", err)
		}

		m.metrics.conflict()
		if attempt >= attempts {
			return streak.Streak{}, "", fmt.Errorf("streak update for %s gave up after %d attempts: %w", uid, attempts, err)
		}
		m.log.WithFields(logrus.Fields{
			"uid":     uid,
			"attempt": attempt,
		}).Debug("streak write conflict, retrying")
	}
}

func (m *streakMutator) logTransition(prev, next streak.Streak, reason Transition) {
	m.log.WithFields(logrus.Fields{
		"uid":           next.UID,
		"reason":        reason,
		"old_current":   prev.CurrentStreak,
		"new_current":   next.CurrentStreak,
		"old_longest":   prev.LongestStreak,
		"new_longest":   next.LongestStreak,
		"total_logs":    next.TotalLogs,
		"last_log_date": next.LastLogDate,
	}).Info("streak transition")
}
