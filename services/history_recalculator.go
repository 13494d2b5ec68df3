package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"streakAPI/internal/types/streak"
	"streakAPI/utils"
)

const (
	// MaxLookbackDays bounds the backward walk.
	MaxLookbackDays = 365
	// DefaultRecalculateBelow is the current-streak value under which the
	// read path re-derives the streak from history.
	DefaultRecalculateBelow = 10
)

// HistoryRecalculator rebuilds the current run by walking the activity
// oracle backward from today.
type HistoryRecalculator struct {
	oracle  ActivityOracle
	mutator *streakMutator
	log     *logrus.Logger
	metrics *Metrics
}

func (h *HistoryRecalculator) Recalculate(ctx context.Context, uid string, today string) (streak.Streak, error) {
	if !utils.IsValidDay(today) {
		return streak.Streak{}, fmt.Errorf("invalid day %q", today)
	}

	next, _, err := h.mutator.mutate(ctx, uid, func(ctx context.Context, prev streak.Streak, found bool) (streak.Streak, Transition, bool, error) {
		count, err := h.consecutiveDays(ctx, uid, today)
		if err != nil {
			return prev, "", false, err
		}

		next := prev
		if count == 0 {
			next.CurrentStreak = 0
			next.StreakStartDate = ""
		} else {
			next.CurrentStreak = count
			next.LastLogDate = today
			next.StreakStartDate = startOfRun(today, count)
			next.LongestStreak = max(prev.LongestStreak, count)
			if next.TotalLogs < count {
				next.TotalLogs = count
			}
		}

		if next.SameState(prev) {
			return prev, "", false, nil
		}
		next.LastUpdated = h.mutator.now()
		return next, TransitionRecalculated, true, nil
	})
	if err != nil {
		return streak.Streak{}, err
	}
	return next, nil
}

// consecutiveDays counts the run of active days ending today.
func (h *HistoryRecalculator) consecutiveDays(ctx context.Context, uid, today string) (int, error) {
	day := today
	count := 0
	for count < MaxLookbackDays {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		ok, err := h.oracle.HasActivity(ctx, uid, day)
		if err != nil {
			h.metrics.oracleError()
			return 0, fmt.Errorf("activity check for %s on %s: %w: %w", uid, day, streak.ErrOracleUnavailable, err)
		}
		if !ok {
			break
		}
		count++

		day, err = utils.PreviousDay(day)
		if err != nil {
			return 0, err
		}
	}

	h.log.WithFields(logrus.Fields{
		"uid":   uid,
		"today": today,
		"days":  count,
	}).Debug("history walk finished")
	return count, nil
}
