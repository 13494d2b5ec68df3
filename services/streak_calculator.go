package services

import (
	"fmt"
	"strings"
	"time"

	"streakAPI/internal/types/streak"
	"streakAPI/utils"
)

// Transition names why a streak record changed.
type Transition string

const (
	TransitionFirstLog          Transition = "first_log"
	TransitionSameDay           Transition = "same_day"
	TransitionSameDayRepair     Transition = "same_day_repair"
	TransitionConsecutive       Transition = "consecutive"
	TransitionConsecutiveRepair Transition = "consecutive_repair"
	TransitionGap               Transition = "gap"
	TransitionReset             Transition = "reset"
	TransitionRecalculated      Transition = "recalculated"
	TransitionStaleLog          Transition = "stale_log"
)

// RepairEstimateCap bounds the run length guessed by the consecutive-day
// repair branch.
const RepairEstimateCap = 30

// CorruptStateError reports the invariants a stored record violated before
// it was normalized.
type CorruptStateError struct {
	UID        string
	Violations []string
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt streak state for %s: %s", e.UID, strings.Join(e.Violations, "; "))
}

func (e *CorruptStateError) Unwrap() error {
	return streak.ErrCorruptState
}

// StreakCalculator computes the next Streak from the previous one and a log
// day. It never reads the clock; now only stamps LastUpdated.
type StreakCalculator struct{}

func NewStreakCalculator() *StreakCalculator {
	return &StreakCalculator{}
}

// Normalize returns s repaired to a state satisfying every invariant. When
// a repair was needed the error is a *CorruptStateError and the returned
// record is the one to continue with.
func (c *StreakCalculator) Normalize(s streak.Streak) (streak.Streak, error) {
	violations := s.Violations()
	if len(violations) == 0 {
		return s, nil
	}

	if s.CurrentStreak < 0 {
		s.CurrentStreak = 0
	}
	if s.LongestStreak < 0 {
		s.LongestStreak = 0
	}
	if s.TotalLogs < 0 {
		s.TotalLogs = 0
	}
	if s.CurrentStreak > 0 && (s.TotalLogs == 0 || s.LastLogDate == "") {
		s.CurrentStreak = 0
		s.StreakStartDate = ""
	}
	if s.LongestStreak < s.CurrentStreak {
		s.LongestStreak = s.CurrentStreak
	}

	return s, &CorruptStateError{UID: s.UID, Violations: violations}
}

// Next applies a qualifying log on logDate to prev.
func (c *StreakCalculator) Next(prev streak.Streak, logDate string, now time.Time) (streak.Streak, Transition) {
	prev, _ = c.Normalize(prev)

	next := prev
	next.LastUpdated = now

	if prev.TotalLogs == 0 {
		next.CurrentStreak = 1
		next.LongestStreak = max(prev.LongestStreak, 1)
		next.LastLogDate = logDate
		next.StreakStartDate = logDate
		next.TotalLogs = 1
		return next, TransitionFirstLog
	}

	if prev.LastLogDate == logDate {
		if prev.CurrentStreak == 0 {
			return c.repairSameDay(next, logDate), TransitionSameDayRepair
		}
		return next, TransitionSameDay
	}

	if yesterday, err := utils.PreviousDay(logDate); err == nil && prev.LastLogDate == yesterday {
		if prev.CurrentStreak == 0 {
			return c.repairContinuation(next, logDate), TransitionConsecutiveRepair
		}
		next.CurrentStreak = prev.CurrentStreak + 1
		next.LongestStreak = max(prev.LongestStreak, next.CurrentStreak)
		next.TotalLogs = prev.TotalLogs + 1
		next.LastLogDate = logDate
		if next.StreakStartDate == "" {
			next.StreakStartDate = startOfRun(logDate, next.CurrentStreak)
		}
		return next, TransitionConsecutive
	}

	next.CurrentStreak = 1
	next.LongestStreak = max(prev.LongestStreak, 1)
	next.TotalLogs = prev.TotalLogs + 1
	next.LastLogDate = logDate
	next.StreakStartDate = logDate
	return next, TransitionGap
}

// repairSameDay handles a record already stamped with today but left at 0.
// Today's activity is confirmed, so the run is at least today.
func (c *StreakCalculator) repairSameDay(next streak.Streak, logDate string) streak.Streak {
	next.CurrentStreak = 1
	next.LongestStreak = max(next.LongestStreak, 1)
	next.StreakStartDate = logDate
	return next
}

// repairContinuation is a heuristic: yesterday was logged but the counter
// reads 0 even though history exists. The lost run length is estimated from
// TotalLogs, capped at RepairEstimateCap, and continued rather than
// restarted at 1.
func (c *StreakCalculator) repairContinuation(next streak.Streak, logDate string) streak.Streak {
	estimate := min(next.TotalLogs, RepairEstimateCap)
	next.CurrentStreak = max(estimate, 1) + 1
	next.LongestStreak = max(next.LongestStreak, next.CurrentStreak)
	next.TotalLogs++
	next.LastLogDate = logDate
	if next.StreakStartDate == "" {
		next.StreakStartDate = startOfRun(logDate, next.CurrentStreak)
	}
	return next
}

func startOfRun(lastDay string, length int) string {
	start, err := utils.AddDays(lastDay, -(length - 1))
	if err != nil {
		return lastDay
	}
	return start
}
