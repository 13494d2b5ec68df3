package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"streakAPI/internal/types/streak"
	"streakAPI/utils"
)

type ValidationOutcome string

const (
	// OutcomeUnchanged: nothing to reconcile.
	OutcomeUnchanged ValidationOutcome = "unchanged"
	// OutcomeAdvanced: today had activity the record did not count yet.
	OutcomeAdvanced ValidationOutcome = "advanced"
	// OutcomePreserved: no activity today, but the run is still alive.
	OutcomePreserved ValidationOutcome = "preserved"
	// OutcomeReset: the run is broken and current_streak is now 0.
	OutcomeReset ValidationOutcome = "reset"
)

type ValidationResult struct {
	Streak        streak.Streak
	Outcome       ValidationOutcome
	Transition    Transition
	ActivityToday bool
}

// StreakValidator reconciles a streak against the activity oracle when no
// log event is being processed.
type StreakValidator struct {
	oracle  ActivityOracle
	mutator *streakMutator
	log     *logrus.Logger
	metrics *Metrics
}

func (v *StreakValidator) Validate(ctx context.Context, uid string, today string) (ValidationResult, error) {
	if !utils.IsValidDay(today) {
		return ValidationResult{}, fmt.Errorf("invalid day %q", today)
	}
	yesterday, _ := utils.PreviousDay(today)

	var result ValidationResult
	next, reason, err := v.mutator.mutate(ctx, uid, func(ctx context.Context, prev streak.Streak, found bool) (streak.Streak, Transition, bool, error) {
		result = ValidationResult{}

		activeToday, err := v.hasActivity(ctx, uid, today)
		if err != nil {
			return prev, "", false, err
		}
		result.ActivityToday = activeToday

		if activeToday {
			if prev.LastLogDate == today && prev.CurrentStreak > 0 {
				result.Outcome = OutcomeUnchanged
				return prev, "", false, nil
			}
			next, t := v.mutator.calc.Next(prev, today, v.mutator.now())
			result.Outcome = OutcomeAdvanced
			return next, t, true, nil
		}

		activeYesterday, err := v.hasActivity(ctx, uid, yesterday)
		if err != nil {
			return prev, "", false, err
		}
		if activeYesterday {
			result.Outcome = OutcomePreserved
			return prev, "", false, nil
		}

		if prev.CurrentStreak == 0 {
			result.Outcome = OutcomeUnchanged
			return prev, "", false, nil
		}

		// Activity may have landed while we were deciding.
		activeToday, err = v.hasActivity(ctx, uid, today)
		if err != nil {
			return prev, "", false, err
		}
		if activeToday {
			result.ActivityToday = true
			result.Outcome = OutcomePreserved
			return prev, "", false, nil
		}

		next := prev
		next.CurrentStreak = 0
		next.StreakStartDate = ""
		next.LastUpdated = v.mutator.now()
		result.Outcome = OutcomeReset
		return next, TransitionReset, true, nil
	})
	if err != nil {
		return ValidationResult{}, err
	}

	result.Streak = next
	result.Transition = reason
	v.metrics.reconciled(result.Outcome)
	v.log.WithFields(logrus.Fields{
		"uid":     uid,
		"today":   today,
		"outcome": result.Outcome,
		"current": next.CurrentStreak,
	}).Debug("streak validated")
	return result, nil
}

func (v *StreakValidator) hasActivity(ctx context.Context, uid, day string) (bool, error) {
	ok, err := v.oracle.HasActivity(ctx, uid, day)
	if err != nil {
		v.metrics.oracleError()
		return false, fmt.Errorf("activity check for %s on %s: %w: %w", uid, day, streak.ErrOracleUnavailable, err)
	}
	return ok, nil
}
