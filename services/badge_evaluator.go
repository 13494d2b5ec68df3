package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"streakAPI/internal/achievement"
	"streakAPI/internal/types/streak"
)

// MetricValues maps each badge metric to the user's current value.
type MetricValues map[achievement.Metric]int

func MetricValuesFromStreak(s streak.Streak) MetricValues {
	return MetricValues{
		achievement.MetricCurrentStreak: s.CurrentStreak,
		achievement.MetricLongestStreak: s.LongestStreak,
		achievement.MetricTotalLogs:     s.TotalLogs,
	}
}

type EvaluationResult struct {
	Awarded  []achievement.Badge
	Progress []achievement.Progress
}

// BadgeEvaluator awards threshold badges at most once per user and type.
type BadgeEvaluator struct {
	table   *achievement.Table
	badges  BadgeStore
	log     *logrus.Logger
	metrics *Metrics
	now     func() time.Time
}

// Evaluate awards every badge whose threshold is met and not yet held, and
// reports progress for the rest. Definitions whose metric is missing from
// values are skipped.
func (e *BadgeEvaluator) Evaluate(ctx context.Context, uid string, values MetricValues) (EvaluationResult, error) {
	earned, err := e.earnedTypes(ctx, uid)
	if err != nil {
		return EvaluationResult{}, err
	}

	var result EvaluationResult
	for _, def := range e.table.Definitions() {
		if earned[def.Type] {
			continue
		}
		value, ok := values[def.Metric]
		if !ok {
			e.log.WithFields(logrus.Fields{"uid": uid, "badge": def.Type, "metric": def.Metric}).Debug("metric unavailable, badge skipped")
			continue
		}

		if value < def.Target {
			result.Progress = append(result.Progress, progressOf(def, value))
			continue
		}

		badge, awarded, err := e.award(ctx, uid, def)
		if err != nil {
			return EvaluationResult{}, err
		}
		if awarded {
			result.Awarded = append(result.Awarded, badge)
		}
	}
	return result, nil
}

// Progress is the read-only view over unearned badges.
func (e *BadgeEvaluator) Progress(ctx context.Context, uid string, values MetricValues) ([]achievement.Progress, error) {
	earned, err := e.earnedTypes(ctx, uid)
	if err != nil {
		return nil, err
	}

	progress := []achievement.Progress{}
	for _, def := range e.table.Definitions() {
		if earned[def.Type] {
			continue
		}
		value, ok := values[def.Metric]
		if !ok {
			continue
		}
		progress = append(progress, progressOf(def, value))
	}
	return progress, nil
}

func (e *BadgeEvaluator) award(ctx context.Context, uid string, def achievement.Definition) (achievement.Badge, bool, error) {
	_, found, err := e.badges.GetBadge(ctx, uid, def.Type)
	if err != nil {
		return achievement.Badge{}, false, fmt.Errorf("failed to check badge %s: %w", def.Type, err)
	}
	if found {
		return achievement.Badge{}, false, nil
	}

	badge := achievement.Badge{
		ID:        uuid.New(),
		UID:       uid,
		Type:      def.Type,
		Name:      def.Name,
		AwardedAt: e.now(),
		IsNew:     true,
	}
	if err := e.badges.PutBadge(ctx, uid, badge); err != nil {
		if errors.Is(err, streak.ErrBadgeExists) {
			return achievement.Badge{}, false, nil
		}
		return achievement.Badge{}, false, fmt.Errorf("failed to award badge %s: %w", def.Type, err)
	}

	e.metrics.awarded(string(def.Type))
	e.log.WithFields(logrus.Fields{
		"uid":    uid,
		"badge":  def.Type,
		"metric": def.Metric,
		"target": def.Target,
	}).Info("badge awarded")
	return badge, true, nil
}

func (e *BadgeEvaluator) earnedTypes(ctx context.Context, uid string) (map[achievement.BadgeType]bool, error) {
	badges, err := e.badges.ListBadges(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	earned := make(map[achievement.BadgeType]bool, len(badges))
	for _, b := range badges {
		earned[b.Type] = true
	}
	return earned, nil
}

func progressOf(def achievement.Definition, value int) achievement.Progress {
	return achievement.Progress{
		Type:      def.Type,
		Name:      def.Name,
		Metric:    def.Metric,
		Current:   value,
		Target:    def.Target,
		Completed: value >= def.Target,
	}
}
