package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"streakAPI/internal/achievement"
	"streakAPI/internal/types/calendar"
	"streakAPI/internal/types/streak"
	"streakAPI/utils"
)

const DefaultCacheSize = 10000

type StreakServiceConfig struct {
	Streaks StreakStore
	Badges  BadgeStore
	Oracle  ActivityOracle
	// Counter is optional; without it badges on activity-count metrics are
	// never evaluated.
	Counter ActivityCounter
	// Days is optional; Stats falls back to per-day oracle queries.
	Days    ActiveDayCounter
	Table   *achievement.Table

	Logger  *logrus.Logger
	Metrics *Metrics

	MaxAttempts      int
	RecalculateBelow int
	CacheSize        int
	Now              func() time.Time
}

// StreakService wires the calculator, validator, recalculator and badge
// evaluator over one set of stores. Build it once and share it.
type StreakService struct {
	calculator   *StreakCalculator
	validator    *StreakValidator
	recalculator *HistoryRecalculator
	evaluator    *BadgeEvaluator
	mutator      *streakMutator

	streaks StreakStore
	badges  BadgeStore
	oracle  ActivityOracle
	counter ActivityCounter
	days    ActiveDayCounter
	table   *achievement.Table

	lastKnownGood    *lru.Cache
	recalculateBelow int
	log              *logrus.Logger
}

type StreakUpdate struct {
	Streak     streak.Streak       `json:"streak"`
	Transition Transition          `json:"transition,omitempty"`
	Awarded    []achievement.Badge `json:"awarded_badges"`
}

type RefreshResult struct {
	Summary streak.Summary      `json:"summary"`
	Awarded []achievement.Badge `json:"awarded_badges"`
}

func NewStreakService(cfg StreakServiceConfig) (*StreakService, error) {
	if cfg.Streaks == nil || cfg.Badges == nil || cfg.Oracle == nil {
		return nil, fmt.Errorf("streak service needs a streak store, a badge store and an activity oracle")
	}
	if cfg.Table == nil {
		table, err := achievement.NewTable(achievement.DefaultDefinitions())
		if err != nil {
			return nil, err
		}
		cfg.Table = table
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RecalculateBelow <= 0 {
		cfg.RecalculateBelow = DefaultRecalculateBelow
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}

	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create streak cache: %w", err)
	}

	calc := NewStreakCalculator()
	mutator := &streakMutator{
		store:       cfg.Streaks,
		calc:        calc,
		log:         cfg.Logger,
		metrics:     cfg.Metrics,
		maxAttempts: cfg.MaxAttempts,
		now:         cfg.Now,
	}

	return &StreakService{
		calculator: calc,
		validator: &StreakValidator{
			oracle:  cfg.Oracle,
			mutator: mutator,
			log:     cfg.Logger,
			metrics: cfg.Metrics,
		},
		recalculator: &HistoryRecalculator{
			oracle:  cfg.Oracle,
			mutator: mutator,
			log:     cfg.Logger,
			metrics: cfg.Metrics,
		},
		evaluator: &BadgeEvaluator{
			table:   cfg.Table,
			badges:  cfg.Badges,
			log:     cfg.Logger,
			metrics: cfg.Metrics,
			now:     cfg.Now,
		},
		mutator:          mutator,
		streaks:          cfg.Streaks,
		badges:           cfg.Badges,
		oracle:           cfg.Oracle,
		counter:          cfg.Counter,
		days:             cfg.Days,
		table:            cfg.Table,
		lastKnownGood:    cache,
		recalculateBelow: cfg.RecalculateBelow,
		log:              cfg.Logger,
	}, nil
}

func (s *StreakService) Validator() *StreakValidator { return s.validator }

func (s *StreakService) Recalculator() *HistoryRecalculator { return s.recalculator }

func (s *StreakService) Evaluator() *BadgeEvaluator { return s.evaluator }

// LogActivity applies a qualifying log on logDate and awards any badge the
// new streak unlocks. Re-logging the same day is harmless, and so is a log
// dated before the stored LastLogDate: it only advances LastUpdated.
func (s *StreakService) LogActivity(ctx context.Context, uid string, logDate string) (*StreakUpdate, error) {
	if uid == "" {
		return nil, fmt.Errorf("uid is required")
	}
	if !utils.IsValidDay(logDate) {
		return nil, fmt.Errorf("invalid log date %q", logDate)
	}

	next, reason, err := s.mutator.mutate(ctx, uid, func(_ context.Context, prev streak.Streak, _ bool) (streak.Streak, Transition, bool, error) {
		if prev.LastLogDate != "" && logDate < prev.LastLogDate {
			prev.LastUpdated = s.mutator.now()
			return prev, TransitionStaleLog, true, nil
		}
		next, t := s.calculator.Next(prev, logDate, s.mutator.now())
		return next, t, true, nil
	})
	if err != nil {
		return nil, err
	}
	s.remember(next)

	update := &StreakUpdate{Streak: next, Transition: reason}
	update.Awarded, err = s.evaluate(ctx, next)
	if err != nil {
		// The streak is saved; badges catch up on the next log or read.
		s.log.WithFields(logrus.Fields{
			"uid":    uid,
			"streak": next.CurrentStreak,
		}).WithError(err).Error("badge evaluation failed after streak update")
	}
	return update, nil
}

// Refresh is the read path: validate against today's activity, re-derive
// low streaks from history, then evaluate badges.
func (s *StreakService) Refresh(ctx context.Context, uid string, today string) (*RefreshResult, error) {
	result, err := s.validator.Validate(ctx, uid, today)
	if err != nil {
		return nil, err
	}

	current := result.Streak
	recalculated := false
	if result.ActivityToday && result.Outcome != OutcomePreserved && current.CurrentStreak < s.recalculateBelow {
		current, err = s.recalculator.Recalculate(ctx, uid, today)
		if err != nil {
			return nil, err
		}
		recalculated = true
	}
	s.remember(current)

	awarded, err := s.evaluate(ctx, current)
	if err != nil {
		return nil, err
	}

	return &RefreshResult{
		Summary: streak.Summary{
			Streak:         current,
			LoggedToday:    result.ActivityToday,
			Recalculated:   recalculated,
			ReconcileState: string(result.Outcome),
		},
		Awarded: awarded,
	}, nil
}

// Validate runs only the validator, for background reconciliation.
func (s *StreakService) Validate(ctx context.Context, uid string, today string) (ValidationResult, error) {
	result, err := s.validator.Validate(ctx, uid, today)
	if err != nil {
		return ValidationResult{}, err
	}
	s.remember(result.Streak)
	return result, nil
}

// Recalculate forces a history walk regardless of the current value.
func (s *StreakService) Recalculate(ctx context.Context, uid string, today string) (*StreakUpdate, error) {
	next, err := s.recalculator.Recalculate(ctx, uid, today)
	if err != nil {
		return nil, err
	}
	s.remember(next)

	awarded, err := s.evaluate(ctx, next)
	if err != nil {
		return nil, err
	}
	return &StreakUpdate{Streak: next, Transition: TransitionRecalculated, Awarded: awarded}, nil
}

// Achievements lists earned badges and the progress of the rest without
// mutating anything.
func (s *StreakService) Achievements(ctx context.Context, uid string) (*achievement.AchievementsResponse, error) {
	current, _, err := s.streaks.GetStreak(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to load streak: %w", err)
	}
	current.UID = uid
	current, _ = s.calculator.Normalize(current)

	badges, err := s.badges.ListBadges(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}

	values, err := s.metricValues(ctx, current)
	if err != nil {
		return nil, err
	}
	progress, err := s.evaluator.Progress(ctx, uid, values)
	if err != nil {
		return nil, err
	}

	if badges == nil {
		badges = []achievement.Badge{}
	}
	return &achievement.AchievementsResponse{Badges: badges, Progress: progress}, nil
}

func (s *StreakService) MarkBadgeSeen(ctx context.Context, uid string, badgeType achievement.BadgeType) error {
	if _, ok := s.table.Lookup(badgeType); !ok {
		return fmt.Errorf("unknown badge %s: %w", badgeType, streak.ErrNotFound)
	}
	if err := s.badges.MarkBadgeSeen(ctx, uid, badgeType); err != nil {
		return fmt.Errorf("failed to mark badge %s seen: %w", badgeType, err)
	}
	return nil
}

// Calendar reports per-day presence for one month, marking the days of the
// run that ends on the stored LastLogDate.
func (s *StreakService) Calendar(ctx context.Context, uid string, year int, month int, today string) (*calendar.CalendarResponse, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month %d", month)
	}

	current, _, err := s.streaks.GetStreak(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to load streak: %w", err)
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	resp := &calendar.CalendarResponse{Year: year, Month: month, Days: []*calendar.CalendarDay{}}
	for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
		day := d.Format(utils.DayLayout)
		if day > today {
			break
		}
		active, err := s.oracle.HasActivity(ctx, uid, day)
		if err != nil {
			return nil, fmt.Errorf("activity check for %s on %s: %w: %w", uid, day, streak.ErrOracleUnavailable, err)
		}
		inStreak := current.CurrentStreak > 0 &&
			current.StreakStartDate != "" &&
			day >= current.StreakStartDate &&
			day <= current.LastLogDate
		resp.Days = append(resp.Days, &calendar.CalendarDay{
			Date:     day,
			Active:   active,
			IsToday:  day == today,
			InStreak: inStreak,
		})
	}
	return resp, nil
}

// LastKnownGood returns the most recent streak this process computed or
// persisted for uid.
func (s *StreakService) LastKnownGood(uid string) (streak.Streak, bool) {
	v, ok := s.lastKnownGood.Get(uid)
	if !ok {
		return streak.Streak{}, false
	}
	return v.(streak.Streak), true
}

func (s *StreakService) remember(st streak.Streak) {
	s.lastKnownGood.Add(st.UID, st)
}

func (s *StreakService) evaluate(ctx context.Context, st streak.Streak) ([]achievement.Badge, error) {
	values, err := s.metricValues(ctx, st)
	if err != nil {
		return nil, err
	}
	result, err := s.evaluator.Evaluate(ctx, st.UID, values)
	if err != nil {
		return nil, err
	}
	if result.Awarded == nil {
		return []achievement.Badge{}, nil
	}
	return result.Awarded, nil
}

func (s *StreakService) metricValues(ctx context.Context, st streak.Streak) (MetricValues, error) {
	values := MetricValuesFromStreak(st)
	for _, m := range s.table.Metrics() {
		if m.IsStreakMetric() {
			continue
		}
		if s.counter == nil {
			continue
		}
		n, err := s.counter.CountActivity(ctx, st.UID, string(m))
		if err != nil {
			return nil, fmt.Errorf("failed to count %s for %s: %w", m, st.UID, err)
		}
		values[m] = n
	}
	return values, nil
}

// IsUnavailable reports whether err came from a failing oracle or store
// rather than from bad input.
func IsUnavailable(err error) bool {
	return errors.Is(err, streak.ErrOracleUnavailable) ||
		errors.Is(err, streak.ErrStoreUnavailable) ||
		errors.Is(err, streak.ErrStoreConflict) ||
		errors.Is(err, context.DeadlineExceeded)
}
