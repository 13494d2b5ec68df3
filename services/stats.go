package services

import (
	"context"
	"fmt"
	"time"

	"streakAPI/internal/stats"
	"streakAPI/internal/types/streak"
	"streakAPI/utils"
)

// Stats summarizes a user's activity for the current week (Monday start),
// month and year, alongside the stored streak. It never writes.
func (s *StreakService) Stats(ctx context.Context, uid string, today string) (*stats.UserStats, error) {
	todayTime, err := utils.ParseDay(today)
	if err != nil {
		return nil, err
	}

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

	activeToday, err := s.oracle.HasActivity(ctx, uid, today)
	if err != nil {
		return nil, fmt.Errorf("activity check for %s on %s: %w: %w", uid, today, streak.ErrOracleUnavailable, err)
	}

	weekday := (int(todayTime.Weekday()) + 6) % 7
	periods := []struct {
		name  string
		start time.Time
	}{
		{"week", todayTime.AddDate(0, 0, -weekday)},
		{"month", time.Date(todayTime.Year(), todayTime.Month(), 1, 0, 0, 0, 0, time.UTC)},
		{"year", time.Date(todayTime.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)},
	}

	result := &stats.UserStats{
		TodayStatus:       activeToday,
		CurrentStreak:     current.CurrentStreak,
		LongestStreak:     current.LongestStreak,
		TotalLogs:         current.TotalLogs,
		AchievementsCount: len(badges),
		Periods:           make([]stats.DaysStat, 0, len(periods)),
	}
	for _, p := range periods {
		from := p.start.Format(utils.DayLayout)
		active, err := s.countActiveDays(ctx, uid, from, today)
		if err != nil {
			return nil, err
		}
		result.Periods = append(result.Periods, stats.DaysStat{
			Period:     p.name,
			From:       from,
			ActiveDays: active,
			TotalDays:  int(todayTime.Sub(p.start).Hours()/24) + 1,
		})
	}
	return result, nil
}

// countActiveDays uses the day counter when one is wired and otherwise
// asks the oracle day by day.
func (s *StreakService) countActiveDays(ctx context.Context, uid, from, to string) (int, error) {
	if s.days != nil {
		n, err := s.days.CountActiveDays(ctx, uid, from, to)
		if err != nil {
			return 0, fmt.Errorf("failed to count active days: %w", err)
		}
		return n, nil
	}

	count := 0
	for day := from; day <= to; {
		ok, err := s.oracle.HasActivity(ctx, uid, day)
		if err != nil {
			return 0, fmt.Errorf("activity check for %s on %s: %w: %w", uid, day, streak.ErrOracleUnavailable, err)
		}
		if ok {
			count++
		}
		if day, err = utils.AddDays(day, 1); err != nil {
			return 0, err
		}
	}
	return count, nil
}
