package services

import (
	"context"

	"streakAPI/internal/achievement"
	"streakAPI/internal/types/streak"
)

// ActivityOracle answers whether a user had qualifying activity on a day.
// Answers for past days must be stable.
type ActivityOracle interface {
	HasActivity(ctx context.Context, uid string, date string) (bool, error)
}

// StreakStore persists one Streak per uid with optimistic concurrency.
// PutStreak must fail with streak.ErrStoreConflict when the stored version
// is not expectedVersion (0 meaning "must not exist yet").
type StreakStore interface {
	GetStreak(ctx context.Context, uid string) (streak.Streak, bool, error)
	PutStreak(ctx context.Context, uid string, expectedVersion int64, s streak.Streak) error
}

// BadgeStore persists awarded badges. PutBadge is insert-if-absent and
// returns streak.ErrBadgeExists when the badge type is already stored.
type BadgeStore interface {
	GetBadge(ctx context.Context, uid string, badgeType achievement.BadgeType) (achievement.Badge, bool, error)
	PutBadge(ctx context.Context, uid string, badge achievement.Badge) error
	ListBadges(ctx context.Context, uid string) ([]achievement.Badge, error)
	MarkBadgeSeen(ctx context.Context, uid string, badgeType achievement.BadgeType) error
}

// ActivityCounter supplies lifetime counts for non-streak badge metrics.
type ActivityCounter interface {
	CountActivity(ctx context.Context, uid string, kind string) (int, error)
}

// ActiveDayCounter counts distinct active days in an inclusive range.
type ActiveDayCounter interface {
	CountActiveDays(ctx context.Context, uid string, from string, to string) (int, error)
}
