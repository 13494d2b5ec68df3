package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"streakAPI/internal/achievement"
	"streakAPI/internal/types/streak"
)

type PgBadgeStore struct {
	db *pgxpool.Pool
}

func NewPgBadgeStore(db *pgxpool.Pool) *PgBadgeStore {
	return &PgBadgeStore{db: db}
}

func (s *PgBadgeStore) GetBadge(ctx context.Context, uid string, badgeType achievement.BadgeType) (achievement.Badge, bool, error) {
	query := `
	SELECT id, uid, badge_type, name, awarded_at, is_new
	FROM badges
	WHERE uid = $1 AND badge_type = $2
	`

	var b achievement.Badge
	var badgeTypeCol string
	err := s.db.QueryRow(ctx, query, uid, string(badgeType)).Scan(
		&b.ID,
		&b.UID,
		&badgeTypeCol,
		&b.Name,
		&b.AwardedAt,
		&b.IsNew,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return achievement.Badge{}, false, nil
		}
		return achievement.Badge{}, false, fmt.Errorf("failed to get badge: %w: %w", streak.ErrStoreUnavailable, err)
	}
	b.Type = achievement.BadgeType(badgeTypeCol)
	return b, true, nil
}

// PutBadge inserts the badge unless the user already holds that type.
func (s *PgBadgeStore) PutBadge(ctx context.Context, uid string, b achievement.Badge) error {
	query := `
	INSERT INTO badges (id, uid, badge_type, name, awarded_at, is_new)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (uid, badge_type) DO NOTHING
	`

	tag, err := s.db.Exec(ctx, query, b.ID, uid, string(b.Type), b.Name, b.AwardedAt, b.IsNew)
	if err != nil {
		return fmt.Errorf("failed to put badge: %w: %w", streak.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("badge %s for %s: %w", b.Type, uid, streak.ErrBadgeExists)
	}
	return nil
}

func (s *PgBadgeStore) ListBadges(ctx context.Context, uid string) ([]achievement.Badge, error) {
	query := `
	SELECT id, uid, badge_type, name, awarded_at, is_new
	FROM badges
	WHERE uid = $1
	ORDER BY awarded_at ASC
	`

	rows, err := s.db.Query(ctx, query, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w: %w", streak.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var badges []achievement.Badge
	for rows.Next() {
		var (
			b            achievement.Badge
			badgeTypeCol string
		)
		if err := rows.Scan(&b.ID, &b.UID, &badgeTypeCol, &b.Name, &b.AwardedAt, &b.IsNew); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		b.Type = achievement.BadgeType(badgeTypeCol)
		badges = append(badges, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list badges: %w: %w", streak.ErrStoreUnavailable, err)
	}
	return badges, nil
}

func (s *PgBadgeStore) MarkBadgeSeen(ctx context.Context, uid string, badgeType achievement.BadgeType) error {
	tag, err := s.db.Exec(ctx, `UPDATE badges SET is_new = false WHERE uid = $1 AND badge_type = $2`, uid, string(badgeType))
	if err != nil {
		return fmt.Errorf("failed to update badge: %w: %w", streak.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("badge %s for %s: %w", badgeType, uid, streak.ErrNotFound)
	}
	return nil
}
