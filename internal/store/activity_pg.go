package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"streakAPI/internal/types/streak"
)

// PgActivityStore backs the activity presence oracle with the
// daily_activity table: one row per (uid, day, kind).
type PgActivityStore struct {
	db *pgxpool.Pool
}

func NewPgActivityStore(db *pgxpool.Pool) *PgActivityStore {
	return &PgActivityStore{db: db}
}

func (s *PgActivityStore) HasActivity(ctx context.Context, uid string, date string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM daily_activity WHERE uid = $1 AND date = $2::date)`,
		uid, date,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check activity: %w", err)
	}
	return exists, nil
}

func (s *PgActivityStore) RecordActivity(ctx context.Context, uid string, date string, kind string) error {
	query := `
        INSERT INTO daily_activity (uid, date, kind, count, logged_at)
        VALUES ($1, $2::date, $3, 1, NOW())
        ON CONFLICT (uid, date, kind)
        DO UPDATE SET
            count = daily_activity.count + 1,
            logged_at = NOW()
    `

	if _, err := s.db.Exec(ctx, query, uid, date, kind); err != nil {
		return fmt.Errorf("failed to log activity: %w: %w", streak.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PgActivityStore) CountActivity(ctx context.Context, uid string, kind string) (int, error) {
	var total int64
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(count), 0) FROM daily_activity WHERE uid = $1 AND kind = $2`,
		uid, kind,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count activity: %w: %w", streak.ErrStoreUnavailable, err)
	}
	return int(total), nil
}

func (s *PgActivityStore) CountActiveDays(ctx context.Context, uid string, from string, to string) (int, error) {
	var n int64
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(DISTINCT date) FROM daily_activity WHERE uid = $1 AND date BETWEEN $2::date AND $3::date`,
		uid, from, to,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active days: %w: %w", streak.ErrStoreUnavailable, err)
	}
	return int(n), nil
}
