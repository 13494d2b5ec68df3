package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"streakAPI/internal/types/streak"
)

type PgStreakStore struct {
	db *pgxpool.Pool
}

func NewPgStreakStore(db *pgxpool.Pool) *PgStreakStore {
	return &PgStreakStore{db: db}
}

func (s *PgStreakStore) GetStreak(ctx context.Context, uid string) (streak.Streak, bool, error) {
	query := `
	SELECT uid, current_streak, longest_streak, last_log_date, streak_start_date, total_logs, last_updated, version
	FROM streaks
	WHERE uid = $1
	`

	var st streak.Streak
	err := s.db.QueryRow(ctx, query, uid).Scan(
		&st.UID,
		&st.CurrentStreak,
		&st.LongestStreak,
		&st.LastLogDate,
		&st.StreakStartDate,
		&st.TotalLogs,
		&st.LastUpdated,
		&st.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return streak.Streak{}, false, nil
		}
		return streak.Streak{}, false, fmt.Errorf("failed to get streak: %w: %w", streak.ErrStoreUnavailable, err)
	}

	return st, true, nil
}

// PutStreak writes st only if the stored version still equals
// expectedVersion. Version 0 inserts a record that must not exist yet.
func (s *PgStreakStore) PutStreak(ctx context.Context, uid string, expectedVersion int64, st streak.Streak) error {
	var (
		query string
		args  []any
	)

	if expectedVersion == 0 {
		query = `
		INSERT INTO streaks (uid, current_streak, longest_streak, last_log_date, streak_start_date, total_logs, last_updated, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
		ON CONFLICT (uid) DO NOTHING
		`
		args = []any{uid, st.CurrentStreak, st.LongestStreak, st.LastLogDate, st.StreakStartDate, st.TotalLogs, st.LastUpdated}
	} else {
		query = `
		UPDATE streaks SET
			current_streak = $2,
			longest_streak = $3,
			last_log_date = $4,
			streak_start_date = $5,
			total_logs = $6,
			last_updated = $7,
			version = version + 1
		WHERE uid = $1 AND version = $8
		`
		args = []any{uid, st.CurrentStreak, st.LongestStreak, st.LastLogDate, st.StreakStartDate, st.TotalLogs, st.LastUpdated, expectedVersion}
	}

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to put streak: %w: %w", streak.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("streak for %s changed since version %d: %w", uid, expectedVersion, streak.ErrStoreConflict)
	}
	return nil
}

// ListActiveUIDs returns every uid with a running streak.
func (s *PgStreakStore) ListActiveUIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT uid FROM streaks WHERE current_streak > 0 ORDER BY uid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active streaks: %w: %w", streak.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("failed to scan uid: %w", err)
		}
		uids = append(uids, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list active streaks: %w: %w", streak.ErrStoreUnavailable, err)
	}
	return uids, nil
}
