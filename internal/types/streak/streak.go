package streak

import (
	"errors"
	"time"
)

var (
	ErrOracleUnavailable = errors.New("activity oracle unavailable")
	ErrStoreConflict     = errors.New("streak store conflict")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrCorruptState      = errors.New("corrupt streak state")
	ErrBadgeExists       = errors.New("badge already awarded")
	ErrNotFound          = errors.New("not found")
)

// Streak is the per-user streak record. Version is the optimistic
// concurrency token assigned by the store; 0 means never persisted.
type Streak struct {
	UID             string    `json:"uid" db:"uid"`
	CurrentStreak   int       `json:"current_streak" db:"current_streak"`
	LongestStreak   int       `json:"longest_streak" db:"longest_streak"`
	LastLogDate     string    `json:"last_log_date" db:"last_log_date"`
	StreakStartDate string    `json:"streak_start_date" db:"streak_start_date"`
	TotalLogs       int       `json:"total_logs" db:"total_logs"`
	LastUpdated     time.Time `json:"last_updated" db:"last_updated"`
	Version         int64     `json:"-" db:"version"`
}

// SameState reports whether two records carry the same counts and dates,
// ignoring LastUpdated and Version.
func (s Streak) SameState(o Streak) bool {
	return s.UID == o.UID &&
		s.CurrentStreak == o.CurrentStreak &&
		s.LongestStreak == o.LongestStreak &&
		s.LastLogDate == o.LastLogDate &&
		s.StreakStartDate == o.StreakStartDate &&
		s.TotalLogs == o.TotalLogs
}

// Violations lists the invariants the record breaks. Empty means valid.
func (s Streak) Violations() []string {
	var v []string
	if s.CurrentStreak < 0 {
		v = append(v, "current_streak is negative")
	}
	if s.LongestStreak < 0 {
		v = append(v, "longest_streak is negative")
	}
	if s.TotalLogs < 0 {
		v = append(v, "total_logs is negative")
	}
	if s.CurrentStreak > 0 && s.TotalLogs == 0 {
		v = append(v, "current_streak > 0 with total_logs == 0")
	}
	if s.CurrentStreak > 0 && s.LastLogDate == "" {
		v = append(v, "current_streak > 0 without last_log_date")
	}
	if s.LongestStreak < s.CurrentStreak {
		v = append(v, "longest_streak < current_streak")
	}
	return v
}

// Summary is the dashboard view of a streak.
type Summary struct {
	Streak
	Stale          bool   `json:"stale"`
	LoggedToday    bool   `json:"logged_today"`
	Recalculated   bool   `json:"recalculated"`
	ReconcileState string `json:"reconcile_state,omitempty"`
}
