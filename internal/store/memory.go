package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"streakAPI/internal/achievement"
	"streakAPI/internal/types/streak"
)

// MemoryStore keeps streaks, badges and activity in process memory. It
// honours the same version and insert-if-absent rules as the Postgres
// stores, so it backs tests and local runs.
type MemoryStore struct {
	mu       sync.Mutex
	streaks  map[string]streak.Streak
	badges   map[string]map[achievement.BadgeType]achievement.Badge
	activity map[string]map[string]map[string]int // uid -> day -> kind -> count
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		streaks:  make(map[string]streak.Streak),
		badges:   make(map[string]map[achievement.BadgeType]achievement.Badge),
		activity: make(map[string]map[string]map[string]int),
	}
}

func (m *MemoryStore) GetStreak(ctx context.Context, uid string) (streak.Streak, bool, error) {
	if err := ctx.Err(); err != nil {
		return streak.Streak{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.streaks[uid]
	return st, ok, nil
}

func (m *MemoryStore) PutStreak(ctx context.Context, uid string, expectedVersion int64, st streak.Streak) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.streaks[uid]
	switch {
	case !ok && expectedVersion != 0,
		ok && current.Version != expectedVersion:
		return fmt.Errorf("streak for %s changed since version %d: %w", uid, expectedVersion, streak.ErrStoreConflict)
	}

	st.UID = uid
	st.Version = expectedVersion + 1
	m.streaks[uid] = st
	return nil
}

// SetStreak overwrites a record without version checks.
func (m *MemoryStore) SetStreak(st streak.Streak) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.streaks[st.UID]; ok {
		st.Version = old.Version + 1
	} else if st.Version == 0 {
		st.Version = 1
	}
	m.streaks[st.UID] = st
}

func (m *MemoryStore) ListActiveUIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var uids []string
	for uid, st := range m.streaks {
		if st.CurrentStreak > 0 {
			uids = append(uids, uid)
		}
	}
	sort.Strings(uids)
	return uids, nil
}

func (m *MemoryStore) GetBadge(ctx context.Context, uid string, badgeType achievement.BadgeType) (achievement.Badge, bool, error) {
	if err := ctx.Err(); err != nil {
		return achievement.Badge{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.badges[uid][badgeType]
	return b, ok, nil
}

func (m *MemoryStore) PutBadge(ctx context.Context, uid string, b achievement.Badge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	userBadges, ok := m.badges[uid]
	if !ok {
		userBadges = make(map[achievement.BadgeType]achievement.Badge)
		m.badges[uid] = userBadges
	}
	if _, exists := userBadges[b.Type]; exists {
		return fmt.Errorf("badge %s for %s: %w", b.Type, uid, streak.ErrBadgeExists)
	}
	b.UID = uid
	userBadges[b.Type] = b
	return nil
}

func (m *MemoryStore) ListBadges(ctx context.Context, uid string) ([]achievement.Badge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	badges := make([]achievement.Badge, 0, len(m.badges[uid]))
	for _, b := range m.badges[uid] {
		badges = append(badges, b)
	}
	sort.Slice(badges, func(i, j int) bool {
		if badges[i].AwardedAt.Equal(badges[j].AwardedAt) {
			return badges[i].Type < badges[j].Type
		}
		return badges[i].AwardedAt.Before(badges[j].AwardedAt)
	})
	return badges, nil
}

func (m *MemoryStore) MarkBadgeSeen(ctx context.Context, uid string, badgeType achievement.BadgeType) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.badges[uid][badgeType]
	if !ok {
		return fmt.Errorf("badge %s for %s: %w", badgeType, uid, streak.ErrNotFound)
	}
	b.IsNew = false
	m.badges[uid][badgeType] = b
	return nil
}

func (m *MemoryStore) HasActivity(ctx context.Context, uid string, date string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.activity[uid][date]) > 0, nil
}

func (m *MemoryStore) RecordActivity(ctx context.Context, uid string, date string, kind string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	days, ok := m.activity[uid]
	if !ok {
		days = make(map[string]map[string]int)
		m.activity[uid] = days
	}
	kinds, ok := days[date]
	if !ok {
		kinds = make(map[string]int)
		days[date] = kinds
	}
	kinds[kind]++
	return nil
}

func (m *MemoryStore) CountActivity(ctx context.Context, uid string, kind string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, kinds := range m.activity[uid] {
		total += kinds[kind]
	}
	return total, nil
}

func (m *MemoryStore) CountActiveDays(ctx context.Context, uid string, from string, to string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for day, kinds := range m.activity[uid] {
		if day >= from && day <= to && len(kinds) > 0 {
			n++
		}
	}
	return n, nil
}
