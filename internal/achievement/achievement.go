package achievement

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type BadgeType string

// Metric names the value a badge threshold is measured against. The three
// streak metrics come from the Streak record; any other name is an activity
// kind whose lifetime count is used.
type Metric string

const (
	MetricCurrentStreak Metric = "current_streak"
	MetricLongestStreak Metric = "longest_streak"
	MetricTotalLogs     Metric = "total_logs"
	MetricBodyScans     Metric = "body_scan"
)

// IsStreakMetric reports whether the metric is derived from the Streak record.
func (m Metric) IsStreakMetric() bool {
	switch m {
	case MetricCurrentStreak, MetricLongestStreak, MetricTotalLogs:
		return true
	}
	return false
}

type Definition struct {
	Type        BadgeType `json:"type" toml:"type"`
	Name        string    `json:"name" toml:"name"`
	Description string    `json:"description" toml:"description"`
	Icon        string    `json:"icon,omitempty" toml:"icon"`
	Metric      Metric    `json:"metric" toml:"metric"`
	Target      int       `json:"target" toml:"target"`
}

type Badge struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UID       string    `json:"uid" db:"uid"`
	Type      BadgeType `json:"type" db:"badge_type"`
	Name      string    `json:"name" db:"name"`
	AwardedAt time.Time `json:"awarded_at" db:"awarded_at"`
	IsNew     bool      `json:"is_new" db:"is_new"`
}

// Progress is the read-only view of a badge not yet earned.
type Progress struct {
	Type      BadgeType `json:"type"`
	Name      string    `json:"name"`
	Metric    Metric    `json:"metric"`
	Current   int       `json:"current_progress"`
	Target    int       `json:"target_progress"`
	Completed bool      `json:"is_completed"`
}

type AchievementsResponse struct {
	Badges   []Badge    `json:"badges"`
	Progress []Progress `json:"progress"`
}

// Table is the static threshold configuration, keyed by badge type.
type Table struct {
	defs  []Definition
	index map[BadgeType]int
}

func NewTable(defs []Definition) (*Table, error) {
	t := &Table{index: make(map[BadgeType]int, len(defs))}
	for _, d := range defs {
		if d.Type == "" {
			return nil, fmt.Errorf("badge definition without type")
		}
		if d.Metric == "" {
			return nil, fmt.Errorf("badge %s: metric is required", d.Type)
		}
		if d.Target <= 0 {
			return nil, fmt.Errorf("badge %s: target must be positive, got %d", d.Type, d.Target)
		}
		if _, dup := t.index[d.Type]; dup {
			return nil, fmt.Errorf("badge %s defined twice", d.Type)
		}
		if d.Name == "" {
			d.Name = string(d.Type)
		}
		t.index[d.Type] = len(t.defs)
		t.defs = append(t.defs, d)
	}
	return t, nil
}

func (t *Table) Definitions() []Definition {
	out := make([]Definition, len(t.defs))
	copy(out, t.defs)
	return out
}

func (t *Table) Lookup(bt BadgeType) (Definition, bool) {
	i, ok := t.index[bt]
	if !ok {
		return Definition{}, false
	}
	return t.defs[i], true
}

// Metrics returns the distinct metrics the table refers to, in table order.
func (t *Table) Metrics() []Metric {
	seen := make(map[Metric]bool)
	var out []Metric
	for _, d := range t.defs {
		if !seen[d.Metric] {
			seen[d.Metric] = true
			out = append(out, d.Metric)
		}
	}
	return out
}

func DefaultDefinitions() []Definition {
	return []Definition{
		{Type: "streak_3", Name: "Warming Up", Description: "Log activity 3 days in a row", Icon: "🔥", Metric: MetricCurrentStreak, Target: 3},
		{Type: "streak_7", Name: "Full Week", Description: "Log activity 7 days in a row", Icon: "📅", Metric: MetricCurrentStreak, Target: 7},
		{Type: "streak_30", Name: "Monthly Habit", Description: "Log activity 30 days in a row", Icon: "🏅", Metric: MetricCurrentStreak, Target: 30},
		{Type: "streak_100", Name: "Centurion", Description: "Log activity 100 days in a row", Icon: "💯", Metric: MetricCurrentStreak, Target: 100},
		{Type: "logs_50", Name: "Regular", Description: "Log activity on 50 different days", Icon: "📈", Metric: MetricTotalLogs, Target: 50},
		{Type: "body_scans_10", Name: "Know Thyself", Description: "Complete 10 body scans", Icon: "🩻", Metric: MetricBodyScans, Target: 10},
	}
}
