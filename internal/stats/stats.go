package stats

// DaysStat counts active days in one calendar period up to today.
type DaysStat struct {
	Period     string `json:"period"` // "week", "month", "year"
	From       string `json:"from"`
	ActiveDays int    `json:"active_days"`
	TotalDays  int    `json:"total_days"`
}

type UserStats struct {
	TodayStatus       bool       `json:"today_status"`
	CurrentStreak     int        `json:"current_streak"`
	LongestStreak     int        `json:"longest_streak"`
	TotalLogs         int        `json:"total_logs"`
	AchievementsCount int        `json:"achievements_count"`
	Periods           []DaysStat `json:"periods"`
}
