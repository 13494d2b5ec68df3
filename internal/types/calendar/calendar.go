package calendar

type CalendarDay struct {
	Date     string `json:"date"`
	Active   bool   `json:"active"`
	IsToday  bool   `json:"is_today"`
	InStreak bool   `json:"in_streak"`
}

type CalendarResponse struct {
	Year  int            `json:"year"`
	Month int            `json:"month"`
	Days  []*CalendarDay `json:"days"`
}
