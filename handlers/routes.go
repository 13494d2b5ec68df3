package handlers

import "github.com/gorilla/mux"

// RegisterStreakRoutes mounts the streak API on an authenticated router.
func RegisterStreakRoutes(r *mux.Router, h *StreakHandler) {
	r.HandleFunc("/user/activity", h.LogActivity).Methods("POST")
	r.HandleFunc("/user/streak", h.GetStreak).Methods("GET")
	r.HandleFunc("/user/streak/recalculate", h.RecalculateStreak).Methods("POST")
	r.HandleFunc("/user/calendar", h.GetCalendar).Methods("GET")
	r.HandleFunc("/user/stats", h.GetStats).Methods("GET")
	r.HandleFunc("/user/achievements", h.GetAchievements).Methods("GET")
	r.HandleFunc("/user/achievements/{type}/seen", h.MarkBadgeSeen).Methods("PUT")
}
