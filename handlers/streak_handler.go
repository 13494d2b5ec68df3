package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"streakAPI/internal/achievement"
	"streakAPI/internal/types/streak"
	"streakAPI/middleware"
	"streakAPI/services"
	"streakAPI/utils"
)

const (
	defaultActivityKind = "log"
	timezoneHeader      = "X-Timezone"
	requestTimeout      = 5 * time.Second
)

var activityKindPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,31}$`)

// ActivityRecorder stores the raw qualifying activity the oracle later
// reports on.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, uid string, date string, kind string) error
}

type LogActivityRequest struct {
	Kind string `json:"kind"`
}

type StreakHandler struct {
	streakService *services.StreakService
	recorder      ActivityRecorder
	log           *logrus.Logger
	now           func() time.Time
}

func NewStreakHandler(streakService *services.StreakService, recorder ActivityRecorder, log *logrus.Logger) *StreakHandler {
	return &StreakHandler{
		streakService: streakService,
		recorder:      recorder,
		log:           log,
		now:           time.Now,
	}
}

func (h *StreakHandler) LogActivity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	uid, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req LogActivityRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if req.Kind == "" {
		req.Kind = defaultActivityKind
	}
	if !activityKindPattern.MatchString(req.Kind) {
		respondWithError(w, http.StatusBadRequest, "kind must be lowercase letters, digits or underscores")
		return
	}

	today, ok := h.today(w, r)
	if !ok {
		return
	}

	if err := h.recorder.RecordActivity(ctx, uid, today, req.Kind); err != nil {
		h.log.WithField("uid", uid).WithError(err).Error("failed to record activity")
		respondWithError(w, statusFor(err), "Failed to record activity")
		return
	}

	update, err := h.streakService.LogActivity(ctx, uid, today)
	if err != nil {
		h.log.WithField("uid", uid).WithError(err).Error("failed to update streak")
		respondWithError(w, statusFor(err), "Failed to update streak")
		return
	}

	respondWithJSON(w, http.StatusOK, update)
}

// GetStreak serves the dashboard read path. When reconciliation fails the
// last known-good streak is returned flagged as stale instead of a reset.
func (h *StreakHandler) GetStreak(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	uid, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	today, ok := h.today(w, r)
	if !ok {
		return
	}

	result, err := h.streakService.Refresh(ctx, uid, today)
	if err != nil {
		h.log.WithField("uid", uid).WithError(err).Warn("streak refresh failed")
		if cached, found := h.streakService.LastKnownGood(uid); found {
			respondWithJSON(w, http.StatusOK, services.RefreshResult{
				Summary: streak.Summary{Streak: cached, Stale: true},
				Awarded: []achievement.Badge{},
			})
			return
		}
		respondWithError(w, statusFor(err), "Failed to load streak")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *StreakHandler) RecalculateStreak(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*requestTimeout)
	defer cancel()

	uid, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	today, ok := h.today(w, r)
	if !ok {
		return
	}

	update, err := h.streakService.Recalculate(ctx, uid, today)
	if err != nil {
		h.log.WithField("uid", uid).WithError(err).Error("streak recalculation failed")
		respondWithError(w, statusFor(err), "Failed to recalculate streak")
		return
	}

	respondWithJSON(w, http.StatusOK, update)
}

func (h *StreakHandler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	uid, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	achievements, err := h.streakService.Achievements(ctx, uid)
	if err != nil {
		h.log.WithField("uid", uid).WithError(err).Error("failed to load achievements")
		respondWithError(w, statusFor(err), "Failed to load achievements")
		return
	}

	respondWithJSON(w, http.StatusOK, achievements)
}

func (h *StreakHandler) MarkBadgeSeen(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	uid, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	badgeType := achievement.BadgeType(mux.Vars(r)["type"])
	if badgeType == "" {
		respondWithError(w, http.StatusBadRequest, "badge type is required")
		return
	}

	if err := h.streakService.MarkBadgeSeen(ctx, uid, badgeType); err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Badge marked as seen"})
}

func (h *StreakHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	uid, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	today, ok := h.today(w, r)
	if !ok {
		return
	}
	todayTime, _ := utils.ParseDay(today)

	year, month := todayTime.Year(), int(todayTime.Month())
	if v := r.URL.Query().Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid year")
			return
		}
		year = n
	}
	if v := r.URL.Query().Get("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 12 {
			respondWithError(w, http.StatusBadRequest, "Invalid month")
			return
		}
		month = n
	}

	cal, err := h.streakService.Calendar(ctx, uid, year, month, today)
	if err != nil {
		h.log.WithField("uid", uid).WithError(err).Error("failed to build calendar")
		respondWithError(w, statusFor(err), "Failed to load calendar")
		return
	}

	respondWithJSON(w, http.StatusOK, cal)
}

func (h *StreakHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	uid, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	today, ok := h.today(w, r)
	if !ok {
		return
	}

	userStats, err := h.streakService.Stats(ctx, uid, today)
	if err != nil {
		h.log.WithField("uid", uid).WithError(err).Error("failed to load stats")
		respondWithError(w, statusFor(err), "Failed to load stats")
		return
	}

	respondWithJSON(w, http.StatusOK, userStats)
}

// today resolves the caller's calendar day from the X-Timezone header.
func (h *StreakHandler) today(w http.ResponseWriter, r *http.Request) (string, bool) {
	loc, err := utils.LoadLocation(r.Header.Get(timezoneHeader))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid timezone")
		return "", false
	}
	return utils.DayOf(h.now(), loc), true
}
