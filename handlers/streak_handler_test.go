package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streakAPI/internal/achievement"
	"streakAPI/internal/stats"
	"streakAPI/internal/store"
	"streakAPI/internal/types/calendar"
	"streakAPI/internal/types/streak"
	"streakAPI/middleware"
	"streakAPI/services"
)

const testUID = "user_handler_test"

var handlerNow = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	mem     *store.MemoryStore
	service *services.StreakService
	router  *mux.Router
}

func newTestEnv(t *testing.T, oracle services.ActivityOracle) *testEnv {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	mem := store.NewMemoryStore()
	if oracle == nil {
		oracle = mem
	}
	svc, err := services.NewStreakService(services.StreakServiceConfig{
		Streaks: mem,
		Badges:  mem,
		Oracle:  oracle,
		Counter: mem,
		Logger:  log,
		Now:     func() time.Time { return handlerNow },
	})
	require.NoError(t, err)

	h := NewStreakHandler(svc, mem, log)
	h.now = func() time.Time { return handlerNow }

	r := mux.NewRouter()
	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if uid := r.Header.Get("X-Test-User"); uid != "" {
				r = r.WithContext(middleware.WithClerkID(r.Context(), uid))
			}
			next.ServeHTTP(w, r)
		})
	})
	RegisterStreakRoutes(protected, h)

	return &testEnv{mem: mem, service: svc, router: r}
}

func (e *testEnv) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-Test-User", testUID)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func TestLogActivityEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(http.MethodPost, "/api/v1/user/activity", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var update services.StreakUpdate
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &update))
	assert.Equal(t, 1, update.Streak.CurrentStreak)
	assert.Equal(t, "2024-01-10", update.Streak.LastLogDate)
	assert.Equal(t, services.TransitionFirstLog, update.Transition)

	active, err := env.mem.HasActivity(context.Background(), testUID, "2024-01-10")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestLogActivityKind(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(http.MethodPost, "/api/v1/user/activity", `{"kind":"body_scan"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	n, err := env.mem.CountActivity(context.Background(), testUID, "body_scan")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rr = env.do(http.MethodPost, "/api/v1/user/activity", `{"kind":"Body Scan!"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(http.MethodPost, "/api/v1/user/activity", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogActivityUsesCallerTimezone(t *testing.T) {
	env := newTestEnv(t, nil)

	// 12:00 UTC on the 10th is already the 11th in Auckland.
	rr := env.do(http.MethodPost, "/api/v1/user/activity", "", map[string]string{"X-Timezone": "Pacific/Auckland"})
	require.Equal(t, http.StatusOK, rr.Code)

	var update services.StreakUpdate
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &update))
	assert.Equal(t, "2024-01-11", update.Streak.LastLogDate)

	rr = env.do(http.MethodPost, "/api/v1/user/activity", "", map[string]string{"X-Timezone": "Mars/Olympus"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogActivityEarlierLocalDayKeepsStreak(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mem.SetStreak(streak.Streak{UID: testUID, CurrentStreak: 5, LongestStreak: 5, LastLogDate: "2024-01-10", StreakStartDate: "2024-01-06", TotalLogs: 5})

	// Same instant: the 11th in Kiritimati, still the 10th in Pago Pago.
	rr := env.do(http.MethodPost, "/api/v1/user/activity", "", map[string]string{"X-Timezone": "Pacific/Kiritimati"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(http.MethodPost, "/api/v1/user/activity", "", map[string]string{"X-Timezone": "Pacific/Pago_Pago"})
	require.Equal(t, http.StatusOK, rr.Code)

	var update services.StreakUpdate
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &update))
	assert.Equal(t, services.TransitionStaleLog, update.Transition)
	assert.Equal(t, 6, update.Streak.CurrentStreak)
	assert.Equal(t, 6, update.Streak.TotalLogs)
	assert.Equal(t, "2024-01-11", update.Streak.LastLogDate)
}

func TestUnauthenticated(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/streak", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Contains(t, response["error"], "not authenticated")
}

func TestGetStreak(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mem.SetStreak(streak.Streak{UID: testUID, CurrentStreak: 2, LongestStreak: 2, LastLogDate: "2024-01-09", StreakStartDate: "2024-01-08", TotalLogs: 2})
	require.NoError(t, env.mem.RecordActivity(context.Background(), testUID, "2024-01-09", "log"))

	rr := env.do(http.MethodGet, "/api/v1/user/streak", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var result services.RefreshResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Summary.CurrentStreak)
	assert.False(t, result.Summary.Stale)
	assert.Equal(t, "preserved", result.Summary.ReconcileState)
}

type flakyOracle struct {
	inner services.ActivityOracle
	down  bool
}

func (o *flakyOracle) HasActivity(ctx context.Context, uid, day string) (bool, error) {
	if o.down {
		return false, errors.New("activity service timeout")
	}
	return o.inner.HasActivity(ctx, uid, day)
}

func TestGetStreakServesStaleOnOracleFailure(t *testing.T) {
	oracle := &flakyOracle{}
	env := newTestEnv(t, oracle)
	oracle.inner = env.mem

	rr := env.do(http.MethodPost, "/api/v1/user/activity", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	oracle.down = true
	rr = env.do(http.MethodGet, "/api/v1/user/streak", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var result services.RefreshResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.True(t, result.Summary.Stale)
	assert.Equal(t, 1, result.Summary.CurrentStreak)

	stored, _, err := env.mem.GetStreak(context.Background(), testUID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentStreak)
}

func TestGetStreakWithoutCacheFails(t *testing.T) {
	env := newTestEnv(t, &flakyOracle{down: true})

	rr := env.do(http.MethodGet, "/api/v1/user/streak", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRecalculateEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, day := range []string{"2024-01-08", "2024-01-09", "2024-01-10"} {
		require.NoError(t, env.mem.RecordActivity(context.Background(), testUID, day, "log"))
	}

	rr := env.do(http.MethodPost, "/api/v1/user/streak/recalculate", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var update services.StreakUpdate
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &update))
	assert.Equal(t, 3, update.Streak.CurrentStreak)
	require.Len(t, update.Awarded, 1)
	assert.Equal(t, achievement.BadgeType("streak_3"), update.Awarded[0].Type)
}

func TestAchievementEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, day := range []string{"2024-01-08", "2024-01-09", "2024-01-10"} {
		_, err := env.service.LogActivity(context.Background(), testUID, day)
		require.NoError(t, err)
	}

	rr := env.do(http.MethodGet, "/api/v1/user/achievements", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp achievement.AchievementsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Badges, 1)
	assert.True(t, resp.Badges[0].IsNew)

	rr = env.do(http.MethodPut, "/api/v1/user/achievements/streak_3/seen", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	badge, found, err := env.mem.GetBadge(context.Background(), testUID, "streak_3")
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, badge.IsNew)

	rr = env.do(http.MethodPut, "/api/v1/user/achievements/made_up/seen", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCalendarEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.mem.RecordActivity(context.Background(), testUID, "2024-01-02", "log"))

	rr := env.do(http.MethodGet, "/api/v1/user/calendar", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var cal calendar.CalendarResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cal))
	assert.Equal(t, 2024, cal.Year)
	assert.Equal(t, 1, cal.Month)
	require.Len(t, cal.Days, 10)
	assert.True(t, cal.Days[1].Active)
	assert.True(t, cal.Days[9].IsToday)

	rr = env.do(http.MethodGet, "/api/v1/user/calendar?year=2023&month=12", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cal))
	assert.Len(t, cal.Days, 31)

	rr = env.do(http.MethodGet, "/api/v1/user/calendar?month=13", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(streak.ErrNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(streak.ErrStoreConflict))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(streak.ErrOracleUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(fmt.Errorf("failed to save streak: %w", streak.ErrStoreUnavailable)))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.mem.RecordActivity(context.Background(), testUID, "2024-01-10", "log"))

	rr := env.do(http.MethodGet, "/api/v1/user/stats", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var got stats.UserStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.True(t, got.TodayStatus)
	require.Len(t, got.Periods, 3)
	assert.Equal(t, 1, got.Periods[0].ActiveDays)
}
