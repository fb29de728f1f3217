package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/plan-sync/backend/internal/api/middleware"
	"github.com/plan-sync/backend/internal/planner"
	"github.com/plan-sync/backend/internal/planning"
	"github.com/plan-sync/backend/internal/storage/models"
)

// maxOffsetMinutes bounds timezone offsets to real-world values (UTC-14..UTC+14).
const maxOffsetMinutes = 14 * 60

// PlanService generates plans.
type PlanService interface {
	GenerateDaily(ctx context.Context, req planning.DailyRequest) (*planning.DailyResponse, error)
	GenerateWeekly(ctx context.Context, req planning.WeeklyRequest) (*planning.WeeklyResponse, error)
}

// DailyPlanRequest is the body of a daily plan request.
type DailyPlanRequest struct {
	Date                  string `json:"date"`
	Sync                  bool   `json:"sync"`
	TimezoneOffsetMinutes int    `json:"timezone_offset_minutes"`
}

// WeeklyPlanRequest is the body of a weekly plan request.
type WeeklyPlanRequest struct {
	WeekStart             string `json:"week_start"`
	Sync                  bool   `json:"sync"`
	TimezoneOffsetMinutes int    `json:"timezone_offset_minutes"`
}

// GenerateDailyPlan generates a daily plan and optionally syncs it.
func GenerateDailyPlan(svc PlanService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["userID"]

		var req DailyPlanRequest
		if !decodeBody(w, r, &req) {
			return
		}

		date, ok := parsePlanDate(w, req.Date, "date")
		if !ok || !validOffset(w, req.TimezoneOffsetMinutes) {
			return
		}

		resp, err := svc.GenerateDaily(r.Context(), planning.DailyRequest{
			UserID:                userID,
			Date:                  date,
			Sync:                  req.Sync,
			TimezoneOffsetMinutes: req.TimezoneOffsetMinutes,
		})
		if err != nil {
			writePlanError(w, userID, models.PlanKindDaily, err)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// GenerateWeeklyPlan generates a seven-day plan and optionally syncs it.
func GenerateWeeklyPlan(svc PlanService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["userID"]

		var req WeeklyPlanRequest
		if !decodeBody(w, r, &req) {
			return
		}

		weekStart, ok := parsePlanDate(w, req.WeekStart, "week_start")
		if !ok || !validOffset(w, req.TimezoneOffsetMinutes) {
			return
		}

		resp, err := svc.GenerateWeekly(r.Context(), planning.WeeklyRequest{
			UserID:                userID,
			WeekStart:             weekStart,
			Sync:                  req.Sync,
			TimezoneOffsetMinutes: req.TimezoneOffsetMinutes,
		})
		if err != nil {
			writePlanError(w, userID, models.PlanKindWeekly, err)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// parsePlanDate parses a YYYY-MM-DD value, defaulting to today (UTC) when empty.
func parsePlanDate(w http.ResponseWriter, value, field string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), true
	}

	d, err := time.Parse(models.DateLayout, value)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, field+" must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}

func validOffset(w http.ResponseWriter, offset int) bool {
	if offset < -maxOffsetMinutes || offset > maxOffsetMinutes {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "timezone_offset_minutes out of range")
		return false
	}
	return true
}

func writePlanError(w http.ResponseWriter, userID, kind string, err error) {
	switch {
	case errors.Is(err, planning.ErrNoWorkItems):
		middleware.WriteError(w, http.StatusUnprocessableEntity, middleware.ErrNoWorkItems, "No pending work items to plan")
	case errors.Is(err, planner.ErrPlanningUnavailable):
		log.Warn().Err(err).Str("user_id", userID).Str("plan_kind", kind).Msg("plan generation failed")
		middleware.WriteError(w, http.StatusBadGateway, middleware.ErrPlanningUnavailable, "The planner could not produce a plan, try again later")
	default:
		log.Error().Err(err).Str("user_id", userID).Str("plan_kind", kind).Msg("plan request failed")
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to generate plan")
	}
}
