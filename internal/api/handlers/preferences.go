package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/plan-sync/backend/internal/api/middleware"
	"github.com/plan-sync/backend/internal/storage/models"
)

// PreferenceStore reads and writes scheduling preferences.
type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID string) (models.SchedulingPreferences, error)
	Upsert(ctx context.Context, prefs *models.SchedulingPreferences) error
}

// PreferencesRequest is the body of a preferences update. Empty fields keep
// their current value.
type PreferencesRequest struct {
	WorkStart string `json:"work_start"`
	WorkEnd   string `json:"work_end"`
	Timezone  string `json:"timezone"`
}

// GetPreferences returns a user's scheduling preferences.
func GetPreferences(prefs PreferenceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["userID"]

		p, err := prefs.GetPreferences(r.Context(), userID)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("loading preferences")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query preferences")
			return
		}

		writeJSON(w, http.StatusOK, p)
	}
}

// UpdatePreferences updates a user's scheduling preferences.
func UpdatePreferences(prefs PreferenceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["userID"]
		ctx := r.Context()

		var req PreferencesRequest
		if !decodeBody(w, r, &req) {
			return
		}

		current, err := prefs.GetPreferences(ctx, userID)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("loading preferences")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query preferences")
			return
		}

		if v := strings.TrimSpace(req.WorkStart); v != "" {
			current.WorkStart = v
		}
		if v := strings.TrimSpace(req.WorkEnd); v != "" {
			current.WorkEnd = v
		}
		if v := strings.TrimSpace(req.Timezone); v != "" {
			current.Timezone = v
		}

		start, err := models.ClockMinutes(current.WorkStart)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "work_start must be HH:MM")
			return
		}
		end, err := models.ClockMinutes(current.WorkEnd)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "work_end must be HH:MM")
			return
		}
		if start >= end {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "work_start must be before work_end")
			return
		}

		current.UserID = userID
		if err := prefs.Upsert(ctx, &current); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("storing preferences")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update preferences")
			return
		}

		writeJSON(w, http.StatusOK, current)
	}
}
