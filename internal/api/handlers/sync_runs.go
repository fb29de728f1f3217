package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/plan-sync/backend/internal/api/middleware"
	"github.com/plan-sync/backend/internal/storage/models"
)

// SyncRunLister reads the sync audit trail.
type SyncRunLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]models.SyncRun, error)
}

// ListSyncRuns returns a user's most recent sync runs. ?limit= caps the count.
func ListSyncRuns(runs SyncRunLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["userID"]

		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = n
		}

		list, err := runs.ListByUser(r.Context(), userID, limit)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("listing sync runs")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query sync runs")
			return
		}
		if list == nil {
			list = []models.SyncRun{}
		}

		writeJSON(w, http.StatusOK, list)
	}
}
