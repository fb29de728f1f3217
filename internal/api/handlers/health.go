// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/plan-sync/backend/internal/api/middleware"
	"github.com/plan-sync/backend/internal/storage"
	"github.com/plan-sync/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
	DBDriver    string `json:"db_driver"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.PingContext(r.Context()) == nil

		status := "healthy"
		code := http.StatusOK
		if !dbConnected {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
			DBDriver:    db.Driver(),
		})
	}
}

// NextRunner reports the refresh sweep schedule.
type NextRunner interface {
	NextRun() *time.Time
	LastRun() *time.Time
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	ConnectedCalendars int        `json:"connected_calendars"`
	PendingWorkItems   int        `json:"pending_work_items"`
	SyncRuns           int        `json:"sync_runs"`
	WebSocketClients   int        `json:"websocket_clients"`
	NextRefreshSweepAt *time.Time `json:"next_refresh_sweep_at,omitempty"`
	LastRefreshSweepAt *time.Time `json:"last_refresh_sweep_at,omitempty"`
}

// Status returns a handler that provides system status information.
func Status(db *storage.DB, hub *websocket.Hub, sweep NextRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var resp StatusResponse

		counts := []struct {
			dest  *int
			query string
			args  []any
		}{
			{&resp.ConnectedCalendars, "SELECT COUNT(*) FROM calendar_credentials WHERE connected = ?", []any{true}},
			{&resp.PendingWorkItems, "SELECT COUNT(*) FROM work_items WHERE status = 'pending'", nil},
			{&resp.SyncRuns, "SELECT COUNT(*) FROM plan_sync_runs", nil},
		}
		for _, c := range counts {
			if err := db.QueryRowContext(ctx, db.Rebind(c.query), c.args...).Scan(c.dest); err != nil {
				log.Warn().Err(err).Msg("status count")
			}
		}

		if hub != nil {
			resp.WebSocketClients = hub.ClientCount()
		}
		if sweep != nil {
			resp.NextRefreshSweepAt = sweep.NextRun()
			resp.LastRefreshSweepAt = sweep.LastRun()
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("writing response")
	}
}

// decodeBody decodes a JSON request body into dst. An empty body leaves dst
// untouched. It writes a 400 and returns false on malformed input.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
		return false
	}
	return true
}
