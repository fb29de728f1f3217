// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plan-sync/backend/internal/api/handlers"
	"github.com/plan-sync/backend/internal/api/middleware"
	"github.com/plan-sync/backend/internal/storage"
	"github.com/plan-sync/backend/internal/websocket"
)

// Deps are the collaborators the routes are wired to.
type Deps struct {
	DB          *storage.DB
	Hub         *websocket.Hub
	Planner     handlers.PlanService
	Auth        handlers.CalendarAuth // nil when no provider is configured
	Credentials handlers.CredentialStore
	Tasks       handlers.TaskStore
	Preferences handlers.PreferenceStore
	SyncRuns    handlers.SyncRunLister
	Sweep       handlers.NextRunner
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	broadcaster := websocket.NewEventBroadcaster(d.Hub)
	states := handlers.NewOAuthStates(handlers.DefaultStateTTL)

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(d.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(d.DB, d.Hub, d.Sweep)).Methods("GET")

	// WebSocket endpoint
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(d.Hub)).Methods("GET")

	// OAuth redirect target
	api.HandleFunc("/calendar/callback", handlers.CalendarCallback(d.Auth, states, d.Credentials, broadcaster)).Methods("GET")

	user := api.PathPrefix("/users/{userID}").Subrouter()

	// Plan endpoints
	user.HandleFunc("/plans/daily", handlers.GenerateDailyPlan(d.Planner)).Methods("POST")
	user.HandleFunc("/plans/weekly", handlers.GenerateWeeklyPlan(d.Planner)).Methods("POST")

	// Calendar connection endpoints
	user.HandleFunc("/calendar", handlers.GetCalendarStatus(d.Credentials)).Methods("GET")
	user.HandleFunc("/calendar", handlers.DisconnectCalendar(d.Credentials, broadcaster)).Methods("DELETE")
	user.HandleFunc("/calendar/connect", handlers.ConnectCalendar(d.Auth, states)).Methods("GET")

	// Work item endpoints
	user.HandleFunc("/tasks", handlers.ListTasks(d.Tasks)).Methods("GET")
	user.HandleFunc("/tasks", handlers.CreateTask(d.Tasks)).Methods("POST")
	user.HandleFunc("/tasks/{taskID}/complete", handlers.CompleteTask(d.Tasks)).Methods("POST")

	// Preference endpoints
	user.HandleFunc("/preferences", handlers.GetPreferences(d.Preferences)).Methods("GET")
	user.HandleFunc("/preferences", handlers.UpdatePreferences(d.Preferences)).Methods("PUT")

	// Sync history
	user.HandleFunc("/sync-runs", handlers.ListSyncRuns(d.SyncRuns)).Methods("GET")

	return r
}
