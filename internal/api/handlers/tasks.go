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
	"github.com/plan-sync/backend/internal/storage"
	"github.com/plan-sync/backend/internal/storage/models"
)

// TaskStore manages work items.
type TaskStore interface {
	Create(ctx context.Context, item *models.WorkItem) error
	ListPendingWorkItems(ctx context.Context, userID string) ([]models.WorkItem, error)
	Complete(ctx context.Context, userID, id string) error
}

// CreateTaskRequest is the body of a work item creation.
type CreateTaskRequest struct {
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Priority         string     `json:"priority"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	DueAt            *time.Time `json:"due_at,omitempty"`
}

// ListTasks returns a user's pending work items.
func ListTasks(tasks TaskStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["userID"]

		items, err := tasks.ListPendingWorkItems(r.Context(), userID)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("listing work items")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query work items")
			return
		}
		if items == nil {
			items = []models.WorkItem{}
		}

		writeJSON(w, http.StatusOK, items)
	}
}

// CreateTask adds a pending work item.
func CreateTask(tasks TaskStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["userID"]

		var req CreateTaskRequest
		if !decodeBody(w, r, &req) {
			return
		}

		title := strings.TrimSpace(req.Title)
		if title == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Title is required")
			return
		}
		if req.EstimatedMinutes < 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "estimated_minutes must not be negative")
			return
		}
		priority, err := models.ParsePriority(req.Priority)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
			return
		}

		item := &models.WorkItem{
			UserID:           userID,
			Title:            title,
			Description:      req.Description,
			Priority:         priority,
			EstimatedMinutes: req.EstimatedMinutes,
			DueAt:            req.DueAt,
		}
		if err := tasks.Create(r.Context(), item); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("creating work item")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create work item")
			return
		}

		writeJSON(w, http.StatusCreated, item)
	}
}

// CompleteTask marks a work item completed.
func CompleteTask(tasks TaskStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		err := tasks.Complete(r.Context(), vars["userID"], vars["taskID"])
		if errors.Is(err, storage.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Work item not found")
			return
		}
		if err != nil {
			log.Error().Err(err).Str("user_id", vars["userID"]).Msg("completing work item")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to complete work item")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
