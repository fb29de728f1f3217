package storage

import (
	"context"
	"fmt"

	"github.com/plan-sync/backend/internal/storage/models"
)

// TaskRepository provides data access for work items.
type TaskRepository struct {
	BaseRepository
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a new pending work item.
func (r *TaskRepository) Create(ctx context.Context, item *models.WorkItem) error {
	item.ID = GenerateID()
	item.Status = models.WorkItemPending
	item.CreatedAt = r.Now()
	item.UpdatedAt = item.CreatedAt

	if item.Priority == "" {
		item.Priority = models.PriorityMedium
	}

	_, err := r.exec(ctx, `
		INSERT INTO work_items (
			id, user_id, title, description, priority, estimated_minutes,
			due_at, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.ID, item.UserID, item.Title, item.Description, string(item.Priority),
		item.EstimatedMinutes, item.DueAt, item.Status, item.CreatedAt, item.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("inserting work item: %w", err)
	}

	return nil
}

// ListPendingWorkItems returns a user's pending work items, most urgent first,
// then by due date with undated items last.
func (r *TaskRepository) ListPendingWorkItems(ctx context.Context, userID string) ([]models.WorkItem, error) {
	rows, err := r.query(ctx, `
		SELECT id, user_id, title, description, priority, estimated_minutes,
		       due_at, status, created_at, updated_at
		FROM work_items
		WHERE user_id = ? AND status = ?
		ORDER BY CASE priority
		           WHEN 'urgent' THEN 0
		           WHEN 'high' THEN 1
		           WHEN 'medium' THEN 2
		           ELSE 3
		         END,
		         due_at IS NULL, due_at, created_at
	`, userID, models.WorkItemPending)
	if err != nil {
		return nil, fmt.Errorf("querying work items: %w", err)
	}
	defer rows.Close()

	items := []models.WorkItem{}
	for rows.Next() {
		var item models.WorkItem
		var priority string
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.Title, &item.Description, &priority,
			&item.EstimatedMinutes, &item.DueAt, &item.Status, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning work item: %w", err)
		}
		item.Priority = models.Priority(priority)
		items = append(items, item)
	}

	return items, rows.Err()
}

// Complete marks a user's pending work item as completed. Completing an
// item twice returns ErrNotFound.
func (r *TaskRepository) Complete(ctx context.Context, userID, id string) error {
	result, err := r.exec(ctx, `
		UPDATE work_items SET status = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND status = ?
	`, models.WorkItemCompleted, r.Now(), id, userID, models.WorkItemPending)

	if err != nil {
		return fmt.Errorf("completing work item: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("work item %s: %w", id, ErrNotFound)
	}

	return nil
}
