package storage

import (
	"context"
	"fmt"

	"github.com/plan-sync/backend/internal/storage/models"
)

// SyncRunRepository provides data access for the plan sync audit trail.
type SyncRunRepository struct {
	BaseRepository
}

// NewSyncRunRepository creates a new sync run repository.
func NewSyncRunRepository(db *DB) *SyncRunRepository {
	return &SyncRunRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Record inserts a sync run.
func (r *SyncRunRepository) Record(ctx context.Context, run *models.SyncRun) error {
	run.ID = GenerateID()
	run.CreatedAt = r.Now()

	_, err := r.exec(ctx, `
		INSERT INTO plan_sync_runs (
			id, user_id, plan_kind, plan_date, state, events_created, sync_error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.UserID, run.PlanKind, run.PlanDate, run.State,
		run.EventsCreated, run.SyncError, run.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("inserting sync run: %w", err)
	}

	return nil
}

// ListByUser returns a user's most recent sync runs, newest first.
func (r *SyncRunRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.query(ctx, `
		SELECT id, user_id, plan_kind, plan_date, state, events_created, sync_error, created_at
		FROM plan_sync_runs
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	defer rows.Close()

	runs := []models.SyncRun{}
	for rows.Next() {
		var run models.SyncRun
		if err := rows.Scan(
			&run.ID, &run.UserID, &run.PlanKind, &run.PlanDate, &run.State,
			&run.EventsCreated, &run.SyncError, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
