package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/plan-sync/backend/internal/storage/models"
)

// PreferenceRepository provides data access for scheduling preferences.
type PreferenceRepository struct {
	BaseRepository
}

// NewPreferenceRepository creates a new preference repository.
func NewPreferenceRepository(db *DB) *PreferenceRepository {
	return &PreferenceRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// GetPreferences returns a user's stored preferences, or the defaults when none are stored.
func (r *PreferenceRepository) GetPreferences(ctx context.Context, userID string) (models.SchedulingPreferences, error) {
	prefs := models.SchedulingPreferences{}

	err := r.queryRow(ctx, `
		SELECT user_id, work_start, work_end, timezone, updated_at
		FROM scheduling_preferences WHERE user_id = ?
	`, userID).Scan(&prefs.UserID, &prefs.WorkStart, &prefs.WorkEnd, &prefs.Timezone, &prefs.UpdatedAt)

	if err == sql.ErrNoRows {
		return models.DefaultPreferences(userID), nil
	}
	if err != nil {
		return prefs, fmt.Errorf("querying preferences: %w", err)
	}

	return prefs, nil
}

// Upsert stores a user's preferences, replacing any previous values.
func (r *PreferenceRepository) Upsert(ctx context.Context, prefs *models.SchedulingPreferences) error {
	prefs.UpdatedAt = r.Now()

	_, err := r.exec(ctx, `
		INSERT INTO scheduling_preferences (user_id, work_start, work_end, timezone, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			work_start = excluded.work_start,
			work_end = excluded.work_end,
			timezone = excluded.timezone,
			updated_at = excluded.updated_at
	`, prefs.UserID, prefs.WorkStart, prefs.WorkEnd, prefs.Timezone, prefs.UpdatedAt)

	if err != nil {
		return fmt.Errorf("storing preferences: %w", err)
	}

	return nil
}
