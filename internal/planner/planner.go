// Package planner produces daily and weekly time-blocked plans from a user's
// pending work items by calling an external planning model.
package planner

import (
	"context"
	"errors"
	"time"

	"github.com/plan-sync/backend/internal/storage/models"
)

// ErrPlanningUnavailable is returned when the planning model fails or returns
// a plan that cannot be used.
var ErrPlanningUnavailable = errors.New("planning unavailable")

// Generator produces plans. Implementations make a single attempt per call.
type Generator interface {
	GenerateDailyPlan(ctx context.Context, items []models.WorkItem, prefs models.SchedulingPreferences, date time.Time) (*models.DailyPlan, error)
	GenerateWeeklyPlan(ctx context.Context, items []models.WorkItem, prefs models.SchedulingPreferences, weekStart time.Time) (*models.WeeklyPlan, error)
}
