package models

import (
	"time"
)

// Plan kind constants
const (
	PlanKindDaily  = "daily"
	PlanKindWeekly = "weekly"
)

// SyncRun is an audit record of one plan sync attempt.
type SyncRun struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	PlanKind      string    `json:"plan_kind"`
	PlanDate      string    `json:"plan_date"` // date or week start, YYYY-MM-DD
	State         string    `json:"state"`
	EventsCreated int       `json:"events_created"`
	SyncError     *string   `json:"sync_error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
