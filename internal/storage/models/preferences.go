package models

import "time"

// SchedulingPreferences holds a user's working window and timezone label.
type SchedulingPreferences struct {
	UserID    string    `json:"user_id"`
	WorkStart string    `json:"work_start"` // Format: "15:04"
	WorkEnd   string    `json:"work_end"`
	Timezone  string    `json:"timezone"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Default working window used when a user has not stored preferences.
const (
	DefaultWorkStart = "09:00"
	DefaultWorkEnd   = "17:00"
	DefaultTimezone  = "UTC"
)

// DefaultPreferences returns the preferences assumed for a user with none stored.
func DefaultPreferences(userID string) SchedulingPreferences {
	return SchedulingPreferences{
		UserID:    userID,
		WorkStart: DefaultWorkStart,
		WorkEnd:   DefaultWorkEnd,
		Timezone:  DefaultTimezone,
	}
}
