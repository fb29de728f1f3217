package models

import (
	"time"
)

// ProviderMicrosoft identifies the Microsoft Graph calendar provider.
const ProviderMicrosoft = "microsoft"

// CalendarCredential is a user's stored connection to an external calendar provider.
// There is at most one per (user, provider).
type CalendarCredential struct {
	UserID       string     `json:"user_id"`
	Provider     string     `json:"provider"`
	Connected    bool       `json:"connected"`
	AccountID    *string    `json:"account_id,omitempty"`
	AccessToken  *string    `json:"-"`
	RefreshToken *string    `json:"-"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Access returns the stored access token, or "" when absent.
func (c *CalendarCredential) Access() string {
	if c == nil || c.AccessToken == nil {
		return ""
	}
	return *c.AccessToken
}

// Refresh returns the stored refresh token, or "" when absent.
func (c *CalendarCredential) Refresh() string {
	if c == nil || c.RefreshToken == nil {
		return ""
	}
	return *c.RefreshToken
}

// IsConnected reports whether the credential exists and is marked connected.
func (c *CalendarCredential) IsConnected() bool {
	return c != nil && c.Connected
}
