// Package token keeps calendar provider access tokens valid, refreshing and
// persisting them before they expire.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/plan-sync/backend/internal/metrics"
	"github.com/plan-sync/backend/internal/provider"
	"github.com/plan-sync/backend/internal/storage/models"
)

// RefreshMargin is how far ahead of expiry a token is treated as expired.
const RefreshMargin = 5 * time.Minute

var (
	// ErrNotConnected means the user has no active calendar connection.
	ErrNotConnected = errors.New("calendar not connected")
	// ErrRefreshUnavailable means a refresh is needed but no refresh token is stored.
	ErrRefreshUnavailable = errors.New("calendar authorization expired, reconnect the calendar")
	// ErrRefreshFailed means the provider rejected or failed the refresh.
	ErrRefreshFailed = errors.New("calendar token refresh failed")
)

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*provider.TokenGrant, error)
}

// Store persists refreshed tokens.
type Store interface {
	UpdateTokens(ctx context.Context, userID, providerName, accessToken, refreshToken string, expiresAt time.Time) error
	ListExpiringBefore(ctx context.Context, providerName string, cutoff time.Time) ([]models.CalendarCredential, error)
}

// Manager hands out valid access tokens.
type Manager struct {
	refresher Refresher
	store     Store
	now       func() time.Time
	group     singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a token manager.
func NewManager(refresher Refresher, store Store, opts ...Option) *Manager {
	m := &Manager{
		refresher: refresher,
		store:     store,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NeedsRefresh reports whether cred's access token must be refreshed at now.
func NeedsRefresh(cred *models.CalendarCredential, now time.Time) bool {
	if cred.Access() == "" || cred.ExpiresAt == nil {
		return true
	}
	return !cred.ExpiresAt.After(now.Add(RefreshMargin))
}

type refreshed struct {
	access    string
	refresh   string
	expiresAt time.Time
}

// EnsureValidAccessToken returns an access token valid for at least RefreshMargin,
// refreshing and persisting a new one when needed. On success cred is updated in place.
func (m *Manager) EnsureValidAccessToken(ctx context.Context, cred *models.CalendarCredential) (string, error) {
	if !cred.IsConnected() {
		return "", ErrNotConnected
	}

	if !NeedsRefresh(cred, m.now()) {
		return cred.Access(), nil
	}

	if cred.Refresh() == "" {
		return "", ErrRefreshUnavailable
	}

	if err := m.refresh(ctx, cred); err != nil {
		return "", err
	}
	return cred.Access(), nil
}

// refresh calls the provider, persists the result, then updates cred. Concurrent
// refreshes for the same user and provider share one provider call.
func (m *Manager) refresh(ctx context.Context, cred *models.CalendarCredential) error {
	key := cred.UserID + "/" + cred.Provider
	oldRefresh := cred.Refresh()

	v, err, shared := m.group.Do(key, func() (interface{}, error) {
		grant, err := m.refresher.RefreshToken(ctx, oldRefresh)
		if err != nil {
			metrics.TokenRefreshTotal.WithLabelValues(metrics.ResultFailure).Inc()
			return nil, err
		}
		metrics.TokenRefreshTotal.WithLabelValues(metrics.ResultSuccess).Inc()

		r := refreshed{
			access:    grant.AccessToken,
			refresh:   grant.RefreshToken,
			expiresAt: m.now().Add(time.Duration(grant.ExpiresIn) * time.Second).UTC(),
		}
		if r.refresh == "" {
			r.refresh = oldRefresh
		}

		if err := m.store.UpdateTokens(ctx, cred.UserID, cred.Provider, r.access, r.refresh, r.expiresAt); err != nil {
			return nil, fmt.Errorf("persisting refreshed token: %w", err)
		}
		return r, nil
	})
	if err != nil {
		log.Warn().Err(err).Str("user_id", cred.UserID).Str("provider", cred.Provider).Msg("token refresh failed")
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	r := v.(refreshed)

	cred.AccessToken = &r.access
	cred.RefreshToken = &r.refresh
	cred.ExpiresAt = &r.expiresAt

	log.Debug().Str("user_id", cred.UserID).Time("expires_at", r.expiresAt).Bool("shared", shared).Msg("access token refreshed")
	return nil
}

// SweepExpiring refreshes every connected credential whose access token expires
// within horizon. It returns the number refreshed; individual failures are logged.
func (m *Manager) SweepExpiring(ctx context.Context, providerName string, horizon time.Duration) (int, error) {
	creds, err := m.store.ListExpiringBefore(ctx, providerName, m.now().Add(horizon))
	if err != nil {
		return 0, fmt.Errorf("listing expiring credentials: %w", err)
	}

	n := 0
	for i := range creds {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		if err := m.refresh(ctx, &creds[i]); err != nil {
			continue
		}
		n++
	}

	return n, nil
}
