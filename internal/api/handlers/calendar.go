package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/plan-sync/backend/internal/api/middleware"
	"github.com/plan-sync/backend/internal/provider"
	"github.com/plan-sync/backend/internal/storage"
	"github.com/plan-sync/backend/internal/storage/models"
	"github.com/plan-sync/backend/internal/websocket"
)

// CalendarAuth runs the provider's OAuth flow.
type CalendarAuth interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*provider.TokenGrant, error)
	GetAccount(ctx context.Context, accessToken string) (*provider.Account, error)
}

// CredentialStore reads and writes calendar credentials.
type CredentialStore interface {
	Get(ctx context.Context, userID, provider string) (*models.CalendarCredential, error)
	Connect(ctx context.Context, cred *models.CalendarCredential) error
	Disconnect(ctx context.Context, userID, provider string) error
}

// ConnectResponse carries the URL the user must visit to grant access.
type ConnectResponse struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

// CalendarStatusResponse describes a user's calendar connection. Tokens are never exposed.
type CalendarStatusResponse struct {
	UserID       string     `json:"user_id"`
	Provider     string     `json:"provider"`
	Connected    bool       `json:"connected"`
	AccountID    *string    `json:"account_id,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// ConnectCalendar starts the OAuth flow for a user.
func ConnectCalendar(auth CalendarAuth, states *OAuthStates) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auth == nil {
			middleware.WriteError(w, http.StatusServiceUnavailable, middleware.ErrNotConfigured, "Calendar provider is not configured")
			return
		}

		userID := mux.Vars(r)["userID"]
		state := states.Issue(userID)

		writeJSON(w, http.StatusOK, ConnectResponse{
			AuthURL: auth.AuthCodeURL(state),
			State:   state,
		})
	}
}

// CalendarCallback completes the OAuth flow and stores the credential.
func CalendarCallback(auth CalendarAuth, states *OAuthStates, creds CredentialStore, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auth == nil {
			middleware.WriteError(w, http.StatusServiceUnavailable, middleware.ErrNotConfigured, "Calendar provider is not configured")
			return
		}

		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Authorization was not granted: "+q.Get("error_description"))
			return
		}

		code, state := q.Get("code"), q.Get("state")
		if code == "" || state == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Missing code or state")
			return
		}

		userID, ok := states.Redeem(state)
		if !ok {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Unknown or expired state, start the connection again")
			return
		}

		ctx := r.Context()
		grant, err := auth.ExchangeCode(ctx, code)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("exchanging authorization code")
			broadcaster.BroadcastCalendarConnected(websocket.CalendarConnectionPayload{
				UserID:   userID,
				Provider: models.ProviderMicrosoft,
				Error:    "authorization code exchange failed",
			})
			middleware.WriteError(w, http.StatusBadGateway, middleware.ErrProviderError, "Failed to exchange authorization code")
			return
		}

		account, err := auth.GetAccount(ctx, grant.AccessToken)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("reading calendar account")
			middleware.WriteError(w, http.StatusBadGateway, middleware.ErrProviderError, "Failed to read calendar account")
			return
		}

		expiresAt := time.Now().UTC().Add(time.Duration(grant.ExpiresIn) * time.Second)
		cred := &models.CalendarCredential{
			UserID:       userID,
			Provider:     models.ProviderMicrosoft,
			AccountID:    &account.ID,
			AccessToken:  &grant.AccessToken,
			RefreshToken: &grant.RefreshToken,
			ExpiresAt:    &expiresAt,
		}
		if grant.RefreshToken == "" {
			cred.RefreshToken = nil
		}

		if err := creds.Connect(ctx, cred); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("storing calendar credential")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to store calendar connection")
			return
		}

		log.Info().Str("user_id", userID).Str("account_id", account.ID).Msg("calendar connected")
		broadcaster.BroadcastCalendarConnected(websocket.CalendarConnectionPayload{
			UserID:    userID,
			Provider:  cred.Provider,
			AccountID: account.ID,
		})

		writeJSON(w, http.StatusOK, statusOf(userID, cred))
	}
}

// DisconnectCalendar clears a user's calendar credential.
func DisconnectCalendar(creds CredentialStore, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["userID"]

		err := creds.Disconnect(r.Context(), userID, models.ProviderMicrosoft)
		if errors.Is(err, storage.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Calendar not connected")
			return
		}
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("disconnecting calendar")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to disconnect calendar")
			return
		}

		broadcaster.BroadcastCalendarDisconnected(websocket.CalendarConnectionPayload{
			UserID:   userID,
			Provider: models.ProviderMicrosoft,
		})

		w.WriteHeader(http.StatusNoContent)
	}
}

// GetCalendarStatus reports a user's calendar connection.
func GetCalendarStatus(creds CredentialStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["userID"]

		cred, err := creds.Get(r.Context(), userID, models.ProviderMicrosoft)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("loading calendar credential")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load calendar status")
			return
		}

		writeJSON(w, http.StatusOK, statusOf(userID, cred))
	}
}

func statusOf(userID string, cred *models.CalendarCredential) CalendarStatusResponse {
	resp := CalendarStatusResponse{UserID: userID, Provider: models.ProviderMicrosoft}
	if cred == nil {
		return resp
	}
	resp.Connected = cred.Connected
	resp.AccountID = cred.AccountID
	resp.ExpiresAt = cred.ExpiresAt
	resp.LastSyncedAt = cred.LastSyncedAt
	return resp
}
