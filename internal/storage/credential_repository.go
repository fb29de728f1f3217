package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/plan-sync/backend/internal/storage/models"
)

// CredentialRepository provides data access for calendar credentials.
type CredentialRepository struct {
	BaseRepository
}

// NewCredentialRepository creates a new credential repository.
func NewCredentialRepository(db *DB) *CredentialRepository {
	return &CredentialRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const credentialColumns = `user_id, provider, connected, account_id, access_token, refresh_token,
		       expires_at, last_synced_at, updated_at`

func scanCredential(row interface{ Scan(dest ...any) error }, cred *models.CalendarCredential) error {
	return row.Scan(
		&cred.UserID, &cred.Provider, &cred.Connected, &cred.AccountID,
		&cred.AccessToken, &cred.RefreshToken, &cred.ExpiresAt,
		&cred.LastSyncedAt, &cred.UpdatedAt,
	)
}

// Get retrieves a user's credential for a provider. Returns nil when none exists.
func (r *CredentialRepository) Get(ctx context.Context, userID, provider string) (*models.CalendarCredential, error) {
	cred := &models.CalendarCredential{}

	err := scanCredential(r.queryRow(ctx, `
		SELECT `+credentialColumns+`
		FROM calendar_credentials WHERE user_id = ? AND provider = ?
	`, userID, provider), cred)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying credential: %w", err)
	}

	return cred, nil
}

// Connect stores a freshly exchanged credential, replacing any previous one.
func (r *CredentialRepository) Connect(ctx context.Context, cred *models.CalendarCredential) error {
	cred.Connected = true
	cred.UpdatedAt = r.Now()

	_, err := r.exec(ctx, `
		INSERT INTO calendar_credentials (
			user_id, provider, connected, account_id, access_token, refresh_token,
			expires_at, last_synced_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			connected = excluded.connected,
			account_id = excluded.account_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`,
		cred.UserID, cred.Provider, cred.Connected, cred.AccountID,
		cred.AccessToken, cred.RefreshToken, cred.ExpiresAt, cred.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}

	return nil
}

// UpdateTokens persists a refreshed token pair and its expiry.
func (r *CredentialRepository) UpdateTokens(ctx context.Context, userID, provider, accessToken, refreshToken string, expiresAt time.Time) error {
	result, err := r.exec(ctx, `
		UPDATE calendar_credentials SET
			access_token = ?, refresh_token = ?, expires_at = ?, updated_at = ?
		WHERE user_id = ? AND provider = ? AND connected = ?
	`, accessToken, refreshToken, expiresAt.UTC(), r.Now(), userID, provider, true)

	if err != nil {
		return fmt.Errorf("updating tokens: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("credential %s/%s: %w", userID, provider, ErrNotFound)
	}

	return nil
}

// MarkSynced records the instant of the last successful plan sync.
func (r *CredentialRepository) MarkSynced(ctx context.Context, userID, provider string, at time.Time) error {
	_, err := r.exec(ctx, `
		UPDATE calendar_credentials SET last_synced_at = ?, updated_at = ?
		WHERE user_id = ? AND provider = ?
	`, at.UTC(), r.Now(), userID, provider)

	if err != nil {
		return fmt.Errorf("updating last synced: %w", err)
	}

	return nil
}

// Disconnect clears every credential field and marks the connection inactive.
func (r *CredentialRepository) Disconnect(ctx context.Context, userID, provider string) error {
	result, err := r.exec(ctx, `
		UPDATE calendar_credentials SET
			connected = ?, account_id = NULL, access_token = NULL, refresh_token = NULL,
			expires_at = NULL, last_synced_at = NULL, updated_at = ?
		WHERE user_id = ? AND provider = ?
	`, false, r.Now(), userID, provider)

	if err != nil {
		return fmt.Errorf("disconnecting credential: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("credential %s/%s: %w", userID, provider, ErrNotFound)
	}

	return nil
}

// ListExpiringBefore returns connected credentials holding a refresh token whose
// access token expires at or before cutoff (or has no recorded expiry).
func (r *CredentialRepository) ListExpiringBefore(ctx context.Context, provider string, cutoff time.Time) ([]models.CalendarCredential, error) {
	rows, err := r.query(ctx, `
		SELECT `+credentialColumns+`
		FROM calendar_credentials
		WHERE provider = ? AND connected = ? AND refresh_token IS NOT NULL
		  AND (expires_at IS NULL OR expires_at <= ?)
		ORDER BY expires_at ASC NULLS FIRST
	`, provider, true, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying expiring credentials: %w", err)
	}
	defer rows.Close()

	var creds []models.CalendarCredential
	for rows.Next() {
		var cred models.CalendarCredential
		if err := scanCredential(rows, &cred); err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		creds = append(creds, cred)
	}

	return creds, rows.Err()
}
