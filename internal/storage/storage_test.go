package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plan-sync/backend/internal/storage/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(context.Background(), db))
	return db
}

func strPtr(s string) *string { return &s }

func TestRunMigrations_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, RunMigrations(context.Background(), db))

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestApplyMigration_RollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	err := applyMigration(ctx, db, migration{
		Name:       "999_broken.sql",
		Statements: []string{"CREATE TABLE scratch (id TEXT)", "THIS IS NOT SQL"},
	})
	require.Error(t, err)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&n))
	assert.Equal(t, 1, n)

	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'scratch'").Scan(&n))
	assert.Zero(t, n)
}

func TestRebind(t *testing.T) {
	sqlite := &DB{driver: DriverSQLite}
	pg := &DB{driver: DriverPostgres}

	q := "SELECT * FROM t WHERE a = ? AND b = ?"
	assert.Equal(t, q, sqlite.Rebind(q))
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.Rebind(q))
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (x INT);\n\n CREATE INDEX i ON a (x);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a (x)"}, stmts)
}

func TestTaskRepository_ListPendingOrdersByPriority(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(setupTestDB(t))

	due := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	items := []*models.WorkItem{
		{UserID: "u1", Title: "low", Priority: models.PriorityLow, EstimatedMinutes: 30},
		{UserID: "u1", Title: "urgent", Priority: models.PriorityUrgent, EstimatedMinutes: 60},
		{UserID: "u1", Title: "high-undated", Priority: models.PriorityHigh, EstimatedMinutes: 45},
		{UserID: "u1", Title: "high-dated", Priority: models.PriorityHigh, EstimatedMinutes: 45, DueAt: &due},
		{UserID: "u2", Title: "someone else", EstimatedMinutes: 15},
	}
	for _, item := range items {
		require.NoError(t, repo.Create(ctx, item))
	}

	pending, err := repo.ListPendingWorkItems(ctx, "u1")
	require.NoError(t, err)

	titles := make([]string, 0, len(pending))
	for _, p := range pending {
		titles = append(titles, p.Title)
	}
	assert.Equal(t, []string{"urgent", "high-dated", "high-undated", "low"}, titles)
	require.NotNil(t, pending[1].DueAt)
	assert.True(t, due.Equal(*pending[1].DueAt))
}

func TestTaskRepository_Complete(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(setupTestDB(t))

	item := &models.WorkItem{UserID: "u1", Title: "write report", EstimatedMinutes: 90}
	require.NoError(t, repo.Create(ctx, item))
	assert.Equal(t, models.PriorityMedium, item.Priority)

	require.NoError(t, repo.Complete(ctx, "u1", item.ID))

	pending, err := repo.ListPendingWorkItems(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	err = repo.Complete(ctx, "u2", item.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.Complete(ctx, "u1", item.ID)
	assert.ErrorIs(t, err, ErrNotFound, "already completed")
}

func TestPreferenceRepository_DefaultsAndUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewPreferenceRepository(setupTestDB(t))

	prefs, err := repo.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPreferences("u1"), prefs)

	require.NoError(t, repo.Upsert(ctx, &models.SchedulingPreferences{
		UserID: "u1", WorkStart: "08:00", WorkEnd: "16:30", Timezone: "Europe/Berlin",
	}))
	require.NoError(t, repo.Upsert(ctx, &models.SchedulingPreferences{
		UserID: "u1", WorkStart: "10:00", WorkEnd: "18:00", Timezone: "Europe/Berlin",
	}))

	prefs, err = repo.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "10:00", prefs.WorkStart)
	assert.Equal(t, "18:00", prefs.WorkEnd)
	assert.Equal(t, "Europe/Berlin", prefs.Timezone)
}

func TestCredentialRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewCredentialRepository(setupTestDB(t))

	cred, err := repo.Get(ctx, "u1", models.ProviderMicrosoft)
	require.NoError(t, err)
	assert.Nil(t, cred)

	expiry := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, repo.Connect(ctx, &models.CalendarCredential{
		UserID:       "u1",
		Provider:     models.ProviderMicrosoft,
		AccountID:    strPtr("acct-1"),
		AccessToken:  strPtr("access-1"),
		RefreshToken: strPtr("refresh-1"),
		ExpiresAt:    &expiry,
	}))

	cred, err = repo.Get(ctx, "u1", models.ProviderMicrosoft)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.True(t, cred.IsConnected())
	assert.Equal(t, "access-1", cred.Access())
	assert.Equal(t, "refresh-1", cred.Refresh())
	require.NotNil(t, cred.ExpiresAt)
	assert.True(t, expiry.Equal(*cred.ExpiresAt))

	newExpiry := expiry.Add(time.Hour)
	require.NoError(t, repo.UpdateTokens(ctx, "u1", models.ProviderMicrosoft, "access-2", "refresh-2", newExpiry))

	syncedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.MarkSynced(ctx, "u1", models.ProviderMicrosoft, syncedAt))

	cred, err = repo.Get(ctx, "u1", models.ProviderMicrosoft)
	require.NoError(t, err)
	assert.Equal(t, "access-2", cred.Access())
	assert.Equal(t, "refresh-2", cred.Refresh())
	require.NotNil(t, cred.LastSyncedAt)
	assert.True(t, syncedAt.Equal(*cred.LastSyncedAt))

	require.NoError(t, repo.Disconnect(ctx, "u1", models.ProviderMicrosoft))

	cred, err = repo.Get(ctx, "u1", models.ProviderMicrosoft)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.False(t, cred.IsConnected())
	assert.Nil(t, cred.AccountID)
	assert.Nil(t, cred.AccessToken)
	assert.Nil(t, cred.RefreshToken)
	assert.Nil(t, cred.ExpiresAt)
	assert.Nil(t, cred.LastSyncedAt)

	err = repo.UpdateTokens(ctx, "u1", models.ProviderMicrosoft, "a", "r", newExpiry)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCredentialRepository_ListExpiringBefore(t *testing.T) {
	ctx := context.Background()
	repo := NewCredentialRepository(setupTestDB(t))

	now := time.Now().UTC()
	soon := now.Add(2 * time.Minute)
	later := now.Add(2 * time.Hour)

	for _, c := range []struct {
		user    string
		refresh *string
		expires *time.Time
	}{
		{"soon", strPtr("r"), &soon},
		{"later", strPtr("r"), &later},
		{"no-refresh", nil, &soon},
	} {
		require.NoError(t, repo.Connect(ctx, &models.CalendarCredential{
			UserID:       c.user,
			Provider:     models.ProviderMicrosoft,
			AccessToken:  strPtr("a"),
			RefreshToken: c.refresh,
			ExpiresAt:    c.expires,
		}))
	}

	creds, err := repo.ListExpiringBefore(ctx, models.ProviderMicrosoft, now.Add(10*time.Minute))
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "soon", creds[0].UserID)
}

func TestSyncRunRepository_RecordAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewSyncRunRepository(setupTestDB(t))

	require.NoError(t, repo.Record(ctx, &models.SyncRun{
		UserID: "u1", PlanKind: models.PlanKindDaily, PlanDate: "2026-03-02", State: "completed", EventsCreated: 4,
	}))
	require.NoError(t, repo.Record(ctx, &models.SyncRun{
		UserID: "u1", PlanKind: models.PlanKindWeekly, PlanDate: "2026-03-02", State: "partially_failed",
		EventsCreated: 2, SyncError: strPtr("calendar sync stopped after 2 of 7 events"),
	}))

	runs, err := repo.ListByUser(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	other, err := repo.ListByUser(ctx, "u2", 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}
