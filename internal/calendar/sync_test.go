package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plan-sync/backend/internal/provider"
	"github.com/plan-sync/backend/internal/storage/models"
)

type fakeCreator struct {
	mu     sync.Mutex
	calls  []provider.EventRequest
	failAt int // 1-based call number that fails; 0 never fails
}

func (f *fakeCreator) CreateEvent(_ context.Context, accessToken string, ev provider.EventRequest) (*provider.CreatedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, ev)
	if f.failAt > 0 && len(f.calls) == f.failAt {
		return nil, &provider.APIError{StatusCode: 429, Code: "TooManyRequests", Message: "slow down"}
	}
	return &provider.CreatedEvent{ID: fmt.Sprintf("evt-%d", len(f.calls))}, nil
}

type fakeTokens struct {
	token string
	err   error
	calls int
}

func (f *fakeTokens) EnsureValidAccessToken(context.Context, *models.CalendarCredential) (string, error) {
	f.calls++
	return f.token, f.err
}

func connectedCred() *models.CalendarCredential {
	return &models.CalendarCredential{UserID: "u1", Provider: models.ProviderMicrosoft, Connected: true}
}

func taskBlocks(n int) []models.TimeBlock {
	blocks := make([]models.TimeBlock, 0, n)
	for i := 0; i < n; i++ {
		blocks = append(blocks, models.TimeBlock{
			Type:      models.BlockTypeTask,
			Start:     fmt.Sprintf("%02d:00", 8+i),
			End:       fmt.Sprintf("%02d:45", 8+i),
			TaskTitle: fmt.Sprintf("Task %d", i+1),
			Notes:     "note",
		})
	}
	return blocks
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(models.DateLayout, s)
	require.NoError(t, err)
	return d
}

func TestMaterialize_ZeroOffsetRoundTrip(t *testing.T) {
	date := day(t, "2025-03-10")
	block := models.TimeBlock{Type: "task", Start: "09:30", End: "10:15", TaskTitle: "x"}

	start, end, err := Materialize(date, block, 0)
	require.NoError(t, err)

	assert.Equal(t, "09:30", start.Format("15:04"))
	assert.Equal(t, "10:15", end.Format("15:04"))
	assert.Equal(t, "2025-03-10", start.Format(models.DateLayout))
	assert.True(t, start.Before(end))

	start2, end2, err := Materialize(date, block, 0)
	require.NoError(t, err)
	assert.True(t, start.Equal(start2))
	assert.True(t, end.Equal(end2))
}

func TestMaterialize_SubtractsOffset(t *testing.T) {
	date := day(t, "2025-03-10")
	block := models.TimeBlock{Type: "task", Start: "09:00", End: "10:00", TaskTitle: "x"}

	start, end, err := Materialize(date, block, 60)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), end)

	start, _, err = Materialize(date, block, -120)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC), start)
}

func TestMaterialize_InvalidClock(t *testing.T) {
	_, _, err := Materialize(time.Now(), models.TimeBlock{Start: "9am", End: "10:00"}, 0)
	assert.Error(t, err)
}

func TestSyncDaily_AllBlocks(t *testing.T) {
	creator := &fakeCreator{}
	tokens := &fakeTokens{token: "tok"}
	svc := NewSyncService(creator, tokens, nil)

	plan := &models.DailyPlan{Blocks: taskBlocks(3)}
	out := svc.SyncDaily(context.Background(), connectedCred(), day(t, "2025-03-10"), plan, 0)

	require.NoError(t, out.Err)
	assert.Equal(t, StateCompleted, out.State)
	assert.True(t, out.Succeeded())
	assert.Equal(t, 3, out.Actionable)
	require.Len(t, out.Events, 3)
	assert.Equal(t, "evt-1", out.Events[0].EventID)
	assert.Equal(t, "Task 1", out.Events[0].TaskTitle)
	assert.Equal(t, "08:00", out.Events[0].Start)

	require.Len(t, creator.calls, 3)
	assert.Equal(t, "[Plan] Task 1", creator.calls[0].Title)
	assert.Equal(t, "note", creator.calls[0].Description)
	assert.Equal(t, time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC), creator.calls[0].Start)
}

func TestSyncDaily_StopsAtFirstFailure(t *testing.T) {
	creator := &fakeCreator{failAt: 6}
	svc := NewSyncService(creator, &fakeTokens{token: "tok"}, nil)

	plan := &models.DailyPlan{Blocks: taskBlocks(8)}
	out := svc.SyncDaily(context.Background(), connectedCred(), day(t, "2025-03-10"), plan, 0)

	assert.Equal(t, StatePartiallyFailed, out.State)
	require.Error(t, out.Err)
	var apiErr *provider.APIError
	assert.True(t, errors.As(out.Err, &apiErr))
	assert.Len(t, out.Events, 5)
	assert.Equal(t, 8, out.Actionable)
	assert.Equal(t, 6, out.Attempted)
	assert.Len(t, creator.calls, 6, "no attempts after the failure")
}

func TestSyncDaily_SkipsBreaksAndUntitled(t *testing.T) {
	creator := &fakeCreator{}
	svc := NewSyncService(creator, &fakeTokens{token: "tok"}, nil)

	plan := &models.DailyPlan{Blocks: []models.TimeBlock{
		{Type: "task", Start: "09:00", End: "10:00", TaskTitle: "Write"},
		{Type: "break", Start: "10:00", End: "10:15", TaskTitle: "Coffee"},
		{Type: "task", Start: "10:15", End: "11:00", TaskTitle: "  "},
		{Type: "meeting", Start: "11:00", End: "11:30", TaskTitle: "Standup"},
	}}
	out := svc.SyncDaily(context.Background(), connectedCred(), day(t, "2025-03-10"), plan, 0)

	assert.Equal(t, StateCompleted, out.State)
	require.Len(t, out.Events, 2)
	assert.Equal(t, "Write", out.Events[0].TaskTitle)
	assert.Equal(t, "Standup", out.Events[1].TaskTitle)
}

func TestSyncDaily_NothingActionableSkipsToken(t *testing.T) {
	tokens := &fakeTokens{token: "tok"}
	svc := NewSyncService(&fakeCreator{}, tokens, nil)

	plan := &models.DailyPlan{Blocks: []models.TimeBlock{{Type: "break", Start: "09:00", End: "09:15"}}}
	out := svc.SyncDaily(context.Background(), connectedCred(), day(t, "2025-03-10"), plan, 0)

	assert.Equal(t, StateCompleted, out.State)
	assert.NotNil(t, out.Events)
	assert.Empty(t, out.Events)
	assert.Zero(t, tokens.calls)
}

func TestSyncDaily_TokenFailureAborts(t *testing.T) {
	creator := &fakeCreator{}
	svc := NewSyncService(creator, &fakeTokens{err: errors.New("refresh failed")}, nil)

	plan := &models.DailyPlan{Blocks: taskBlocks(2)}
	out := svc.SyncDaily(context.Background(), connectedCred(), day(t, "2025-03-10"), plan, 0)

	assert.Equal(t, StateAborted, out.State)
	assert.EqualError(t, out.Err, "refresh failed")
	assert.NotNil(t, out.Events)
	assert.Empty(t, out.Events)
	assert.Empty(t, creator.calls)
}

func TestSyncDaily_RerunCreatesDuplicates(t *testing.T) {
	creator := &fakeCreator{}
	svc := NewSyncService(creator, &fakeTokens{token: "tok"}, nil)
	plan := &models.DailyPlan{Blocks: taskBlocks(2)}

	first := svc.SyncDaily(context.Background(), connectedCred(), day(t, "2025-03-10"), plan, 0)
	second := svc.SyncDaily(context.Background(), connectedCred(), day(t, "2025-03-10"), plan, 0)

	assert.Len(t, first.Events, 2)
	assert.Len(t, second.Events, 2)
	assert.Len(t, creator.calls, 4)
	assert.NotEqual(t, first.Events[0].EventID, second.Events[0].EventID)
}

func TestSyncDaily_CanceledContextStillSyncs(t *testing.T) {
	creator := &fakeCreator{}
	svc := NewSyncService(creator, &fakeTokens{token: "tok"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := svc.SyncDaily(ctx, connectedCred(), day(t, "2025-03-10"), &models.DailyPlan{Blocks: taskBlocks(2)}, 0)
	assert.Equal(t, StateCompleted, out.State)
	assert.Len(t, out.Events, 2)
}

func TestSyncWeekly_DayTaggedInOrder(t *testing.T) {
	creator := &fakeCreator{}
	svc := NewSyncService(creator, &fakeTokens{token: "tok"}, nil)

	start := day(t, "2025-03-10")
	plan := &models.WeeklyPlan{}
	for i := 0; i < models.WeekDays; i++ {
		d := start.AddDate(0, 0, i)
		plan.Days = append(plan.Days, models.PlanDay{
			Date:    d.Format(models.DateLayout),
			DayName: d.Weekday().String(),
			Plan: models.DailyPlan{Blocks: []models.TimeBlock{
				{Type: "task", Start: "09:00", End: "10:00", TaskTitle: fmt.Sprintf("Day %d", i+1)},
				{Type: "break", Start: "10:00", End: "10:15"},
			}},
		})
	}

	out := svc.SyncWeekly(context.Background(), connectedCred(), plan, 0)

	assert.Equal(t, StateCompleted, out.State)
	require.Len(t, out.Events, 7)
	for i, ref := range out.Events {
		d := start.AddDate(0, 0, i)
		assert.Equal(t, d.Format(models.DateLayout), ref.Date)
		assert.Equal(t, d.Weekday().String(), ref.DayName)
		assert.Equal(t, fmt.Sprintf("Day %d", i+1), ref.TaskTitle)
	}
	assert.Equal(t, "[Plan · Monday] Day 1", creator.calls[0].Title)
	assert.Equal(t, time.Date(2025, 3, 16, 9, 0, 0, 0, time.UTC), creator.calls[6].Start)
}

type fakeSweeper struct {
	horizon  time.Duration
	provider string
	calls    int
}

func (f *fakeSweeper) SweepExpiring(_ context.Context, providerName string, horizon time.Duration) (int, error) {
	f.calls++
	f.provider = providerName
	f.horizon = horizon
	return 2, nil
}

func TestScheduler_RunNow(t *testing.T) {
	sw := &fakeSweeper{}
	s := NewScheduler(sw, 10*time.Minute)

	assert.Nil(t, s.LastRun())
	assert.Nil(t, s.NextRun())

	n := s.RunNow(context.Background())
	assert.Equal(t, 2, n)
	assert.Equal(t, models.ProviderMicrosoft, sw.provider)
	assert.Equal(t, 15*time.Minute, sw.horizon)
	assert.NotNil(t, s.LastRun())
}

func TestScheduler_StartSchedulesNextRun(t *testing.T) {
	s := NewScheduler(&fakeSweeper{}, 0)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return s.NextRun() != nil }, time.Second, 10*time.Millisecond)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), *s.NextRun(), time.Minute)
}
