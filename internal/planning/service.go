// Package planning runs the plan request pipeline: generate a plan from the
// user's pending work, optionally push it to the connected calendar, and
// assemble a response that always carries the plan.
package planning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/plan-sync/backend/internal/calendar"
	"github.com/plan-sync/backend/internal/metrics"
	"github.com/plan-sync/backend/internal/planner"
	"github.com/plan-sync/backend/internal/storage/models"
	"github.com/plan-sync/backend/internal/token"
)

// ErrNoWorkItems is returned when the user has nothing pending to plan.
var ErrNoWorkItems = errors.New("no pending work items")

// SyncStateSkipped marks a response where no sync was attempted, either because
// it was not requested or the calendar is not connected.
const SyncStateSkipped = "skipped"

// TaskLister reads a user's pending work.
type TaskLister interface {
	ListPendingWorkItems(ctx context.Context, userID string) ([]models.WorkItem, error)
}

// PreferenceGetter reads a user's scheduling preferences.
type PreferenceGetter interface {
	GetPreferences(ctx context.Context, userID string) (models.SchedulingPreferences, error)
}

// CredentialStore reads and stamps calendar credentials.
type CredentialStore interface {
	Get(ctx context.Context, userID, provider string) (*models.CalendarCredential, error)
	MarkSynced(ctx context.Context, userID, provider string, at time.Time) error
}

// RunRecorder keeps the sync audit trail.
type RunRecorder interface {
	Record(ctx context.Context, run *models.SyncRun) error
}

// Syncer pushes plans to the calendar.
type Syncer interface {
	SyncDaily(ctx context.Context, cred *models.CalendarCredential, date time.Time, plan *models.DailyPlan, offsetMinutes int) calendar.SyncOutcome
	SyncWeekly(ctx context.Context, cred *models.CalendarCredential, plan *models.WeeklyPlan, offsetMinutes int) calendar.SyncOutcome
}

// DailyRequest asks for a plan for one date.
type DailyRequest struct {
	UserID                string
	Date                  time.Time
	Sync                  bool
	TimezoneOffsetMinutes int
}

// WeeklyRequest asks for a plan for the seven days starting at WeekStart.
type WeeklyRequest struct {
	UserID                string
	WeekStart             time.Time
	Sync                  bool
	TimezoneOffsetMinutes int
}

// SyncResult describes what happened on the calendar side of a request.
type SyncResult struct {
	SyncedToCalendar bool                    `json:"synced_to_calendar"`
	SyncedEvents     []models.SyncedEventRef `json:"synced_events"`
	SyncError        *string                 `json:"sync_error,omitempty"`
	SyncState        string                  `json:"sync_state"`
	EventsCreated    int                     `json:"events_created"`
}

// DailyResponse is the generated daily plan with its sync result.
type DailyResponse struct {
	Plan *models.DailyPlan `json:"plan"`
	SyncResult
}

// WeeklyResponse is the generated weekly plan with its sync result.
type WeeklyResponse struct {
	Plan *models.WeeklyPlan `json:"plan"`
	SyncResult
}

// Service runs plan requests.
type Service struct {
	tasks     TaskLister
	prefs     PreferenceGetter
	creds     CredentialStore
	runs      RunRecorder
	generator planner.Generator
	syncer    Syncer
	provider  string
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the clock used for last-synced stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRunRecorder enables the sync audit trail.
func WithRunRecorder(runs RunRecorder) Option {
	return func(s *Service) { s.runs = runs }
}

// NewService creates a planning service.
func NewService(tasks TaskLister, prefs PreferenceGetter, creds CredentialStore, generator planner.Generator, syncer Syncer, opts ...Option) *Service {
	s := &Service{
		tasks:     tasks,
		prefs:     prefs,
		creds:     creds,
		generator: generator,
		syncer:    syncer,
		provider:  models.ProviderMicrosoft,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateDaily generates a daily plan and, when requested and connected,
// syncs it. Only precondition and planning failures are returned as errors.
func (s *Service) GenerateDaily(ctx context.Context, req DailyRequest) (*DailyResponse, error) {
	items, prefs, err := s.loadInputs(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	plan, err := s.generator.GenerateDailyPlan(ctx, items, prefs, req.Date)
	metrics.ObserveGeneration(models.PlanKindDaily, started, err)
	if err != nil {
		return nil, err
	}

	resp := &DailyResponse{Plan: plan, SyncResult: skipped()}
	if !req.Sync {
		return resp, nil
	}

	cred, ok := s.connected(ctx, req.UserID, &resp.SyncResult)
	if !ok {
		return resp, nil
	}

	out := s.syncer.SyncDaily(ctx, cred, req.Date, plan, req.TimezoneOffsetMinutes)
	resp.SyncResult = s.settle(ctx, req.UserID, models.PlanKindDaily, req.Date, out)
	return resp, nil
}

// GenerateWeekly generates a seven-day plan and, when requested and
// connected, syncs it.
func (s *Service) GenerateWeekly(ctx context.Context, req WeeklyRequest) (*WeeklyResponse, error) {
	items, prefs, err := s.loadInputs(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	plan, err := s.generator.GenerateWeeklyPlan(ctx, items, prefs, req.WeekStart)
	metrics.ObserveGeneration(models.PlanKindWeekly, started, err)
	if err != nil {
		return nil, err
	}

	resp := &WeeklyResponse{Plan: plan, SyncResult: skipped()}
	if !req.Sync {
		return resp, nil
	}

	cred, ok := s.connected(ctx, req.UserID, &resp.SyncResult)
	if !ok {
		return resp, nil
	}

	out := s.syncer.SyncWeekly(ctx, cred, plan, req.TimezoneOffsetMinutes)
	resp.SyncResult = s.settle(ctx, req.UserID, models.PlanKindWeekly, req.WeekStart, out)
	return resp, nil
}

func (s *Service) loadInputs(ctx context.Context, userID string) ([]models.WorkItem, models.SchedulingPreferences, error) {
	items, err := s.tasks.ListPendingWorkItems(ctx, userID)
	if err != nil {
		return nil, models.SchedulingPreferences{}, fmt.Errorf("listing work items: %w", err)
	}
	if len(items) == 0 {
		return nil, models.SchedulingPreferences{}, ErrNoWorkItems
	}

	prefs, err := s.prefs.GetPreferences(ctx, userID)
	if err != nil {
		return nil, models.SchedulingPreferences{}, fmt.Errorf("loading preferences: %w", err)
	}
	return items, prefs, nil
}

// connected returns the user's credential when sync can proceed. A missing
// connection leaves res skipped; a store failure is reported in res.
func (s *Service) connected(ctx context.Context, userID string, res *SyncResult) (*models.CalendarCredential, bool) {
	cred, err := s.creds.Get(ctx, userID, s.provider)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("loading calendar credential")
		msg := "calendar connection could not be read; plan was not synced"
		res.SyncError = &msg
		res.SyncState = string(calendar.StateAborted)
		return nil, false
	}
	if !cred.IsConnected() {
		return nil, false
	}
	return cred, true
}

// settle turns a sync outcome into a response, stamps the credential and
// records the run. Both writes outlive the caller, like the sync itself.
func (s *Service) settle(ctx context.Context, userID, kind string, date time.Time, out calendar.SyncOutcome) SyncResult {
	ctx = context.WithoutCancel(ctx)

	res := SyncResult{
		SyncedToCalendar: out.Succeeded(),
		SyncedEvents:     out.Events,
		SyncState:        string(out.State),
		EventsCreated:    len(out.Events),
	}
	if res.SyncedEvents == nil {
		res.SyncedEvents = []models.SyncedEventRef{}
	}
	if msg := describe(out); msg != "" {
		res.SyncError = &msg
	}

	if out.Succeeded() {
		if err := s.creds.MarkSynced(ctx, userID, s.provider, s.now().UTC()); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("stamping last sync")
		}
	}

	if s.runs != nil {
		run := &models.SyncRun{
			UserID:        userID,
			PlanKind:      kind,
			PlanDate:      date.Format(models.DateLayout),
			State:         res.SyncState,
			EventsCreated: res.EventsCreated,
			SyncError:     res.SyncError,
		}
		if err := s.runs.Record(ctx, run); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Str("plan_kind", kind).Msg("recording sync run")
		}
	}

	return res
}

// describe summarizes a failed outcome for the caller. It returns "" on success.
func describe(out calendar.SyncOutcome) string {
	if out.Err == nil {
		return ""
	}

	switch out.State {
	case calendar.StateAborted:
		if errors.Is(out.Err, token.ErrRefreshUnavailable) ||
			errors.Is(out.Err, token.ErrRefreshFailed) ||
			errors.Is(out.Err, token.ErrNotConnected) {
			return fmt.Sprintf("calendar sync could not start, reconnect your calendar: %v", out.Err)
		}
		return fmt.Sprintf("calendar sync could not start: %v", out.Err)
	default:
		return fmt.Sprintf("calendar sync stopped after %d of %d events: %v", len(out.Events), out.Actionable, out.Err)
	}
}

func skipped() SyncResult {
	return SyncResult{
		SyncedEvents: []models.SyncedEventRef{},
		SyncState:    SyncStateSkipped,
	}
}
