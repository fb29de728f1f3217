// Package calendar projects generated plans onto the user's external calendar
// and runs the periodic token refresh sweep.
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/plan-sync/backend/internal/metrics"
	"github.com/plan-sync/backend/internal/provider"
	"github.com/plan-sync/backend/internal/storage/models"
	"github.com/plan-sync/backend/internal/websocket"
)

// SyncState is the orchestrator's position in one sync run.
type SyncState string

// Sync states. Completed, PartiallyFailed and Aborted are terminal.
const (
	StateNotStarted      SyncState = "not_started"
	StateTokenAcquired   SyncState = "token_acquired"
	StateSyncing         SyncState = "syncing"
	StateCompleted       SyncState = "completed"
	StatePartiallyFailed SyncState = "partially_failed"
	StateAborted         SyncState = "aborted"
)

// EventCreator creates one event on the provider's calendar.
type EventCreator interface {
	CreateEvent(ctx context.Context, accessToken string, ev provider.EventRequest) (*provider.CreatedEvent, error)
}

// TokenSource returns a valid access token for a credential.
type TokenSource interface {
	EnsureValidAccessToken(ctx context.Context, cred *models.CalendarCredential) (string, error)
}

// SyncOutcome is the result of one sync run. Events holds every event created
// before the run ended, in plan order; it is never nil.
type SyncOutcome struct {
	State      SyncState
	Events     []models.SyncedEventRef
	Actionable int
	Attempted  int
	Err        error
}

// Succeeded reports whether every actionable block was synced.
func (o SyncOutcome) Succeeded() bool {
	return o.State == StateCompleted
}

// SyncService creates calendar events for the actionable blocks of a plan.
type SyncService struct {
	creator     EventCreator
	tokens      TokenSource
	broadcaster *websocket.EventBroadcaster
}

// NewSyncService creates a new calendar sync service. broadcaster may be nil.
func NewSyncService(creator EventCreator, tokens TokenSource, broadcaster *websocket.EventBroadcaster) *SyncService {
	return &SyncService{
		creator:     creator,
		tokens:      tokens,
		broadcaster: broadcaster,
	}
}

// syncItem is one actionable block with the date it belongs to.
type syncItem struct {
	date    time.Time
	dayName string
	block   models.TimeBlock
	title   string
}

// SyncDaily creates one event per actionable block of a daily plan.
func (s *SyncService) SyncDaily(ctx context.Context, cred *models.CalendarCredential, date time.Time, plan *models.DailyPlan, offsetMinutes int) SyncOutcome {
	var items []syncItem
	for _, b := range plan.Blocks {
		if !IsActionable(b) {
			continue
		}
		items = append(items, syncItem{
			date:  date,
			block: b,
			title: "[Plan] " + b.TaskTitle,
		})
	}

	return s.run(ctx, cred, models.PlanKindDaily, date.Format(models.DateLayout), items, offsetMinutes)
}

// SyncWeekly creates one event per actionable block of a weekly plan, walking
// days in order and blocks in order within a day.
func (s *SyncService) SyncWeekly(ctx context.Context, cred *models.CalendarCredential, plan *models.WeeklyPlan, offsetMinutes int) SyncOutcome {
	var items []syncItem
	planDate := ""
	for _, day := range plan.Days {
		date, err := time.Parse(models.DateLayout, day.Date)
		if err != nil {
			return s.finish(userIDOf(cred), models.PlanKindWeekly, day.Date, SyncOutcome{
				State:  StateAborted,
				Events: []models.SyncedEventRef{},
				Err:    fmt.Errorf("plan day has invalid date %q", day.Date),
			})
		}
		if planDate == "" {
			planDate = day.Date
		}
		for _, b := range day.Plan.Blocks {
			if !IsActionable(b) {
				continue
			}
			items = append(items, syncItem{
				date:    date,
				dayName: day.DayName,
				block:   b,
				title:   fmt.Sprintf("[Plan · %s] %s", day.DayName, b.TaskTitle),
			})
		}
	}

	return s.run(ctx, cred, models.PlanKindWeekly, planDate, items, offsetMinutes)
}

func (s *SyncService) run(ctx context.Context, cred *models.CalendarCredential, kind, planDate string, items []syncItem, offsetMinutes int) SyncOutcome {
	out := SyncOutcome{
		State:      StateNotStarted,
		Events:     []models.SyncedEventRef{},
		Actionable: len(items),
	}
	userID := userIDOf(cred)

	if len(items) == 0 {
		out.State = StateCompleted
		return s.finish(userID, kind, planDate, out)
	}

	accessToken, err := s.tokens.EnsureValidAccessToken(ctx, cred)
	if err != nil {
		out.State = StateAborted
		out.Err = err
		return s.finish(userID, kind, planDate, out)
	}
	out.State = StateTokenAcquired

	s.broadcaster.BroadcastPlanSyncStarted(websocket.PlanSyncPayload{
		UserID:     userID,
		PlanKind:   kind,
		PlanDate:   planDate,
		State:      string(StateSyncing),
		Actionable: out.Actionable,
	})

	// Once syncing starts it runs to completion or first failure, even if the
	// caller goes away.
	syncCtx := context.WithoutCancel(ctx)
	out.State = StateSyncing

	for i, item := range items {
		start, end, err := Materialize(item.date, item.block, offsetMinutes)
		if err != nil {
			out.State = StatePartiallyFailed
			out.Err = fmt.Errorf("block %q: %w", item.block.TaskTitle, err)
			break
		}

		out.Attempted++
		created, err := s.creator.CreateEvent(syncCtx, accessToken, provider.EventRequest{
			Title:       item.title,
			Description: item.block.Notes,
			Start:       start,
			End:         end,
		})
		if err != nil {
			out.State = StatePartiallyFailed
			out.Err = fmt.Errorf("creating event for %q: %w", item.block.TaskTitle, err)
			break
		}

		ref := models.SyncedEventRef{
			TaskTitle: item.block.TaskTitle,
			Start:     item.block.Start,
			End:       item.block.End,
			EventID:   created.ID,
			Date:      item.date.Format(models.DateLayout),
			DayName:   item.dayName,
		}
		out.Events = append(out.Events, ref)
		metrics.CalendarEventsCreatedTotal.Inc()

		s.broadcaster.BroadcastPlanEventCreated(websocket.PlanEventPayload{
			UserID:    userID,
			PlanKind:  kind,
			Date:      ref.Date,
			DayName:   ref.DayName,
			TaskTitle: ref.TaskTitle,
			Start:     ref.Start,
			End:       ref.End,
			EventID:   ref.EventID,
			Index:     i + 1,
			Total:     len(items),
		})
	}

	if out.State == StateSyncing {
		out.State = StateCompleted
	}
	return s.finish(userID, kind, planDate, out)
}

// finish records metrics, logs and broadcasts the terminal state.
func (s *SyncService) finish(userID, kind, planDate string, out SyncOutcome) SyncOutcome {
	metrics.CalendarSyncTotal.WithLabelValues(string(out.State)).Inc()

	payload := websocket.PlanSyncPayload{
		UserID:        userID,
		PlanKind:      kind,
		PlanDate:      planDate,
		State:         string(out.State),
		Actionable:    out.Actionable,
		EventsCreated: len(out.Events),
	}

	if out.Err != nil {
		payload.Error = out.Err.Error()
		log.Warn().
			Err(out.Err).
			Str("user_id", userID).
			Str("plan_kind", kind).
			Str("date", planDate).
			Str("state", string(out.State)).
			Int("events_created", len(out.Events)).
			Int("actionable", out.Actionable).
			Msg("calendar sync stopped")
		s.broadcaster.BroadcastPlanSyncFailed(payload)
		return out
	}

	log.Info().
		Str("user_id", userID).
		Str("plan_kind", kind).
		Str("date", planDate).
		Int("events_created", len(out.Events)).
		Msg("calendar sync completed")
	s.broadcaster.BroadcastPlanSyncCompleted(payload)
	return out
}

func userIDOf(cred *models.CalendarCredential) string {
	if cred == nil {
		return ""
	}
	return cred.UserID
}
