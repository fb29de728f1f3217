package websocket

import (
	"github.com/rs/zerolog/log"
)

// EventBroadcaster handles broadcasting WebSocket events. A nil broadcaster
// or one without a hub silently drops events.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// BroadcastPlanSyncStarted announces that event creation for a plan is starting.
func (b *EventBroadcaster) BroadcastPlanSyncStarted(p PlanSyncPayload) {
	b.toUser(p.UserID, NewMessage(TypePlanSyncStarted, p))
}

// BroadcastPlanEventCreated announces one created calendar event.
func (b *EventBroadcaster) BroadcastPlanEventCreated(p PlanEventPayload) {
	b.toUser(p.UserID, NewMessage(TypePlanEventCreated, p))
}

// BroadcastPlanSyncCompleted announces that every actionable block was synced.
func (b *EventBroadcaster) BroadcastPlanSyncCompleted(p PlanSyncPayload) {
	b.toUser(p.UserID, NewMessage(TypePlanSyncCompleted, p))
}

// BroadcastPlanSyncFailed announces an aborted or partially failed sync.
func (b *EventBroadcaster) BroadcastPlanSyncFailed(p PlanSyncPayload) {
	b.toUser(p.UserID, NewMessage(TypePlanSyncFailed, p))
}

// BroadcastCalendarConnected announces a new calendar connection.
func (b *EventBroadcaster) BroadcastCalendarConnected(p CalendarConnectionPayload) {
	b.toUser(p.UserID, NewMessage(TypeCalendarConnected, p))
}

// BroadcastCalendarDisconnected announces a removed calendar connection.
func (b *EventBroadcaster) BroadcastCalendarDisconnected(p CalendarConnectionPayload) {
	b.toUser(p.UserID, NewMessage(TypeCalendarDisconnected, p))
}

// toUser sends a message to the clients following userID.
func (b *EventBroadcaster) toUser(userID string, msg Message) {
	if b == nil || b.hub == nil {
		return
	}

	data, err := msg.JSON()
	if err != nil {
		log.Error().Err(err).Str("type", string(msg.Type)).Msg("encoding websocket message")
		return
	}

	b.hub.BroadcastToUser(userID, data)
}
