package websocket

import (
	"encoding/json"
	"time"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypePlanSyncStarted      MessageType = "plan.sync_started"
	TypePlanEventCreated     MessageType = "plan.event_created"
	TypePlanSyncCompleted    MessageType = "plan.sync_completed"
	TypePlanSyncFailed       MessageType = "plan.sync_failed"
	TypeCalendarConnected    MessageType = "calendar.connected"
	TypeCalendarDisconnected MessageType = "calendar.disconnected"

	// Client -> Server command types
	TypeSubscribe   MessageType = "subscribe"
	TypeUnsubscribe MessageType = "unsubscribe"
	TypePing        MessageType = "ping"

	// Server -> Client response types
	TypeSubscribeAck MessageType = "subscribe.ack"
	TypePong         MessageType = "pong"
	TypeError        MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// ClientCommand is a message sent by a client.
type ClientCommand struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscribePayload selects the user whose events a client receives.
type SubscribePayload struct {
	UserID string `json:"user_id"`
}

// PlanSyncPayload is the payload for plan.sync_started, plan.sync_completed and plan.sync_failed.
type PlanSyncPayload struct {
	UserID        string `json:"user_id"`
	PlanKind      string `json:"plan_kind"`
	PlanDate      string `json:"plan_date"`
	State         string `json:"state"`
	Actionable    int    `json:"actionable"`
	EventsCreated int    `json:"events_created"`
	Error         string `json:"error,omitempty"`
}

// PlanEventPayload is the payload for plan.event_created.
type PlanEventPayload struct {
	UserID    string `json:"user_id"`
	PlanKind  string `json:"plan_kind"`
	Date      string `json:"date"`
	DayName   string `json:"day_name,omitempty"`
	TaskTitle string `json:"task_title"`
	Start     string `json:"start"`
	End       string `json:"end"`
	EventID   string `json:"event_id"`
	Index     int    `json:"index"`
	Total     int    `json:"total"`
}

// CalendarConnectionPayload is the payload for calendar connection events.
type CalendarConnectionPayload struct {
	UserID    string `json:"user_id"`
	Provider  string `json:"provider"`
	AccountID string `json:"account_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}
