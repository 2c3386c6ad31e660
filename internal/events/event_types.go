package events

import (
	"time"

	"github.com/interfix/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketSubmitted      EventType = "ticket_submitted"
	EventTicketCreated        EventType = "ticket_created"
	EventTicketStatusChanged  EventType = "ticket_status_changed"
	EventContestationRecorded EventType = "contestation_recorded"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID    *int64 `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  *int64      `json:"ticket_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketSubmittedPayload is published once a wizard session commits.
type TicketSubmittedPayload struct {
	Target    string                `json:"target"`
	Priority  domain.TicketPriority `json:"priority"`
	Contested bool                  `json:"contested"`
	Degraded  bool                  `json:"degraded"`
	Category  string                `json:"category"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Priority domain.TicketPriority `json:"priority"`
	Category string                `json:"category"`
	Title    string                `json:"title"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Solution  string              `json:"solution,omitempty"`
}

// ContestationRecordedPayload payload.
type ContestationRecordedPayload struct {
	ContestationID int64                   `json:"contestation_id"`
	Kind           domain.ContestationKind `json:"kind"`
}
