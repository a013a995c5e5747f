package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated    EventType = "ticket_created"
	EventTicketAssigned   EventType = "ticket_assigned"
	EventTicketUpdated    EventType = "ticket_updated"
	EventTicketCommented  EventType = "ticket_commented"
	EventTicketResolved   EventType = "ticket_resolved"
	EventTicketClosed     EventType = "ticket_closed"
	EventAttachmentAdded  EventType = "attachment_added"
	EventAnnouncementSent EventType = "announcement_sent"
)

// Event represents a domain event emitted by services. ActorID is the user
// whose action triggered the event; fan-out never notifies the actor.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title       string                `json:"title"`
	Priority    domain.TicketPriority `json:"priority"`
	CreatedByID string                `json:"created_by_id"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	Title        string `json:"title"`
	AssignedToID string `json:"assigned_to_id"`
	CreatedByID  string `json:"created_by_id"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	Title        string              `json:"title"`
	OldStatus    domain.TicketStatus `json:"old_status,omitempty"`
	NewStatus    domain.TicketStatus `json:"new_status,omitempty"`
	Field        string              `json:"field"`
	CreatedByID  string              `json:"created_by_id"`
	AssignedToID *string             `json:"assigned_to_id,omitempty"`
}

// TicketCommentedPayload payload.
type TicketCommentedPayload struct {
	Title        string  `json:"title"`
	CommentID    string  `json:"comment_id"`
	Internal     bool    `json:"internal"`
	BodyPreview  string  `json:"body_preview"`
	CreatedByID  string  `json:"created_by_id"`
	AssignedToID *string `json:"assigned_to_id,omitempty"`
}

// AttachmentAddedPayload payload.
type AttachmentAddedPayload struct {
	Title        string `json:"title"`
	AttachmentID string `json:"attachment_id"`
	FileName     string `json:"file_name"`
	CreatedByID  string `json:"created_by_id"`
}

// AnnouncementPayload payload for administrative broadcasts.
type AnnouncementPayload struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}
