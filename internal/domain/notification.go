package domain

import (
	"encoding/json"
	"time"
)

// NotificationType enumerates the events a user can be informed about.
type NotificationType string

const (
	NotifTicketCreated      NotificationType = "TICKET_CREATED"
	NotifTicketAssigned     NotificationType = "TICKET_ASSIGNED"
	NotifTicketUpdated      NotificationType = "TICKET_UPDATED"
	NotifTicketCommented    NotificationType = "TICKET_COMMENTED"
	NotifTicketResolved     NotificationType = "TICKET_RESOLVED"
	NotifTicketClosed       NotificationType = "TICKET_CLOSED"
	NotifSystemAnnouncement NotificationType = "SYSTEM_ANNOUNCEMENT"
)

// Notification is owned exclusively by its target user. Rows are written as a
// side effect of ticket mutations and only ever mutated to flip the read flag.
type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	Title     string
	Message   string
	RelatedID *string
	Data      json.RawMessage
	Read      bool
	ReadAt    *time.Time
	CreatedAt time.Time
}
