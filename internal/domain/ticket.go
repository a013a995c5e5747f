package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen                 TicketStatus = "OPEN"
	TicketStatusInProgress           TicketStatus = "IN_PROGRESS"
	TicketStatusWaitingForUser       TicketStatus = "WAITING_FOR_USER"
	TicketStatusWaitingForThirdParty TicketStatus = "WAITING_FOR_THIRD_PARTY"
	TicketStatusResolved             TicketStatus = "RESOLVED"
	TicketStatusClosed               TicketStatus = "CLOSED"
	TicketStatusCancelled            TicketStatus = "CANCELLED"
)

// IsTerminal reports whether a status closes the ticket.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed || s == TicketStatusCancelled
}

// Valid reports whether the status is a known value.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusWaitingForUser,
		TicketStatusWaitingForThirdParty, TicketStatusResolved, TicketStatusClosed,
		TicketStatusCancelled:
		return true
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether the priority is a known value.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// DefaultCategory is applied when a ticket is created without one.
const DefaultCategory = "GENERAL"

// Ticket is the aggregate for support requests.
// ClosedAt is non-nil exactly when Status is terminal.
type Ticket struct {
	ID           string
	ReferenceKey string
	Title        string
	Description  string
	Status       TicketStatus
	Priority     TicketPriority
	Category     string
	Tags         []string
	CreatedByID  string
	AssignedToID *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ClosedAt     *time.Time
}
