package domain

import "time"

// Comment captures communication on a ticket thread. Internal comments are
// visible to staff only.
type Comment struct {
	ID        string
	TicketID  string
	AuthorID  string
	Content   string
	Internal  bool
	CreatedAt time.Time
}
