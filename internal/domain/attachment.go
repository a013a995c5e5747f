package domain

import "time"

// Attachment stores file metadata uploaded against a ticket. The file bytes
// live in external storage; only the path is recorded here.
type Attachment struct {
	ID          string
	TicketID    string
	UploaderID  string
	FileName    string
	StoragePath string
	SizeBytes   int64
	CreatedAt   time.Time
}
