package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// NewRequesterRequest describes an inline account opened with a ticket.
type NewRequesterRequest struct {
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Matricula *string `json:"matricula,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Sector    *string `json:"sector,omitempty"`
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Priority     domain.TicketPriority `json:"priority"`
	Category     string                `json:"category"`
	Tags         []string              `json:"tags"`
	CreatedByID  *string               `json:"createdById,omitempty"`
	NewRequester *NewRequesterRequest  `json:"newRequester,omitempty"`
}

// UpdateTicketRequest partial update payload.
type UpdateTicketRequest struct {
	Title        *string                `json:"title,omitempty"`
	Description  *string                `json:"description,omitempty"`
	Status       *domain.TicketStatus   `json:"status,omitempty"`
	Priority     *domain.TicketPriority `json:"priority,omitempty"`
	Category     *string                `json:"category,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
	AssignedToID *string                `json:"assignedToId,omitempty"`
}

// ForwardTicketRequest payload.
type ForwardTicketRequest struct {
	AssignedToID string `json:"assignedToId"`
}

// RespondTicketRequest payload.
type RespondTicketRequest struct {
	Content string `json:"content"`
	Action  string `json:"action"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content  string `json:"content"`
	Internal bool   `json:"internal"`
}

// CreateAttachmentRequest payload.
type CreateAttachmentRequest struct {
	FileName    string `json:"fileName"`
	StoragePath string `json:"storagePath"`
	SizeBytes   int64  `json:"sizeBytes"`
}

// TicketResponse serializes a ticket.
type TicketResponse struct {
	ID           string                `json:"id"`
	ReferenceKey string                `json:"referenceKey"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Status       domain.TicketStatus   `json:"status"`
	Priority     domain.TicketPriority `json:"priority"`
	Category     string                `json:"category"`
	Tags         []string              `json:"tags"`
	CreatedByID  string                `json:"createdById"`
	AssignedToID *string               `json:"assignedToId"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
	ClosedAt     *time.Time            `json:"closedAt"`
}

// CommentResponse serializes a comment.
type CommentResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	Internal  bool      `json:"internal"`
	CreatedAt time.Time `json:"createdAt"`
}

// AttachmentResponse serializes attachment metadata.
type AttachmentResponse struct {
	ID         string    `json:"id"`
	UploaderID string    `json:"uploaderId"`
	FileName   string    `json:"fileName"`
	SizeBytes  int64     `json:"sizeBytes"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TicketDetailResponse bundles a ticket with its thread.
type TicketDetailResponse struct {
	TicketResponse
	Comments    []CommentResponse    `json:"comments"`
	Attachments []AttachmentResponse `json:"attachments"`
}

// FromTicket maps the domain model.
func FromTicket(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:           ticket.ID,
		ReferenceKey: ticket.ReferenceKey,
		Title:        ticket.Title,
		Description:  ticket.Description,
		Status:       ticket.Status,
		Priority:     ticket.Priority,
		Category:     ticket.Category,
		Tags:         ticket.Tags,
		CreatedByID:  ticket.CreatedByID,
		AssignedToID: ticket.AssignedToID,
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
		ClosedAt:     ticket.ClosedAt,
	}
}

// FromComment maps the domain model.
func FromComment(comment *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:        comment.ID,
		AuthorID:  comment.AuthorID,
		Content:   comment.Content,
		Internal:  comment.Internal,
		CreatedAt: comment.CreatedAt,
	}
}

// FromAttachment maps the domain model.
func FromAttachment(att *domain.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:         att.ID,
		UploaderID: att.UploaderID,
		FileName:   att.FileName,
		SizeBytes:  att.SizeBytes,
		CreatedAt:  att.CreatedAt,
	}
}
