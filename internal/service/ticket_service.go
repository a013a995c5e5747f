package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/authz"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// RespondAction enumerates what an assignee can do with an assigned ticket.
type RespondAction string

const (
	RespondActionReply                RespondAction = "respond"
	RespondActionReturnToCoordination RespondAction = "return_to_coordination"
)

// TicketService is the single place ticket invariants are enforced. Every
// mutation re-checks authorization server-side before touching persistence.
type TicketService struct {
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	users       repository.UserRepository
	dispatcher  events.Dispatcher
	bcryptCost  int
}

// TicketDependencies bundles repositories for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	CommentRepo    repository.CommentRepository
	AttachmentRepo repository.AttachmentRepository
	UserRepo       repository.UserRepository
	Dispatcher     events.Dispatcher
	BcryptCost     int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		attachments: deps.AttachmentRepo,
		users:       deps.UserRepo,
		dispatcher:  deps.Dispatcher,
		bcryptCost:  deps.BcryptCost,
	}
}

// NewRequesterInput describes an inline account created alongside a ticket.
type NewRequesterInput struct {
	Name      string
	Email     string
	Matricula *string
	Phone     *string
	Sector    *string
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	Category    string
	Tags        []string
	// CreatedByID lets staff open a ticket on behalf of an existing user.
	CreatedByID *string
	// NewRequester lets staff open a ticket for someone without an account.
	NewRequester *NewRequesterInput
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	Category    *string
	Search      *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketPatch carries a partial update. Nil fields are left untouched.
type TicketPatch struct {
	Title        *string
	Description  *string
	Status       *domain.TicketStatus
	Priority     *domain.TicketPriority
	Category     *string
	Tags         []string
	AssignedToID *string
}

// Create validates and persists a new ticket with status OPEN.
func (s *TicketService) Create(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if err := authz.Authorize(actor.Role, authz.OpTicketCreate); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", map[string]any{"field": "title"})
	}
	if description == "" {
		return nil, apperrors.NewValidationError("description required", map[string]any{"field": "description"})
	}
	if input.Priority != "" && !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"field": "priority"})
	}

	creatorID, err := s.resolveCreator(ctx, actor, input)
	if err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		ReferenceKey: generateTicketKey(),
		Title:        title,
		Description:  description,
		Status:       domain.TicketStatusOpen,
		Priority:     input.Priority,
		Category:     strings.TrimSpace(input.Category),
		Tags:         input.Tags,
		CreatedByID:  creatorID,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if ticket.Category == "" {
		ticket.Category = domain.DefaultCategory
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketCreatedPayload{
			Title:       ticket.Title,
			Priority:    ticket.Priority,
			CreatedByID: ticket.CreatedByID,
		},
	})
	return ticket, nil
}

// resolveCreator decides who owns the new ticket. A USER may only open
// tickets for themselves; staff may open on behalf of an existing or inline
// new account.
func (s *TicketService) resolveCreator(ctx context.Context, actor *domain.User, input TicketCreateInput) (string, error) {
	onBehalf := input.NewRequester != nil ||
		(input.CreatedByID != nil && *input.CreatedByID != actor.ID)
	if !onBehalf {
		return actor.ID, nil
	}
	if err := authz.Authorize(actor.Role, authz.OpTicketCreateForOther); err != nil {
		return "", err
	}

	if input.NewRequester != nil {
		return s.registerInlineRequester(ctx, input.NewRequester)
	}

	creator, err := s.users.GetByID(ctx, *input.CreatedByID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NewNotFound("user", map[string]any{"user_id": *input.CreatedByID})
		}
		return "", apperrors.MapError(err)
	}
	return creator.ID, nil
}

func (s *TicketService) registerInlineRequester(ctx context.Context, input *NewRequesterInput) (string, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if name == "" || email == "" {
		return "", apperrors.NewValidationError("requester name and email required", nil)
	}
	if existing, err := s.users.GetByEmail(ctx, email); err == nil {
		return existing.ID, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return "", apperrors.MapError(err)
	}

	// The account gets a random placeholder password; the user resets it on
	// first login through the regular auth flow.
	hash, err := auth.HashPassword(uuid.NewString(), s.bcryptCost)
	if err != nil {
		return "", apperrors.MapError(err)
	}
	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Active:       true,
		Matricula:    input.Matricula,
		Phone:        input.Phone,
		Sector:       input.Sector,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return "", apperrors.MapError(err)
	}
	return user.ID, nil
}

// Get fetches a ticket with its thread. USER callers only see their own
// tickets, and internal comments are stripped for non-staff viewers.
func (s *TicketService) Get(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, []domain.Comment, []domain.Attachment, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !actor.Role.IsStaff() && ticket.CreatedByID != actor.ID {
		return nil, nil, nil, apperrors.NewForbidden("access denied")
	}

	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, nil, apperrors.MapError(err)
	}
	if !actor.Role.IsStaff() {
		visible := make([]domain.Comment, 0, len(comments))
		for _, comment := range comments {
			if comment.Internal {
				continue
			}
			visible = append(visible, comment)
		}
		comments = visible
	}

	attachments, err := s.attachments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, nil, apperrors.MapError(err)
	}
	return ticket, comments, attachments, nil
}

// List returns tickets visible to the actor. USER callers are always scoped
// to their own tickets regardless of requested filters.
func (s *TicketService) List(ctx context.Context, actor *domain.User, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		Category:    filter.Category,
		Search:      filter.Search,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	if !actor.Role.IsStaff() {
		id := actor.ID
		repoFilter.CreatedByID = &id
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Update applies a partial ticket update. Status moves maintain the closedAt
// invariant; an assignment change routes through Assign and its stricter gate.
func (s *TicketService) Update(ctx context.Context, actor *domain.User, ticketID string, patch TicketPatch) (*domain.Ticket, error) {
	if patch.AssignedToID != nil {
		if _, err := s.Assign(ctx, actor, ticketID, *patch.AssignedToID); err != nil {
			return nil, err
		}
	}

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !authz.CanEditTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}

	changed := false
	var statusPayload *events.TicketUpdatedPayload

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperrors.NewValidationError("title required", map[string]any{"field": "title"})
		}
		ticket.Title = title
		changed = true
	}
	if patch.Description != nil {
		description := strings.TrimSpace(*patch.Description)
		if description == "" {
			return nil, apperrors.NewValidationError("description required", map[string]any{"field": "description"})
		}
		ticket.Description = description
		changed = true
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"field": "priority"})
		}
		ticket.Priority = *patch.Priority
		changed = true
	}
	if patch.Category != nil {
		category := strings.TrimSpace(*patch.Category)
		if category == "" {
			category = domain.DefaultCategory
		}
		ticket.Category = category
		changed = true
	}
	if patch.Tags != nil {
		ticket.Tags = patch.Tags
		changed = true
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, apperrors.NewValidationError("invalid status", map[string]any{"field": "status"})
		}
		oldStatus := ticket.Status
		applyStatus(ticket, *patch.Status)
		statusPayload = &events.TicketUpdatedPayload{
			Title:        ticket.Title,
			OldStatus:    oldStatus,
			NewStatus:    ticket.Status,
			Field:        "status",
			CreatedByID:  ticket.CreatedByID,
			AssignedToID: ticket.AssignedToID,
		}
		changed = true
	}

	if !changed {
		return ticket, nil
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	if statusPayload != nil {
		s.publishStatusEvents(ctx, actor.ID, ticket, *statusPayload)
	} else {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketUpdated,
			TicketID: ticket.ID,
			ActorID:  actor.ID,
			Payload: events.TicketUpdatedPayload{
				Title:        ticket.Title,
				Field:        "details",
				CreatedByID:  ticket.CreatedByID,
				AssignedToID: ticket.AssignedToID,
			},
		})
	}
	return ticket, nil
}

// UpdateStatus is a convenience wrapper around Update for status-only moves.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.User, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	return s.Update(ctx, actor, ticketID, TicketPatch{Status: &newStatus})
}

// Assign forwards the ticket to a support user and forces IN_PROGRESS.
// Assigning a resolved or closed ticket reopens it.
func (s *TicketService) Assign(ctx context.Context, actor *domain.User, ticketID, assigneeID string) (*domain.Ticket, error) {
	if err := authz.Authorize(actor.Role, authz.OpTicketAssign); err != nil {
		return nil, err
	}

	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": assigneeID})
		}
		return nil, apperrors.MapError(err)
	}
	if !assignee.Active {
		return nil, apperrors.NewConflict("assignee deactivated", map[string]any{"user_id": assigneeID})
	}

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	ticket.AssignedToID = &assignee.ID
	applyStatus(ticket, domain.TicketStatusInProgress)

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketAssignedPayload{
			Title:        ticket.Title,
			AssignedToID: assignee.ID,
			CreatedByID:  ticket.CreatedByID,
		},
	})
	return ticket, nil
}

// Respond lets the current assignee answer the requester or hand the ticket
// back to coordination.
func (s *TicketService) Respond(ctx context.Context, actor *domain.User, ticketID, content string, action RespondAction) (*domain.Ticket, *domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, apperrors.NewValidationError("content required", map[string]any{"field": "content"})
	}
	if action != RespondActionReply && action != RespondActionReturnToCoordination {
		return nil, nil, apperrors.NewValidationError("invalid action", map[string]any{"field": "action"})
	}

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if ticket.AssignedToID == nil || *ticket.AssignedToID != actor.ID {
		return nil, nil, apperrors.NewForbidden("only the assignee may respond")
	}

	comment := &domain.Comment{
		TicketID: ticket.ID,
		AuthorID: actor.ID,
		Content:  content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	oldStatus := ticket.Status
	if action == RespondActionReturnToCoordination {
		ticket.AssignedToID = nil
		applyStatus(ticket, domain.TicketStatusOpen)
	} else {
		applyStatus(ticket, domain.TicketStatusWaitingForUser)
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommented,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketCommentedPayload{
			Title:        ticket.Title,
			CommentID:    comment.ID,
			BodyPreview:  stringPreview(comment.Content, 120),
			CreatedByID:  ticket.CreatedByID,
			AssignedToID: ticket.AssignedToID,
		},
	})
	if oldStatus != ticket.Status {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketUpdated,
			TicketID: ticket.ID,
			ActorID:  actor.ID,
			Payload: events.TicketUpdatedPayload{
				Title:        ticket.Title,
				OldStatus:    oldStatus,
				NewStatus:    ticket.Status,
				Field:        "status",
				CreatedByID:  ticket.CreatedByID,
				AssignedToID: ticket.AssignedToID,
			},
		})
	}
	return ticket, comment, nil
}

// AddComment appends a comment. Internal comments are staff-only.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.User, ticketID, content string, internal bool) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("content required", map[string]any{"field": "content"})
	}
	if internal {
		if err := authz.Authorize(actor.Role, authz.OpCommentInternal); err != nil {
			return nil, err
		}
	}

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsStaff() && ticket.CreatedByID != actor.ID {
		return nil, apperrors.NewForbidden("access denied")
	}

	comment := &domain.Comment{
		TicketID: ticket.ID,
		AuthorID: actor.ID,
		Content:  content,
		Internal: internal,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommented,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketCommentedPayload{
			Title:        ticket.Title,
			CommentID:    comment.ID,
			Internal:     internal,
			BodyPreview:  stringPreview(comment.Content, 120),
			CreatedByID:  ticket.CreatedByID,
			AssignedToID: ticket.AssignedToID,
		},
	})
	return comment, nil
}

// AddAttachment records attachment metadata against the ticket.
func (s *TicketService) AddAttachment(ctx context.Context, actor *domain.User, ticketID string, fileName, storagePath string, sizeBytes int64) (*domain.Attachment, error) {
	if strings.TrimSpace(fileName) == "" || strings.TrimSpace(storagePath) == "" {
		return nil, apperrors.NewValidationError("fileName and storagePath required", nil)
	}

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsStaff() && ticket.CreatedByID != actor.ID {
		return nil, apperrors.NewForbidden("access denied")
	}

	attachment := &domain.Attachment{
		TicketID:    ticket.ID,
		UploaderID:  actor.ID,
		FileName:    strings.TrimSpace(fileName),
		StoragePath: strings.TrimSpace(storagePath),
		SizeBytes:   sizeBytes,
	}
	if err := s.attachments.Create(ctx, attachment); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventAttachmentAdded,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.AttachmentAddedPayload{
			Title:        ticket.Title,
			AttachmentID: attachment.ID,
			FileName:     attachment.FileName,
			CreatedByID:  ticket.CreatedByID,
		},
	})
	return attachment, nil
}

// Delete hard-deletes a ticket. Comments, attachments and notifications
// referencing it are removed by the persistence layer's cascade.
func (s *TicketService) Delete(ctx context.Context, actor *domain.User, ticketID string) error {
	if err := authz.Authorize(actor.Role, authz.OpTicketDelete); err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (s *TicketService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// applyStatus moves the ticket and keeps the closedAt invariant: set exactly
// when entering a terminal status, cleared when leaving one. A same-status
// move leaves the existing stamp alone.
func applyStatus(ticket *domain.Ticket, newStatus domain.TicketStatus) {
	if ticket.Status == newStatus {
		return
	}
	ticket.Status = newStatus
	if newStatus.IsTerminal() {
		now := time.Now()
		ticket.ClosedAt = &now
	} else {
		ticket.ClosedAt = nil
	}
}

// publishStatusEvents emits ticket_updated plus the resolution or closure
// event when the move enters RESOLVED or CLOSED.
func (s *TicketService) publishStatusEvents(ctx context.Context, actorID string, ticket *domain.Ticket, payload events.TicketUpdatedPayload) {
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload:  payload,
	})
	switch payload.NewStatus {
	case domain.TicketStatusResolved:
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketResolved,
			TicketID: ticket.ID,
			ActorID:  actorID,
			Payload:  payload,
		})
	case domain.TicketStatusClosed:
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketClosed,
			TicketID: ticket.ID,
			ActorID:  actorID,
			Payload:  payload,
		})
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// stringPreview truncates on rune boundaries so multi-byte content never
// produces an invalid string in the event payload.
func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
