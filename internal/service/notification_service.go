package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/authz"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// NotificationService turns domain events into persisted notification rows.
// Fan-out is best effort: failures are logged and swallowed so a notification
// problem never rolls back the ticket mutation that triggered it.
type NotificationService struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	dispatcher    events.Dispatcher
	logger        *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(notifications repository.NotificationRepository, users repository.UserRepository, dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		users:         users,
		dispatcher:    dispatcher,
		logger:        logger,
	}
}

// RegisterHandlers subscribes the fan-out to every ticket event.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketAssigned,
		events.EventTicketUpdated,
		events.EventTicketCommented,
		events.EventTicketResolved,
		events.EventTicketClosed,
		events.EventAttachmentAdded,
		events.EventAnnouncementSent,
	} {
		n.dispatcher.Subscribe(eventType, n.HandleEvent)
	}
}

// Broadcast publishes an administrative announcement fanned out to every
// active user.
func (n *NotificationService) Broadcast(ctx context.Context, actor *domain.User, title, message string) error {
	if err := authz.Authorize(actor.Role, authz.OpBroadcast); err != nil {
		return err
	}
	title = strings.TrimSpace(title)
	message = strings.TrimSpace(message)
	if title == "" || message == "" {
		return apperrors.NewValidationError("title and message required", nil)
	}
	if n.dispatcher == nil {
		return nil
	}
	return n.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventAnnouncementSent,
		ActorID:   actor.ID,
		Timestamp: time.Now(),
		Payload:   events.AnnouncementPayload{Title: title, Message: message},
	})
}

// ListForUser returns the caller's own notifications.
func (n *NotificationService) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	list, err := n.notifications.ListByUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// MarkRead flips the read flag on one of the caller's notifications.
func (n *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	if err := n.notifications.MarkRead(ctx, notificationID, userID); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// MarkAllRead flips the read flag on every unread notification of the caller.
func (n *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := n.notifications.MarkAllRead(ctx, userID); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// notice is one rendered notification before targeting is applied.
type notice struct {
	targets   []string
	notifType domain.NotificationType
	title     string
	message   string
}

// HandleEvent resolves targets for the event and writes one notification row
// per distinct target, excluding the acting user, in a single batch.
func (n *NotificationService) HandleEvent(ctx context.Context, event events.Event) error {
	notice, err := n.resolveNotice(ctx, event)
	if err != nil {
		n.logger.Warn("notification fan-out target resolution failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
		return nil
	}
	if notice == nil {
		return nil
	}

	targets := dedupeTargets(notice.targets, event.ActorID)
	if len(targets) == 0 {
		return nil
	}

	data, err := json.Marshal(event.Payload)
	if err != nil {
		data = nil
	}
	rows := make([]*domain.Notification, 0, len(targets))
	for _, userID := range targets {
		var relatedID *string
		if event.TicketID != "" {
			ticketID := event.TicketID
			relatedID = &ticketID
		}
		rows = append(rows, &domain.Notification{
			UserID:    userID,
			Type:      notice.notifType,
			Title:     notice.title,
			Message:   notice.message,
			RelatedID: relatedID,
			Data:      data,
		})
	}

	if err := n.notifications.CreateBatch(ctx, rows); err != nil {
		n.logger.Error("notification fan-out write failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Int("targets", len(rows)),
			zap.Error(err))
	}
	return nil
}

// resolveNotice is the per-event targeting strategy. Returning nil means the
// event produces no notifications.
func (n *NotificationService) resolveNotice(ctx context.Context, event events.Event) (*notice, error) {
	switch event.Type {
	case events.EventTicketCreated:
		payload, ok := event.Payload.(events.TicketCreatedPayload)
		if !ok {
			return nil, fmt.Errorf("unexpected payload for %s", event.Type)
		}
		targets, err := n.coordinationTargets(ctx)
		if err != nil {
			return nil, err
		}
		// The creator never hears about their own ticket, even when a staff
		// member opened it on their behalf.
		return &notice{
			targets:   withoutUser(targets, payload.CreatedByID),
			notifType: domain.NotifTicketCreated,
			title:     "New ticket",
			message:   fmt.Sprintf("Ticket %q was opened", payload.Title),
		}, nil

	case events.EventTicketAssigned:
		payload, ok := event.Payload.(events.TicketAssignedPayload)
		if !ok {
			return nil, fmt.Errorf("unexpected payload for %s", event.Type)
		}
		return &notice{
			targets:   []string{payload.AssignedToID, payload.CreatedByID},
			notifType: domain.NotifTicketAssigned,
			title:     "Ticket assigned",
			message:   fmt.Sprintf("Ticket %q was assigned", payload.Title),
		}, nil

	case events.EventTicketUpdated:
		payload, ok := event.Payload.(events.TicketUpdatedPayload)
		if !ok {
			return nil, fmt.Errorf("unexpected payload for %s", event.Type)
		}
		return &notice{
			targets:   interestedParties(payload.CreatedByID, payload.AssignedToID),
			notifType: domain.NotifTicketUpdated,
			title:     "Ticket updated",
			message:   fmt.Sprintf("Ticket %q was updated", payload.Title),
		}, nil

	case events.EventTicketResolved:
		payload, ok := event.Payload.(events.TicketUpdatedPayload)
		if !ok {
			return nil, fmt.Errorf("unexpected payload for %s", event.Type)
		}
		return &notice{
			targets:   interestedParties(payload.CreatedByID, payload.AssignedToID),
			notifType: domain.NotifTicketResolved,
			title:     "Ticket resolved",
			message:   fmt.Sprintf("Ticket %q was resolved", payload.Title),
		}, nil

	case events.EventTicketClosed:
		payload, ok := event.Payload.(events.TicketUpdatedPayload)
		if !ok {
			return nil, fmt.Errorf("unexpected payload for %s", event.Type)
		}
		return &notice{
			targets:   interestedParties(payload.CreatedByID, payload.AssignedToID),
			notifType: domain.NotifTicketClosed,
			title:     "Ticket closed",
			message:   fmt.Sprintf("Ticket %q was closed", payload.Title),
		}, nil

	case events.EventTicketCommented:
		payload, ok := event.Payload.(events.TicketCommentedPayload)
		if !ok {
			return nil, fmt.Errorf("unexpected payload for %s", event.Type)
		}
		targets := interestedParties(payload.CreatedByID, payload.AssignedToID)
		if payload.Internal {
			targets, err := n.excludeNonStaff(ctx, targets, payload.CreatedByID)
			if err != nil {
				return nil, err
			}
			return &notice{
				targets:   targets,
				notifType: domain.NotifTicketCommented,
				title:     "New internal note",
				message:   fmt.Sprintf("Internal note on ticket %q", payload.Title),
			}, nil
		}
		return &notice{
			targets:   targets,
			notifType: domain.NotifTicketCommented,
			title:     "New comment",
			message:   fmt.Sprintf("New comment on ticket %q", payload.Title),
		}, nil

	case events.EventAttachmentAdded:
		payload, ok := event.Payload.(events.AttachmentAddedPayload)
		if !ok {
			return nil, fmt.Errorf("unexpected payload for %s", event.Type)
		}
		targets, err := n.coordinationTargets(ctx)
		if err != nil {
			return nil, err
		}
		return &notice{
			targets:   targets,
			notifType: domain.NotifTicketUpdated,
			title:     "Attachment added",
			message:   fmt.Sprintf("File %q was attached to ticket %q", payload.FileName, payload.Title),
		}, nil

	case events.EventAnnouncementSent:
		payload, ok := event.Payload.(events.AnnouncementPayload)
		if !ok {
			return nil, fmt.Errorf("unexpected payload for %s", event.Type)
		}
		targets, err := n.allActiveTargets(ctx)
		if err != nil {
			return nil, err
		}
		return &notice{
			targets:   targets,
			notifType: domain.NotifSystemAnnouncement,
			title:     payload.Title,
			message:   payload.Message,
		}, nil
	}
	return nil, nil
}

// coordinationTargets returns every active ADMIN and COORDINATOR.
func (n *NotificationService) coordinationTargets(ctx context.Context) ([]string, error) {
	users, err := n.users.ListActiveByRoles(ctx, []domain.UserRole{domain.RoleAdmin, domain.RoleCoordinator})
	if err != nil {
		return nil, err
	}
	targets := make([]string, 0, len(users))
	for _, user := range users {
		targets = append(targets, user.ID)
	}
	return targets, nil
}

func (n *NotificationService) allActiveTargets(ctx context.Context) ([]string, error) {
	users, err := n.users.ListActiveByRoles(ctx, []domain.UserRole{
		domain.RoleAdmin, domain.RoleCoordinator, domain.RoleManager, domain.RoleUser,
	})
	if err != nil {
		return nil, err
	}
	targets := make([]string, 0, len(users))
	for _, user := range users {
		targets = append(targets, user.ID)
	}
	return targets, nil
}

// excludeNonStaff drops the ticket creator from an internal-note audience
// unless the creator holds a staff role.
func (n *NotificationService) excludeNonStaff(ctx context.Context, targets []string, creatorID string) ([]string, error) {
	creator, err := n.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if creator.Role.IsStaff() {
		return targets, nil
	}
	return withoutUser(targets, creatorID), nil
}

func withoutUser(targets []string, userID string) []string {
	filtered := make([]string, 0, len(targets))
	for _, target := range targets {
		if target == userID {
			continue
		}
		filtered = append(filtered, target)
	}
	return filtered
}

func interestedParties(creatorID string, assigneeID *string) []string {
	targets := []string{creatorID}
	if assigneeID != nil {
		targets = append(targets, *assigneeID)
	}
	return targets
}

// dedupeTargets removes duplicates, empty ids and the acting user. A user who
// is both creator and assignee receives exactly one notification.
func dedupeTargets(targets []string, actorID string) []string {
	seen := make(map[string]struct{}, len(targets))
	result := make([]string, 0, len(targets))
	for _, target := range targets {
		if target == "" || target == actorID {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		result = append(result, target)
	}
	return result
}
