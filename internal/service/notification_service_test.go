package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

type notificationFixture struct {
	service       *NotificationService
	users         *fakeUserRepo
	notifications *fakeNotificationRepo
	dispatcher    events.Dispatcher

	admin       *domain.User
	coordinator *domain.User
	manager     *domain.User
	requester   *domain.User
}

func newNotificationFixture(t *testing.T) *notificationFixture {
	t.Helper()

	users := newFakeUserRepo()
	notifications := &fakeNotificationRepo{}
	dispatcher := events.NewInMemoryDispatcher()

	service := NewNotificationService(notifications, users, dispatcher, zap.NewNop())
	service.RegisterHandlers()

	return &notificationFixture{
		service:       service,
		users:         users,
		notifications: notifications,
		dispatcher:    dispatcher,
		admin:         users.add(&domain.User{Name: "Alice", Email: "alice@example.com", Role: domain.RoleAdmin, Active: true}),
		coordinator:   users.add(&domain.User{Name: "Carla", Email: "carla@example.com", Role: domain.RoleCoordinator, Active: true}),
		manager:       users.add(&domain.User{Name: "Maria", Email: "maria@example.com", Role: domain.RoleManager, Active: true}),
		requester:     users.add(&domain.User{Name: "Joao", Email: "joao@example.com", Role: domain.RoleUser, Active: true}),
	}
}

func (f *notificationFixture) publish(t *testing.T, event events.Event) {
	t.Helper()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	require.NoError(t, f.dispatcher.Publish(context.Background(), event))
}

func TestFanOutTicketCreatedTargetsCoordination(t *testing.T) {
	f := newNotificationFixture(t)
	inactiveCoordinator := f.users.add(&domain.User{Name: "Off", Email: "off@example.com", Role: domain.RoleCoordinator, Active: false})

	f.publish(t, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: "ticket-1",
		ActorID:  f.requester.ID,
		Payload: events.TicketCreatedPayload{
			Title:       "Printer jam",
			Priority:    domain.TicketPriorityHigh,
			CreatedByID: f.requester.ID,
		},
	})

	assert.Len(t, f.notifications.forUser(f.admin.ID), 1)
	assert.Len(t, f.notifications.forUser(f.coordinator.ID), 1)
	assert.Empty(t, f.notifications.forUser(f.manager.ID))
	assert.Empty(t, f.notifications.forUser(inactiveCoordinator.ID))
	// The acting user never notifies themselves.
	assert.Empty(t, f.notifications.forUser(f.requester.ID))

	row := f.notifications.forUser(f.admin.ID)[0]
	assert.Equal(t, domain.NotifTicketCreated, row.Type)
	require.NotNil(t, row.RelatedID)
	assert.Equal(t, "ticket-1", *row.RelatedID)
	assert.False(t, row.Read)
}

func TestFanOutTicketCreatedExcludesStaffCreator(t *testing.T) {
	f := newNotificationFixture(t)
	secondCoordinator := f.users.add(&domain.User{Name: "Caio", Email: "caio@example.com", Role: domain.RoleCoordinator, Active: true})

	// Coordinator opens the ticket on behalf of the admin: neither the actor
	// nor the creator is notified, the rest of coordination still is.
	f.publish(t, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: "ticket-1",
		ActorID:  f.coordinator.ID,
		Payload: events.TicketCreatedPayload{
			Title:       "Printer jam",
			CreatedByID: f.admin.ID,
		},
	})

	assert.Empty(t, f.notifications.forUser(f.admin.ID))
	assert.Empty(t, f.notifications.forUser(f.coordinator.ID))
	assert.Len(t, f.notifications.forUser(secondCoordinator.ID), 1)
}

func TestFanOutAssignedNotifiesAssigneeAndCreator(t *testing.T) {
	f := newNotificationFixture(t)

	f.publish(t, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: "ticket-1",
		ActorID:  f.coordinator.ID,
		Payload: events.TicketAssignedPayload{
			Title:        "Printer jam",
			AssignedToID: f.manager.ID,
			CreatedByID:  f.requester.ID,
		},
	})

	assert.Len(t, f.notifications.forUser(f.manager.ID), 1)
	assert.Len(t, f.notifications.forUser(f.requester.ID), 1)
	assert.Empty(t, f.notifications.forUser(f.coordinator.ID))
	assert.Equal(t, domain.NotifTicketAssigned, f.notifications.forUser(f.manager.ID)[0].Type)
}

func TestFanOutDedupesCreatorAssignee(t *testing.T) {
	f := newNotificationFixture(t)

	// Creator and assignee are the same person; one row, not two.
	f.publish(t, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: "ticket-1",
		ActorID:  f.coordinator.ID,
		Payload: events.TicketAssignedPayload{
			Title:        "Printer jam",
			AssignedToID: f.manager.ID,
			CreatedByID:  f.manager.ID,
		},
	})

	assert.Len(t, f.notifications.forUser(f.manager.ID), 1)
}

func TestFanOutInternalCommentExcludesNonStaffCreator(t *testing.T) {
	f := newNotificationFixture(t)

	f.publish(t, events.Event{
		Type:     events.EventTicketCommented,
		TicketID: "ticket-1",
		ActorID:  f.coordinator.ID,
		Payload: events.TicketCommentedPayload{
			Title:        "Printer jam",
			Internal:     true,
			CreatedByID:  f.requester.ID,
			AssignedToID: &f.manager.ID,
		},
	})

	assert.Empty(t, f.notifications.forUser(f.requester.ID))
	assert.Len(t, f.notifications.forUser(f.manager.ID), 1)
}

func TestFanOutInternalCommentKeepsStaffCreator(t *testing.T) {
	f := newNotificationFixture(t)

	f.publish(t, events.Event{
		Type:     events.EventTicketCommented,
		TicketID: "ticket-1",
		ActorID:  f.coordinator.ID,
		Payload: events.TicketCommentedPayload{
			Title:       "Printer jam",
			Internal:    true,
			CreatedByID: f.admin.ID,
		},
	})

	assert.Len(t, f.notifications.forUser(f.admin.ID), 1)
}

func TestFanOutPublicCommentNotifiesCreator(t *testing.T) {
	f := newNotificationFixture(t)

	f.publish(t, events.Event{
		Type:     events.EventTicketCommented,
		TicketID: "ticket-1",
		ActorID:  f.manager.ID,
		Payload: events.TicketCommentedPayload{
			Title:        "Printer jam",
			CreatedByID:  f.requester.ID,
			AssignedToID: &f.manager.ID,
		},
	})

	assert.Len(t, f.notifications.forUser(f.requester.ID), 1)
	assert.Empty(t, f.notifications.forUser(f.manager.ID))
}

func TestFanOutWriteFailureIsSwallowed(t *testing.T) {
	f := newNotificationFixture(t)
	f.notifications.failErr = errors.New("connection reset")

	// Publish must not surface the storage failure.
	f.publish(t, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: "ticket-1",
		ActorID:  f.requester.ID,
		Payload: events.TicketCreatedPayload{
			Title:       "Printer jam",
			CreatedByID: f.requester.ID,
		},
	})

	assert.Empty(t, f.notifications.forUser(f.admin.ID))
}

func TestBroadcast(t *testing.T) {
	f := newNotificationFixture(t)
	inactive := f.users.add(&domain.User{Name: "Gone", Email: "gone@example.com", Role: domain.RoleUser, Active: false})

	err := f.service.Broadcast(context.Background(), f.coordinator, "Maintenance", "Window tonight")
	assertForbidden(t, err)

	require.NoError(t, f.service.Broadcast(context.Background(), f.admin, "Maintenance", "Window tonight"))
	for _, user := range []*domain.User{f.coordinator, f.manager, f.requester} {
		rows := f.notifications.forUser(user.ID)
		require.Len(t, rows, 1)
		assert.Equal(t, domain.NotifSystemAnnouncement, rows[0].Type)
		assert.Equal(t, "Maintenance", rows[0].Title)
	}
	assert.Empty(t, f.notifications.forUser(f.admin.ID))
	assert.Empty(t, f.notifications.forUser(inactive.ID))
}

func TestMarkReadFlow(t *testing.T) {
	f := newNotificationFixture(t)

	require.NoError(t, f.service.Broadcast(context.Background(), f.admin, "Maintenance", "Window tonight"))

	unread, err := f.service.ListForUser(context.Background(), f.requester.ID, true, 50, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	require.NoError(t, f.service.MarkRead(context.Background(), f.requester.ID, unread[0].ID))
	// Marking the same row twice stays a no-op.
	require.NoError(t, f.service.MarkRead(context.Background(), f.requester.ID, unread[0].ID))

	unread, err = f.service.ListForUser(context.Background(), f.requester.ID, true, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, unread)

	// A different user cannot flip someone else's row. The manager still has
	// the first broadcast unread, so the second one brings them to two rows.
	require.NoError(t, f.service.Broadcast(context.Background(), f.admin, "Second", "Notice"))
	rows, err := f.service.ListForUser(context.Background(), f.manager.ID, true, 50, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	err = f.service.MarkRead(context.Background(), f.requester.ID, rows[0].ID)
	require.Error(t, err)
}

// Full lifecycle: open, assign, resolve, with fan-out observed end to end.
func TestLifecycleWithFanOut(t *testing.T) {
	users := newFakeUserRepo()
	tickets := newFakeTicketRepo()
	notifications := &fakeNotificationRepo{}
	dispatcher := events.NewInMemoryDispatcher()

	notificationService := NewNotificationService(notifications, users, dispatcher, zap.NewNop())
	notificationService.RegisterHandlers()
	ticketService := NewTicketService(TicketDependencies{
		TicketRepo:     tickets,
		CommentRepo:    &fakeCommentRepo{},
		AttachmentRepo: &fakeAttachmentRepo{},
		UserRepo:       users,
		Dispatcher:     dispatcher,
		BcryptCost:     4,
	})

	admin := users.add(&domain.User{Name: "Alice", Email: "alice@example.com", Role: domain.RoleAdmin, Active: true})
	coordinator := users.add(&domain.User{Name: "Carla", Email: "carla@example.com", Role: domain.RoleCoordinator, Active: true})
	maria := users.add(&domain.User{Name: "Maria", Email: "maria@example.com", Role: domain.RoleManager, Active: true})
	joao := users.add(&domain.User{Name: "Joao", Email: "joao@example.com", Role: domain.RoleUser, Active: true})

	ctx := context.Background()

	ticket, err := ticketService.Create(ctx, joao, TicketCreateInput{
		Title:       "VPN does not connect",
		Description: "Error 809 since this morning",
		Priority:    domain.TicketPriorityHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Len(t, notifications.forUser(admin.ID), 1)
	assert.Len(t, notifications.forUser(coordinator.ID), 1)

	ticket, err = ticketService.Assign(ctx, coordinator, ticket.ID, maria.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, ticket.Status)
	assert.Len(t, notifications.forUser(maria.ID), 1)
	assert.Len(t, notifications.forUser(joao.ID), 1)
	assert.Equal(t, domain.NotifTicketAssigned, notifications.forUser(maria.ID)[0].Type)

	ticket, err = ticketService.UpdateStatus(ctx, maria, ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, ticket.Status)
	require.NotNil(t, ticket.ClosedAt)

	var resolvedSeen bool
	for _, row := range notifications.forUser(joao.ID) {
		if row.Type == domain.NotifTicketResolved {
			resolvedSeen = true
		}
	}
	assert.True(t, resolvedSeen)
	// Maria acted, so she receives nothing for her own resolution.
	for _, row := range notifications.forUser(maria.ID) {
		assert.NotEqual(t, domain.NotifTicketResolved, row.Type)
	}
}
