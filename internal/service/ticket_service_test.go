package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

type ticketFixture struct {
	service       *TicketService
	users         *fakeUserRepo
	tickets       *fakeTicketRepo
	comments      *fakeCommentRepo
	notifications *fakeNotificationRepo
	dispatcher    events.Dispatcher
	published     *[]events.Event

	admin       *domain.User
	coordinator *domain.User
	manager     *domain.User
	requester   *domain.User
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()

	users := newFakeUserRepo()
	tickets := newFakeTicketRepo()
	comments := &fakeCommentRepo{}
	attachments := &fakeAttachmentRepo{}
	notifications := &fakeNotificationRepo{}
	dispatcher := events.NewInMemoryDispatcher()

	published := &[]events.Event{}
	record := func(_ context.Context, event events.Event) error {
		*published = append(*published, event)
		return nil
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated, events.EventTicketAssigned, events.EventTicketUpdated,
		events.EventTicketCommented, events.EventTicketResolved, events.EventTicketClosed,
		events.EventAttachmentAdded,
	} {
		dispatcher.Subscribe(eventType, record)
	}

	fixture := &ticketFixture{
		service: NewTicketService(TicketDependencies{
			TicketRepo:     tickets,
			CommentRepo:    comments,
			AttachmentRepo: attachments,
			UserRepo:       users,
			Dispatcher:     dispatcher,
			BcryptCost:     4,
		}),
		users:         users,
		tickets:       tickets,
		comments:      comments,
		notifications: notifications,
		dispatcher:    dispatcher,
		published:     published,
	}
	fixture.admin = users.add(&domain.User{Name: "Alice", Email: "alice@example.com", Role: domain.RoleAdmin, Active: true})
	fixture.coordinator = users.add(&domain.User{Name: "Carla", Email: "carla@example.com", Role: domain.RoleCoordinator, Active: true})
	fixture.manager = users.add(&domain.User{Name: "Maria", Email: "maria@example.com", Role: domain.RoleManager, Active: true})
	fixture.requester = users.add(&domain.User{Name: "Joao", Email: "joao@example.com", Role: domain.RoleUser, Active: true})
	return fixture
}

func (f *ticketFixture) create(t *testing.T, actor *domain.User, input TicketCreateInput) *domain.Ticket {
	t.Helper()
	ticket, err := f.service.Create(context.Background(), actor, input)
	require.NoError(t, err)
	return ticket
}

func assertForbidden(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "FORBIDDEN", domainErr.Code)
}

func TestTicketCreateDefaults(t *testing.T) {
	f := newTicketFixture(t)

	ticket := f.create(t, f.requester, TicketCreateInput{
		Title:       "  Printer jam  ",
		Description: "Paper stuck in tray two",
	})

	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, domain.DefaultCategory, ticket.Category)
	assert.Equal(t, "Printer jam", ticket.Title)
	assert.Equal(t, f.requester.ID, ticket.CreatedByID)
	assert.Nil(t, ticket.AssignedToID)
	assert.Nil(t, ticket.ClosedAt)
	assert.True(t, strings.HasPrefix(ticket.ReferenceKey, "TCK-"))
	require.Len(t, *f.published, 1)
	assert.Equal(t, events.EventTicketCreated, (*f.published)[0].Type)
}

func TestTicketCreateValidation(t *testing.T) {
	f := newTicketFixture(t)

	_, err := f.service.Create(context.Background(), f.requester, TicketCreateInput{Description: "no title"})
	require.Error(t, err)

	_, err = f.service.Create(context.Background(), f.requester, TicketCreateInput{Title: "no description"})
	require.Error(t, err)

	_, err = f.service.Create(context.Background(), f.requester, TicketCreateInput{
		Title: "t", Description: "d", Priority: domain.TicketPriority("EXTREME"),
	})
	require.Error(t, err)
}

func TestTicketCreateOnBehalf(t *testing.T) {
	f := newTicketFixture(t)

	// A USER cannot open a ticket for someone else.
	_, err := f.service.Create(context.Background(), f.requester, TicketCreateInput{
		Title: "t", Description: "d", CreatedByID: &f.manager.ID,
	})
	assertForbidden(t, err)

	// Staff can, for an existing account.
	ticket := f.create(t, f.coordinator, TicketCreateInput{
		Title: "t", Description: "d", CreatedByID: &f.requester.ID,
	})
	assert.Equal(t, f.requester.ID, ticket.CreatedByID)

	// And for a brand new requester registered inline.
	ticket = f.create(t, f.coordinator, TicketCreateInput{
		Title: "t", Description: "d",
		NewRequester: &NewRequesterInput{Name: "Pedro", Email: "pedro@example.com"},
	})
	creator, err := f.users.GetByEmail(context.Background(), "pedro@example.com")
	require.NoError(t, err)
	assert.Equal(t, creator.ID, ticket.CreatedByID)
	assert.Equal(t, domain.RoleUser, creator.Role)
	assert.True(t, creator.Active)
	assert.NotEmpty(t, creator.PasswordHash)
}

func TestTicketDeleteAdminOnly(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t, f.requester, TicketCreateInput{Title: "t", Description: "d"})

	for _, actor := range []*domain.User{f.coordinator, f.manager, f.requester} {
		err := f.service.Delete(context.Background(), actor, ticket.ID)
		assertForbidden(t, err)
	}

	require.NoError(t, f.service.Delete(context.Background(), f.admin, ticket.ID))
	_, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.Error(t, err)
}

func TestTicketUpdateOwnership(t *testing.T) {
	f := newTicketFixture(t)
	other := f.users.add(&domain.User{Name: "Rita", Email: "rita@example.com", Role: domain.RoleUser, Active: true})
	ticket := f.create(t, f.requester, TicketCreateInput{Title: "t", Description: "d"})

	newTitle := "hijacked"
	_, err := f.service.Update(context.Background(), other, ticket.ID, TicketPatch{Title: &newTitle})
	assertForbidden(t, err)

	// The creator and staff may edit.
	ownTitle := "updated by owner"
	updated, err := f.service.Update(context.Background(), f.requester, ticket.ID, TicketPatch{Title: &ownTitle})
	require.NoError(t, err)
	assert.Equal(t, ownTitle, updated.Title)

	staffTitle := "updated by staff"
	updated, err = f.service.Update(context.Background(), f.manager, ticket.ID, TicketPatch{Title: &staffTitle})
	require.NoError(t, err)
	assert.Equal(t, staffTitle, updated.Title)
}

func TestTicketStatusClosedAtInvariant(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t, f.requester, TicketCreateInput{Title: "t", Description: "d"})

	resolved, err := f.service.UpdateStatus(context.Background(), f.manager, ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)
	require.NotNil(t, resolved.ClosedAt)
	firstStamp := *resolved.ClosedAt

	// Repeating the same move keeps the original timestamp.
	again, err := f.service.UpdateStatus(context.Background(), f.manager, ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)
	require.NotNil(t, again.ClosedAt)
	assert.Equal(t, firstStamp, *again.ClosedAt)

	// Leaving the terminal state clears the stamp.
	reopened, err := f.service.UpdateStatus(context.Background(), f.manager, ticket.ID, domain.TicketStatusOpen)
	require.NoError(t, err)
	assert.Nil(t, reopened.ClosedAt)

	cancelled, err := f.service.UpdateStatus(context.Background(), f.manager, ticket.ID, domain.TicketStatusCancelled)
	require.NoError(t, err)
	require.NotNil(t, cancelled.ClosedAt)
}

func TestTicketStatusEvents(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t, f.requester, TicketCreateInput{Title: "t", Description: "d"})
	*f.published = nil

	_, err := f.service.UpdateStatus(context.Background(), f.manager, ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)

	require.Len(t, *f.published, 2)
	assert.Equal(t, events.EventTicketUpdated, (*f.published)[0].Type)
	assert.Equal(t, events.EventTicketResolved, (*f.published)[1].Type)

	// Repeating the same status leaves closedAt alone but still fans out.
	*f.published = nil
	_, err = f.service.UpdateStatus(context.Background(), f.manager, ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)
	require.Len(t, *f.published, 2)
	assert.Equal(t, events.EventTicketUpdated, (*f.published)[0].Type)
	assert.Equal(t, events.EventTicketResolved, (*f.published)[1].Type)
}

func TestTicketAssign(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t, f.requester, TicketCreateInput{Title: "t", Description: "d"})

	// Only ADMIN and COORDINATOR may assign.
	_, err := f.service.Assign(context.Background(), f.manager, ticket.ID, f.manager.ID)
	assertForbidden(t, err)
	_, err = f.service.Assign(context.Background(), f.requester, ticket.ID, f.manager.ID)
	assertForbidden(t, err)

	assigned, err := f.service.Assign(context.Background(), f.coordinator, ticket.ID, f.manager.ID)
	require.NoError(t, err)
	require.NotNil(t, assigned.AssignedToID)
	assert.Equal(t, f.manager.ID, *assigned.AssignedToID)
	assert.Equal(t, domain.TicketStatusInProgress, assigned.Status)
}

func TestTicketAssignInactiveAssignee(t *testing.T) {
	f := newTicketFixture(t)
	inactive := f.users.add(&domain.User{Name: "Gone", Email: "gone@example.com", Role: domain.RoleManager, Active: false})
	ticket := f.create(t, f.requester, TicketCreateInput{Title: "t", Description: "d"})

	_, err := f.service.Assign(context.Background(), f.coordinator, ticket.ID, inactive.ID)
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "CONFLICT", domainErr.Code)
}

func TestTicketReassignReopensResolved(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t, f.requester, TicketCreateInput{Title: "t", Description: "d"})

	_, err := f.service.UpdateStatus(context.Background(), f.manager, ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)

	assigned, err := f.service.Assign(context.Background(), f.coordinator, ticket.ID, f.manager.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, assigned.Status)
	assert.Nil(t, assigned.ClosedAt)
}

func TestTicketRespond(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t, f.requester, TicketCreateInput{Title: "t", Description: "d"})
	_, err := f.service.Assign(context.Background(), f.coordinator, ticket.ID, f.manager.ID)
	require.NoError(t, err)

	// Only the assignee may respond.
	_, _, err = f.service.Respond(context.Background(), f.coordinator, ticket.ID, "not mine", RespondActionReply)
	assertForbidden(t, err)

	updated, comment, err := f.service.Respond(context.Background(), f.manager, ticket.ID, "try rebooting", RespondActionReply)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusWaitingForUser, updated.Status)
	assert.Equal(t, f.manager.ID, comment.AuthorID)
	assert.False(t, comment.Internal)
}

func TestTicketRespondReturnToCoordination(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t, f.requester, TicketCreateInput{Title: "t", Description: "d"})
	_, err := f.service.Assign(context.Background(), f.coordinator, ticket.ID, f.manager.ID)
	require.NoError(t, err)

	updated, _, err := f.service.Respond(context.Background(), f.manager, ticket.ID, "wrong team for this", RespondActionReturnToCoordination)
	require.NoError(t, err)
	assert.Nil(t, updated.AssignedToID)
	assert.Equal(t, domain.TicketStatusOpen, updated.Status)
}

func TestTicketInternalCommentStaffOnly(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t, f.requester, TicketCreateInput{Title: "t", Description: "d"})

	_, err := f.service.AddComment(context.Background(), f.requester, ticket.ID, "sneaky note", true)
	assertForbidden(t, err)

	comment, err := f.service.AddComment(context.Background(), f.manager, ticket.ID, "vendor escalation pending", true)
	require.NoError(t, err)
	assert.True(t, comment.Internal)
}

func TestCommentPreviewKeepsValidUTF8(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.create(t, f.requester, TicketCreateInput{Title: "t", Description: "d"})
	*f.published = nil

	content := strings.Repeat("ação não funciona ", 20)
	_, err := f.service.AddComment(context.Background(), f.requester, ticket.ID, content, false)
	require.NoError(t, err)

	require.Len(t, *f.published, 1)
	payload, ok := (*f.published)[0].Payload.(events.TicketCommentedPayload)
	require.True(t, ok)
	assert.True(t, utf8.ValidString(payload.BodyPreview))
	assert.True(t, strings.HasSuffix(payload.BodyPreview, "..."))

	assert.Equal(t, "curto", stringPreview("curto", 120))
	assert.True(t, utf8.ValidString(stringPreview(strings.Repeat("é", 200), 120)))
}

func TestTicketGetVisibility(t *testing.T) {
	f := newTicketFixture(t)
	other := f.users.add(&domain.User{Name: "Rita", Email: "rita@example.com", Role: domain.RoleUser, Active: true})
	ticket := f.create(t, f.requester, TicketCreateInput{Title: "t", Description: "d"})

	_, err := f.service.AddComment(context.Background(), f.requester, ticket.ID, "public question", false)
	require.NoError(t, err)
	_, err = f.service.AddComment(context.Background(), f.manager, ticket.ID, "internal note", true)
	require.NoError(t, err)

	// Another USER cannot see the ticket at all.
	_, _, _, err = f.service.Get(context.Background(), other, ticket.ID)
	assertForbidden(t, err)

	// The creator sees it without internal comments.
	_, comments, _, err := f.service.Get(context.Background(), f.requester, ticket.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "public question", comments[0].Content)

	// Staff see the full thread.
	_, comments, _, err = f.service.Get(context.Background(), f.manager, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 2)
}

func TestTicketListScopesUsers(t *testing.T) {
	f := newTicketFixture(t)
	other := f.users.add(&domain.User{Name: "Rita", Email: "rita@example.com", Role: domain.RoleUser, Active: true})
	f.create(t, f.requester, TicketCreateInput{Title: "mine", Description: "d"})
	f.create(t, other, TicketCreateInput{Title: "theirs", Description: "d"})

	own, err := f.service.List(context.Background(), f.requester, TicketListFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "mine", own[0].Title)

	all, err := f.service.List(context.Background(), f.coordinator, TicketListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
