package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

type userFixture struct {
	service *UserService
	users   *fakeUserRepo

	admin       *domain.User
	coordinator *domain.User
	requester   *domain.User
}

func newUserFixture() *userFixture {
	users := newFakeUserRepo()
	return &userFixture{
		service:     NewUserService(users, 4),
		users:       users,
		admin:       users.add(&domain.User{Name: "Alice", Email: "alice@example.com", Role: domain.RoleAdmin, Active: true}),
		coordinator: users.add(&domain.User{Name: "Carla", Email: "carla@example.com", Role: domain.RoleCoordinator, Active: true}),
		requester:   users.add(&domain.User{Name: "Joao", Email: "joao@example.com", Role: domain.RoleUser, Active: true}),
	}
}

func TestUserListStaffOnly(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()

	_, err := f.service.List(ctx, f.requester, repository.UserFilter{})
	assertForbidden(t, err)

	users, err := f.service.List(ctx, f.coordinator, repository.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func TestUserDirectoryForEveryone(t *testing.T) {
	f := newUserFixture()
	f.users.add(&domain.User{Name: "Off", Email: "off@example.com", Role: domain.RoleManager, Active: false})

	directory, err := f.service.Directory(context.Background(), f.requester)
	require.NoError(t, err)
	// Active staff only; the plain user and the deactivated manager are absent.
	require.Len(t, directory, 2)
	for _, entry := range directory {
		assert.True(t, entry.Role.IsStaff())
		assert.True(t, entry.Active)
	}
}

func TestUserCreateRoleGating(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()

	// Coordinators may create plain accounts but not grant staff roles.
	created, err := f.service.Create(ctx, f.coordinator, UserCreateInput{
		Name: "Rita", Email: "rita@example.com", Password: "pw",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, created.Role)

	_, err = f.service.Create(ctx, f.coordinator, UserCreateInput{
		Name: "New Manager", Email: "mgr@example.com", Password: "pw", Role: domain.RoleManager,
	})
	assertForbidden(t, err)

	manager, err := f.service.Create(ctx, f.admin, UserCreateInput{
		Name: "New Manager", Email: "mgr@example.com", Password: "pw", Role: domain.RoleManager,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, manager.Role)
}

func TestUserUpdateRoleChangeAdminOnly(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()

	newRole := domain.RoleCoordinator
	_, err := f.service.Update(ctx, f.coordinator, f.requester.ID, UserPatch{Role: &newRole})
	assertForbidden(t, err)

	updated, err := f.service.Update(ctx, f.admin, f.requester.ID, UserPatch{Role: &newRole})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCoordinator, updated.Role)
}

func TestUserUpdateEmailConflict(t *testing.T) {
	f := newUserFixture()

	taken := "alice@example.com"
	_, err := f.service.Update(context.Background(), f.admin, f.requester.ID, UserPatch{Email: &taken})
	require.Error(t, err)
}

func TestUserDeactivate(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()

	err := f.service.Deactivate(ctx, f.coordinator, f.requester.ID)
	assertForbidden(t, err)

	err = f.service.Deactivate(ctx, f.admin, f.admin.ID)
	require.Error(t, err)

	require.NoError(t, f.service.Deactivate(ctx, f.admin, f.requester.ID))
	stored, err := f.users.GetByID(ctx, f.requester.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
}
