package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/authz"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// UserService manages accounts. Listing and mutation are staff operations;
// plain users only get the read-only support directory.
type UserService struct {
	users      repository.UserRepository
	bcryptCost int
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, bcryptCost int) *UserService {
	return &UserService{users: users, bcryptCost: bcryptCost}
}

// UserCreateInput describes account creation by staff.
type UserCreateInput struct {
	Name          string
	Email         string
	Password      string
	Role          domain.UserRole
	Matricula     *string
	Phone         *string
	Sector        *string
	AdmissionDate *time.Time
}

// UserPatch carries a partial account update. Nil fields are left untouched.
type UserPatch struct {
	Name          *string
	Email         *string
	Password      *string
	Role          *domain.UserRole
	Matricula     *string
	Phone         *string
	Sector        *string
	AdmissionDate *time.Time
}

// List returns accounts matching the filter. Staff only.
func (s *UserService) List(ctx context.Context, actor *domain.User, filter repository.UserFilter) ([]domain.User, error) {
	if err := authz.Authorize(actor.Role, authz.OpUserManage); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// Directory returns the read-only list of active staff contacts, available
// to every authenticated caller.
func (s *UserService) Directory(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	if err := authz.Authorize(actor.Role, authz.OpUserDirectory); err != nil {
		return nil, err
	}
	users, err := s.users.ListActiveByRoles(ctx, []domain.UserRole{
		domain.RoleAdmin, domain.RoleCoordinator, domain.RoleManager,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// Create registers an account with an explicit role. Granting a non-USER
// role requires the role-change permission.
func (s *UserService) Create(ctx context.Context, actor *domain.User, input UserCreateInput) (*domain.User, error) {
	if err := authz.Authorize(actor.Role, authz.OpUserManage); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if name == "" || email == "" || input.Password == "" {
		return nil, apperrors.NewValidationError("name, email, password required", nil)
	}
	role := input.Role
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser {
		if err := authz.Authorize(actor.Role, authz.OpUserChangeRole); err != nil {
			return nil, err
		}
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	user := &domain.User{
		Name:          name,
		Email:         email,
		PasswordHash:  hash,
		Role:          role,
		Active:        true,
		Matricula:     input.Matricula,
		Phone:         input.Phone,
		Sector:        input.Sector,
		AdmissionDate: input.AdmissionDate,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// Update applies a partial account update. Role changes are ADMIN only.
func (s *UserService) Update(ctx context.Context, actor *domain.User, userID string, patch UserPatch) (*domain.User, error) {
	if err := authz.Authorize(actor.Role, authz.OpUserManage); err != nil {
		return nil, err
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if patch.Role != nil && *patch.Role != user.Role {
		if err := authz.Authorize(actor.Role, authz.OpUserChangeRole); err != nil {
			return nil, err
		}
		user.Role = *patch.Role
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperrors.NewValidationError("name required", map[string]any{"field": "name"})
		}
		user.Name = name
	}
	if patch.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*patch.Email))
		if email == "" {
			return nil, apperrors.NewValidationError("email required", map[string]any{"field": "email"})
		}
		if existing, err := s.users.GetByEmail(ctx, email); err == nil && existing.ID != user.ID {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
		} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MapError(err)
		}
		user.Email = email
	}
	if patch.Password != nil && *patch.Password != "" {
		hash, err := auth.HashPassword(*patch.Password, s.bcryptCost)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		user.PasswordHash = hash
	}
	if patch.Matricula != nil {
		user.Matricula = patch.Matricula
	}
	if patch.Phone != nil {
		user.Phone = patch.Phone
	}
	if patch.Sector != nil {
		user.Sector = patch.Sector
	}
	if patch.AdmissionDate != nil {
		user.AdmissionDate = patch.AdmissionDate
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// Deactivate soft-removes an account. Accounts are never hard-deleted so
// ticket and comment history keeps its authors.
func (s *UserService) Deactivate(ctx context.Context, actor *domain.User, userID string) error {
	if err := authz.Authorize(actor.Role, authz.OpUserDeactivate); err != nil {
		return err
	}
	if actor.ID == userID {
		return apperrors.NewConflict("cannot deactivate own account", nil)
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	user.Active = false
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func (s *UserService) getUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}
