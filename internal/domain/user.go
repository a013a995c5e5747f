package domain

import "time"

// UserRole enumerates permission scopes for accounts.
type UserRole string

const (
	RoleAdmin       UserRole = "ADMIN"
	RoleCoordinator UserRole = "COORDINATOR"
	RoleManager     UserRole = "MANAGER"
	RoleUser        UserRole = "USER"
)

// IsStaff reports whether the role is an internal operator role.
func (r UserRole) IsStaff() bool {
	return r == RoleAdmin || r == RoleCoordinator || r == RoleManager
}

// User is the single account model for requesters and staff alike.
type User struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  string
	Role          UserRole
	Active        bool
	Matricula     *string
	Phone         *string
	Sector        *string
	AdmissionDate *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
