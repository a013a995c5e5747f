package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RegisterRequest payload for self-service registration.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CreateUserRequest payload for staff account creation.
type CreateUserRequest struct {
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Password      string          `json:"password"`
	Role          domain.UserRole `json:"role"`
	Matricula     *string         `json:"matricula,omitempty"`
	Phone         *string         `json:"phone,omitempty"`
	Sector        *string         `json:"sector,omitempty"`
	AdmissionDate *time.Time      `json:"admissionDate,omitempty"`
}

// UpdateUserRequest partial account update payload.
type UpdateUserRequest struct {
	Name          *string          `json:"name,omitempty"`
	Email         *string          `json:"email,omitempty"`
	Password      *string          `json:"password,omitempty"`
	Role          *domain.UserRole `json:"role,omitempty"`
	Matricula     *string          `json:"matricula,omitempty"`
	Phone         *string          `json:"phone,omitempty"`
	Sector        *string          `json:"sector,omitempty"`
	AdmissionDate *time.Time       `json:"admissionDate,omitempty"`
}

// UserResponse serializes an account without the password hash.
type UserResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Role          domain.UserRole `json:"role"`
	Active        bool            `json:"active"`
	Matricula     *string         `json:"matricula,omitempty"`
	Phone         *string         `json:"phone,omitempty"`
	Sector        *string         `json:"sector,omitempty"`
	AdmissionDate *time.Time      `json:"admissionDate,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// DirectoryEntry is the reduced view exposed to non-staff callers.
type DirectoryEntry struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Email  string          `json:"email"`
	Role   domain.UserRole `json:"role"`
	Sector *string         `json:"sector,omitempty"`
}

// FromUser maps the domain model.
func FromUser(user *domain.User) UserResponse {
	return UserResponse{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		Role:          user.Role,
		Active:        user.Active,
		Matricula:     user.Matricula,
		Phone:         user.Phone,
		Sector:        user.Sector,
		AdmissionDate: user.AdmissionDate,
		CreatedAt:     user.CreatedAt,
	}
}

// FromUserDirectory maps the domain model to the directory view.
func FromUserDirectory(user *domain.User) DirectoryEntry {
	return DirectoryEntry{
		ID:     user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.Role,
		Sector: user.Sector,
	}
}
