package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// UsersHandler exposes account management endpoints.
type UsersHandler struct {
	service *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{service: userService}
}

// List GET /api/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	filter := repository.UserFilter{
		Limit:  parseInt(c.Query("page_size"), 50),
		Offset: (parseInt(c.Query("page"), 1) - 1) * parseInt(c.Query("page_size"), 50),
	}
	if roleStr := c.Query("role"); roleStr != "" {
		role := domain.UserRole(strings.ToUpper(strings.TrimSpace(roleStr)))
		filter.Role = &role
	}
	if search := c.Query("search"); search != "" {
		filter.Search = &search
	}
	if activeStr := c.Query("active"); activeStr != "" {
		active := strings.EqualFold(activeStr, "true")
		filter.Active = &active
	}

	users, err := h.service.List(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.FromUser(&users[i]))
	}
	return c.JSON(fiber.Map{"success": true, "users": items})
}

// Directory GET /api/users/directory.
func (h *UsersHandler) Directory(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	users, err := h.service.Directory(c.UserContext(), actor)
	if err != nil {
		return err
	}
	items := make([]dto.DirectoryEntry, 0, len(users))
	for i := range users {
		items = append(items, dto.FromUserDirectory(&users[i]))
	}
	return c.JSON(fiber.Map{"success": true, "users": items})
}

// Create POST /api/users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.service.Create(c.UserContext(), actor, service.UserCreateInput{
		Name:          req.Name,
		Email:         req.Email,
		Password:      req.Password,
		Role:          req.Role,
		Matricula:     req.Matricula,
		Phone:         req.Phone,
		Sector:        req.Sector,
		AdmissionDate: req.AdmissionDate,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"success": true, "user": dto.FromUser(user)})
}

// Update PATCH /api/users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.service.Update(c.UserContext(), actor, c.Params("id"), service.UserPatch{
		Name:          req.Name,
		Email:         req.Email,
		Password:      req.Password,
		Role:          req.Role,
		Matricula:     req.Matricula,
		Phone:         req.Phone,
		Sector:        req.Sector,
		AdmissionDate: req.AdmissionDate,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "user": dto.FromUser(user)})
}

// Deactivate DELETE /api/users/:id.
func (h *UsersHandler) Deactivate(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.Deactivate(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}
