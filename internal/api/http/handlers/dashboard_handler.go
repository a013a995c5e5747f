package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// DashboardHandler serves aggregate ticket statistics.
type DashboardHandler struct {
	service *service.StatsService
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(statsService *service.StatsService) *DashboardHandler {
	return &DashboardHandler{service: statsService}
}

// Stats GET /api/dashboard/stats.
func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	totals, err := h.service.DashboardStats(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"stats": fiber.Map{
			"total":                totals.Total,
			"open":                 totals.Open,
			"inProgress":           totals.InProgress,
			"resolved":             totals.Resolved,
			"avgResolutionSeconds": totals.AvgResolutionSeconds,
		},
	})
}
