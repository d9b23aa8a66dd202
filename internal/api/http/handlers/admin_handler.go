package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/druginsight-api/internal/api/dto"
	"github.com/spec-kit/druginsight-api/internal/auth"
	"github.com/spec-kit/druginsight-api/internal/domain"
	"github.com/spec-kit/druginsight-api/internal/service"
)

// AdminHandler serves administrator-only operations.
type AdminHandler struct {
	users *service.UserService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(users *service.UserService) *AdminHandler {
	return &AdminHandler{users: users}
}

// GetUser handles GET /admin/users/:id.
func (h *AdminHandler) GetUser(c *fiber.Ctx) error {
	identity, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	if err := auth.RequireRole(identity, domain.RoleAdmin); err != nil {
		return err
	}

	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	user, err := h.users.GetUser(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserProfileResponse(user))
}
