package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/druginsight-api/internal/api/dto"
	"github.com/spec-kit/druginsight-api/internal/auth"
	"github.com/spec-kit/druginsight-api/internal/service"
)

// UsersHandler serves the authenticated caller's account and API keys.
type UsersHandler struct {
	users *service.UserService
	keys  *service.APIKeyService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users *service.UserService, keys *service.APIKeyService) *UsersHandler {
	return &UsersHandler{users: users, keys: keys}
}

// Profile handles GET /users/profile.
func (h *UsersHandler) Profile(c *fiber.Ctx) error {
	identity, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	user, err := h.users.Profile(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserProfileResponse(user))
}

// UpdateProfile handles PATCH /users/profile.
func (h *UsersHandler) UpdateProfile(c *fiber.Ctx) error {
	identity, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	var req dto.UpdateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.users.UpdateProfile(c.UserContext(), identity, service.ProfileUpdate{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Organization: req.Organization,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserProfileResponse(user))
}

// ChangePassword handles POST /users/password.
func (h *UsersHandler) ChangePassword(c *fiber.Ctx) error {
	identity, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.users.ChangePassword(c.UserContext(), identity, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListAPIKeys handles GET /users/api-keys.
func (h *UsersHandler) ListAPIKeys(c *fiber.Ctx) error {
	identity, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	keys, err := h.keys.List(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAPIKeyListResponse(keys)})
}

// CreateAPIKey handles POST /users/api-keys.
func (h *UsersHandler) CreateAPIKey(c *fiber.Ctx) error {
	identity, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	var req dto.CreateAPIKeyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	days := 0
	if req.ExpiresInDays != nil {
		days = *req.ExpiresInDays
	}
	created, err := h.keys.Create(c.UserContext(), identity, req.Name, days)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.CreatedAPIKeyResponse{
		APIKeyResponse: dto.NewAPIKeyResponse(created.Key),
		Key:            created.RawKey,
	})
}

// RevokeAPIKey handles DELETE /users/api-keys/:id.
func (h *UsersHandler) RevokeAPIKey(c *fiber.Ctx) error {
	identity, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	keyID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.keys.Revoke(c.UserContext(), identity, keyID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
