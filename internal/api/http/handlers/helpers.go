package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/druginsight-api/internal/api/dto"
	apperrors "github.com/spec-kit/druginsight-api/pkg/util"
)

var errNotConfigured = errors.New("not configured")

// parseBody decodes the JSON body into req and validates it.
func parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewBadRequest("Invalid request body")
	}
	return dto.Validate(req)
}

// uuidParam returns the named path parameter when it is a valid UUID.
func uuidParam(c *fiber.Ctx, name string) (string, error) {
	raw := c.Params(name)
	if _, err := uuid.Parse(raw); err != nil {
		return "", apperrors.NewValidationError("Invalid identifier", map[string]any{"field": name})
	}
	return raw, nil
}
