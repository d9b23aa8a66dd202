package auth

import (
	"fmt"

	"github.com/spec-kit/druginsight-api/internal/domain"
	apperrors "github.com/spec-kit/druginsight-api/pkg/util"
)

// RequireRole returns an authorization error unless identity holds role.
// Handlers call it explicitly at the top of role-gated operations.
func RequireRole(identity *domain.Identity, role string) error {
	if identity == nil {
		return apperrors.NewAuthenticationError("No authenticated user found")
	}
	if identity.Role != role {
		return apperrors.NewAuthorizationError(fmt.Sprintf("Role '%s' required", role))
	}
	return nil
}
