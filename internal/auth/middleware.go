package auth

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/druginsight-api/internal/domain"
	apperrors "github.com/spec-kit/druginsight-api/pkg/util"
)

const identityKey = "auth_identity"

type identityCtxKey struct{}

// Rejection reasons rendered in the 401 body.
const (
	ReasonMissingCredential = "No authentication token provided"
	ReasonInvalidCredential = "Invalid or expired token"
)

// Gate authenticates every request outside the public route set.
type Gate struct {
	resolver     CredentialResolver
	publicRoutes []string
	logger       *zap.Logger
}

// NewGate constructs the gate. publicRoutes is copied and fixed for the
// gate's lifetime.
func NewGate(resolver CredentialResolver, publicRoutes []string, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		resolver:     resolver,
		publicRoutes: append([]string(nil), publicRoutes...),
		logger:       logger,
	}
}

// Handle enforces authentication for protected routes.
func (g *Gate) Handle(c *fiber.Ctx) error {
	if g.isPublic(c.Path()) {
		return c.Next()
	}

	credential := extractCredential(c)
	if credential == "" {
		return reject(c, ReasonMissingCredential)
	}

	ctx := c.UserContext()
	identity, ok := g.resolver.Resolve(ctx, credential)
	if err := ctx.Err(); err != nil {
		return apperrors.NewRequestTimeout(err)
	}
	if !ok {
		g.logger.Debug("authentication rejected", zap.String("path", c.Path()))
		return reject(c, ReasonInvalidCredential)
	}

	c.Locals(identityKey, identity)
	c.SetUserContext(WithIdentity(ctx, identity))
	return c.Next()
}

func (g *Gate) isPublic(path string) bool {
	for _, prefix := range g.publicRoutes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// extractCredential prefers a bearer token over an API key.
func extractCredential(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(header, "Bearer ") {
		token, _, _ := strings.Cut(strings.TrimPrefix(header, "Bearer "), " ")
		if token != "" {
			return token
		}
	}
	return c.Get("X-API-Key")
}

// reject writes the fixed 401 body and stops the chain.
func reject(c *fiber.Ctx, reason string) error {
	msg, _ := json.Marshal(reason)
	c.Status(fiber.StatusUnauthorized)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendString(`{"error": "` + apperrors.CodeAuthentication + `", "message": ` + string(msg) + `}`)
}

// IdentityFromContext retrieves the authenticated identity from fiber locals.
func IdentityFromContext(c *fiber.Ctx) (*domain.Identity, bool) {
	identity, ok := c.Locals(identityKey).(*domain.Identity)
	return identity, ok && identity != nil
}

// CurrentIdentity returns the identity or an authentication error.
func CurrentIdentity(c *fiber.Ctx) (*domain.Identity, error) {
	identity, ok := IdentityFromContext(c)
	if !ok {
		return nil, apperrors.NewAuthenticationError("No authenticated user found")
	}
	return identity, nil
}

// WithIdentity attaches identity to a context.
func WithIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, identity)
}

// FromContext retrieves identity from a context.
func FromContext(ctx context.Context) (*domain.Identity, bool) {
	identity, ok := ctx.Value(identityCtxKey{}).(*domain.Identity)
	return identity, ok && identity != nil
}
