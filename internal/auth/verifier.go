package auth

import (
	"context"
	"errors"

	"github.com/spec-kit/druginsight-api/internal/domain"
)

// ErrUpstreamUnavailable marks failures of the store or identity provider, as
// opposed to a credential that simply did not verify.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// IdentityVerifier turns a raw credential into an identity.
//
// Verify returns (nil, nil) when the credential does not resolve under this
// method, and a non-nil error only when the method could not be evaluated
// (store or provider unreachable).
type IdentityVerifier interface {
	Name() string
	Verify(ctx context.Context, credential string) (*domain.Identity, error)
}

// LocalJWTVerifier accepts access tokens issued by this service.
type LocalJWTVerifier struct {
	tokens *TokenManager
}

// NewLocalJWTVerifier wraps the token manager.
func NewLocalJWTVerifier(tokens *TokenManager) *LocalJWTVerifier {
	return &LocalJWTVerifier{tokens: tokens}
}

func (v *LocalJWTVerifier) Name() string { return string(domain.AuthTypeJWT) }

func (v *LocalJWTVerifier) Verify(_ context.Context, credential string) (*domain.Identity, error) {
	claims, err := v.tokens.Verify(credential)
	if err != nil {
		return nil, nil
	}
	// Refresh tokens are valid JWTs but never grant access.
	if claims.Type != domain.TokenTypeAccess || claims.Subject == "" {
		return nil, nil
	}
	return &domain.Identity{
		SubjectID: claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		AuthType:  domain.AuthTypeJWT,
	}, nil
}
