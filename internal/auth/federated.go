package auth

import (
	"context"
	"errors"
	"slices"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/druginsight-api/internal/domain"
)

// cognitoClaims is the subset of user pool token claims mapped to an identity.
type cognitoClaims struct {
	TokenUse     string `json:"token_use"`
	ClientID     string `json:"client_id"`
	Email        string `json:"email"`
	GivenName    string `json:"given_name"`
	FamilyName   string `json:"family_name"`
	Role         string `json:"custom:role"`
	Organization string `json:"custom:organization"`
	jwt.RegisteredClaims
}

// FederatedVerifier accepts ID and access tokens issued by a Cognito user pool.
type FederatedVerifier struct {
	keys     *KeySet
	issuer   string
	clientID string
	now      func() time.Time
}

// NewFederatedVerifier builds a verifier for tokens of one user pool client.
func NewFederatedVerifier(keys *KeySet, issuer, clientID string) *FederatedVerifier {
	return &FederatedVerifier{keys: keys, issuer: issuer, clientID: clientID, now: time.Now}
}

func (v *FederatedVerifier) Name() string { return string(domain.AuthTypeFederated) }

func (v *FederatedVerifier) Verify(ctx context.Context, credential string) (*domain.Identity, error) {
	// Skip credentials that are not tokens of this pool before touching the network.
	var peek cognitoClaims
	if _, _, err := jwt.NewParser().ParseUnverified(credential, &peek); err != nil || peek.Issuer != v.issuer {
		return nil, nil
	}

	claims, err := v.VerifyToken(ctx, credential)
	if err != nil {
		if errors.Is(err, ErrUpstreamUnavailable) {
			return nil, err
		}
		return nil, nil
	}
	return claims, nil
}

// VerifyToken fully verifies a pool token and maps it to an identity.
func (v *FederatedVerifier) VerifyToken(ctx context.Context, tokenStr string) (*domain.Identity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)

	parsed, err := parser.ParseWithClaims(tokenStr, &cognitoClaims{}, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrUnknownKey
		}
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		if errors.Is(err, ErrUpstreamUnavailable) {
			return nil, err
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*cognitoClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	switch claims.TokenUse {
	case "id":
		if !slices.Contains(claims.Audience, v.clientID) {
			return nil, ErrInvalidToken
		}
	case "access":
		if claims.ClientID != v.clientID {
			return nil, ErrInvalidToken
		}
	default:
		return nil, ErrInvalidToken
	}

	role := claims.Role
	if role == "" {
		role = domain.RoleUser
	}
	return &domain.Identity{
		SubjectID:    claims.Subject,
		Email:        claims.Email,
		FirstName:    claims.GivenName,
		LastName:     claims.FamilyName,
		Role:         role,
		Organization: claims.Organization,
		AuthType:     domain.AuthTypeFederated,
	}, nil
}
