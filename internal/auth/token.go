package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/druginsight-api/internal/config"
	"github.com/spec-kit/druginsight-api/internal/domain"
)

// ErrInvalidToken is returned for any signature, format or expiry failure.
var ErrInvalidToken = errors.New("invalid token")

// TokenManager issues and verifies signed access and refresh tokens.
// Rotating the secret invalidates every outstanding token.
type TokenManager struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Claims describes JWT payload.
type Claims struct {
	Email string           `json:"email,omitempty"`
	Role  string           `json:"role,omitempty"`
	Type  domain.TokenType `json:"type"`
	jwt.RegisteredClaims
}

// NewTokenManager builds a manager from auth configuration.
func NewTokenManager(cfg config.AuthConfig) (*TokenManager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	method, ok := jwt.GetSigningMethod(cfg.Algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	return &TokenManager{
		secret:     []byte(cfg.JWTSecret),
		method:     method,
		accessTTL:  cfg.AccessTokenTTL(),
		refreshTTL: cfg.RefreshTokenTTL(),
		now:        time.Now,
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (tm *TokenManager) AccessTTL() time.Duration {
	return tm.accessTTL
}

// IssueAccess signs an access token carrying subject, email and role.
func (tm *TokenManager) IssueAccess(subjectID, role, email string) (string, time.Time, error) {
	return tm.issue(&Claims{Email: email, Role: role, Type: domain.TokenTypeAccess}, subjectID, tm.accessTTL)
}

// IssueRefresh signs a refresh token carrying only the subject.
func (tm *TokenManager) IssueRefresh(subjectID string) (string, time.Time, error) {
	return tm.issue(&Claims{Type: domain.TokenTypeRefresh}, subjectID, tm.refreshTTL)
}

func (tm *TokenManager) issue(claims *Claims, subjectID string, ttl time.Duration) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subjectID,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(tm.method, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify validates signature and expiry and returns the claims. The token
// type is not checked here; callers compare Claims.Type to their use.
func (tm *TokenManager) Verify(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{tm.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return tm.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
