package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/druginsight-api/internal/auth"
	"github.com/spec-kit/druginsight-api/internal/config"
	"github.com/spec-kit/druginsight-api/internal/domain"
	"github.com/spec-kit/druginsight-api/internal/events"
	"github.com/spec-kit/druginsight-api/internal/repository"
	apperrors "github.com/spec-kit/druginsight-api/pkg/util"
)

// Login methods reported to metrics and events.
const (
	LoginMethodLocal     = "local"
	LoginMethodFederated = "federated"
)

const (
	msgInvalidLogin   = "Invalid email or password"
	msgInvalidRefresh = "Invalid or expired refresh token"
)

// LoginRecorder counts login outcomes.
type LoginRecorder interface {
	RecordLogin(method, result string)
}

// FederatedAuthenticator performs password login against the identity provider.
type FederatedAuthenticator interface {
	Authenticate(ctx context.Context, email, password string) (*domain.Identity, error)
}

// AuthService coordinates login, refresh and logout flows.
type AuthService struct {
	users       repository.UserRepository
	revocations repository.TokenRevocationRepository
	hasher      *auth.PasswordHasher
	tokens      *auth.TokenManager
	federated   FederatedAuthenticator
	dispatcher  events.Dispatcher
	recorder    LoginRecorder
	logger      *zap.Logger
	localAuth   bool
	// dummyDigest is verified on lookup misses so unknown emails cost the same as wrong passwords.
	dummyDigest string
}

// AuthDependencies encapsulates collaborators of the auth service. UserRepo,
// RevocationRepo, Federated, Dispatcher and Recorder are optional.
type AuthDependencies struct {
	UserRepo       repository.UserRepository
	RevocationRepo repository.TokenRevocationRepository
	Hasher         *auth.PasswordHasher
	Tokens         *auth.TokenManager
	Federated      FederatedAuthenticator
	Dispatcher     events.Dispatcher
	Recorder       LoginRecorder
	Logger         *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuthService{
		users:       deps.UserRepo,
		revocations: deps.RevocationRepo,
		hasher:      deps.Hasher,
		tokens:      deps.Tokens,
		federated:   deps.Federated,
		dispatcher:  deps.Dispatcher,
		recorder:    deps.Recorder,
		logger:      logger,
		localAuth:   cfg.EnableLocalAuth && deps.UserRepo != nil,
	}
	if s.localAuth && s.hasher != nil {
		digest, err := s.hasher.Hash(context.Background(), uuid.NewString())
		if err != nil {
			logger.Warn("dummy password digest unavailable", zap.Error(err))
		}
		s.dummyDigest = digest
	}
	return s
}

// Login authenticates email and password against the local store when local
// auth is enabled, otherwise against the federated provider.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	var (
		method   string
		identity *domain.Identity
		err      error
	)
	switch {
	case s.localAuth:
		method = LoginMethodLocal
		identity, err = s.authenticateLocal(ctx, email, password)
	case s.federated != nil:
		method = LoginMethodFederated
		identity, err = s.authenticateFederated(ctx, email, password)
	default:
		return nil, apperrors.NewAuthenticationError("No authentication method enabled")
	}

	if err != nil {
		s.recordLogin(method, "error")
		return nil, err
	}
	if identity == nil {
		s.recordLogin(method, "failure")
		s.publish(ctx, events.EventLoginFailed, events.Actor{},
			events.LoginPayload{Email: email, Method: method, Reason: "invalid_credentials"})
		return nil, apperrors.NewAuthenticationError(msgInvalidLogin)
	}

	pair, err := s.issuePair(identity)
	if err != nil {
		return nil, err
	}
	s.recordLogin(method, "success")
	s.publish(ctx, events.EventLoginSucceeded,
		events.Actor{SubjectID: identity.SubjectID, AuthType: identity.AuthType},
		events.LoginPayload{Email: identity.Email, Method: method})
	return pair, nil
}

func (s *AuthService) authenticateLocal(ctx context.Context, email, password string) (*domain.Identity, error) {
	user, err := s.users.GetActiveByEmail(ctx, email)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	found := err == nil && user.PasswordHash != ""
	digest := s.dummyDigest
	if found {
		digest = user.PasswordHash
	}
	if matched := s.hasher.Verify(ctx, password, digest); !matched || !found {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.NewRequestTimeout(err)
		}
		return nil, nil
	}

	if err := s.users.RecordLogin(ctx, user.ID); err != nil {
		s.logger.Warn("record last login failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user.ID, password)
	}
	return user.Identity(domain.AuthTypeJWT), nil
}

func (s *AuthService) rehash(ctx context.Context, userID, password string) {
	hash, err := s.hasher.Hash(ctx, password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, userID, hash)
	}
	if err != nil {
		s.logger.Warn("password rehash failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	s.logger.Info("password rehashed", zap.String("user_id", userID))
}

func (s *AuthService) authenticateFederated(ctx context.Context, email, password string) (*domain.Identity, error) {
	identity, err := s.federated.Authenticate(ctx, email, password)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("cognito", err)
	}
	if identity == nil || s.users == nil {
		return identity, nil
	}

	// Prefer the linked local account so role and id match local records.
	user, err := s.users.GetBySubject(ctx, identity.SubjectID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return identity, nil
	case err != nil:
		return nil, err
	case !user.IsActive:
		return nil, nil
	}
	return user.Identity(domain.AuthTypeFederated), nil
}

// Refresh exchanges a refresh token for a new access token. The returned pair
// has no refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.verifyRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	identity := &domain.Identity{SubjectID: claims.Subject, AuthType: domain.AuthTypeJWT}
	if s.users != nil {
		user, err := s.users.GetBySubject(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewAuthenticationError(msgInvalidRefresh)
			}
			return nil, err
		}
		if !user.IsActive {
			return nil, apperrors.NewAuthenticationError(msgInvalidRefresh)
		}
		identity = user.Identity(domain.AuthTypeJWT)
	}

	access, _, err := s.tokens.IssueAccess(identity.SubjectID, identity.Role, identity.Email)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventTokenRefreshed,
		events.Actor{SubjectID: identity.SubjectID, AuthType: domain.AuthTypeJWT}, nil)
	return &domain.TokenPair{AccessToken: access, ExpiresIn: s.expiresIn()}, nil
}

// Logout revokes a refresh token until its natural expiry.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.verifyRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	if s.revocations != nil {
		if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return apperrors.NewExternalServiceError("redis", err)
		}
	}
	s.publish(ctx, events.EventLogout,
		events.Actor{SubjectID: claims.Subject, AuthType: domain.AuthTypeJWT}, nil)
	return nil
}

func (s *AuthService) verifyRefresh(ctx context.Context, refreshToken string) (*auth.Claims, error) {
	claims, err := s.tokens.Verify(refreshToken)
	if err != nil || claims.Type != domain.TokenTypeRefresh {
		return nil, apperrors.NewAuthenticationError(msgInvalidRefresh)
	}
	if claims.Subject == "" {
		return nil, apperrors.NewAuthenticationError("Invalid refresh token payload")
	}
	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, apperrors.NewExternalServiceError("redis", err)
		}
		if revoked {
			return nil, apperrors.NewAuthenticationError(msgInvalidRefresh)
		}
	}
	return claims, nil
}

func (s *AuthService) issuePair(identity *domain.Identity) (*domain.TokenPair, error) {
	access, _, err := s.tokens.IssueAccess(identity.SubjectID, identity.Role, identity.Email)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.tokens.IssueRefresh(identity.SubjectID)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: s.expiresIn()}, nil
}

func (s *AuthService) expiresIn() int {
	return int(s.tokens.AccessTTL() / time.Second)
}

func (s *AuthService) recordLogin(method, result string) {
	if s.recorder != nil {
		s.recorder.RecordLogin(method, result)
	}
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, actor events.Actor, payload interface{}) {
	publishEvent(ctx, s.dispatcher, s.logger, eventType, actor, payload)
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, eventType events.EventType, actor events.Actor, payload interface{}) {
	if dispatcher == nil {
		return
	}
	err := dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		logger.Warn("event handler failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}
