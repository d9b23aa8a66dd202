package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/druginsight-api/internal/auth"
	"github.com/spec-kit/druginsight-api/internal/domain"
	"github.com/spec-kit/druginsight-api/internal/events"
	"github.com/spec-kit/druginsight-api/internal/repository"
	apperrors "github.com/spec-kit/druginsight-api/pkg/util"
)

// CreatedAPIKey is a freshly minted key. RawKey is never retrievable again.
type CreatedAPIKey struct {
	Key    *domain.APIKey
	RawKey string
}

// APIKeyService manages the caller's API keys.
type APIKeyService struct {
	keys       repository.APIKeyRepository
	users      repository.UserRepository
	hasher     *auth.PasswordHasher
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewAPIKeyService builds the service. dispatcher may be nil.
func NewAPIKeyService(keys repository.APIKeyRepository, users repository.UserRepository, hasher *auth.PasswordHasher, dispatcher events.Dispatcher, logger *zap.Logger) *APIKeyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIKeyService{
		keys:       keys,
		users:      users,
		hasher:     hasher,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Create mints a key for the caller. expiresInDays <= 0 means no expiry.
func (s *APIKeyService) Create(ctx context.Context, identity *domain.Identity, name string, expiresInDays int) (*CreatedAPIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	owner, err := s.owner(ctx, identity)
	if err != nil {
		return nil, err
	}

	raw, prefix, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	key := &domain.APIKey{
		UserID:    owner.ID,
		Name:      name,
		KeyHash:   s.hasher.Digest(raw),
		KeyPrefix: prefix,
	}
	if expiresInDays > 0 {
		exp := s.now().Add(time.Duration(expiresInDays) * 24 * time.Hour).UTC()
		key.ExpiresAt = &exp
	}
	if err := s.keys.Create(ctx, key); err != nil {
		return nil, err
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.EventAPIKeyCreated,
		events.Actor{SubjectID: owner.ID, AuthType: identity.AuthType},
		events.APIKeyPayload{KeyID: key.ID, Prefix: key.KeyPrefix, Name: key.Name})
	return &CreatedAPIKey{Key: key, RawKey: raw}, nil
}

// List returns the caller's keys, newest first.
func (s *APIKeyService) List(ctx context.Context, identity *domain.Identity) ([]domain.APIKey, error) {
	owner, err := s.owner(ctx, identity)
	if err != nil {
		return nil, err
	}
	return s.keys.ListByUser(ctx, owner.ID)
}

// Revoke deactivates one of the caller's keys.
func (s *APIKeyService) Revoke(ctx context.Context, identity *domain.Identity, keyID string) error {
	owner, err := s.owner(ctx, identity)
	if err != nil {
		return err
	}
	if err := s.keys.Revoke(ctx, owner.ID, keyID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("API key", map[string]any{"id": keyID})
		}
		return err
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.EventAPIKeyRevoked,
		events.Actor{SubjectID: owner.ID, AuthType: identity.AuthType},
		events.APIKeyPayload{KeyID: keyID})
	return nil
}

// owner maps the caller to a local account; keys always belong to a user row.
func (s *APIKeyService) owner(ctx context.Context, identity *domain.Identity) (*domain.User, error) {
	user, err := s.users.GetBySubject(ctx, identity.SubjectID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("User", nil)
	}
	return user, err
}
