package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/druginsight-api/internal/domain"
	"github.com/spec-kit/druginsight-api/internal/events"
)

const (
	apiKeyPrefix     = "dik_"
	apiKeyEntropy    = 32
	apiKeyDisplayLen = 12
)

// APIKeyStore looks up an active, unexpired key and its active owner by digest.
// A miss is reported as pgx.ErrNoRows.
type APIKeyStore interface {
	FindActiveByHash(ctx context.Context, keyHash string) (*domain.APIKey, *domain.User, error)
}

// APIKeyVerifier resolves raw API keys through the credential store.
type APIKeyVerifier struct {
	store      APIKeyStore
	hasher     *PasswordHasher
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAPIKeyVerifier builds the verifier. dispatcher and logger may be nil.
func NewAPIKeyVerifier(store APIKeyStore, hasher *PasswordHasher, dispatcher events.Dispatcher, logger *zap.Logger) *APIKeyVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIKeyVerifier{store: store, hasher: hasher, dispatcher: dispatcher, logger: logger}
}

func (v *APIKeyVerifier) Name() string { return string(domain.AuthTypeAPIKey) }

func (v *APIKeyVerifier) Verify(ctx context.Context, credential string) (*domain.Identity, error) {
	if credential == "" {
		return nil, nil
	}

	key, user, err := v.store.FindActiveByHash(ctx, v.hasher.Digest(credential))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: api key lookup: %v", ErrUpstreamUnavailable, err)
	}
	if !key.Usable(time.Now()) || !user.IsActive {
		return nil, nil
	}

	if v.dispatcher != nil {
		err := v.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventAPIKeyUsed,
			Actor:     events.Actor{SubjectID: user.ID, AuthType: domain.AuthTypeAPIKey},
			Timestamp: time.Now().UTC(),
			Payload:   events.APIKeyPayload{KeyID: key.ID, Prefix: key.KeyPrefix},
		})
		if err != nil {
			v.logger.Warn("api key usage event failed",
				zap.String("event", string(events.EventAPIKeyUsed)),
				zap.String("key_id", key.ID),
				zap.Error(err),
			)
		}
	}
	return user.Identity(domain.AuthTypeAPIKey), nil
}

// GenerateAPIKey returns a new raw key and its display prefix. The raw key is
// shown to the caller once; only its digest is stored.
func GenerateAPIKey() (raw, prefix string, err error) {
	buf := make([]byte, apiKeyEntropy)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate api key: %w", err)
	}
	raw = apiKeyPrefix + base64.RawURLEncoding.EncodeToString(buf)
	return raw, raw[:apiKeyDisplayLen], nil
}
