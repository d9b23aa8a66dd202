package service

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/druginsight-api/internal/domain"
	"github.com/spec-kit/druginsight-api/internal/events"
)

func TestAPIKeyLifecycle(t *testing.T) {
	hasher, _ := newTestCrypto(t)
	users := newFakeUsers(localUser(t, hasher, "u1", "a@x.io", "correct-pw"))
	keys := newFakeKeys()

	dispatcher := events.NewInMemoryDispatcher()
	var seen []events.EventType
	for _, et := range []events.EventType{events.EventAPIKeyCreated, events.EventAPIKeyRevoked} {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			seen = append(seen, e.Type)
			return nil
		})
	}

	svc := NewAPIKeyService(keys, users, hasher, dispatcher, nil)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	ctx := context.Background()
	me := &domain.Identity{SubjectID: "u1", AuthType: domain.AuthTypeJWT}

	created, err := svc.Create(ctx, me, " ci pipeline ", 30)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.RawKey, "dik_"))
	assert.Equal(t, created.RawKey[:12], created.Key.KeyPrefix)
	assert.Equal(t, hasher.Digest(created.RawKey), created.Key.KeyHash)
	assert.NotContains(t, created.Key.KeyHash, created.RawKey)
	assert.Equal(t, "ci pipeline", created.Key.Name)
	require.NotNil(t, created.Key.ExpiresAt)
	assert.Equal(t, fixed.Add(30*24*time.Hour), *created.Key.ExpiresAt)

	listed, err := svc.List(ctx, me)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, created.Key.ID, listed[0].ID)

	require.NoError(t, svc.Revoke(ctx, me, created.Key.ID))
	err = svc.Revoke(ctx, me, created.Key.ID)
	requireDomainError(t, err, http.StatusNotFound, "API key not found")

	assert.Equal(t, []events.EventType{events.EventAPIKeyCreated, events.EventAPIKeyRevoked}, seen)
}

func TestAPIKeyCreateValidation(t *testing.T) {
	hasher, _ := newTestCrypto(t)
	svc := NewAPIKeyService(newFakeKeys(), newFakeUsers(localUser(t, hasher, "u1", "a@x.io", "correct-pw")), hasher, nil, nil)

	_, err := svc.Create(context.Background(), &domain.Identity{SubjectID: "u1"}, "   ", 0)
	requireDomainError(t, err, http.StatusUnprocessableEntity, "")

	created, err := svc.Create(context.Background(), &domain.Identity{SubjectID: "u1"}, "forever", 0)
	require.NoError(t, err)
	assert.Nil(t, created.Key.ExpiresAt)

	_, err = svc.Create(context.Background(), &domain.Identity{SubjectID: "cognito-only"}, "x", 0)
	requireDomainError(t, err, http.StatusNotFound, "")
}

func TestAPIKeyRevokeForeignKey(t *testing.T) {
	hasher, _ := newTestCrypto(t)
	users := newFakeUsers(
		localUser(t, hasher, "u1", "a@x.io", "correct-pw"),
		localUser(t, hasher, "u2", "b@x.io", "correct-pw"),
	)
	svc := NewAPIKeyService(newFakeKeys(), users, hasher, nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, &domain.Identity{SubjectID: "u1"}, "mine", 0)
	require.NoError(t, err)

	err = svc.Revoke(ctx, &domain.Identity{SubjectID: "u2"}, created.Key.ID)
	requireDomainError(t, err, http.StatusNotFound, "")
}
