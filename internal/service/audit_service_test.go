package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/druginsight-api/internal/domain"
	"github.com/spec-kit/druginsight-api/internal/events"
)

func TestAuditServiceLogsEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewAuditService(dispatcher, zap.New(core)).RegisterHandlers()
	ctx := context.Background()

	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		ID:      "e1",
		Type:    events.EventLoginFailed,
		Payload: events.LoginPayload{Email: "a@x.io", Method: LoginMethodLocal, Reason: "invalid_credentials"},
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		ID:      "e2",
		Type:    events.EventAPIKeyCreated,
		Actor:   events.Actor{SubjectID: "u1", AuthType: domain.AuthTypeJWT},
		Payload: events.APIKeyPayload{KeyID: "k1", Prefix: "dik_abcdefgh"},
	}))

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "login failed", entries[0].Message)
	assert.Equal(t, "a@x.io", entries[0].ContextMap()["email"])

	assert.Equal(t, "api_key_created", entries[1].Message)
	assert.Equal(t, "k1", entries[1].ContextMap()["key_id"])
	assert.Equal(t, "u1", entries[1].ContextMap()["subject_id"])
}
