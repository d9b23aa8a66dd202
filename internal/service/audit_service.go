package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/druginsight-api/internal/events"
)

// AuditService writes the authentication audit trail to the log.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{dispatcher: dispatcher, logger: logger.Named("audit")}
}

// RegisterHandlers subscribes to auth events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventLoginSucceeded, a.handleLogin)
	a.dispatcher.Subscribe(events.EventLoginFailed, a.handleLogin)
	a.dispatcher.Subscribe(events.EventTokenRefreshed, a.handleSession)
	a.dispatcher.Subscribe(events.EventLogout, a.handleSession)
	a.dispatcher.Subscribe(events.EventAPIKeyCreated, a.handleAPIKey)
	a.dispatcher.Subscribe(events.EventAPIKeyRevoked, a.handleAPIKey)
}

func (a *AuditService) handleLogin(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.LoginPayload)
	fields := append(a.baseFields(event),
		zap.String("email", payload.Email),
		zap.String("method", payload.Method),
	)
	if event.Type == events.EventLoginFailed {
		a.logger.Warn("login failed", append(fields, zap.String("reason", payload.Reason))...)
		return nil
	}
	a.logger.Info("login succeeded", fields...)
	return nil
}

func (a *AuditService) handleSession(_ context.Context, event events.Event) error {
	a.logger.Info(string(event.Type), a.baseFields(event)...)
	return nil
}

func (a *AuditService) handleAPIKey(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.APIKeyPayload)
	a.logger.Info(string(event.Type), append(a.baseFields(event),
		zap.String("key_id", payload.KeyID),
		zap.String("key_prefix", payload.Prefix),
	)...)
	return nil
}

func (a *AuditService) baseFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("subject_id", event.Actor.SubjectID),
		zap.String("auth_type", string(event.Actor.AuthType)),
		zap.Time("at", event.Timestamp),
	}
}
