package events

import (
	"time"

	"github.com/spec-kit/druginsight-api/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
	EventTokenRefreshed EventType = "token_refreshed"
	EventLogout         EventType = "logout"
	EventAPIKeyCreated  EventType = "api_key_created"
	EventAPIKeyRevoked  EventType = "api_key_revoked"
	EventAPIKeyUsed     EventType = "api_key_used"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	SubjectID string          `json:"subject_id,omitempty"`
	AuthType  domain.AuthType `json:"auth_type,omitempty"`
}

// Event represents an auth event emitted by services and verifiers.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// LoginPayload payload. Never carries the password.
type LoginPayload struct {
	Email  string `json:"email"`
	Method string `json:"method"`
	Reason string `json:"reason,omitempty"`
}

// APIKeyPayload payload. Never carries the raw key.
type APIKeyPayload struct {
	KeyID  string `json:"key_id"`
	Prefix string `json:"prefix,omitempty"`
	Name   string `json:"name,omitempty"`
}
