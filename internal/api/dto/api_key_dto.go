package dto

import (
	"time"

	"github.com/spec-kit/druginsight-api/internal/domain"
)

// CreateAPIKeyRequest payload for POST /users/api-keys.
type CreateAPIKeyRequest struct {
	Name          string `json:"name" validate:"required,max=100"`
	ExpiresInDays *int   `json:"expires_in_days" validate:"omitempty,min=1,max=3650"`
}

// APIKeyResponse describes a stored key. The digest is never exposed.
type APIKeyResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	IsActive   bool       `json:"is_active"`
	ExpiresAt  *time.Time `json:"expires_at"`
	LastUsed   *time.Time `json:"last_used"`
	UsageCount int        `json:"usage_count"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CreatedAPIKeyResponse includes the raw key, shown exactly once.
type CreatedAPIKeyResponse struct {
	APIKeyResponse
	Key string `json:"key"`
}

// NewAPIKeyResponse maps a key.
func NewAPIKeyResponse(k *domain.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:         k.ID,
		Name:       k.Name,
		KeyPrefix:  k.KeyPrefix,
		IsActive:   k.IsActive,
		ExpiresAt:  k.ExpiresAt,
		LastUsed:   k.LastUsed,
		UsageCount: k.UsageCount,
		CreatedAt:  k.CreatedAt,
	}
}

// NewAPIKeyListResponse maps a list of keys.
func NewAPIKeyListResponse(keys []domain.APIKey) []APIKeyResponse {
	out := make([]APIKeyResponse, 0, len(keys))
	for i := range keys {
		out = append(out, NewAPIKeyResponse(&keys[i]))
	}
	return out
}
