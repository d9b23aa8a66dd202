package domain

import "time"

// APIKey is a long-lived credential owned by a user. Only its digest is stored.
type APIKey struct {
	ID         string
	UserID     string
	Name       string
	KeyHash    string
	KeyPrefix  string
	IsActive   bool
	ExpiresAt  *time.Time
	LastUsed   *time.Time
	UsageCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Usable reports whether the key may authenticate at the given instant.
func (k *APIKey) Usable(now time.Time) bool {
	if !k.IsActive {
		return false
	}
	return k.ExpiresAt == nil || k.ExpiresAt.After(now)
}
