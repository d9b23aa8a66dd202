package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedRefreshPrefix = "revoked:refresh:"

// TokenRevocationRepository records refresh tokens that were logged out.
type TokenRevocationRepository interface {
	// Revoke denylists jti until the token would have expired anyway.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type tokenRevocationRepository struct {
	client *redis.Client
	now    func() time.Time
}

// NewTokenRevocationRepository returns a Redis-backed denylist.
func NewTokenRevocationRepository(client *redis.Client) TokenRevocationRepository {
	return &tokenRevocationRepository{client: client, now: time.Now}
}

func (r *tokenRevocationRepository) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return errors.New("token has no id")
	}
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedRefreshPrefix+jti, "1", ttl).Err()
}

func (r *tokenRevocationRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := r.client.Exists(ctx, revokedRefreshPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
