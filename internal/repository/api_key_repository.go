package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/druginsight-api/internal/domain"
)

// APIKeyRepository persists API keys by digest.
type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	// FindActiveByHash returns an active, unexpired key together with its
	// active owner. A miss is pgx.ErrNoRows.
	FindActiveByHash(ctx context.Context, keyHash string) (*domain.APIKey, *domain.User, error)
	ListByUser(ctx context.Context, userID string) ([]domain.APIKey, error)
	Revoke(ctx context.Context, userID, keyID string) error
	MarkUsed(ctx context.Context, keyID string) error
}

const apiKeyColumns = `
        k.id::text, k.user_id::text, k.name, k.key_hash, k.key_prefix, k.is_active,
        k.expires_at, k.last_used, k.usage_count, k.created_at, k.updated_at`

const ownerColumns = `
        u.id::text, u.email, COALESCE(u.password_hash, ''), u.first_name, u.last_name, u.organization, u.role,
        u.is_active, u.is_verified, u.last_login, u.cognito_sub, u.created_at, u.updated_at`

type apiKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns a Postgres-backed implementation.
func NewAPIKeyRepository(pool *pgxpool.Pool) APIKeyRepository {
	return &apiKeyRepository{pool: pool}
}

func (r *apiKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	const query = `
        INSERT INTO api_keys (user_id, name, key_hash, key_prefix, is_active, expires_at)
        VALUES ($1, $2, $3, $4, TRUE, $5)
        RETURNING id::text, is_active, usage_count, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		key.UserID,
		key.Name,
		key.KeyHash,
		key.KeyPrefix,
		key.ExpiresAt,
	).Scan(&key.ID, &key.IsActive, &key.UsageCount, &key.CreatedAt, &key.UpdatedAt)
}

func (r *apiKeyRepository) FindActiveByHash(ctx context.Context, keyHash string) (*domain.APIKey, *domain.User, error) {
	query := `
        SELECT` + apiKeyColumns + `,` + ownerColumns + `
        FROM api_keys k
        JOIN users u ON u.id = k.user_id
        WHERE k.key_hash = $1
          AND k.is_active = TRUE
          AND (k.expires_at IS NULL OR k.expires_at > NOW())
          AND u.is_active = TRUE`

	var key domain.APIKey
	var user domain.User
	err := r.pool.QueryRow(ctx, query, keyHash).Scan(
		&key.ID, &key.UserID, &key.Name, &key.KeyHash, &key.KeyPrefix, &key.IsActive,
		&key.ExpiresAt, &key.LastUsed, &key.UsageCount, &key.CreatedAt, &key.UpdatedAt,
		&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.Organization, &user.Role, &user.IsActive, &user.IsVerified, &user.LastLogin,
		&user.CognitoSub, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, nil, err
	}
	return &key, &user, nil
}

func (r *apiKeyRepository) ListByUser(ctx context.Context, userID string) ([]domain.APIKey, error) {
	query := `SELECT` + apiKeyColumns + ` FROM api_keys k WHERE k.user_id = $1 ORDER BY k.created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.APIKey
	for rows.Next() {
		var key domain.APIKey
		if err := rows.Scan(
			&key.ID, &key.UserID, &key.Name, &key.KeyHash, &key.KeyPrefix, &key.IsActive,
			&key.ExpiresAt, &key.LastUsed, &key.UsageCount, &key.CreatedAt, &key.UpdatedAt,
		); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Revoke deactivates a key owned by userID. Unknown or foreign keys yield pgx.ErrNoRows.
func (r *apiKeyRepository) Revoke(ctx context.Context, userID, keyID string) error {
	const query = `
        UPDATE api_keys SET is_active = FALSE, updated_at = NOW()
        WHERE id = $1 AND user_id = $2 AND is_active = TRUE`
	return execOne(ctx, r.pool, query, keyID, userID)
}

func (r *apiKeyRepository) MarkUsed(ctx context.Context, keyID string) error {
	const query = `UPDATE api_keys SET last_used = NOW(), usage_count = usage_count + 1 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, keyID)
	return err
}
