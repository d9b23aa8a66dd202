package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/druginsight-api/internal/domain"
)

// UserRepository defines persistence access for platform users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetBySubject matches a token subject against the user id or the linked Cognito sub.
	GetBySubject(ctx context.Context, subject string) (*domain.User, error)
	GetActiveByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	RecordLogin(ctx context.Context, id string) error
}

const userColumns = `
        id::text, email, COALESCE(password_hash, ''), first_name, last_name, organization, role,
        is_active, is_verified, last_login, cognito_sub, created_at, updated_at`

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (email, password_hash, first_name, last_name, organization, role, is_active, is_verified, cognito_sub)
        VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9)
        RETURNING id::text, created_at, updated_at`

	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	return r.pool.QueryRow(ctx, query,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Organization,
		user.Role,
		user.IsActive,
		user.IsVerified,
		user.CognitoSub,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetBySubject tries the primary key first when the subject is a UUID, then
// falls back to the indexed cognito_sub column.
func (r *userRepository) GetBySubject(ctx context.Context, subject string) (*domain.User, error) {
	if id, err := uuid.Parse(subject); err == nil {
		query := `SELECT` + userColumns + ` FROM users WHERE id = $1::uuid`
		user, err := scanUser(r.pool.QueryRow(ctx, query, id.String()))
		if !errors.Is(err, pgx.ErrNoRows) {
			return user, err
		}
	}

	query := `SELECT` + userColumns + ` FROM users WHERE cognito_sub = $1`
	return scanUser(r.pool.QueryRow(ctx, query, subject))
}

func (r *userRepository) GetActiveByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE email = $1 AND is_active = true`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET first_name=$1, last_name=$2, organization=$3, updated_at=NOW()
        WHERE id=$4
        RETURNING updated_at`

	return r.pool.QueryRow(ctx, query,
		user.FirstName,
		user.LastName,
		user.Organization,
		user.ID,
	).Scan(&user.UpdatedAt)
}

func (r *userRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	const query = `UPDATE users SET password_hash=$1, updated_at=NOW() WHERE id=$2`
	return execOne(ctx, r.pool, query, hash, id)
}

func (r *userRepository) RecordLogin(ctx context.Context, id string) error {
	const query = `UPDATE users SET last_login=NOW(), failed_login_attempts=0 WHERE id=$1`
	return execOne(ctx, r.pool, query, id)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Organization,
		&user.Role,
		&user.IsActive,
		&user.IsVerified,
		&user.LastLogin,
		&user.CognitoSub,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func execOne(ctx context.Context, pool *pgxpool.Pool, query string, args ...any) error {
	cmd, err := pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
