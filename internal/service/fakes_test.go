package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/druginsight-api/internal/auth"
	"github.com/spec-kit/druginsight-api/internal/config"
	"github.com/spec-kit/druginsight-api/internal/domain"
)

var errStoreDown = errors.New("connection refused")

type fakeUsers struct {
	mu       sync.Mutex
	byID     map[string]*domain.User
	logins   map[string]int
	failWith error
}

func newFakeUsers(users ...*domain.User) *fakeUsers {
	f := &fakeUsers{byID: map[string]*domain.User{}, logins: map[string]int{}}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.ID = uuid.NewString()
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	if u, ok := f.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUsers) GetBySubject(ctx context.Context, subject string) (*domain.User, error) {
	if u, err := f.GetByID(ctx, subject); !errors.Is(err, pgx.ErrNoRows) {
		return u, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.CognitoSub != nil && *u.CognitoSub == subject {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUsers) GetActiveByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.byID {
		if u.Email == email && u.IsActive {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUsers) UpdateProfile(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *user
	f.byID[user.ID] = &cp
	return nil
}

func (f *fakeUsers) UpdatePasswordHash(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) RecordLogin(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins[id]++
	now := time.Now()
	f.byID[id].LastLogin = &now
	return nil
}

type fakeKeys struct {
	mu   sync.Mutex
	keys map[string]*domain.APIKey
}

func newFakeKeys() *fakeKeys { return &fakeKeys{keys: map[string]*domain.APIKey{}} }

func (f *fakeKeys) Create(_ context.Context, key *domain.APIKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key.ID = uuid.NewString()
	key.IsActive = true
	key.CreatedAt = time.Now()
	cp := *key
	f.keys[key.ID] = &cp
	return nil
}

func (f *fakeKeys) FindActiveByHash(context.Context, string) (*domain.APIKey, *domain.User, error) {
	return nil, nil, pgx.ErrNoRows
}

func (f *fakeKeys) ListByUser(_ context.Context, userID string) ([]domain.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.APIKey
	for _, k := range f.keys {
		if k.UserID == userID {
			out = append(out, *k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeKeys) Revoke(_ context.Context, userID, keyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.keys[keyID]
	if !ok || k.UserID != userID || !k.IsActive {
		return pgx.ErrNoRows
	}
	k.IsActive = false
	return nil
}

func (f *fakeKeys) MarkUsed(context.Context, string) error { return nil }

type fakeRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	err     error
}

func newFakeRevocations() *fakeRevocations {
	return &fakeRevocations{revoked: map[string]time.Time{}}
}

func (f *fakeRevocations) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.revoked[jti] = expiresAt
	return nil
}

func (f *fakeRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.revoked[jti]
	return ok, nil
}

type fakeFederated struct {
	identity *domain.Identity
	err      error
}

func (f *fakeFederated) Authenticate(context.Context, string, string) (*domain.Identity, error) {
	return f.identity, f.err
}

type loginCounts map[string]int

func (l loginCounts) RecordLogin(method, result string) { l[method+"/"+result]++ }

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:             "service-test-secret-with-32-chars!!",
		Algorithm:             "HS256",
		AccessTokenTTLMinutes: 30,
		RefreshTokenTTLDays:   7,
		PasswordHashSchemes:   []string{auth.SchemeBcrypt},
		BcryptCost:            bcrypt.MinCost,
		HashConcurrency:       2,
		EnableLocalAuth:       true,
	}
}

func newTestCrypto(t *testing.T) (*auth.PasswordHasher, *auth.TokenManager) {
	t.Helper()
	cfg := testAuthConfig()
	hasher, err := auth.NewPasswordHasher(cfg)
	require.NoError(t, err)
	tokens, err := auth.NewTokenManager(cfg)
	require.NoError(t, err)
	return hasher, tokens
}

func localUser(t *testing.T, hasher *auth.PasswordHasher, id, email, password string) *domain.User {
	t.Helper()
	hash, err := hasher.Hash(context.Background(), password)
	require.NoError(t, err)
	return &domain.User{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		Role:         domain.RoleUser,
		IsActive:     true,
	}
}
