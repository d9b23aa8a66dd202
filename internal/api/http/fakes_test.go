package http

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/druginsight-api/internal/domain"
)

// memStore backs both the user and API key repositories so key lookups can
// join their owner.
type memStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
	keys  map[string]*domain.APIKey
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*domain.User{}, keys: map[string]*domain.APIKey{}}
}

type memUsers struct{ *memStore }

type memKeys struct{ *memStore }

func (s memUsers) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (s memUsers) GetBySubject(ctx context.Context, subject string) (*domain.User, error) {
	return s.GetByID(ctx, subject)
}

func (s memUsers) GetActiveByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email && u.IsActive {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s memUsers) UpdateProfile(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s memUsers) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.PasswordHash = hash
	return nil
}

func (s memUsers) RecordLogin(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		now := time.Now()
		u.LastLogin = &now
	}
	return nil
}

func (s memKeys) Create(_ context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key.ID = uuid.NewString()
	key.IsActive = true
	key.CreatedAt = time.Now()
	cp := *key
	s.keys[key.ID] = &cp
	return nil
}

func (s memKeys) FindActiveByHash(_ context.Context, keyHash string) (*domain.APIKey, *domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.KeyHash != keyHash || !k.IsActive {
			continue
		}
		owner, ok := s.users[k.UserID]
		if !ok || !owner.IsActive {
			break
		}
		key, user := *k, *owner
		return &key, &user, nil
	}
	return nil, nil, pgx.ErrNoRows
}

func (s memKeys) ListByUser(_ context.Context, userID string) ([]domain.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.APIKey
	for _, k := range s.keys {
		if k.UserID == userID {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (s memKeys) Revoke(_ context.Context, userID, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[keyID]
	if !ok || k.UserID != userID || !k.IsActive {
		return pgx.ErrNoRows
	}
	k.IsActive = false
	return nil
}

func (s memKeys) MarkUsed(_ context.Context, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[keyID]; ok {
		k.UsageCount++
	}
	return nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }
