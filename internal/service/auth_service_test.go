package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/druginsight-api/internal/auth"
	"github.com/spec-kit/druginsight-api/internal/config"
	"github.com/spec-kit/druginsight-api/internal/domain"
	"github.com/spec-kit/druginsight-api/internal/events"
	apperrors "github.com/spec-kit/druginsight-api/pkg/util"
)

type authFixture struct {
	svc         *AuthService
	users       *fakeUsers
	revocations *fakeRevocations
	hasher      *auth.PasswordHasher
	tokens      *auth.TokenManager
	counts      loginCounts
	published   []events.Event
}

func newAuthFixture(t *testing.T, mutate func(*config.AuthConfig, *AuthDependencies)) *authFixture {
	t.Helper()
	hasher, tokens := newTestCrypto(t)
	f := &authFixture{
		users:       newFakeUsers(localUser(t, hasher, "u1", "a@x.io", "correct-pw")),
		revocations: newFakeRevocations(),
		hasher:      hasher,
		tokens:      tokens,
		counts:      loginCounts{},
	}

	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range []events.EventType{events.EventLoginSucceeded, events.EventLoginFailed, events.EventTokenRefreshed, events.EventLogout} {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			f.published = append(f.published, e)
			return nil
		})
	}

	cfg := testAuthConfig()
	deps := AuthDependencies{
		UserRepo:       f.users,
		RevocationRepo: f.revocations,
		Hasher:         hasher,
		Tokens:         tokens,
		Dispatcher:     dispatcher,
		Recorder:       f.counts,
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	f.svc = NewAuthService(cfg, deps)
	return f
}

func requireDomainError(t *testing.T, err error, status int, message string) {
	t.Helper()
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de), "expected DomainError, got %v", err)
	assert.Equal(t, status, de.HTTPStatus)
	if message != "" {
		assert.Equal(t, message, de.Message)
	}
}

func TestLoginLocal(t *testing.T) {
	f := newAuthFixture(t, nil)

	pair, err := f.svc.Login(context.Background(), "a@x.io", "correct-pw")
	require.NoError(t, err)
	assert.Equal(t, 1800, pair.ExpiresIn)

	access, err := f.tokens.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", access.Subject)
	assert.Equal(t, domain.TokenTypeAccess, access.Type)
	assert.Equal(t, "a@x.io", access.Email)
	assert.Equal(t, domain.RoleUser, access.Role)

	refresh, err := f.tokens.Verify(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenTypeRefresh, refresh.Type)

	assert.Equal(t, 1, f.users.logins["u1"])
	assert.Equal(t, 1, f.counts["local/success"])
	require.Len(t, f.published, 1)
	assert.Equal(t, events.EventLoginSucceeded, f.published[0].Type)
}

func TestLoginLocalRejects(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "a@x.io", "wrong-pw")
	requireDomainError(t, err, http.StatusUnauthorized, "Invalid email or password")

	_, err = f.svc.Login(ctx, "nobody@x.io", "correct-pw")
	requireDomainError(t, err, http.StatusUnauthorized, "Invalid email or password")

	f.users.byID["u1"].IsActive = false
	_, err = f.svc.Login(ctx, "a@x.io", "correct-pw")
	requireDomainError(t, err, http.StatusUnauthorized, "Invalid email or password")

	assert.Equal(t, 3, f.counts["local/failure"])
	for _, e := range f.published {
		assert.Equal(t, events.EventLoginFailed, e.Type)
		assert.NotContains(t, e.Payload.(events.LoginPayload).Reason, "pw")
	}
}

func TestLoginUnknownEmailStillVerifiesDigest(t *testing.T) {
	f := newAuthFixture(t, nil)
	require.NotEmpty(t, f.svc.dummyDigest)
	assert.False(t, f.hasher.NeedsRehash(f.svc.dummyDigest), "dummy digest must use the configured scheme and cost")
	assert.False(t, f.hasher.Verify(context.Background(), "correct-pw", f.svc.dummyDigest))

	// Misses go through the same verify and context check as wrong passwords.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Login(ctx, "a@x.io", "wrong-pw")
	requireDomainError(t, err, http.StatusRequestTimeout, "")

	_, err = f.svc.Login(ctx, "nobody@x.io", "wrong-pw")
	requireDomainError(t, err, http.StatusRequestTimeout, "")
	assert.Equal(t, 2, f.counts["local/error"])
}

func TestLoginStoreFailureIsNotAuthFailure(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.users.failWith = errStoreDown

	_, err := f.svc.Login(context.Background(), "a@x.io", "correct-pw")
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, 1, f.counts["local/error"])
}

func TestLoginRehashesLegacyDigest(t *testing.T) {
	f := newAuthFixture(t, nil)
	legacy, err := bcrypt.GenerateFromPassword([]byte("correct-pw"), bcrypt.MinCost+1)
	require.NoError(t, err)
	f.users.byID["u1"].PasswordHash = string(legacy)

	_, err = f.svc.Login(context.Background(), "a@x.io", "correct-pw")
	require.NoError(t, err)

	updated := f.users.byID["u1"].PasswordHash
	assert.NotEqual(t, string(legacy), updated)
	assert.False(t, f.hasher.NeedsRehash(updated))
	assert.True(t, f.hasher.Verify(context.Background(), "correct-pw", updated))
}

func TestLoginFederated(t *testing.T) {
	federated := &fakeFederated{identity: &domain.Identity{
		SubjectID: "cognito-sub-1",
		Email:     "fed@x.io",
		Role:      domain.RoleUser,
		AuthType:  domain.AuthTypeFederated,
	}}
	f := newAuthFixture(t, func(cfg *config.AuthConfig, deps *AuthDependencies) {
		cfg.EnableLocalAuth = false
		deps.Federated = federated
	})

	pair, err := f.svc.Login(context.Background(), "fed@x.io", "pw-12345678")
	require.NoError(t, err)
	claims, err := f.tokens.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "cognito-sub-1", claims.Subject)
	assert.Equal(t, 1, f.counts["federated/success"])

	t.Run("linked local account", func(t *testing.T) {
		sub := "cognito-sub-1"
		linked := localUser(t, f.hasher, "u9", "fed@x.io", "unused-pw")
		linked.Role = domain.RoleAdmin
		linked.CognitoSub = &sub
		f.users.byID["u9"] = linked

		pair, err := f.svc.Login(context.Background(), "fed@x.io", "pw-12345678")
		require.NoError(t, err)
		claims, err := f.tokens.Verify(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "u9", claims.Subject)
		assert.Equal(t, domain.RoleAdmin, claims.Role)
	})

	t.Run("rejected", func(t *testing.T) {
		federated.identity = nil
		_, err := f.svc.Login(context.Background(), "fed@x.io", "bad")
		requireDomainError(t, err, http.StatusUnauthorized, "Invalid email or password")
	})

	t.Run("provider down", func(t *testing.T) {
		federated.err = auth.ErrUpstreamUnavailable
		_, err := f.svc.Login(context.Background(), "fed@x.io", "pw-12345678")
		requireDomainError(t, err, http.StatusBadGateway, "")
	})
}

func TestLoginNoMethodEnabled(t *testing.T) {
	f := newAuthFixture(t, func(cfg *config.AuthConfig, _ *AuthDependencies) {
		cfg.EnableLocalAuth = false
	})
	_, err := f.svc.Login(context.Background(), "a@x.io", "correct-pw")
	requireDomainError(t, err, http.StatusUnauthorized, "No authentication method enabled")
}

func TestRefresh(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	refresh, _, err := f.tokens.IssueRefresh("u1")
	require.NoError(t, err)

	pair, err := f.svc.Refresh(ctx, refresh)
	require.NoError(t, err)
	assert.Empty(t, pair.RefreshToken)
	assert.Equal(t, 1800, pair.ExpiresIn)

	claims, err := f.tokens.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "a@x.io", claims.Email)
	assert.Equal(t, domain.TokenTypeAccess, claims.Type)
}

func TestRefreshRejects(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	access, _, err := f.tokens.IssueAccess("u1", domain.RoleUser, "a@x.io")
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, access)
	requireDomainError(t, err, http.StatusUnauthorized, "Invalid or expired refresh token")

	_, err = f.svc.Refresh(ctx, "garbage")
	requireDomainError(t, err, http.StatusUnauthorized, "Invalid or expired refresh token")

	orphan, _, err := f.tokens.IssueRefresh("deleted-user")
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, orphan)
	requireDomainError(t, err, http.StatusUnauthorized, "Invalid or expired refresh token")

	f.users.byID["u1"].IsActive = false
	refresh, _, err := f.tokens.IssueRefresh("u1")
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, refresh)
	requireDomainError(t, err, http.StatusUnauthorized, "Invalid or expired refresh token")
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	refresh, _, err := f.tokens.IssueRefresh("u1")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, refresh))
	assert.Len(t, f.revocations.revoked, 1)

	_, err = f.svc.Refresh(ctx, refresh)
	requireDomainError(t, err, http.StatusUnauthorized, "Invalid or expired refresh token")

	err = f.svc.Logout(ctx, refresh)
	requireDomainError(t, err, http.StatusUnauthorized, "")
}

func TestRefreshFailsClosedWhenDenylistDown(t *testing.T) {
	f := newAuthFixture(t, nil)
	refresh, _, err := f.tokens.IssueRefresh("u1")
	require.NoError(t, err)
	f.revocations.err = errStoreDown

	_, err = f.svc.Refresh(context.Background(), refresh)
	requireDomainError(t, err, http.StatusBadGateway, "")
}
