package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/druginsight-api/internal/config"
)

func newTestHasher(t *testing.T, schemes ...string) *PasswordHasher {
	t.Helper()
	if len(schemes) == 0 {
		schemes = []string{SchemeBcrypt}
	}
	h, err := NewPasswordHasher(config.AuthConfig{
		PasswordHashSchemes: schemes,
		BcryptCost:          bcrypt.MinCost,
		HashConcurrency:     2,
	})
	require.NoError(t, err)
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t)
	ctx := context.Background()

	digest, err := h.Hash(ctx, "hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", digest)

	assert.True(t, h.Verify(ctx, "hunter22", digest))
	assert.False(t, h.Verify(ctx, "hunter23", digest))
}

func TestHashIsSalted(t *testing.T) {
	h := newTestHasher(t)
	ctx := context.Background()

	a, err := h.Hash(ctx, "same-password")
	require.NoError(t, err)
	b, err := h.Hash(ctx, "same-password")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify(ctx, "same-password", a))
	assert.True(t, h.Verify(ctx, "same-password", b))
}

func TestVerifyMalformedDigest(t *testing.T) {
	h := newTestHasher(t, SchemeBcrypt, SchemeArgon2id)
	ctx := context.Background()

	for _, digest := range []string{
		"",
		"not-a-hash",
		"$2b$04$short",
		"$argon2id$v=19$m=65536,t=1,p=4$%%%$abc",
		"$argon2id$v=18$m=65536,t=1,p=4$c2FsdA$aGFzaA",
	} {
		assert.False(t, h.Verify(ctx, "anything", digest), digest)
	}
}

func TestLongPasswordsAreNotTruncated(t *testing.T) {
	h := newTestHasher(t)
	ctx := context.Background()

	base := strings.Repeat("a", 80)
	digest, err := h.Hash(ctx, base+"1")
	require.NoError(t, err)

	assert.True(t, h.Verify(ctx, base+"1", digest))
	assert.False(t, h.Verify(ctx, base+"2", digest))
}

func TestArgon2id(t *testing.T) {
	h := newTestHasher(t, SchemeArgon2id)
	ctx := context.Background()

	digest, err := h.Hash(ctx, "correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(digest, "$argon2id$v=19$"))

	assert.True(t, h.Verify(ctx, "correct horse", digest))
	assert.False(t, h.Verify(ctx, "correct horse!", digest))
	assert.False(t, h.NeedsRehash(digest))
}

func TestVerifyRejectsUnconfiguredScheme(t *testing.T) {
	argon := newTestHasher(t, SchemeArgon2id)
	digest, err := argon.Hash(context.Background(), "pw-12345")
	require.NoError(t, err)

	bcryptOnly := newTestHasher(t, SchemeBcrypt)
	assert.False(t, bcryptOnly.Verify(context.Background(), "pw-12345", digest))
}

func TestNeedsRehash(t *testing.T) {
	ctx := context.Background()
	legacy := newTestHasher(t, SchemeBcrypt)
	bcryptDigest, err := legacy.Hash(ctx, "pw-12345")
	require.NoError(t, err)

	assert.False(t, legacy.NeedsRehash(bcryptDigest))

	migrating := newTestHasher(t, SchemeArgon2id, SchemeBcrypt)
	assert.True(t, migrating.Verify(ctx, "pw-12345", bcryptDigest))
	assert.True(t, migrating.NeedsRehash(bcryptDigest))

	stronger, err := NewPasswordHasher(config.AuthConfig{
		PasswordHashSchemes: []string{SchemeBcrypt},
		BcryptCost:          bcrypt.MinCost + 1,
	})
	require.NoError(t, err)
	assert.True(t, stronger.NeedsRehash(bcryptDigest))
}

func TestCancelledContext(t *testing.T) {
	h := newTestHasher(t)
	digest, err := h.Hash(context.Background(), "pw-12345")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = h.Hash(ctx, "pw-12345")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, h.Verify(ctx, "pw-12345", digest))
}

func TestUnsupportedScheme(t *testing.T) {
	_, err := NewPasswordHasher(config.AuthConfig{PasswordHashSchemes: []string{"md5"}})
	assert.Error(t, err)

	_, err = NewPasswordHasher(config.AuthConfig{})
	assert.Error(t, err)
}

func TestDigestIsDeterministic(t *testing.T) {
	h := newTestHasher(t)
	assert.Equal(t, h.Digest("dik_abc"), h.Digest("dik_abc"))
	assert.NotEqual(t, h.Digest("dik_abc"), h.Digest("dik_abd"))
	assert.Len(t, h.Digest("dik_abc"), 64)
}
