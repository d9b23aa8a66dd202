package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/spec-kit/druginsight-api/internal/config"
)

// Supported password hash schemes.
const (
	SchemeBcrypt   = "bcrypt"
	SchemeArgon2id = "argon2id"
)

const (
	bcryptMaxInput = 72

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// PasswordHasher hashes and verifies passwords with a configured scheme list.
// The first scheme hashes new passwords; every listed scheme verifies.
type PasswordHasher struct {
	schemes    []string
	bcryptCost int
	sem        *semaphore.Weighted
}

// NewPasswordHasher builds a hasher from auth configuration.
func NewPasswordHasher(cfg config.AuthConfig) (*PasswordHasher, error) {
	if len(cfg.PasswordHashSchemes) == 0 {
		return nil, fmt.Errorf("no password hash scheme configured")
	}
	for _, s := range cfg.PasswordHashSchemes {
		if s != SchemeBcrypt && s != SchemeArgon2id {
			return nil, fmt.Errorf("unsupported password hash scheme %q", s)
		}
	}

	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	workers := cfg.HashConcurrency
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &PasswordHasher{
		schemes:    append([]string(nil), cfg.PasswordHashSchemes...),
		bcryptCost: cost,
		sem:        semaphore.NewWeighted(int64(workers)),
	}, nil
}

// Hash returns a salted digest of plaintext. Only context cancellation or a
// failing entropy source produce an error.
func (h *PasswordHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	switch h.schemes[0] {
	case SchemeArgon2id:
		return hashArgon2id(plaintext)
	default:
		hashed, err := bcrypt.GenerateFromPassword(bcryptInput(plaintext), h.bcryptCost)
		if err != nil {
			return "", err
		}
		return string(hashed), nil
	}
}

// Verify reports whether plaintext matches digest. Malformed digests, schemes
// outside the configured list and cancelled contexts all yield false.
func (h *PasswordHasher) Verify(ctx context.Context, plaintext, digest string) bool {
	scheme := schemeOf(digest)
	if scheme == "" || !h.accepts(scheme) {
		return false
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)

	switch scheme {
	case SchemeArgon2id:
		return verifyArgon2id(plaintext, digest)
	default:
		return bcrypt.CompareHashAndPassword([]byte(digest), bcryptInput(plaintext)) == nil
	}
}

// NeedsRehash reports digests produced by a non-default scheme or parameters.
func (h *PasswordHasher) NeedsRehash(digest string) bool {
	scheme := schemeOf(digest)
	if scheme != h.schemes[0] {
		return true
	}
	if scheme == SchemeBcrypt {
		cost, err := bcrypt.Cost([]byte(digest))
		return err != nil || cost != h.bcryptCost
	}
	return false
}

// Digest returns a deterministic SHA-256 hex digest for API-key lookup.
func (h *PasswordHasher) Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (h *PasswordHasher) accepts(scheme string) bool {
	for _, s := range h.schemes {
		if s == scheme {
			return true
		}
	}
	return false
}

func schemeOf(digest string) string {
	switch {
	case strings.HasPrefix(digest, "$2a$"), strings.HasPrefix(digest, "$2b$"), strings.HasPrefix(digest, "$2y$"):
		return SchemeBcrypt
	case strings.HasPrefix(digest, "$argon2id$"):
		return SchemeArgon2id
	default:
		return ""
	}
}

// bcryptInput pre-digests inputs beyond bcrypt's 72-byte limit.
func bcryptInput(plaintext string) []byte {
	if len(plaintext) <= bcryptMaxInput {
		return []byte(plaintext)
	}
	sum := sha256.Sum256([]byte(plaintext))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

func hashArgon2id(plaintext string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plaintext), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func verifyArgon2id(plaintext, digest string) bool {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}
	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false
	}
	if memory == 0 || iterations == 0 || threads == 0 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false
	}

	got := argon2.IDKey([]byte(plaintext), salt, iterations, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
