package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrUnknownKey is returned when no published key matches a token's kid.
var ErrUnknownKey = errors.New("signing key not found")

// refreshBackoff is how long a failed fetch is remembered before the
// provider is contacted again.
const refreshBackoff = 30 * time.Second

// KeySet caches an identity provider's published RSA signing keys.
//
// Keys are refreshed when the cache is older than ttl. An unknown kid on a
// fresh cache triggers at most one refresh per minute, which picks up
// rotated keys without letting forged kids hammer the provider. Concurrent
// callers share one fetch. When a fetch fails, previously fetched keys keep
// being served and the provider is not contacted again for refreshBackoff.
type KeySet struct {
	url       string
	client    *http.Client
	ttl       time.Duration
	throttle  *rate.Limiter
	now       func() time.Time
	refreshMu sync.Mutex
	failedAt  time.Time // guarded by refreshMu
	lastErr   error     // guarded by refreshMu

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewKeySet builds a key set for the given JWKS URL.
func NewKeySet(url string, ttl time.Duration, client *http.Client) *KeySet {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &KeySet{
		url:      url,
		client:   client,
		ttl:      ttl,
		throttle: rate.NewLimiter(rate.Every(time.Minute), 1),
		now:      time.Now,
		keys:     map[string]*rsa.PublicKey{},
	}
}

// Key returns the public key for kid, refreshing the set when needed.
func (s *KeySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.RLock()
	key, known := s.keys[kid]
	fresh := s.isFresh()
	seen := s.fetchedAt
	s.mu.RUnlock()

	if known && fresh {
		return key, nil
	}
	if fresh && !s.throttle.Allow() {
		return nil, ErrUnknownKey
	}

	if err := s.refresh(ctx, seen); err != nil {
		if known {
			return key, nil
		}
		return nil, fmt.Errorf("%w: jwks: %v", ErrUpstreamUnavailable, err)
	}

	s.mu.RLock()
	key, known = s.keys[kid]
	s.mu.RUnlock()
	if !known {
		return nil, ErrUnknownKey
	}
	return key, nil
}

// isFresh must be called with mu held.
func (s *KeySet) isFresh() bool {
	return !s.fetchedAt.IsZero() && s.now().Sub(s.fetchedAt) < s.ttl
}

type jwkDocument struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// refresh fetches the key set unless another caller already replaced the
// generation seen, or a recent fetch failed.
func (s *KeySet) refresh(ctx context.Context, seen time.Time) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.RLock()
	current := s.fetchedAt
	s.mu.RUnlock()
	if !current.Equal(seen) {
		return nil
	}
	if s.lastErr != nil && s.now().Sub(s.failedAt) < refreshBackoff {
		return s.lastErr
	}

	if err := s.fetch(ctx); err != nil {
		if ctx.Err() == nil {
			s.failedAt = s.now()
			s.lastErr = err
		}
		return err
	}
	s.lastErr = nil
	return nil
}

func (s *KeySet) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var doc jwkDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := k.rsaKey()
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("no usable signing keys")
	}

	s.mu.Lock()
	s.keys = keys
	s.fetchedAt = s.now()
	s.mu.Unlock()
	return nil
}

func (k jwk) rsaKey() (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	e := new(big.Int).SetBytes(eb)
	if !e.IsInt64() || e.Int64() < 3 {
		return nil, errors.New("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(e.Int64())}, nil
}
