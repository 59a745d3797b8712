// ABOUTME: Cached JWKS fetcher for the identity provider's key-discovery endpoint.
// ABOUTME: Many-reader/single-writer discipline with a fixed freshness window.

package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Freshness window for the cached key set. Keys older than this are refetched
// lazily on the next validation.
const keyCacheFreshness = time.Hour

// fetchTimeout bounds the outbound key-discovery request.
const fetchTimeout = 10 * time.Second

// maxJWKSBodySize caps the discovery response body (1MB).
const maxJWKSBodySize = 1 << 20

// jwksDocument is the wire shape of the key-discovery response.
type jwksDocument struct {
	Keys []jwkKey `json:"keys"`
}

// jwkKey is a single JSON Web Key record.
type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// KeyCacheConfig holds configuration for a KeyCache.
type KeyCacheConfig struct {
	// URL is the key-discovery endpoint publishing the current signing keys.
	URL string
	// Client is the HTTP client for outbound fetches. Defaults to a client
	// with a 10s timeout.
	Client *http.Client
	Logger *slog.Logger
	// Freshness overrides the cache window. Defaults to one hour.
	Freshness time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// KeyCache caches the identity provider's public signing keys, addressable by
// key ID. Reads are concurrent; a refresh holds the write lock so concurrent
// validations never race to overwrite the set.
type KeyCache struct {
	url       string
	client    *http.Client
	logger    *slog.Logger
	freshness time.Duration
	now       func() time.Time

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewKeyCache creates a key cache for the given discovery endpoint.
func NewKeyCache(cfg KeyCacheConfig) (*KeyCache, error) {
	if cfg.URL == "" {
		return nil, errors.New("key discovery URL is required")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	freshness := cfg.Freshness
	if freshness <= 0 {
		freshness = keyCacheFreshness
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &KeyCache{
		url:       cfg.URL,
		client:    client,
		logger:    logger,
		freshness: freshness,
		now:       now,
	}, nil
}

// freshLocked reports whether the cached set is within the freshness window.
// Caller must hold at least the read lock.
func (c *KeyCache) freshLocked() bool {
	return !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.freshness
}

// Key returns the public key for the given key ID. A stale or empty cache is
// refreshed first. When the ID is missing from a fresh set, one forced refresh
// is attempted before failing, guarding against key rotation between windows.
func (c *KeyCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	if c.freshLocked() {
		if key, ok := c.keys[kid]; ok {
			c.mu.RUnlock()
			return key, nil
		}
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	refreshed := false
	if !c.freshLocked() {
		if err := c.refreshLocked(ctx); err != nil {
			return nil, err
		}
		refreshed = true
	}
	if key, ok := c.keys[kid]; ok {
		return key, nil
	}

	if !refreshed {
		// Fresh cache without this kid: the provider may have rotated keys
		// since the last fetch.
		if err := c.refreshLocked(ctx); err != nil {
			return nil, err
		}
		if key, ok := c.keys[kid]; ok {
			return key, nil
		}
	}

	return nil, fmt.Errorf("%w: kid %q", ErrUnknownSigningKey, kid)
}

// refreshLocked fetches the key set and replaces the cache. Caller must hold
// the write lock. Safe to run redundantly; the last fetch wins.
func (c *KeyCache) refreshLocked(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("key discovery fetch failed", "url", c.url, "error", err)
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("key discovery returned non-OK status", "url", c.url, "status", resp.StatusCode)
		return fmt.Errorf("%w: discovery endpoint returned %d", ErrServiceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBodySize))
	if err != nil {
		return fmt.Errorf("%w: reading discovery response: %v", ErrServiceUnavailable, err)
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("%w: decoding discovery response: %v", ErrServiceUnavailable, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := k.rsaPublicKey()
		if err != nil {
			c.logger.Warn("skipping unparsable JWK", "kid", k.Kid, "error", err)
			continue
		}
		keys[k.Kid] = pub
	}

	c.keys = keys
	c.fetchedAt = c.now()
	c.logger.Debug("key set refreshed", "key_count", len(keys))
	return nil
}

// rsaPublicKey builds an *rsa.PublicKey from the JWK modulus and exponent.
func (k jwkKey) rsaPublicKey() (*rsa.PublicKey, error) {
	nBytes, err := decodeBase64URL(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := decodeBase64URL(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if n.Sign() <= 0 || e <= 0 {
		return nil, errors.New("invalid RSA key material")
	}

	return &rsa.PublicKey{N: n, E: e}, nil
}

// decodeBase64URL accepts both padded and unpadded base64url values.
func decodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
