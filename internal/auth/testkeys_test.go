// ABOUTME: Shared fixtures for auth tests: an in-memory JWKS endpoint and
// ABOUTME: RS256 token minting against its private keys.

package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// jwksServer serves a JWKS document over httptest and counts fetches.
type jwksServer struct {
	srv        *httptest.Server
	fetchCount atomic.Int64
	failing    atomic.Bool

	mu   sync.Mutex
	keys map[string]*rsa.PrivateKey
}

func newJWKSServer(t *testing.T, kids ...string) *jwksServer {
	t.Helper()

	s := &jwksServer{keys: make(map[string]*rsa.PrivateKey)}
	for _, kid := range kids {
		s.addKey(t, kid)
	}

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.fetchCount.Add(1)
		if s.failing.Load() {
			http.Error(w, "upstream error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.document())
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *jwksServer) URL() string { return s.srv.URL }

// addKey generates and publishes a new signing key under the given kid.
func (s *jwksServer) addKey(t *testing.T, kid string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating RSA key: %v", err)
	}
	s.mu.Lock()
	s.keys[kid] = key
	s.mu.Unlock()
}

// removeKey unpublishes a kid, simulating provider key rotation.
func (s *jwksServer) removeKey(kid string) {
	s.mu.Lock()
	delete(s.keys, kid)
	s.mu.Unlock()
}

func (s *jwksServer) document() jwksDocument {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := jwksDocument{}
	for kid, key := range s.keys {
		pub := key.Public().(*rsa.PublicKey)
		doc.Keys = append(doc.Keys, jwkKey{
			Kty: "RSA",
			Kid: kid,
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(bigEndianInt(pub.E)),
		})
	}
	return doc
}

// mint signs an RS256 token with the named key.
func (s *jwksServer) mint(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	s.mu.Lock()
	key, ok := s.keys[kid]
	s.mu.Unlock()
	if !ok {
		t.Fatalf("no key for kid %q", kid)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func bigEndianInt(v int) []byte {
	var out []byte
	for v > 0 {
		out = append([]byte{byte(v & 0xff)}, out...)
		v >>= 8
	}
	return out
}

// standardClaims builds a claim set accepted by the test validator.
func standardClaims(sub string, roles []string, expiry time.Time) jwt.MapClaims {
	claims := jwt.MapClaims{
		"sub": sub,
		"aud": testAudience,
		"iss": testIssuer,
		"iat": time.Now().Add(-time.Minute).Unix(),
		"exp": expiry.Unix(),
	}
	if roles != nil {
		anyRoles := make([]any, len(roles))
		for i, r := range roles {
			anyRoles[i] = r
		}
		claims["roles"] = anyRoles
	}
	return claims
}

const (
	testAudience = "api://weather-mcp-client"
	testIssuer   = "https://login.microsoftonline.com/test-tenant/v2.0"
)

// newTestValidator wires a validator to the fixture JWKS server.
func newTestValidator(t *testing.T, s *jwksServer) *Validator {
	t.Helper()
	keys, err := NewKeyCache(KeyCacheConfig{URL: s.URL()})
	if err != nil {
		t.Fatalf("creating key cache: %v", err)
	}
	v, err := NewValidator(ValidatorConfig{
		Keys:     keys,
		Audience: testAudience,
		Issuer:   testIssuer,
	})
	if err != nil {
		t.Fatalf("creating validator: %v", err)
	}
	return v
}
