// ABOUTME: Bearer-token validation against the identity provider's signing keys.
// ABOUTME: RS256 only, with audience, issuer, and expiry checks.

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Validation errors. Each maps to a distinct HTTP rejection in the middleware.
var (
	ErrMissingToken       = errors.New("authentication token required")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrUnknownSigningKey  = errors.New("unknown signing key")
	ErrServiceUnavailable = errors.New("authentication service unavailable")
	ErrInsufficientRole   = errors.New("insufficient role")
)

// adminRole overrides any required-role check.
const adminRole = "admin"

// Claims is the decoded token payload. Transient; never persisted beyond the
// validating request.
type Claims struct {
	Subject  string
	Roles    []string
	Expiry   time.Time
	Issuer   string
	Audience string
}

// HasRole reports whether the role set contains the given role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ValidatorConfig holds configuration for a Validator.
type ValidatorConfig struct {
	Keys *KeyCache
	// Audience is the expected aud claim (the application client ID).
	Audience string
	// Issuer is the expected iss claim.
	Issuer string
	Logger *slog.Logger
}

// Validator validates bearer tokens: signature against the cached key set,
// then audience, issuer, algorithm, and expiry.
type Validator struct {
	keys     *KeyCache
	audience string
	issuer   string
	logger   *slog.Logger
	parser   *jwt.Parser
}

// NewValidator creates a token validator.
func NewValidator(cfg ValidatorConfig) (*Validator, error) {
	if cfg.Keys == nil {
		return nil, errors.New("key cache is required")
	}
	if cfg.Audience == "" || cfg.Issuer == "" {
		return nil, errors.New("audience and issuer are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		keys:     cfg.Keys,
		audience: cfg.Audience,
		issuer:   cfg.Issuer,
		logger:   logger,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"RS256"}),
			jwt.WithAudience(cfg.Audience),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

// Validate checks the token and returns its decoded claims. The signing key is
// located by the kid header against the cached key set; the cache is refreshed
// per its freshness discipline.
func (v *Validator) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := v.parser.Parse(tokenString, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid header", ErrInvalidToken)
		}
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, ErrUnknownSigningKey):
			return nil, fmt.Errorf("%w: %v", ErrUnknownSigningKey, err)
		case errors.Is(err, ErrServiceUnavailable):
			return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claimsFromMap(mapClaims)
}

// CheckRole verifies the claims carry the required role. The admin role
// overrides any requirement.
func (v *Validator) CheckRole(claims *Claims, required string) error {
	if required == "" {
		return nil
	}
	if claims.HasRole(required) || claims.HasRole(adminRole) {
		return nil
	}
	return fmt.Errorf("%w: required role %q", ErrInsufficientRole, required)
}

// claimsFromMap extracts the fields this service cares about.
func claimsFromMap(m jwt.MapClaims) (*Claims, error) {
	sub, _ := m["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}

	claims := &Claims{Subject: sub}

	if roles, ok := m["roles"].([]any); ok {
		claims.Roles = make([]string, 0, len(roles))
		for _, r := range roles {
			if s, ok := r.(string); ok {
				claims.Roles = append(claims.Roles, s)
			}
		}
	}

	if exp, err := m.GetExpirationTime(); err == nil && exp != nil {
		claims.Expiry = exp.Time
	}
	if iss, err := m.GetIssuer(); err == nil {
		claims.Issuer = iss
	}
	if aud, err := m.GetAudience(); err == nil && len(aud) > 0 {
		claims.Audience = aud[0]
	}

	return claims, nil
}
