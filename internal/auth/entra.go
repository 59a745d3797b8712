// ABOUTME: Entra ID (Azure AD) endpoint derivation from a tenant identifier.
// ABOUTME: Convenience constructor wiring the key cache and validator together.

package auth

import (
	"errors"
	"fmt"
	"log/slog"
)

// entraAuthority is the Entra ID login host.
const entraAuthority = "https://login.microsoftonline.com"

// JWKSURL returns the v2.0 key-discovery endpoint for a tenant.
func JWKSURL(tenantID string) string {
	return fmt.Sprintf("%s/%s/discovery/v2.0/keys", entraAuthority, tenantID)
}

// IssuerURL returns the expected v2.0 token issuer for a tenant.
func IssuerURL(tenantID string) string {
	return fmt.Sprintf("%s/%s/v2.0", entraAuthority, tenantID)
}

// NewEntraValidator builds a Validator for the given Entra ID tenant and
// application client ID, with the standard key cache in front.
func NewEntraValidator(tenantID, clientID string, logger *slog.Logger) (*Validator, error) {
	if tenantID == "" || clientID == "" {
		return nil, errors.New("tenant ID and client ID are required")
	}

	keys, err := NewKeyCache(KeyCacheConfig{
		URL:    JWKSURL(tenantID),
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating key cache: %w", err)
	}

	return NewValidator(ValidatorConfig{
		Keys:     keys,
		Audience: clientID,
		Issuer:   IssuerURL(tenantID),
		Logger:   logger,
	})
}
