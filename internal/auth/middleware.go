// ABOUTME: HTTP middleware gating requests on a validated bearer token.
// ABOUTME: Adds claims to the request context; role checks compose separately.

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// claimsContextKey is the key type for storing Claims in context.Context.
type claimsContextKey struct{}

// WithClaims returns a new context with the validated claims attached.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext retrieves the validated claims, or nil if the request was
// not authenticated.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey{}).(*Claims)
	return claims
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "authentication token required"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// Middleware validates the bearer token on every request before the protocol
// engine is reached. Every attempt, pass or fail, produces an anonymized
// access-log entry.
func Middleware(validator *Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				logAccess(logger, "", r.RemoteAddr, r.URL.Path, false)
				http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
				return
			}

			claims, err := validator.Validate(r.Context(), token)
			subject := ""
			if claims != nil {
				subject = claims.Subject
			}
			logAccess(logger, subject, r.RemoteAddr, r.URL.Path, err == nil)

			if err != nil {
				status, msg := rejectionFor(err)
				http.Error(w, `{"error":"`+msg+`"}`, status)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole creates a middleware rejecting requests whose claims lack the
// required role. The admin role always passes. Must run after Middleware.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				http.Error(w, `{"error":"not authenticated"}`, http.StatusUnauthorized)
				return
			}
			if !claims.HasRole(role) && !claims.HasRole(adminRole) {
				http.Error(w, `{"error":"required role: `+role+`"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rejectionFor maps validation errors onto HTTP rejections with distinct
// reasons, keeping expiry, bad signatures, and provider outages apart.
func rejectionFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrExpiredToken):
		return http.StatusUnauthorized, "token expired"
	case errors.Is(err, ErrUnknownSigningKey):
		return http.StatusUnauthorized, "unknown signing key"
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "authentication service unavailable"
	case errors.Is(err, ErrMissingToken):
		return http.StatusUnauthorized, "authentication token required"
	default:
		return http.StatusUnauthorized, "invalid token"
	}
}
