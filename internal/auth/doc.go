// Package auth gates the HTTP transport on Entra ID (Azure AD) bearer tokens.
//
// # Validation pipeline
//
// A token passes through:
//
//  1. Unverified header parse to extract the signing key id (kid).
//  2. Key lookup in the cached JWKS set fetched from the tenant's
//     key-discovery endpoint. The cache serves reads concurrently and is
//     refreshed at most once per freshness window (one hour); a kid missing
//     from a fresh set triggers exactly one forced refresh to cover provider
//     key rotation.
//  3. RS256 signature verification plus audience, issuer, and expiry checks
//     via golang-jwt. Other algorithms are rejected outright.
//
// Failures are sentinel errors (ErrExpiredToken, ErrUnknownSigningKey,
// ErrServiceUnavailable, ...) that the middleware maps to distinct HTTP
// rejections: 401 for token problems, 403 for role violations, 503 when the
// key service is unreachable.
//
// # Roles
//
// RequireRole(role) composes after Middleware and rejects claims lacking the
// role. The "admin" role always passes.
//
// # Access logging
//
// Every validation attempt emits one access-log entry keyed by irreversibly
// hashed subject and client address. Raw identifiers never reach the logs.
//
// # Disabled mode
//
// Auth is only ever disabled explicitly (auth.disabled / WEATHER_MCP_AUTH_DISABLED).
// Missing tenant or client configuration without that flag fails startup.
package auth
