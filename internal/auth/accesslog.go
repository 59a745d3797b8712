// ABOUTME: Anonymized access logging for token validation attempts.
// ABOUTME: Subjects and addresses are hashed before they ever reach a log line.

package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net"
)

// anonymize returns an irreversible short hash of an identifier. Raw subjects
// and addresses must never appear in logs.
func anonymize(s string) string {
	if s == "" {
		return "unknown"
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}

// logAccess records one validation attempt, success or failure. remoteAddr may
// include a port; only the host part is hashed.
func logAccess(logger *slog.Logger, subject, remoteAddr, endpoint string, success bool) {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	logger.Info("access",
		"user_hash", anonymize(subject),
		"ip_hash", anonymize(host),
		"endpoint", endpoint,
		"success", success,
	)
}
