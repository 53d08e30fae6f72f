// Package auth verifies webhook bearer tokens against configured SHA-256 hashes.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// Authenticator validates webhook tokens
type Authenticator struct {
	keyHashes [][]byte
}

// NewAuthenticator creates an authenticator accepting any token whose SHA-256
// hex digest is in keyHashes. It returns nil when keyHashes is empty, which
// disables authentication.
func NewAuthenticator(keyHashes []string) *Authenticator {
	if len(keyHashes) == 0 {
		return nil
	}

	a := &Authenticator{
		keyHashes: make([][]byte, 0, len(keyHashes)),
	}
	for _, h := range keyHashes {
		a.keyHashes = append(a.keyHashes, []byte(strings.ToLower(strings.TrimSpace(h))))
	}
	return a
}

// ValidateToken reports whether token matches a configured hash
func (a *Authenticator) ValidateToken(token string) error {
	if token == "" {
		return fmt.Errorf("empty token")
	}

	keyHash := []byte(HashToken(token))

	// Constant-time comparison against every configured hash
	match := 0
	for _, h := range a.keyHashes {
		match |= subtle.ConstantTimeCompare(keyHash, h)
	}
	if match != 1 {
		return fmt.Errorf("invalid token")
	}

	return nil
}

// ExtractToken extracts the token from the Authorization header
func ExtractToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	// Support "Bearer <key>" format
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	return parts[1], nil
}

// HashToken creates a SHA-256 hash of a token for configuration
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
