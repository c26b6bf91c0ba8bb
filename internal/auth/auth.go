// Package auth validates client API keys for the HTTP server.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// Key is an accepted client key, identified by its SHA-256 hash.
type Key struct {
	Hash        string
	Description string
}

// Authenticator validates API keys against configured hashes.
type Authenticator struct {
	keys []Key
}

// NewAuthenticator creates an authenticator. Hashes are compared
// case-insensitively.
func NewAuthenticator(keys []Key) *Authenticator {
	a := &Authenticator{keys: make([]Key, 0, len(keys))}
	for _, k := range keys {
		k.Hash = strings.ToLower(strings.TrimSpace(k.Hash))
		if k.Hash != "" {
			a.keys = append(a.keys, k)
		}
	}
	return a
}

// Enabled reports whether any key is configured. With no keys every
// request is allowed.
func (a *Authenticator) Enabled() bool {
	return a != nil && len(a.keys) > 0
}

// ValidateAPIKey returns the matching key.
func (a *Authenticator) ValidateAPIKey(apiKey string) (Key, error) {
	keyHash := HashAPIKey(apiKey)

	// Every configured hash is compared so timing does not reveal which one matched.
	var (
		match Key
		found bool
	)
	for _, k := range a.keys {
		if subtle.ConstantTimeCompare([]byte(keyHash), []byte(k.Hash)) == 1 {
			match, found = k, true
		}
	}
	if !found {
		return Key{}, fmt.Errorf("invalid API key")
	}
	return match, nil
}

// ExtractAPIKey extracts the API key from the Authorization header
func ExtractAPIKey(r *http.Request) (string, error) {
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

// HashAPIKey creates a SHA-256 hash of an API key for storage
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}
