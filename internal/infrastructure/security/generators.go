// Package security provides secure random generation utilities
package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

// GenerateULID generates a new ULID string.
func GenerateULID() string {
	return ulid.Make().String()
}

// GenerateSessionID returns a new client-side wizard session id.
func GenerateSessionID() string {
	return "wiz_" + strings.ToLower(ulid.Make().String())
}

// GenerateStorageKey returns the opaque key naming a browser's local state.
func GenerateStorageKey() string {
	return ulid.Make().String()
}

// IsStorageKey reports whether key has the shape of a generated storage key.
func IsStorageKey(key string) bool {
	_, err := ulid.ParseStrict(key)
	return err == nil
}

// GenerateSecureKey creates a cryptographically secure random key and returns it as a hex string.
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
