// Package secrets generates, hashes, and verifies API key material, and owns
// the wire format keys travel in: sk_<key id>_<secret>. The key ID is the
// public half used for lookup; the secret half is stored only as a bcrypt
// hash.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	id "siva/pkg/domain"
	dErrors "siva/pkg/domain-errors"
)

const keyPrefix = "sk"

// Generate creates a cryptographically secure random secret.
// Returns a base64-encoded string suitable for the secret half of an API key.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash creates a bcrypt hash of the provided secret.
// Use this to securely store secrets for later verification.
func Hash(secret string) (string, error) {
	if secret == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "secret cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "secret is too long")
		}
		return "", fmt.Errorf("could not hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify checks if a plaintext secret matches a bcrypt hash.
func Verify(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeInvalidInput, "invalid secret")
		}
		return fmt.Errorf("could not verify secret: %w", err)
	}
	return nil
}

// FormatAPIKey assembles the wire form of an API key from its two halves.
func FormatAPIKey(keyID id.APIKeyID, secret string) string {
	return keyPrefix + "_" + keyID.String() + "_" + secret
}

// ParseAPIKey splits a presented credential into key ID and secret. The
// secret alphabet (base64 raw URL) can itself contain underscores, so the
// split is anchored on the first two separators only. Errors are uniform:
// callers must not leak which part of the credential was malformed.
func ParseAPIKey(presented string) (id.APIKeyID, string, error) {
	parts := strings.SplitN(strings.TrimSpace(presented), "_", 3)
	if len(parts) != 3 || parts[0] != keyPrefix || parts[2] == "" {
		return id.APIKeyID{}, "", dErrors.New(dErrors.CodeInvalidInput, "malformed API key")
	}
	keyID, err := id.ParseAPIKeyID(parts[1])
	if err != nil {
		return id.APIKeyID{}, "", dErrors.New(dErrors.CodeInvalidInput, "malformed API key")
	}
	return keyID, parts[2], nil
}
