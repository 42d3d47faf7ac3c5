package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const minSecretLength = 8

// AdminVerifier checks candidate keys against the configured admin secret.
// Only a bcrypt hash of the secret is kept in memory. Secrets are pre-hashed
// with SHA-256 so bcrypt's 72-byte input limit never truncates them.
type AdminVerifier struct {
	hash []byte
}

// ValidateSecret checks minimal admin secret requirements.
func ValidateSecret(secret string) error {
	if len(secret) < minSecretLength {
		return fmt.Errorf("admin secret must be at least %d characters", minSecretLength)
	}
	return nil
}

// NewAdminVerifier hashes secret. An empty secret disables admin access and
// yields a nil verifier.
func NewAdminVerifier(secret string) (*AdminVerifier, error) {
	return newAdminVerifier(secret, bcrypt.DefaultCost)
}

func newAdminVerifier(secret string, cost int) (*AdminVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, nil
	}
	if err := ValidateSecret(secret); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword(prehash(secret), cost)
	if err != nil {
		return nil, err
	}
	return &AdminVerifier{hash: hash}, nil
}

// Verify reports whether candidate matches the admin secret. A nil verifier
// rejects everything.
func (v *AdminVerifier) Verify(candidate string) bool {
	if v == nil || candidate == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(v.hash, prehash(candidate)) == nil
}

func prehash(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return []byte(hex.EncodeToString(sum[:]))
}
