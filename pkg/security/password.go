package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is used when no cost is configured
const DefaultBcryptCost = 12

// legacyHashLen is the length of a hex-encoded SHA-256 digest
const legacyHashLen = sha256.Size * 2

// PasswordHasher hashes and verifies user passwords with bcrypt. It also
// accepts unsalted SHA-256 hex digests written by older deployments so those
// accounts can log in once and be rehashed.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a hasher with the given bcrypt cost. Zero selects
// DefaultBcryptCost.
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}
	return &PasswordHasher{cost: cost}, nil
}

// Hash returns the bcrypt hash of password
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches hash
func (h *PasswordHasher) Verify(hash, password string) bool {
	if IsLegacyHash(hash) {
		return subtle.ConstantTimeCompare([]byte(LegacyHash(password)), []byte(hash)) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NeedsRehash reports whether hash should be replaced after a successful
// login: legacy digests always, bcrypt hashes when their cost differs
func (h *PasswordHasher) NeedsRehash(hash string) bool {
	if IsLegacyHash(hash) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != h.cost
}

// IsLegacyHash reports whether hash is a hex-encoded SHA-256 digest
func IsLegacyHash(hash string) bool {
	if len(hash) != legacyHashLen {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

// LegacyHash returns the hex SHA-256 digest of password, as stored by older
// deployments
func LegacyHash(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
