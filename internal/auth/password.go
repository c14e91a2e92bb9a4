package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches the work factor the user store has always been seeded with.
const DefaultBcryptCost = 10

// PasswordHasher produces and checks salted one-way password digests.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher using cost, clamped to the range bcrypt accepts.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches digest. Malformed digests never match.
func (h *PasswordHasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
