package utils

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a password with bcrypt's default cost
func HashPassword(password string) (string, error) {
	return HashPasswordCost(password, bcrypt.DefaultCost)
}

// HashPasswordCost hashes with an explicit cost. The device store uses a
// lower cost in tests; passwords over 72 bytes are rejected.
func HashPasswordCost(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NeedsRehash reports whether hash is unreadable or was made with a cost
// other than cost.
func NeedsRehash(hash string, cost int) bool {
	got, err := bcrypt.Cost([]byte(hash))
	return err != nil || got != cost
}
