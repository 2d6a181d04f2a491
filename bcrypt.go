package auth

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// RandomPasswordHash returns the hash of a random password. The value is
// computed once and used to spend comparison time on unknown accounts.
func RandomPasswordHash() string {
	dummyHashOnce.Do(func() {
		h, err := HashPassword(uuid.NewString())
		if err != nil {
			// a malformed hash still fails the comparison
			h = "$2a$10$invalidinvalidinvalidinvalidinvalidinvalidinvalidinv"
		}
		dummyHash = h
	})
	return dummyHash
}
