package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultPasswordCost      = 12
	DefaultMinPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
)

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
)

// Passwords hashes and checks account passwords.
type Passwords struct {
	cost      int
	minLength int
}

// NewPasswords builds a hasher; zero values fall back to the defaults and the
// cost is kept inside the range bcrypt accepts.
func NewPasswords(cost, minLength int) Passwords {
	if cost == 0 {
		cost = DefaultPasswordCost
	}
	if minLength <= 0 {
		minLength = DefaultMinPasswordLength
	}
	return Passwords{cost: min(max(cost, bcrypt.MinCost), bcrypt.MaxCost), minLength: minLength}
}

// Check enforces the length policy without hashing.
func (p Passwords) Check(password string) error {
	switch {
	case len(password) < p.minLength:
		return fmt.Errorf("%w: must be at least %d characters", ErrPasswordTooShort, p.minLength)
	case len(password) > maxPasswordBytes:
		return fmt.Errorf("%w: must be at most %d bytes", ErrPasswordTooLong, maxPasswordBytes)
	}
	return nil
}

func (p Passwords) Hash(password string) (string, error) {
	if err := p.Check(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(hash), nil
}

// Matches reports whether password produced hash. Malformed hashes never match.
func (p Passwords) Matches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
