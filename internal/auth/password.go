package auth

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength applies to new passwords only. Accounts seeded before the
// rule existed still sign in.
const MinPasswordLength = 8

// ErrPasswordTooShort is returned by Hash for passwords under MinPasswordLength runes.
var ErrPasswordTooShort = errors.New("password too short")

// Passwords hashes and verifies account passwords at a fixed bcrypt cost.
type Passwords struct {
	cost int
}

// NewPasswords returns a hasher for cost. Out-of-range costs fall back to bcrypt's default.
func NewPasswords(cost int) Passwords {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return Passwords{cost: cost}
}

// Cost reports the bcrypt cost new hashes are produced with.
func (p Passwords) Cost() int { return p.cost }

// Hash enforces the length policy and returns the bcrypt hash of password.
func (p Passwords) Hash(password string) (string, error) {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plain matches hashed. stale is true when the match was
// produced at a cost other than the configured one and the hash should be replaced.
func (p Passwords) Verify(hashed, plain string) (ok, stale bool) {
	if bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) != nil {
		return false, false
	}
	cost, err := bcrypt.Cost([]byte(hashed))
	return true, err == nil && cost != p.cost
}
