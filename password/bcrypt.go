package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt verifies hashes imported from systems that stored $2a$/$2b$/$2y$
// bcrypt strings. Such hashes always report NeedsRehash so they are replaced
// by the primary hasher on the next successful login.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt verifier. cost is only used by Hash.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Hash produces a bcrypt hash. Used by fixtures and imports.
func (b *Bcrypt) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", err
	}
	return string(out), nil
}

func (b *Bcrypt) Verify(password, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, ErrMalformedHash
	}
}

func (b *Bcrypt) NeedsRehash(string) bool { return true }

func (b *Bcrypt) Handles(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}
