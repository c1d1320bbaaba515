package password

import "errors"

var (
	// ErrInvalidConfig is returned by constructors for out-of-range cost parameters.
	ErrInvalidConfig = errors.New("invalid password hasher config")
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password is empty")
	// ErrPasswordTooLong is returned when a password exceeds the accepted byte length.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrUnsupportedHash is returned when no scheme recognises an encoded hash.
	ErrUnsupportedHash = errors.New("unsupported password hash")
	// ErrMalformedHash is returned when an encoded hash is recognised but cannot be parsed.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Scheme is one password hashing format.
type Scheme interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	NeedsRehash(encoded string) bool
	Handles(encoded string) bool
}

// Chain hashes with its primary scheme and verifies with whichever scheme
// recognises the stored value.
type Chain struct {
	primary Scheme
	legacy  []Scheme
}

// NewChain returns a Chain. legacy schemes are only used for verification.
func NewChain(primary Scheme, legacy ...Scheme) *Chain {
	return &Chain{primary: primary, legacy: legacy}
}

func (c *Chain) Hash(password string) (string, error) {
	return c.primary.Hash(password)
}

// Verify checks password against encoded using the scheme that owns it.
func (c *Chain) Verify(password, encoded string) (bool, error) {
	s := c.schemeFor(encoded)
	if s == nil {
		return false, ErrUnsupportedHash
	}
	return s.Verify(password, encoded)
}

// NeedsRehash is true for legacy-scheme hashes and for primary hashes with
// outdated parameters.
func (c *Chain) NeedsRehash(encoded string) bool {
	if c.primary.Handles(encoded) {
		return c.primary.NeedsRehash(encoded)
	}
	return true
}

func (c *Chain) schemeFor(encoded string) Scheme {
	if c.primary.Handles(encoded) {
		return c.primary
	}
	for _, s := range c.legacy {
		if s.Handles(encoded) {
			return s
		}
	}
	return nil
}
