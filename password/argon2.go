package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	maxPassBytes          = 1024
	argon2Prefix          = "$argon2id$"
)

// Config holds Argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Argon2 hashes passwords with Argon2id and encodes them in PHC format.
type Argon2 struct {
	config Config
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, fmt.Errorf("%w: memory must be >= %d KiB", ErrInvalidConfig, minMemoryKB)
	case cfg.Time < minTimeCost:
		return nil, fmt.Errorf("%w: time must be >= %d", ErrInvalidConfig, minTimeCost)
	case cfg.Parallelism < minParallelism:
		return nil, fmt.Errorf("%w: parallelism must be >= %d", ErrInvalidConfig, minParallelism)
	case cfg.SaltLength < minSaltLength:
		return nil, fmt.Errorf("%w: salt length must be >= %d", ErrInvalidConfig, minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return nil, fmt.Errorf("%w: key length must be >= %d", ErrInvalidConfig, minKeyLength)
	}
	return &Argon2{config: cfg}, nil
}

// Hash derives a new PHC string for password with a fresh random salt.
func (a *Argon2) Hash(password string) (string, error) {
	// Raw bytes exactly as provided, no Unicode normalization.
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > maxPassBytes {
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify compares password against an Argon2id PHC string in constant time.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	if len(password) > maxPassBytes {
		return false, nil
	}
	parsed, err := parseArgon2(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), parsed.salt, parsed.time, parsed.memory, parsed.parallelism, uint32(len(parsed.key)))
	return subtle.ConstantTimeCompare(computed, parsed.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with weaker parameters
// than the hasher's current configuration.
func (a *Argon2) NeedsRehash(encoded string) bool {
	parsed, err := parseArgon2(encoded)
	if err != nil {
		return true
	}
	return a.config.Memory > parsed.memory ||
		a.config.Time > parsed.time ||
		a.config.Parallelism > parsed.parallelism ||
		a.config.KeyLength != uint32(len(parsed.key))
}

// Handles reports whether encoded is an Argon2id PHC string.
func (a *Argon2) Handles(encoded string) bool {
	return strings.HasPrefix(encoded, argon2Prefix)
}

func parseArgon2(encoded string) (*phc, error) {
	rest, ok := strings.CutPrefix(encoded, argon2Prefix)
	if !ok {
		return nil, ErrUnsupportedHash
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return nil, ErrMalformedHash
	}

	version, ok := strings.CutPrefix(fields[0], "v=")
	if !ok {
		return nil, ErrMalformedHash
	}
	if v, err := strconv.Atoi(version); err != nil || v != argon2.Version {
		return nil, ErrUnsupportedHash
	}

	out := &phc{}
	seen := 0
	for _, pair := range strings.Split(fields[1], ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, ErrMalformedHash
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, ErrMalformedHash
		}
		switch name {
		case "m":
			if uint32(n) < minMemoryKB {
				return nil, ErrMalformedHash
			}
			out.memory = uint32(n)
		case "t":
			if uint32(n) < minTimeCost {
				return nil, ErrMalformedHash
			}
			out.time = uint32(n)
		case "p":
			if n < uint64(minParallelism) || n > 255 {
				return nil, ErrMalformedHash
			}
			out.parallelism = uint8(n)
		default:
			return nil, ErrMalformedHash
		}
		seen++
	}
	if seen != 3 {
		return nil, ErrMalformedHash
	}

	var err error
	if out.salt, err = decodeB64(fields[2]); err != nil || len(out.salt) < int(minSaltLength) {
		return nil, ErrMalformedHash
	}
	if out.key, err = decodeB64(fields[3]); err != nil || len(out.key) == 0 {
		return nil, ErrMalformedHash
	}
	return out, nil
}

// decodeB64 accepts both the unpadded PHC form and padded values written by
// older encoders.
func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
