package jwt

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the link signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

// PurposeVerifyEmail is the purpose claim of e-mail verification links.
const PurposeVerifyEmail = "verify-email"

var (
	// ErrInvalidConfig is returned by NewLinkSigner.
	ErrInvalidConfig = errors.New("jwt: invalid link signer config")
	// ErrInvalidLink is returned for any link that fails signature, expiry, or purpose checks.
	ErrInvalidLink = errors.New("jwt: invalid link")
)

// Config configures a [LinkSigner].
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	// PrivateKey is the HS256 secret, or an Ed25519 private key (raw or PEM).
	PrivateKey []byte
	// PublicKey is the Ed25519 public key (raw or PEM). Unused for HS256.
	PublicKey []byte
	Issuer    string
	Leeway    time.Duration
}

// LinkClaims are the claims carried by a signed link.
type LinkClaims struct {
	Purpose string `json:"pur"`
	// EmailHash binds the link to the address it was sent to, so a later
	// e-mail change invalidates outstanding links.
	EmailHash string `json:"eh"`
	jwt.RegisteredClaims
}

// LinkSigner issues and verifies purpose-bound signed links.
type LinkSigner struct {
	config Config
	now    func() time.Time
}

// NewLinkSigner validates cfg and returns a signer.
func NewLinkSigner(cfg Config) (*LinkSigner, error) {
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("%w: TTL must be positive", ErrInvalidConfig)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, fmt.Errorf("%w: leeway out of range", ErrInvalidConfig)
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, fmt.Errorf("%w: hs256 secret must be at least 32 bytes", ErrInvalidConfig)
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported signing method", ErrInvalidConfig)
	}
	return &LinkSigner{config: cfg, now: time.Now}, nil
}

// Sign returns a token for purpose bound to subject and email.
func (s *LinkSigner) Sign(purpose, subject, email string) (string, error) {
	now := s.now()
	claims := LinkClaims{
		Purpose:   purpose,
		EmailHash: emailHash(email),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
		},
	}

	key, err := s.signKey()
	if err != nil {
		return "", err
	}
	return jwt.NewWithClaims(s.method(), claims).SignedString(key)
}

// Verify parses token and checks signature, expiry, issuer, and purpose.
func (s *LinkSigner) Verify(purpose, token string) (*LinkClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.method().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(s.config.Leeway))
	}
	if s.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.config.Issuer))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &LinkClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.verifyKey()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}

	claims, ok := parsed.Claims.(*LinkClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidLink
	}
	if claims.Purpose != purpose || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidLink
	}
	return claims, nil
}

// MatchesEmail reports whether the link was issued for email.
func (c *LinkClaims) MatchesEmail(email string) bool {
	return subtle.ConstantTimeCompare([]byte(c.EmailHash), []byte(emailHash(email))) == 1
}

func emailHash(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:16])
}

func (s *LinkSigner) method() jwt.SigningMethod {
	if s.config.SigningMethod == MethodEd25519 {
		return jwt.SigningMethodEdDSA
	}
	return jwt.SigningMethodHS256
}

func (s *LinkSigner) signKey() (interface{}, error) {
	if s.config.SigningMethod == MethodEd25519 {
		return parseEdPrivateKey(s.config.PrivateKey)
	}
	return s.config.PrivateKey, nil
}

func (s *LinkSigner) verifyKey() (interface{}, error) {
	if s.config.SigningMethod == MethodEd25519 {
		return parseEdPublicKey(s.config.PublicKey)
	}
	return s.config.PrivateKey, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
