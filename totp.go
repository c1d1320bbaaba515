package authcore

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const totpSecretBytes = 20

var (
	totpEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

	errTOTPSecret    = errors.New("invalid totp secret")
	errTOTPAlgorithm = errors.New("unsupported totp algorithm")
)

var totpHashes = map[string]func() hash.Hash{
	"SHA1":   sha1.New,
	"SHA256": sha256.New,
	"SHA512": sha512.New,
}

// totp implements RFC 6238 codes. There is no replay cache: a code stays
// usable for its whole skew window.
type totp struct {
	config  TOTPConfig
	newHash func() hash.Hash
	modulus uint32
}

func newTOTP(cfg TOTPConfig) *totp {
	cfg.Algorithm = strings.ToUpper(cfg.Algorithm)
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	m := &totp{config: cfg, newHash: totpHashes[cfg.Algorithm], modulus: 1}
	for range cfg.Digits {
		m.modulus *= 10
	}
	return m
}

// GenerateSecret returns a fresh base32 secret without padding.
func (m *totp) GenerateSecret() (string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return totpEncoding.EncodeToString(raw), nil
}

// ProvisionURI builds the otpauth:// URI read by authenticator apps.
func (m *totp) ProvisionURI(secret, account string) string {
	q := url.Values{
		"secret":    {secret},
		"issuer":    {m.config.Issuer},
		"algorithm": {m.config.Algorithm},
		"digits":    {strconv.Itoa(m.config.Digits)},
		"period":    {strconv.Itoa(m.config.Period)},
	}
	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + m.config.Issuer + ":" + account,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Verify reports whether code matches secret at now, accepting Skew steps
// on either side.
func (m *totp) Verify(secret, code string, now time.Time) (bool, error) {
	code = strings.TrimSpace(code)
	if len(code) != m.config.Digits || strings.Trim(code, "0123456789") != "" {
		return false, nil
	}
	key, err := decodeSecret(secret)
	if err != nil {
		return false, err
	}

	step := m.step(now)
	hit := 0
	for off := -int64(m.config.Skew); off <= int64(m.config.Skew); off++ {
		if step+off < 0 {
			continue
		}
		want, err := m.code(key, uint64(step+off))
		if err != nil {
			return false, err
		}
		// Every window is compared; the loop never exits early.
		hit |= subtle.ConstantTimeCompare([]byte(want), []byte(code))
	}
	return hit == 1, nil
}

// CodeAt returns the code for secret at t.
func (m *totp) CodeAt(secret string, t time.Time) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	return m.code(key, uint64(m.step(t)))
}

func (m *totp) step(t time.Time) int64 {
	return t.Unix() / int64(m.config.Period)
}

// code is HOTP (RFC 4226) with dynamic truncation.
func (m *totp) code(key []byte, counter uint64) (string, error) {
	if m.newHash == nil {
		return "", errTOTPAlgorithm
	}
	mac := hmac.New(m.newHash, key)
	_, _ = mac.Write(binary.BigEndian.AppendUint64(nil, counter))
	sum := mac.Sum(nil)

	off := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[off:]) & 0x7fffffff
	return fmt.Sprintf("%0*d", m.config.Digits, value%m.modulus), nil
}

func decodeSecret(secret string) ([]byte, error) {
	cleaned := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	key, err := totpEncoding.DecodeString(strings.TrimRight(cleaned, "="))
	if err != nil || len(key) == 0 {
		return nil, errTOTPSecret
	}
	return key, nil
}

// TOTPCode returns the one-time code an authenticator configured with cfg
// would show for secret at t. Test harnesses and CLI clients use it.
func TOTPCode(cfg TOTPConfig, secret string, t time.Time) (string, error) {
	return newTOTP(cfg).CodeAt(secret, t)
}
