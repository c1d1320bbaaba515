package internal

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const (
	sessionIDSize  = 32
	resetTokenSize = 40
	csrfNonceSize  = 24
	rememberSize   = 45
)

// NewSessionID returns a random, URL-safe session identifier.
func NewSessionID() (string, error) {
	return randomString(sessionIDSize)
}

// NewResetToken returns the plaintext value sent inside a password-reset link.
func NewResetToken() (string, error) {
	return randomString(resetTokenSize)
}

// NewRememberToken returns a fresh remember-me token value.
func NewRememberToken() (string, error) {
	return randomString(rememberSize)
}

// HashToken returns the hex SHA-256 digest used to store and index tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewCSRFToken returns nonce.signature where signature is HMAC-SHA256(key, nonce).
func NewCSRFToken(key []byte) (string, error) {
	nonce, err := randomString(csrfNonceSize)
	if err != nil {
		return "", err
	}
	return nonce + "." + signCSRF(key, nonce), nil
}

// VerifyCSRFToken checks the signature part of a token minted by NewCSRFToken.
func VerifyCSRFToken(key []byte, token string) bool {
	for i := len(token) - 1; i >= 0; i-- {
		if token[i] != '.' {
			continue
		}
		nonce, sig := token[:i], token[i+1:]
		if nonce == "" || sig == "" {
			return false
		}
		return hmac.Equal([]byte(sig), []byte(signCSRF(key, nonce)))
	}
	return false
}

func signCSRF(key []byte, nonce string) string {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(nonce))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func randomString(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
