package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newHSSigner(t *testing.T) *LinkSigner {
	t.Helper()
	s, err := NewLinkSigner(Config{TTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: testSecret, Issuer: "authcore"})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return s
}

func TestSignAndVerify(t *testing.T) {
	s := newHSSigner(t)

	token, err := s.Sign(PurposeVerifyEmail, "acct-1", "User@Example.com")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := s.Verify(PurposeVerifyEmail, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "acct-1" {
		t.Fatalf("subject = %q", claims.Subject)
	}
	if !claims.MatchesEmail("user@example.com") {
		t.Fatal("email hash should be case-insensitive")
	}
	if claims.MatchesEmail("other@example.com") {
		t.Fatal("email hash must not match another address")
	}
}

func TestVerifyRejectsOtherPurpose(t *testing.T) {
	s := newHSSigner(t)
	token, err := s.Sign("something-else", "acct-1", "a@b.c")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := s.Verify(PurposeVerifyEmail, token); !errors.Is(err, ErrInvalidLink) {
		t.Fatalf("expected ErrInvalidLink, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	s := newHSSigner(t)
	token, err := s.Sign(PurposeVerifyEmail, "acct-1", "a@b.c")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := s.Verify(PurposeVerifyEmail, token); !errors.Is(err, ErrInvalidLink) {
		t.Fatalf("expected ErrInvalidLink, got %v", err)
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	s, err := NewLinkSigner(Config{TTL: time.Hour, SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	claims := LinkClaims{Purpose: PurposeVerifyEmail, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "acct-1",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	forged, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign forged: %v", err)
	}
	if _, err := s.Verify(PurposeVerifyEmail, forged); !errors.Is(err, ErrInvalidLink) {
		t.Fatalf("expected wrong algorithm to be rejected, got %v", err)
	}

	good, err := s.Sign(PurposeVerifyEmail, "acct-1", "a@b.c")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := s.Verify(PurposeVerifyEmail, good); err != nil {
		t.Fatalf("ed25519 verify: %v", err)
	}
}

func TestNewLinkSignerValidation(t *testing.T) {
	cases := []Config{
		{TTL: 0, SigningMethod: MethodHS256, PrivateKey: testSecret},
		{TTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		{TTL: time.Hour, SigningMethod: "rs256", PrivateKey: testSecret},
		{TTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: testSecret, Leeway: time.Hour},
	}
	for i, cfg := range cases {
		if _, err := NewLinkSigner(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("case %d: expected ErrInvalidConfig, got %v", i, err)
		}
	}
}
