package password

import (
	"errors"
	"strings"
	"testing"
)

// fastConfig sits at the parameter floors so tests hash quickly.
func fastConfig() Config {
	return Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func quickArgon2(t *testing.T) *Argon2 {
	t.Helper()
	h, err := NewArgon2(fastConfig())
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	return h
}

func TestArgon2RoundTrip(t *testing.T) {
	h := quickArgon2(t)

	encoded, err := h.Hash("P1-password ñ")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC header in %q", encoded)
	}
	if !h.Handles(encoded) {
		t.Fatal("hasher must claim its own output")
	}

	for _, tc := range []struct {
		candidate string
		want      bool
	}{
		{"P1-password ñ", true},
		{"P1-password n", false},
		{"p1-password ñ", false},
		{strings.Repeat("x", maxPassBytes+1), false},
	} {
		ok, err := h.Verify(tc.candidate, encoded)
		if err != nil {
			t.Fatalf("Verify(%.12q): %v", tc.candidate, err)
		}
		if ok != tc.want {
			t.Fatalf("Verify(%.12q) = %v, want %v", tc.candidate, ok, tc.want)
		}
	}
}

func TestArgon2SaltsDiffer(t *testing.T) {
	h := quickArgon2(t)
	a, _ := h.Hash("same")
	b, _ := h.Hash("same")
	if a == b {
		t.Fatal("two hashes of one password must not be equal")
	}
}

func TestArgon2NeedsRehash(t *testing.T) {
	weak := quickArgon2(t)
	encoded, err := weak.Hash("upgrade-me")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	strong, err := NewArgon2(Config{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	if !strong.NeedsRehash(encoded) {
		t.Fatal("stronger parameters must ask for a rehash")
	}
	if weak.NeedsRehash(encoded) {
		t.Fatal("current parameters must not ask for a rehash")
	}
	if !weak.NeedsRehash("$2y$10$legacy") {
		t.Fatal("foreign hashes must ask for a rehash")
	}
}

func TestArgon2RejectsBadInput(t *testing.T) {
	h := quickArgon2(t)
	valid, err := h.Hash("input")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if _, err := h.Hash(""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("empty password: got %v", err)
	}
	if _, err := h.Hash(strings.Repeat("a", maxPassBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("oversized password: got %v", err)
	}
	if _, err := h.Hash(strings.Repeat("a", maxPassBytes)); err != nil {
		t.Fatalf("password at the limit: %v", err)
	}

	for name, encoded := range map[string]string{
		"bcrypt":      "$2y$10$abcdefghijklmnopqrstuu",
		"missing key": "$argon2id$v=19$m=8192$salt$key",
		"version":     strings.Replace(valid, "$v=19$", "$v=18$", 1),
	} {
		if _, err := h.Verify("input", encoded); err == nil {
			t.Fatalf("%s: expected an error", name)
		}
	}
	if _, err := h.Verify("input", "not-a-phc-hash"); !errors.Is(err, ErrUnsupportedHash) {
		t.Fatalf("expected ErrUnsupportedHash, got %v", err)
	}
}

func TestNewArgon2Floors(t *testing.T) {
	base := fastConfig()
	for name, mutate := range map[string]func(*Config){
		"memory":      func(c *Config) { c.Memory = 1024 },
		"time":        func(c *Config) { c.Time = 0 },
		"parallelism": func(c *Config) { c.Parallelism = 0 },
		"salt":        func(c *Config) { c.SaltLength = 8 },
		"key":         func(c *Config) { c.KeyLength = 8 },
	} {
		cfg := base
		mutate(&cfg)
		if _, err := NewArgon2(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}
