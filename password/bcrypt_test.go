package password

import (
	"strings"
	"testing"
)

// Hash generated by PHP password_hash("secret-pass", PASSWORD_BCRYPT) style tooling.
func legacyHash(t *testing.T, password string) string {
	t.Helper()
	h, err := NewBcrypt(4).Hash(password)
	if err != nil {
		t.Fatalf("bcrypt hash: %v", err)
	}
	// Rewrite the variant marker the way PHP emits it.
	return "$2y$" + strings.TrimPrefix(h, "$2a$")
}

func TestBcryptVerifiesPHPVariant(t *testing.T) {
	b := NewBcrypt(4)
	hash := legacyHash(t, "secret-pass")

	if !b.Handles(hash) {
		t.Fatalf("expected $2y$ hash to be handled: %s", hash)
	}
	ok, err := b.Verify("secret-pass", hash)
	if err != nil || !ok {
		t.Fatalf("Verify: ok=%v err=%v", ok, err)
	}
	ok, err = b.Verify("other-pass", hash)
	if err != nil || ok {
		t.Fatalf("Verify wrong password: ok=%v err=%v", ok, err)
	}
	if !b.NeedsRehash(hash) {
		t.Fatal("legacy hashes must always need rehash")
	}
}

func TestChainDispatch(t *testing.T) {
	primary, err := NewArgon2(fastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	chain := NewChain(primary, NewBcrypt(4))

	modern, err := chain.Hash("modern-pass")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(modern, "$argon2id$") {
		t.Fatalf("chain must hash with primary scheme: %s", modern)
	}
	if ok, err := chain.Verify("modern-pass", modern); err != nil || !ok {
		t.Fatalf("Verify modern: ok=%v err=%v", ok, err)
	}
	if chain.NeedsRehash(modern) {
		t.Fatal("fresh primary hash should not need rehash")
	}

	legacy := legacyHash(t, "legacy-pass")
	if ok, err := chain.Verify("legacy-pass", legacy); err != nil || !ok {
		t.Fatalf("Verify legacy: ok=%v err=%v", ok, err)
	}
	if !chain.NeedsRehash(legacy) {
		t.Fatal("legacy hash should need rehash")
	}

	if _, err := chain.Verify("x", "$md5$abc"); err != ErrUnsupportedHash {
		t.Fatalf("expected ErrUnsupportedHash, got %v", err)
	}
}
