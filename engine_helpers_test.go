package authcore

import (
	"context"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockAccountStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	order    []string

	updateCalls int
	updateErr   error
	findErr     error
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{accounts: make(map[string]Account)}
}

func (m *mockAccountStore) FindByID(_ context.Context, id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return nil, m.findErr
	}
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &a, nil
}

func (m *mockAccountStore) FindByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, id := range m.order {
		if a := m.accounts[id]; a.Email == NormalizeEmail(email) {
			return &a, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *mockAccountStore) Create(_ context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.accounts {
		if a.Email == account.Email {
			return ErrEmailTaken
		}
	}
	m.accounts[account.ID] = *account
	m.order = append(m.order, account.ID)
	return nil
}

func (m *mockAccountStore) Update(_ context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.accounts[account.ID]; !ok {
		return ErrAccountNotFound
	}
	for id, a := range m.accounts {
		if id != account.ID && a.Email == account.Email {
			return ErrEmailTaken
		}
	}
	m.accounts[account.ID] = *account
	return nil
}

func (m *mockAccountStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[id]; !ok {
		return ErrAccountNotFound
	}
	delete(m.accounts, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	return nil
}

func (m *mockAccountStore) List(_ context.Context, f AccountFilter) ([]Account, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []Account
	for _, id := range m.order {
		a := m.accounts[id]
		if len(f.Roles) > 0 && !slices.Contains(f.Roles, a.Role) {
			continue
		}
		if f.ExcludeID != "" && a.ID == f.ExcludeID {
			continue
		}
		if f.Search != "" && !strings.Contains(a.Name+" "+a.Email, f.Search) {
			continue
		}
		matched = append(matched, a)
	}
	total := len(matched)
	start := min(f.Offset, total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return matched[start:end], total, nil
}

func (m *mockAccountStore) get(t *testing.T, id string) *Account {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		t.Fatalf("account %s not stored", id)
	}
	return &a
}

type resetRecord struct {
	hash      string
	expiresAt time.Time
}

type mockResetTokenStore struct {
	mu     sync.Mutex
	tokens map[string]resetRecord
}

func newMockResetTokenStore() *mockResetTokenStore {
	return &mockResetTokenStore{tokens: make(map[string]resetRecord)}
}

func (m *mockResetTokenStore) Put(_ context.Context, email, hash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[email] = resetRecord{hash: hash, expiresAt: expiresAt}
	return nil
}

func (m *mockResetTokenStore) Lookup(_ context.Context, email string) (string, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.tokens[email]
	if !ok {
		return "", time.Time{}, ErrResetTokenNotFound
	}
	return r.hash, r.expiresAt, nil
}

func (m *mockResetTokenStore) Consume(_ context.Context, email, hash string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.tokens[email]
	if !ok || r.hash != hash || !now.Before(r.expiresAt) {
		return false, nil
	}
	delete(m.tokens, email)
	return true, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) last(t *testing.T, kind NotificationKind) Notification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Kind == kind {
			return n.sent[i]
		}
	}
	t.Fatalf("no %s notification sent", kind)
	return Notification{}
}

func (n *recordingNotifier) count(kind NotificationKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, msg := range n.sent {
		if msg.Kind == kind {
			c++
		}
	}
	return c
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testKey(b byte) []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = b
	}
	return k
}

// testConfig keeps Argon2 at its floor so tests hash quickly.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CSRF.Key = testKey('c')
	cfg.TOTP.EncryptionKey = testKey('t')
	cfg.EmailVerification.SigningKey = testKey('e')
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.BcryptCost = 4
	return cfg
}

type engineFixture struct {
	engine   *Engine
	accounts *mockAccountStore
	resets   *mockResetTokenStore
	notifier *recordingNotifier
	mr       *miniredis.Miniredis
	rdb      *redis.Client
}

func newEngineFixture(t *testing.T, configure func(*Builder)) *engineFixture {
	t.Helper()

	mr, rdb := newTestRedis(t)
	f := &engineFixture{
		accounts: newMockAccountStore(),
		resets:   newMockResetTokenStore(),
		notifier: &recordingNotifier{},
		mr:       mr,
		rdb:      rdb,
	}
	b := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithAccountStore(f.accounts).
		WithResetTokenStore(f.resets).
		WithNotifier(f.notifier)
	if configure != nil {
		configure(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	f.engine = engine
	return f
}

// seed stores an active, verified account with the given role.
func (f *engineFixture) seed(t *testing.T, email, password, role string, mutate ...func(*Account)) *Account {
	t.Helper()

	hash, err := f.engine.hasher.Hash(password)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	now := time.Now().UTC()
	a := &Account{
		ID:              "acct-" + strconv.Itoa(len(f.accounts.order)+1),
		Name:            strings.Split(email, "@")[0],
		Email:           NormalizeEmail(email),
		PasswordHash:    hash,
		Active:          true,
		Role:            role,
		EmailVerifiedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, m := range mutate {
		m(a)
	}
	if err := f.accounts.Create(context.Background(), a); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return a
}

// withTwoFactor provisions and confirms a second factor, returning the
// plaintext secret through dst.
func (f *engineFixture) withTwoFactor(t *testing.T, dst *string) func(*Account) {
	return func(a *Account) {
		t.Helper()
		secret, err := f.engine.totp.GenerateSecret()
		if err != nil {
			t.Fatalf("GenerateSecret failed: %v", err)
		}
		sealed, err := f.engine.sealer.Seal([]byte(secret), a.ID)
		if err != nil {
			t.Fatalf("Seal failed: %v", err)
		}
		now := time.Now().UTC()
		a.TwoFactorSecret = sealed
		a.TwoFactorConfirmedAt = &now
		*dst = secret
	}
}

func (f *engineFixture) code(t *testing.T, secret string) string {
	t.Helper()
	c, err := f.engine.totp.CodeAt(secret, time.Now())
	if err != nil {
		t.Fatalf("CodeAt failed: %v", err)
	}
	return c
}

// wrongCode returns a code that differs from every code in the skew window.
func (f *engineFixture) wrongCode(t *testing.T, secret string) string {
	t.Helper()
	now := time.Now()
	valid := map[string]bool{}
	for _, d := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		c, err := f.engine.totp.CodeAt(secret, now.Add(d))
		if err != nil {
			t.Fatalf("CodeAt failed: %v", err)
		}
		valid[c] = true
	}
	for i := 0; i < 1000000; i++ {
		c := strconv.Itoa(100000 + i%900000)
		if !valid[c] {
			return c
		}
	}
	t.Fatal("no wrong code found")
	return ""
}

func (f *engineFixture) login(t *testing.T, email, password string) *LoginResult {
	t.Helper()
	res, err := f.engine.Login(context.Background(), LoginInput{Email: email, Password: password})
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", email, err)
	}
	return res
}

func (f *engineFixture) principal(t *testing.T, sessionID string) *Principal {
	t.Helper()
	p, err := f.engine.Authenticate(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	return p
}

func (f *engineFixture) sessionCount(t *testing.T, accountID string) int {
	t.Helper()
	ids, err := f.engine.sessions.IDs(context.Background(), accountID)
	if err != nil {
		t.Fatalf("IDs failed: %v", err)
	}
	return len(ids)
}

func linkParam(t *testing.T, link, name string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("url.Parse(%q) failed: %v", link, err)
	}
	v := u.Query().Get(name)
	if v == "" {
		t.Fatalf("link %q has no %s", link, name)
	}
	return v
}
