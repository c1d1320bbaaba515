package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/httpapi"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "P1-password"

type outbox struct {
	mu   sync.Mutex
	sent []authcore.Notification
}

func (o *outbox) Notify(_ context.Context, n authcore.Notification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, n)
	return nil
}

func (o *outbox) token(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.sent) - 1; i >= 0; i-- {
		if o.sent[i].Kind == authcore.NotifyVerifyEmail {
			u, err := url.Parse(o.sent[i].Link)
			require.NoError(t, err)
			return u.Query().Get("token")
		}
	}
	t.Fatal("no verification mail sent")
	return ""
}

type server struct {
	engine   *authcore.Engine
	accounts *memory.Accounts
	outbox   *outbox
	cfg      authcore.Config
	url      string
}

func newServer(t *testing.T) *server {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := authcore.DefaultConfig()
	cfg.Session.CookieSecure = false
	cfg.CSRF.Key = bytes.Repeat([]byte{'c'}, 32)
	cfg.TOTP.EncryptionKey = bytes.Repeat([]byte{'t'}, 32)
	cfg.EmailVerification.SigningKey = bytes.Repeat([]byte{'e'}, 32)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	s := &server{accounts: memory.NewAccounts(), outbox: &outbox{}, cfg: cfg}
	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(s.accounts).
		WithResetTokenStore(memory.NewResetTokens()).
		WithNotifier(s.outbox).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	s.engine = engine

	ts := httptest.NewServer(httpapi.NewRouter(engine, httpapi.Options{}))
	t.Cleanup(ts.Close)
	s.url = ts.URL
	return s
}

func (s *server) signUp(t *testing.T, email, role string) {
	t.Helper()
	ctx := context.Background()
	identity, err := s.engine.Register(ctx, authcore.RegisterInput{
		Name: "Test", Email: email, Password: testPassword, Confirmation: testPassword,
	})
	require.NoError(t, err)
	require.NoError(t, s.engine.VerifyEmail(ctx, s.outbox.token(t)))
	if role != "" {
		acct, err := s.accounts.FindByID(ctx, identity.ID)
		require.NoError(t, err)
		acct.Role = role
		require.NoError(t, s.accounts.Update(ctx, acct))
	}
}

func (s *server) client(t *testing.T) *Client {
	t.Helper()
	c, err := New(s.url+"/", nil, Options{Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestBootstrapWithoutSession(t *testing.T) {
	s := newServer(t)
	c := s.client(t)

	require.NoError(t, c.Bootstrap(context.Background()))
	assert.Equal(t, StatusUnauthenticated, c.State().Snapshot().Status)
	assert.NotEmpty(t, c.antiForgeryToken())
}

func TestLoginBootstrapAndLogout(t *testing.T) {
	s := newServer(t)
	s.signUp(t, "ana@example.com", "")
	ctx := context.Background()

	c := s.client(t)
	require.NoError(t, c.Bootstrap(ctx))

	_, err := c.Login(ctx, "ana@example.com", "wrong-password", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, authcore.ErrInvalidCredentials), "got %v", err)

	out, err := c.Login(ctx, "ana@example.com", testPassword, true)
	require.NoError(t, err)
	require.False(t, out.RequiresSecondFactor)
	assert.Equal(t, "ana@example.com", out.Identity.Email)
	assert.Equal(t, StatusAuthenticated, c.State().Snapshot().Status)

	// A second client sharing the cookie jar resumes the session.
	resumed, err := New(s.url, nil, Options{HTTPClient: c.http})
	require.NoError(t, err)
	require.NoError(t, resumed.Bootstrap(ctx))
	assert.Equal(t, "user", resumed.State().Snapshot().RoleName())

	require.NoError(t, c.Logout(ctx))
	assert.Equal(t, StatusUnauthenticated, c.State().Snapshot().Status)

	_, err = c.Refresh(ctx)
	assert.True(t, errors.Is(err, authcore.ErrUnauthenticated), "got %v", err)
}

func TestGuardWithServerTable(t *testing.T) {
	s := newServer(t)
	s.signUp(t, "user@example.com", "")
	s.signUp(t, "root@example.com", "admin")
	ctx := context.Background()

	user := s.client(t)
	require.NoError(t, user.Bootstrap(ctx))
	_, err := user.Login(ctx, "user@example.com", testPassword, false)
	require.NoError(t, err)

	table, err := user.AuthzTable(ctx)
	require.NoError(t, err)
	guard := NewGuard(table)

	list := RouteHandle{Operation: authcore.OpUsersList}
	assert.Equal(t, Forbidden, guard.Check(user.State().Snapshot(), list))

	err = user.Do(ctx, http.MethodGet, "/users", nil, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.True(t, errors.Is(err, authcore.ErrForbidden))

	admin := s.client(t)
	require.NoError(t, admin.Bootstrap(ctx))
	_, err = admin.Login(ctx, "root@example.com", testPassword, false)
	require.NoError(t, err)
	assert.Equal(t, Allow, guard.Check(admin.State().Snapshot(), list))

	var page authcore.Page
	require.NoError(t, admin.Do(ctx, http.MethodGet, "/users?per_page=5", nil, &page))
	assert.Equal(t, 2, page.Total)
}

func TestRetriesOnceAfterAntiForgeryMismatch(t *testing.T) {
	s := newServer(t)
	s.signUp(t, "ana@example.com", "")
	ctx := context.Background()

	c := s.client(t)
	require.NoError(t, c.Bootstrap(ctx))
	c.http.Jar.SetCookies(c.base, []*http.Cookie{{Name: s.cfg.CSRF.CookieName, Value: "stale", Path: "/"}})

	_, err := c.Login(ctx, "ana@example.com", testPassword, false)
	require.NoError(t, err)
	assert.NotEqual(t, "stale", c.antiForgeryToken())
	assert.Equal(t, StatusAuthenticated, c.State().Snapshot().Status)
}

func TestUnauthorizedClearsState(t *testing.T) {
	s := newServer(t)
	s.signUp(t, "ana@example.com", "")
	ctx := context.Background()

	laptop := s.client(t)
	require.NoError(t, laptop.Bootstrap(ctx))
	_, err := laptop.Login(ctx, "ana@example.com", testPassword, false)
	require.NoError(t, err)

	phone := s.client(t)
	require.NoError(t, phone.Bootstrap(ctx))
	_, err = phone.Login(ctx, "ana@example.com", testPassword, false)
	require.NoError(t, err)

	var out struct {
		Revoked int `json:"revoked"`
	}
	require.NoError(t, phone.Do(ctx, http.MethodPost, "/user/security/logout-others",
		map[string]any{"password": testPassword}, &out))
	assert.Equal(t, 1, out.Revoked)

	_, err = laptop.Refresh(ctx)
	require.Error(t, err)
	assert.Equal(t, StatusUnauthenticated, laptop.State().Snapshot().Status)

	_, err = phone.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusAuthenticated, phone.State().Snapshot().Status)
}

func TestSecondFactorLogin(t *testing.T) {
	s := newServer(t)
	s.signUp(t, "ana@example.com", "")
	ctx := context.Background()

	c := s.client(t)
	require.NoError(t, c.Bootstrap(ctx))
	_, err := c.Login(ctx, "ana@example.com", testPassword, false)
	require.NoError(t, err)

	var setup authcore.TwoFactorSetup
	require.NoError(t, c.Do(ctx, http.MethodPost, "/user/security/2fa/enable", nil, &setup))
	code, err := authcore.TOTPCode(s.cfg.TOTP, setup.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, c.Do(ctx, http.MethodPost, "/user/security/2fa/confirm", map[string]any{"code": code}, nil))
	require.NoError(t, c.Logout(ctx))

	out, err := c.Login(ctx, "ana@example.com", testPassword, false)
	require.NoError(t, err)
	require.True(t, out.RequiresSecondFactor)
	assert.Equal(t, StatusUnauthenticated, c.State().Snapshot().Status)

	_, err = c.VerifySecondFactor(ctx, "000000")
	assert.True(t, errors.Is(err, authcore.ErrInvalidSecondFactorCode), "got %v", err)

	code, err = authcore.TOTPCode(s.cfg.TOTP, setup.Secret, time.Now())
	require.NoError(t, err)
	identity, err := c.VerifySecondFactor(ctx, code)
	require.NoError(t, err)
	assert.True(t, identity.TwoFactorEnabled)
	assert.Equal(t, StatusAuthenticated, c.State().Snapshot().Status)
}

func TestAPIErrorCarriesRetryAfter(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	c := s.client(t)
	require.NoError(t, c.Bootstrap(ctx))

	var err error
	for range s.cfg.RateLimit.Login.Limit + 1 {
		_, err = c.Login(ctx, "nobody@example.com", "wrong-password", false)
	}
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Positive(t, apiErr.RetryAfter)
}
