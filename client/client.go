package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/permission"
)

const (
	defaultCSRFCookie = "XSRF-TOKEN"
	defaultCSRFHeader = "X-XSRF-TOKEN"
	defaultTimeout    = 15 * time.Second
	statusCSRF        = 419
)

// ErrNoAntiForgeryCookie is returned when the server never set the
// anti-forgery cookie.
var ErrNoAntiForgeryCookie = errors.New("client: anti-forgery cookie missing")

// APIError is a non-2xx response. It matches the authcore sentinel with the
// same error code, so errors.Is(err, authcore.ErrForbidden) works.
type APIError struct {
	Status     int
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Is matches the authcore error that renders to the same code.
func (e *APIError) Is(target error) bool {
	p := authcore.Classify(target)
	return p.Status < http.StatusInternalServerError && p.Code == e.Code
}

// Options configures New. Zero values pick the server defaults.
type Options struct {
	// HTTPClient is used as is when it carries a cookie jar.
	HTTPClient     *http.Client
	CSRFCookieName string
	CSRFHeaderName string
	Timeout        time.Duration
}

// Client calls the authcore HTTP surface and keeps state in sync.
type Client struct {
	base       *url.URL
	http       *http.Client
	state      *Container
	csrfCookie string
	csrfHeader string
}

// New returns a client for baseURL that reports into state.
func New(baseURL string, state *Container, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if state == nil {
		state = NewContainer()
	}

	hc := opts.HTTPClient
	if hc == nil || hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		next := &http.Client{Jar: jar, Timeout: timeout}
		if hc != nil {
			next.Transport = hc.Transport
		}
		hc = next
	}

	c := &Client{
		base:       base,
		http:       hc,
		state:      state,
		csrfCookie: opts.CSRFCookieName,
		csrfHeader: opts.CSRFHeaderName,
	}
	if c.csrfCookie == "" {
		c.csrfCookie = defaultCSRFCookie
	}
	if c.csrfHeader == "" {
		c.csrfHeader = defaultCSRFHeader
	}
	return c, nil
}

// State returns the container the client reports into.
func (c *Client) State() *Container { return c.state }

/*
====================================
AUTH FLOWS
====================================
*/

// Bootstrap fetches the anti-forgery cookie and resolves the current
// session, settling the container exactly once.
func (c *Client) Bootstrap(ctx context.Context) error {
	t := c.state.Init()
	if err := c.RefreshAntiForgery(ctx); err != nil {
		c.state.SettleUnauthenticated(t)
		return err
	}

	identity, err := c.me(ctx)
	if err != nil {
		c.state.SettleUnauthenticated(t)
		if isStatus(err, http.StatusUnauthorized) || isStatus(err, http.StatusForbidden) {
			return nil
		}
		return err
	}
	c.state.SettleAuthenticated(t, identity)
	return nil
}

// LoginOutcome is the result of Login.
type LoginOutcome struct {
	RequiresSecondFactor bool
	Identity             *authcore.Identity
}

type loginBody struct {
	RequireTwoFactor bool               `json:"require_2fa"`
	User             *authcore.Identity `json:"user"`
}

// Login submits credentials. When a second factor is required the container
// stays unauthenticated until VerifySecondFactor succeeds.
func (c *Client) Login(ctx context.Context, email, password string, remember bool) (*LoginOutcome, error) {
	t := c.state.Ticket()
	var out loginBody
	err := c.Do(ctx, http.MethodPost, "/login", map[string]any{
		"email": email, "password": password, "remember": remember,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.RequireTwoFactor {
		c.state.SettleUnauthenticated(t)
		return &LoginOutcome{RequiresSecondFactor: true}, nil
	}
	c.state.SettleAuthenticated(t, out.User)
	return &LoginOutcome{Identity: out.User}, nil
}

// VerifySecondFactor completes a pending login.
func (c *Client) VerifySecondFactor(ctx context.Context, code string) (*authcore.Identity, error) {
	t := c.state.Ticket()
	var out loginBody
	if err := c.Do(ctx, http.MethodPost, "/2fa/verify", map[string]any{"code": code}, &out); err != nil {
		return nil, err
	}
	c.state.SettleAuthenticated(t, out.User)
	return out.User, nil
}

// Logout clears local state first, then ends the server session. A response
// still in flight for the old session is ignored.
func (c *Client) Logout(ctx context.Context) error {
	c.state.Logout()
	err := c.Do(ctx, http.MethodPost, "/logout", nil, nil)
	if isStatus(err, http.StatusUnauthorized) {
		return nil
	}
	return err
}

// Refresh re-reads the identity, for example after a profile change.
func (c *Client) Refresh(ctx context.Context) (*authcore.Identity, error) {
	t := c.state.Ticket()
	identity, err := c.me(ctx)
	if err != nil {
		return nil, err
	}
	c.state.SettleAuthenticated(t, identity)
	return identity, nil
}

func (c *Client) me(ctx context.Context) (*authcore.Identity, error) {
	var out struct {
		Data authcore.Identity `json:"data"`
	}
	if err := c.Do(ctx, http.MethodGet, "/user/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// AuthzTable fetches the server's operation table for NewGuard.
func (c *Client) AuthzTable(ctx context.Context) (*permission.Table, error) {
	resp, err := c.send(ctx, http.MethodGet, "/authz/table", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return permission.ParseTable(body)
}

/*
====================================
TRANSPORT
====================================
*/

// RefreshAntiForgery asks the server for an anti-forgery cookie.
func (c *Client) RefreshAntiForgery(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodGet, "/csrf-cookie", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return c.apiError(resp)
	}
	if c.antiForgeryToken() == "" {
		return ErrNoAntiForgeryCookie
	}
	return nil
}

// Do sends in as JSON and decodes a 2xx body into out. Mutating calls carry
// the anti-forgery header and are retried once after a 419. Any 401 clears
// the container.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = b
	}

	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	if resp.StatusCode == statusCSRF && !isSafe(method) {
		drain(resp)
		if err := c.RefreshAntiForgery(ctx); err != nil {
			return err
		}
		if resp, err = c.send(ctx, method, path, body); err != nil {
			return err
		}
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusUnauthorized {
		c.state.Logout()
	}
	if resp.StatusCode >= 300 {
		return c.apiError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !isSafe(method) {
		req.Header.Set(c.csrfHeader, c.antiForgeryToken())
	}
	return c.http.Do(req)
}

func (c *Client) antiForgeryToken() string {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == c.csrfCookie {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) apiError(resp *http.Response) error {
	e := &APIError{Status: resp.StatusCode}
	var p authcore.Problem
	if err := json.NewDecoder(resp.Body).Decode(&p); err == nil {
		e.Code = p.Code
		e.Message = p.Message
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		e.RetryAfter = time.Duration(s) * time.Second
	}
	return e
}

func isStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func isSafe(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
