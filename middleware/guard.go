package middleware

import (
	"errors"
	"net"
	"net/http"

	"github.com/MrEthical07/authcore"
)

// ClientInfo attaches the client IP and User-Agent to the request context.
// Put chi's RealIP in front of it when running behind a proxy.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := authcore.WithClientIP(r.Context(), remoteIP(r))
		ctx = authcore.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate resolves the session cookie into a Principal. Requests
// without a live session fail with 401 and the stale cookie is cleared.
//
// Pending second-factor sessions pass; stack [RequireSecondFactor] to
// reject them.
func Authenticate(engine *authcore.Engine) func(http.Handler) http.Handler {
	cfg := engine.Config().Session
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := SessionID(r, cfg)
			if sid == "" {
				WriteError(w, r, authcore.ErrUnauthenticated)
				return
			}

			p, err := engine.Authenticate(r.Context(), sid)
			if err != nil {
				if errors.Is(err, authcore.ErrUnauthenticated) {
					ClearSessionCookie(w, cfg)
				}
				WriteError(w, r, err)
				return
			}

			noteAccount(r.Context(), p.Account.ID)
			next.ServeHTTP(w, r.WithContext(authcore.WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireActive logs out a principal whose account was disabled after the
// session began.
func RequireActive(engine *authcore.Engine) func(http.Handler) http.Handler {
	cfg := engine.Config().Session
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := authcore.PrincipalFromContext(r.Context())
			if err := engine.EnsureActive(r.Context(), p); err != nil {
				if errors.Is(err, authcore.ErrAccountDisabled) {
					ClearSessionCookie(w, cfg)
				}
				WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSecondFactor rejects login-pending sessions and sessions of a
// second-factor account that have not verified it.
func RequireSecondFactor(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := authcore.PrincipalFromContext(r.Context())
			if err := engine.RequireSecondFactor(p); err != nil {
				WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authorize checks the principal against operations of the rule table.
// Nested routers add their own Authorize so every layer is evaluated.
func Authorize(engine *authcore.Engine, operations ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := authcore.PrincipalFromContext(r.Context())
			if !ok {
				WriteError(w, r, authcore.ErrUnauthenticated)
				return
			}
			if err := engine.Authorize(r.Context(), p, operations...); err != nil {
				WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
