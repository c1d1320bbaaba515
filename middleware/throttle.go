package middleware

import (
	"net/http"

	"github.com/MrEthical07/authcore"
)

// KeyFunc selects the throttle key of a request.
type KeyFunc func(r *http.Request) string

// KeyByIP keys a bucket by client IP.
func KeyByIP(r *http.Request) string {
	if ip := authcore.ClientIPFromContext(r.Context()); ip != "" {
		return "ip:" + ip
	}
	return "ip:" + remoteIP(r)
}

// KeyByAccount keys a bucket by the authenticated account, falling back to
// the client IP.
func KeyByAccount(r *http.Request) string {
	if p, ok := authcore.PrincipalFromContext(r.Context()); ok {
		return "account:" + p.Account.ID
	}
	return KeyByIP(r)
}

// Throttle records one hit on bucket per request and rejects with 429 and a
// Retry-After header once the window's quota is spent.
func Throttle(engine *authcore.Engine, bucket string, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := engine.Throttle(r.Context(), bucket, key(r)); err != nil {
				WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
