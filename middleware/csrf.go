package middleware

import (
	"net/http"

	"github.com/MrEthical07/authcore"
)

// CSRF enforces the double-submit token. Mutating requests must echo the
// readable cookie in the configured header, or fail with 419 before any
// handler runs. Safe requests without a valid cookie get a fresh one.
func CSRF(engine *authcore.Engine) func(http.Handler) http.Handler {
	cfg := engine.Config()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie := csrfCookie(r, cfg.CSRF)

			if isSafeMethod(r.Method) {
				if cookie == "" || !engine.CheckAntiForgeryToken(cookie, cookie) {
					if err := IssueCSRFCookie(w, engine, cfg); err != nil {
						WriteError(w, r, err)
						return
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			if !engine.CheckAntiForgeryToken(cookie, r.Header.Get(cfg.CSRF.HeaderName)) {
				engine.RecordAntiForgeryMismatch(r.Context(), r.Method, r.URL.Path)
				WriteError(w, r, authcore.ErrAntiForgeryMismatch)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IssueCSRFCookie sets a new readable anti-forgery cookie.
func IssueCSRFCookie(w http.ResponseWriter, engine *authcore.Engine, cfg authcore.Config) error {
	token, err := engine.IssueAntiForgeryToken()
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CSRF.CookieName,
		Value:    token,
		Path:     "/",
		Domain:   cfg.Session.CookieDomain,
		Secure:   cfg.Session.CookieSecure,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(cfg.CSRF.MaxAge.Seconds()),
	})
	return nil
}

func csrfCookie(r *http.Request, cfg authcore.CSRFConfig) string {
	c, err := r.Cookie(cfg.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
