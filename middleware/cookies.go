package middleware

import (
	"net/http"

	"github.com/MrEthical07/authcore"
)

// SessionID returns the session cookie value, or "".
func SessionID(r *http.Request, cfg authcore.SessionConfig) string {
	c, err := r.Cookie(cfg.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// SetSessionCookie writes the HttpOnly session cookie. Remember-me sessions
// get a persistent cookie; others end with the browser session.
func SetSessionCookie(w http.ResponseWriter, cfg authcore.SessionConfig, sessionID string, remember bool) {
	c := &http.Cookie{
		Name:     cfg.CookieName,
		Value:    sessionID,
		Path:     cfg.CookiePath,
		Domain:   cfg.CookieDomain,
		Secure:   cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		c.MaxAge = int(cfg.RememberLifetime.Seconds())
	}
	http.SetCookie(w, c)
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, cfg authcore.SessionConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		Path:     cfg.CookiePath,
		Domain:   cfg.CookieDomain,
		Secure:   cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
