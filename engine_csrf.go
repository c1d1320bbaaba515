package authcore

import (
	"crypto/subtle"

	"github.com/MrEthical07/authcore/internal"
)

// IssueAntiForgeryToken mints a signed double-submit token for the readable
// CSRF cookie.
func (e *Engine) IssueAntiForgeryToken() (string, error) {
	return internal.NewCSRFToken(e.config.CSRF.Key)
}

// CheckAntiForgeryToken reports whether the header echoes the cookie and the
// cookie carries a valid signature.
func (e *Engine) CheckAntiForgeryToken(cookie, header string) bool {
	if cookie == "" || header == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
		return false
	}
	return internal.VerifyCSRFToken(e.config.CSRF.Key, cookie)
}
