package authcore

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrInvalidCredentials is returned for a wrong e-mail/password pair. The
	// message never reveals which of the two was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated is returned when no valid session is present.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrAccountDisabled is returned when the account's active flag is false.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrEmailNotVerified is returned at login for an account without a verified e-mail.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrSecondFactorRequired is returned when a session has not completed the second factor.
	ErrSecondFactorRequired = errors.New("second factor required")
	// ErrInvalidSecondFactorCode is returned for a wrong or expired one-time code.
	ErrInvalidSecondFactorCode = errors.New("invalid second factor code")
	// ErrSecondFactorNotProvisioned is returned by confirm when no secret was generated.
	ErrSecondFactorNotProvisioned = errors.New("second factor not provisioned")
	// ErrNoPendingLogin is returned by second-factor verification without a pending login.
	ErrNoPendingLogin = errors.New("no pending login")
	// ErrInvalidOrExpiredToken is returned for a reset token that is unknown, consumed or expired.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrTokenAlreadyViewed is returned by the second preview of the same reset token.
	ErrTokenAlreadyViewed = errors.New("token already viewed")
	// ErrForbidden is returned when a role or permission check fails.
	ErrForbidden = errors.New("forbidden")
	// ErrTooManyAttempts is returned when a throttle bucket is exhausted.
	ErrTooManyAttempts = errors.New("too many attempts")
	// ErrAntiForgeryMismatch is returned when the anti-forgery header is missing or wrong.
	ErrAntiForgeryMismatch = errors.New("anti-forgery token mismatch")

	// ErrAccountNotFound is returned by AccountStore lookups.
	ErrAccountNotFound = errors.New("account not found")
	// ErrEmailTaken is returned by AccountStore.Create and Update on a duplicate e-mail.
	ErrEmailTaken = errors.New("email already taken")
	// ErrResetTokenNotFound is returned by ResetTokenStore.Lookup.
	ErrResetTokenNotFound = errors.New("reset token not found")
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrPasswordPolicy is returned for a password that violates the policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordConfirmation is returned when password and confirmation differ.
	ErrPasswordConfirmation = errors.New("password confirmation does not match")
	// ErrRegistrationDisabled is returned when self-registration is off.
	ErrRegistrationDisabled = errors.New("registration disabled")

	// ErrBackendUnavailable wraps storage and cache failures.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrEngineNotReady is returned when a required dependency was not configured.
	ErrEngineNotReady = errors.New("engine not ready")
)

// RateLimitError carries the retry hint of an exhausted bucket. It matches
// ErrTooManyAttempts with errors.Is.
type RateLimitError struct {
	Bucket     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: bucket %s, retry after %s", ErrTooManyAttempts, e.Bucket, e.RetryAfter)
}

// Is reports whether target is ErrTooManyAttempts.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrTooManyAttempts
}

// Problem is the client-facing rendering of an error.
type Problem struct {
	Status  int    `json:"status"`
	Code    string `json:"error_code"`
	Message string `json:"message"`
	// RetryAfter is set for TOO_MANY_ATTEMPTS.
	RetryAfter time.Duration `json:"-"`
}

type problemEntry struct {
	err     error
	status  int
	code    string
	message string
}

// Order matters: the first match wins.
var problemTable = []problemEntry{
	{ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", "These credentials do not match our records."},
	{ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED", "Unauthenticated."},
	{ErrAccountDisabled, http.StatusForbidden, "ACCOUNT_DISABLED", "Your account has been disabled."},
	{ErrEmailNotVerified, http.StatusForbidden, "EMAIL_NOT_VERIFIED", "Your email address is not verified."},
	{ErrSecondFactorRequired, http.StatusForbidden, "SECOND_FACTOR_REQUIRED", "Two-factor authentication is required."},
	{ErrForbidden, http.StatusForbidden, "FORBIDDEN", "This action is unauthorized."},
	{ErrAccountNotFound, http.StatusNotFound, "NOT_FOUND", "Resource not found."},
	{ErrInvalidSecondFactorCode, http.StatusUnprocessableEntity, "INVALID_SECOND_FACTOR_CODE", "The provided two-factor code is invalid."},
	{ErrInvalidOrExpiredToken, http.StatusUnprocessableEntity, "INVALID_OR_EXPIRED_TOKEN", "This password reset token is invalid or has expired."},
	{ErrPasswordPolicy, http.StatusUnprocessableEntity, "PASSWORD_POLICY", "The password does not meet the requirements."},
	{ErrPasswordConfirmation, http.StatusUnprocessableEntity, "PASSWORD_CONFIRMATION", "The password confirmation does not match."},
	{ErrEmailTaken, http.StatusUnprocessableEntity, "EMAIL_TAKEN", "The email has already been taken."},
	{ErrValidation, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "The given data was invalid."},
	{ErrTokenAlreadyViewed, http.StatusBadRequest, "TOKEN_ALREADY_VIEWED", "This link has already been used."},
	{ErrNoPendingLogin, http.StatusBadRequest, "NO_PENDING_LOGIN", "There is no login awaiting a second factor."},
	{ErrSecondFactorNotProvisioned, http.StatusBadRequest, "SECOND_FACTOR_NOT_PROVISIONED", "Two-factor authentication has not been enabled."},
	{ErrRegistrationDisabled, http.StatusForbidden, "REGISTRATION_DISABLED", "Registration is disabled."},
	{ErrAntiForgeryMismatch, 419, "CSRF_TOKEN_MISMATCH", "CSRF token mismatch."},
	{ErrTooManyAttempts, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "Too many attempts. Please try again later."},
}

// Classify maps err to its client-facing Problem. Unknown errors become a
// generic 500 with no detail.
func Classify(err error) Problem {
	for _, p := range problemTable {
		if errors.Is(err, p.err) {
			out := Problem{Status: p.status, Code: p.code, Message: p.message}
			var rl *RateLimitError
			if errors.As(err, &rl) {
				out.RetryAfter = rl.RetryAfter
			}
			return out
		}
	}
	return Problem{
		Status:  http.StatusInternalServerError,
		Code:    "SERVER_ERROR",
		Message: "Server error.",
	}
}
