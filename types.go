package authcore

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/session"
)

// Account is the stored user record.
//
//	Docs: docs/accounts.md
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Active       bool
	Role         string

	// EmailVerifiedAt is nil until the address is confirmed.
	EmailVerifiedAt *time.Time

	// TwoFactorSecret is the sealed TOTP secret. It may be set while
	// TwoFactorConfirmedAt is nil (setup in progress). Only a non-nil
	// confirmation makes the factor mandatory at login.
	TwoFactorSecret      string
	TwoFactorConfirmedAt *time.Time

	// RememberTokenHash is rotated on every credential change.
	RememberTokenHash string

	LastLoginAt *time.Time
	LastLoginIP string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TwoFactorEnabled reports whether the second factor is enforced at login.
func (a *Account) TwoFactorEnabled() bool {
	return a != nil && a.TwoFactorConfirmedAt != nil
}

// EmailVerified reports whether the e-mail address has been confirmed.
func (a *Account) EmailVerified() bool {
	return a != nil && a.EmailVerifiedAt != nil
}

// NormalizeEmail lower-cases and trims an address. Stores compare addresses
// in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccountFilter narrows AccountStore.List.
type AccountFilter struct {
	// Roles limits rows to these roles. Empty means any role.
	Roles []string
	// ExcludeID drops one account from the result.
	ExcludeID string
	// Search matches name or e-mail, case-insensitively.
	Search string
	Offset int
	Limit  int
}

// AccountStore persists accounts. Lookups return ErrAccountNotFound on a
// miss; Create and Update return ErrEmailTaken on a duplicate address.
//
//	Docs: docs/accounts.md
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	Create(ctx context.Context, account *Account) error
	Update(ctx context.Context, account *Account) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter AccountFilter) ([]Account, int, error)
}

// ResetTokenStore is the durable store of password-reset tokens. At most one
// token exists per e-mail; Put replaces any previous one.
type ResetTokenStore interface {
	Put(ctx context.Context, email, tokenHash string, expiresAt time.Time) error
	// Lookup returns the stored hash and expiry or ErrResetTokenNotFound.
	Lookup(ctx context.Context, email string) (tokenHash string, expiresAt time.Time, err error)
	// Consume deletes the token only if tokenHash matches and it has not
	// expired at now. It reports whether a row was consumed. Must be atomic.
	Consume(ctx context.Context, email, tokenHash string, now time.Time) (bool, error)
}

// NotificationKind identifies the message a Notifier should deliver.
type NotificationKind string

const (
	// NotifyPasswordResetLink carries a reset link.
	NotifyPasswordResetLink NotificationKind = "password_reset_link"
	// NotifyVerifyEmail carries an e-mail verification link.
	NotifyVerifyEmail NotificationKind = "verify_email"
	// NotifyPasswordReset announces that a reset completed.
	NotifyPasswordReset NotificationKind = "password_reset"
)

// Notification is a message for the delivery channel.
type Notification struct {
	Kind  NotificationKind
	Email string
	Name  string
	Link  string
}

// Notifier delivers notifications. Delivery failures are logged by the
// Engine and never change an operation's result.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Principal is the authenticated caller of a request.
type Principal struct {
	Account *Account
	Session *session.Session
	Role    permission.Role
}

// RoleName implements permission.Subject.
func (p *Principal) RoleName() string {
	if p == nil || p.Account == nil {
		return ""
	}
	return p.Account.Role
}

// Can implements permission.Subject.
func (p *Principal) Can(perm string) bool {
	return p != nil && p.Role.Permissions.Has(perm)
}

func (p *Principal) sessionID() string {
	if p == nil || p.Session == nil {
		return ""
	}
	return p.Session.ID
}

// Identity is the client-facing account payload. It never carries secrets.
type Identity struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	RoleName         string    `json:"role_name"`
	Permissions      []string  `json:"permissions"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	EmailVerified    bool      `json:"email_verified"`
	Active           bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
}

// LoginResult is returned by Login and VerifySecondFactor.
//
// When RequiresSecondFactor is true Identity is nil and SessionID names a
// pending session that only VerifySecondFactor and Logout accept.
type LoginResult struct {
	RequiresSecondFactor bool
	SessionID            string
	Remember             bool
	Identity             *Identity
}

// TwoFactorSetup is returned by EnableTwoFactor.
type TwoFactorSetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// Page is one page of ListUsers.
type Page struct {
	Items []Identity `json:"data"`
	Total int        `json:"total"`
	Page  int        `json:"current_page"`
	Size  int        `json:"per_page"`
}
