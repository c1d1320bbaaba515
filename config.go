package authcore

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds every tunable of the Engine. Build it from [DefaultConfig] and
// override fields; [Builder.Build] validates it.
type Config struct {
	Session           SessionConfig
	CSRF              CSRFConfig
	Password          PasswordConfig
	TOTP              TOTPConfig
	PasswordReset     PasswordResetConfig
	EmailVerification EmailVerificationConfig
	RateLimit         RateLimitConfig
	Account           AccountConfig
	Authorization     AuthorizationConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetimes and the session cookie.
type SessionConfig struct {
	RedisPrefix string
	// IdleTTL is the inactivity window. It slides on every authenticated request.
	IdleTTL time.Duration
	// Lifetime caps a regular session regardless of activity.
	Lifetime time.Duration
	// RememberLifetime replaces both limits for remember-me logins.
	RememberLifetime time.Duration
	// PendingTTL bounds how long a login may wait for its second factor.
	PendingTTL time.Duration

	CookieName   string
	CookiePath   string
	CookieDomain string
	CookieSecure bool
}

/*
====================================
CSRF CONFIG
====================================
*/

// CSRFConfig controls the double-submit anti-forgery token.
type CSRFConfig struct {
	CookieName string
	HeaderName string
	// Key signs tokens so a value planted by a sibling subdomain is rejected.
	Key    []byte
	MaxAge time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id parameters and the password policy.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength int
	// BcryptCost is used only when hashing fixtures in the legacy format.
	BcryptCost     int
	UpgradeOnLogin bool
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig controls the time-based second factor.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string
	Skew      int
	// EncryptionKey seals stored secrets (32 bytes, AES-256-GCM).
	EncryptionKey []byte
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig controls reset tokens and their preview marker.
type PasswordResetConfig struct {
	TokenTTL time.Duration
	// PreviewTTL is how long a consumed preview stays marked as viewed.
	PreviewTTL    time.Duration
	PreviewPrefix string
	// LinkBaseURL receives ?token=...&email=... appended.
	LinkBaseURL string
}

/*
====================================
EMAIL VERIFICATION CONFIG
====================================
*/

// EmailVerificationConfig controls signed verification links.
type EmailVerificationConfig struct {
	LinkTTL     time.Duration
	SigningKey  []byte
	Issuer      string
	LinkBaseURL string
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateRule is a fixed-window quota.
type RateRule struct {
	Limit  int
	Window time.Duration
}

// RateLimitConfig defines the named throttle buckets.
type RateLimitConfig struct {
	RedisPrefix  string
	Login        RateRule
	Registration RateRule
	TwoFactor    RateRule
	API          RateRule
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig controls self-registration.
type AccountConfig struct {
	RegistrationEnabled bool
	DefaultRole         string
}

/*
====================================
AUTHORIZATION CONFIG
====================================
*/

// AuthorizationConfig names the super-role. Accounts holding it pass every
// rule of the operation table. Leave empty to disable the bypass.
type AuthorizationConfig struct {
	SuperRole string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// RedactKeys are payload keys replaced before a request record leaves the process.
	RedactKeys []string
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults. Keys must still be supplied.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix:      "as",
			IdleTTL:          120 * time.Minute,
			Lifetime:         24 * time.Hour,
			RememberLifetime: 30 * 24 * time.Hour,
			PendingTTL:       10 * time.Minute,
			CookieName:       "authcore_session",
			CookiePath:       "/",
			CookieSecure:     true,
		},
		CSRF: CSRFConfig{
			CookieName: "XSRF-TOKEN",
			HeaderName: "X-XSRF-TOKEN",
			MaxAge:     120 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			BcryptCost:     12,
			UpgradeOnLogin: true,
		},
		TOTP: TOTPConfig{
			Issuer:    "authcore",
			Digits:    6,
			Period:    30,
			Algorithm: "SHA1",
			Skew:      1,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL:      60 * time.Minute,
			PreviewTTL:    10 * time.Minute,
			PreviewPrefix: "arv",
			LinkBaseURL:   "http://localhost:3000/reset-password",
		},
		EmailVerification: EmailVerificationConfig{
			LinkTTL:     60 * time.Minute,
			Issuer:      "authcore",
			LinkBaseURL: "http://localhost:3000/email/verify",
		},
		RateLimit: RateLimitConfig{
			RedisPrefix:  "rl",
			Login:        RateRule{Limit: 5, Window: time.Minute},
			Registration: RateRule{Limit: 3, Window: time.Minute},
			TwoFactor:    RateRule{Limit: 3, Window: time.Minute},
			API:          RateRule{Limit: 60, Window: time.Minute},
		},
		Account: AccountConfig{
			RegistrationEnabled: true,
			DefaultRole:         "user",
		},
		Authorization: AuthorizationConfig{
			SuperRole: "admin",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
			RedactKeys: []string{"password", "password_confirmation", "current_password", "google2fa_secret", "code", "token"},
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.CSRF.Key = cloneBytes(cfg.CSRF.Key)
	out.TOTP.EncryptionKey = cloneBytes(cfg.TOTP.EncryptionKey)
	out.EmailVerification.SigningKey = cloneBytes(cfg.EmailVerification.SigningKey)
	out.Audit.RedactKeys = append([]string(nil), cfg.Audit.RedactKeys...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Session
	if c.Session.IdleTTL <= 0 || c.Session.Lifetime <= 0 || c.Session.RememberLifetime <= 0 {
		return errors.New("Session lifetimes must be > 0")
	}
	if c.Session.PendingTTL <= 0 || c.Session.PendingTTL > time.Hour {
		return errors.New("Session PendingTTL must be in (0, 1h]")
	}
	if strings.TrimSpace(c.Session.CookieName) == "" {
		return errors.New("Session CookieName must be set")
	}

	// CSRF
	if len(c.CSRF.Key) < 32 {
		return errors.New("CSRF Key must be at least 32 bytes")
	}
	if c.CSRF.CookieName == "" || c.CSRF.HeaderName == "" {
		return errors.New("CSRF cookie and header names must be set")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}

	// TOTP
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("TOTP Period must be > 0")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return errors.New("TOTP Skew must be between 0 and 2")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("TOTP Algorithm must be SHA1, SHA256 or SHA512")
	}
	if len(c.TOTP.EncryptionKey) != 32 {
		return errors.New("TOTP EncryptionKey must be 32 bytes")
	}

	// Password reset
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset TokenTTL must be > 0")
	}
	if c.PasswordReset.PreviewTTL <= 0 || c.PasswordReset.PreviewTTL > c.PasswordReset.TokenTTL {
		return errors.New("PasswordReset PreviewTTL must be in (0, TokenTTL]")
	}
	if c.PasswordReset.LinkBaseURL == "" {
		return errors.New("PasswordReset LinkBaseURL must be set")
	}

	// Email verification
	if c.EmailVerification.LinkTTL <= 0 {
		return errors.New("EmailVerification LinkTTL must be > 0")
	}
	if len(c.EmailVerification.SigningKey) < 32 {
		return errors.New("EmailVerification SigningKey must be at least 32 bytes")
	}

	// Rate limits
	for name, r := range map[string]RateRule{
		"Login":        c.RateLimit.Login,
		"Registration": c.RateLimit.Registration,
		"TwoFactor":    c.RateLimit.TwoFactor,
		"API":          c.RateLimit.API,
	} {
		if r.Limit <= 0 || r.Window <= 0 {
			return fmt.Errorf("RateLimit %s must have Limit > 0 and Window > 0", name)
		}
	}

	// Account
	if c.Account.DefaultRole == "" {
		return errors.New("Account DefaultRole must be set")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
