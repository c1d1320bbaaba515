package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/session"
	"github.com/rs/zerolog"
)

// Throttle bucket names.
const (
	BucketLogin        = "login"
	BucketRegistration = "registration"
	BucketTwoFactor    = "two-factor"
	BucketAPI          = "api"
)

// Engine is the authentication and authorization core. It owns the login
// state machine, sessions, the second factor, password recovery, e-mail
// verification, throttles and the authorization model.
//
// Engine instances are built once by [Builder.Build] and are safe for
// concurrent use.
type Engine struct {
	config Config

	registry *permission.Registry
	roles    *permission.RoleManager
	table    *permission.Table
	scopes   permission.Scopes

	accounts    AccountStore
	resetTokens ResetTokenStore
	notifier    Notifier

	sessions *session.Store
	limiter  *rate.Limiter
	previews *stores.ResetPreviewStore

	hasher    *password.Chain
	dummyHash string
	sealer    *internal.Sealer
	links     *jwt.LinkSigner
	totp      *totp

	audit   *auditDispatcher
	metrics *Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// Close flushes pending audit events and stops the dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the in-process counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Metrics exposes the counters to exporters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Table returns the operation table. Callers must not modify it.
func (e *Engine) Table() *permission.Table {
	return e.table
}

// Roles returns the role catalogue.
func (e *Engine) Roles() []permission.Role {
	return e.roles.Roles()
}

// Ping checks the Redis connection behind sessions and throttles.
func (e *Engine) Ping(ctx context.Context) error {
	if _, err := e.sessions.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

/*
====================================
THROTTLES
====================================
*/

// Throttle records one hit on bucket for key. It fails with a
// [*RateLimitError] (matching ErrTooManyAttempts) once the quota of the
// current window is spent. Callers run it before any credential or code check.
func (e *Engine) Throttle(ctx context.Context, bucket, key string) error {
	d, err := e.limiter.Hit(ctx, bucket, key)
	if err == nil {
		return nil
	}
	if errors.Is(err, rate.ErrRateLimited) {
		e.metricInc(MetricRateLimitHit)
		e.emitAudit(ctx, AuditRateLimited, false, "", "", ErrTooManyAttempts, func() map[string]string {
			return map[string]string{"bucket": bucket}
		})
		return &RateLimitError{Bucket: bucket, RetryAfter: d.RetryAfter}
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

/*
====================================
AUTHORIZATION
====================================
*/

// Authorize checks p against the named operations, outermost routing layer
// first. It returns ErrForbidden when any layer rejects.
func (e *Engine) Authorize(ctx context.Context, p *Principal, operations ...string) error {
	if p == nil {
		return ErrUnauthenticated
	}
	if e.table.Allow(p, operations...) {
		return nil
	}
	e.metricInc(MetricAuthorizationDenied)
	e.emitAudit(ctx, AuditAuthorizationDenied, false, p.Account.ID, p.sessionID(), ErrForbidden, func() map[string]string {
		return map[string]string{"operations": strings.Join(operations, ",")}
	})
	return ErrForbidden
}

// Can reports whether p may perform operation without recording a denial.
func (e *Engine) Can(p *Principal, operation string) bool {
	return p != nil && e.table.Allow(p, operation)
}

// Scope returns the data scope applied to p's list and detail reads.
func (e *Engine) Scope(p *Principal) permission.Scope {
	if p == nil {
		return permission.Scope{}
	}
	if e.isSuper(p.RoleName()) {
		return permission.Scope{}
	}
	return e.scopes.For(p.RoleName())
}

func (e *Engine) isSuper(role string) bool {
	return e.table.SuperRole != "" && role == e.table.SuperRole
}

/*
====================================
IDENTITY
====================================
*/

func (e *Engine) identity(acct *Account) *Identity {
	role, _ := e.roles.Role(acct.Role)
	perms := role.Permissions.Names()
	if perms == nil {
		perms = []string{}
	}
	return &Identity{
		ID:               acct.ID,
		Name:             acct.Name,
		Email:            acct.Email,
		Role:             role.Label,
		RoleName:         acct.Role,
		Permissions:      perms,
		TwoFactorEnabled: acct.TwoFactorEnabled(),
		EmailVerified:    acct.EmailVerified(),
		Active:           acct.Active,
		CreatedAt:        acct.CreatedAt,
	}
}

/*
====================================
HELPERS
====================================
*/

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) findAccount(ctx context.Context, id string) (*Account, error) {
	acct, err := e.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return acct, nil
}

// storeErr passes the store taxonomy through and wraps everything else.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrResetTokenNotFound),
		errors.Is(err, ErrBackendUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
}

func sessionErr(err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return ErrUnauthenticated
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

func (e *Engine) checkPasswordPolicy(pw, confirmation string) error {
	if len(pw) < e.config.Password.MinLength {
		return ErrPasswordPolicy
	}
	if pw != confirmation {
		return ErrPasswordConfirmation
	}
	return nil
}

// rotateRememberToken replaces the remember-token hash so remember-me cookies
// issued before a credential change stop working.
func rotateRememberToken(acct *Account) error {
	token, err := internal.NewRememberToken()
	if err != nil {
		return err
	}
	acct.RememberTokenHash = internal.HashToken(token)
	return nil
}

// notify hands n to the notifier. Failures are logged and never reach the
// caller. Wrap slow channels with notify.Async.
func (e *Engine) notify(ctx context.Context, n Notification) {
	if e.notifier == nil {
		e.logger.Debug().Str("kind", string(n.Kind)).Str("email", n.Email).Msg("no notifier configured")
		return
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.metricInc(MetricNotificationFailure)
		e.logger.Warn().Err(err).Str("kind", string(n.Kind)).Msg("notification delivery failed")
	}
}
