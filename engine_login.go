package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/session"
)

// LoginInput carries one login attempt.
type LoginInput struct {
	Email    string
	Password string
	Remember bool
	// PriorSessionID is the session cookie presented with the attempt, if
	// any. It never survives the attempt: it is destroyed on every gate
	// failure and replaced by a fresh identifier on success.
	PriorSessionID string
}

// Login checks credentials and then, in order, the activation gate, the
// e-mail verification gate and the second-factor gate.
//
// Unknown e-mail and wrong password both fail with ErrInvalidCredentials and
// cost one hash comparison each. A disabled account fails with
// ErrAccountDisabled and an unverified one with ErrEmailNotVerified; neither
// leaves a session behind. An account with a confirmed second factor gets a
// pending session and RequiresSecondFactor, with no identity payload.
// Otherwise the login completes and the result carries the identity.
//
// Login does not throttle. Callers run Throttle(BucketLogin) first.
func (e *Engine) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		e.loginFailed(ctx, "", "empty_credentials", ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	acct, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			return nil, storeErr(err)
		}
		_, _ = e.hasher.Verify(in.Password, e.dummyHash)
		e.loginFailed(ctx, "", "unknown_email", ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(in.Password, acct.PasswordHash)
	if err != nil {
		e.logger.Error().Err(err).Str("account_id", acct.ID).Msg("stored password hash unreadable")
	}
	if !ok {
		e.loginFailed(ctx, acct.ID, "password_mismatch", ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	if gateErr := loginGate(acct); gateErr != nil {
		e.discardSession(ctx, in.PriorSessionID)
		switch {
		case errors.Is(gateErr, ErrAccountDisabled):
			e.metricInc(MetricLoginDisabled)
		case errors.Is(gateErr, ErrEmailNotVerified):
			e.metricInc(MetricLoginUnverified)
		}
		e.loginFailed(ctx, acct.ID, "gate", gateErr)
		return nil, gateErr
	}

	e.rehashOnLogin(ctx, acct, in.Password)

	if acct.TwoFactorEnabled() {
		e.discardSession(ctx, in.PriorSessionID)
		sess, err := e.newSession(ctx, acct, true, false, in.Remember)
		if err != nil {
			return nil, err
		}
		if err := e.sessions.Save(ctx, sess); err != nil {
			return nil, sessionErr(err)
		}
		e.metricInc(MetricLoginSecondFactorRequired)
		e.emitAudit(ctx, AuditLoginSecondFactor, true, acct.ID, sess.ID, nil, nil)
		return &LoginResult{RequiresSecondFactor: true, SessionID: sess.ID, Remember: in.Remember}, nil
	}

	e.discardSession(ctx, in.PriorSessionID)
	sess, err := e.newSession(ctx, acct, false, false, in.Remember)
	if err != nil {
		return nil, err
	}
	if err := e.sessions.Save(ctx, sess); err != nil {
		return nil, sessionErr(err)
	}
	return e.completeLogin(ctx, acct, sess)
}

// loginGate applies the activation and verification gates in order.
func loginGate(acct *Account) error {
	if !acct.Active {
		return ErrAccountDisabled
	}
	if !acct.EmailVerified() {
		return ErrEmailNotVerified
	}
	return nil
}

// VerifySecondFactor completes a login with a one-time code.
//
// The session must be pending, or established but not yet verified for an
// account whose factor was confirmed after the session began. A wrong code
// fails with ErrInvalidSecondFactorCode and leaves the session untouched.
// On success the session is moved to a new identifier and flagged verified;
// other sessions of the account are not affected.
func (e *Engine) VerifySecondFactor(ctx context.Context, sessionID, code string) (*LoginResult, error) {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNoPendingLogin
		}
		return nil, sessionErr(err)
	}
	if sess.SecondFactorVerified {
		return nil, ErrNoPendingLogin
	}

	acct, err := e.findAccount(ctx, sess.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.discardSession(ctx, sess.ID)
			return nil, ErrNoPendingLogin
		}
		return nil, err
	}
	if !acct.TwoFactorEnabled() {
		return nil, ErrNoPendingLogin
	}
	if gateErr := loginGate(acct); gateErr != nil {
		e.discardSession(ctx, sess.ID)
		return nil, gateErr
	}

	secret, err := e.openSecret(acct)
	if err != nil {
		return nil, err
	}
	ok, err := e.totp.Verify(secret, code, e.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !ok {
		e.metricInc(MetricSecondFactorFailure)
		e.emitAudit(ctx, AuditSecondFactorFailure, false, acct.ID, sess.ID, ErrInvalidSecondFactorCode, nil)
		return nil, ErrInvalidSecondFactorCode
	}

	next, err := e.newSession(ctx, acct, false, true, sess.Remember)
	if err != nil {
		return nil, err
	}
	if !sess.Pending {
		// An established session keeps its absolute lifetime.
		next.CreatedAt = sess.CreatedAt
		next.ExpiresAt = sess.ExpiresAt
	}
	if err := e.sessions.Regenerate(ctx, sess.ID, next); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNoPendingLogin
		}
		return nil, sessionErr(err)
	}
	e.metricInc(MetricSecondFactorSuccess)
	e.metricInc(MetricSessionRegenerated)
	e.emitAudit(ctx, AuditSecondFactorSuccess, true, acct.ID, next.ID, nil, nil)

	return e.completeLogin(ctx, acct, next)
}

// completeLogin stamps the last login and builds the result for an
// established session that has already been persisted under a fresh
// identifier.
func (e *Engine) completeLogin(ctx context.Context, acct *Account, sess *session.Session) (*LoginResult, error) {
	now := e.now().UTC()
	acct.LastLoginAt = &now
	acct.LastLoginIP = ClientIPFromContext(ctx)
	if err := e.accounts.Update(ctx, acct); err != nil {
		e.logger.Warn().Err(err).Str("account_id", acct.ID).Msg("last login stamp failed")
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, AuditLoginSuccess, true, acct.ID, sess.ID, nil, nil)

	return &LoginResult{
		SessionID: sess.ID,
		Remember:  sess.Remember,
		Identity:  e.identity(acct),
	}, nil
}

// Logout destroys the given session only. Unknown sessions are ignored.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		return sessionErr(err)
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, AuditLogout, true, "", sessionID, nil, nil)
	return nil
}

// LogoutOtherSessions re-verifies the password and destroys every session of
// the caller's account except the current one. The remember token is
// rotated so remember-me cookies held elsewhere stop working.
func (e *Engine) LogoutOtherSessions(ctx context.Context, p *Principal, password string) (int, error) {
	if p == nil || p.Account == nil {
		return 0, ErrUnauthenticated
	}
	acct, err := e.findAccount(ctx, p.Account.ID)
	if err != nil {
		return 0, err
	}
	if ok, _ := e.hasher.Verify(password, acct.PasswordHash); !ok {
		e.emitAudit(ctx, AuditLogoutOthers, false, acct.ID, p.sessionID(), ErrInvalidCredentials, nil)
		return 0, ErrInvalidCredentials
	}

	removed, err := e.sessions.DeleteAllForAccount(ctx, acct.ID, p.sessionID())
	if err != nil {
		return 0, sessionErr(err)
	}
	if err := rotateRememberToken(acct); err != nil {
		return removed, err
	}
	if err := e.accounts.Update(ctx, acct); err != nil {
		return removed, storeErr(err)
	}

	e.metricInc(MetricLogoutOthers)
	e.emitAudit(ctx, AuditLogoutOthers, true, acct.ID, p.sessionID(), nil, func() map[string]string {
		return map[string]string{"removed": fmt.Sprint(removed)}
	})
	return removed, nil
}

/*
====================================
REQUEST AUTHENTICATION
====================================
*/

// Authenticate resolves a session cookie into a Principal and slides the
// idle expiry. It does not apply the activation or second-factor gates; see
// EnsureActive and RequireSecondFactor.
func (e *Engine) Authenticate(ctx context.Context, sessionID string) (*Principal, error) {
	if sessionID == "" {
		return nil, ErrUnauthenticated
	}
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, sessionErr(err)
	}
	acct, err := e.findAccount(ctx, sess.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.discardSession(ctx, sess.ID)
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	role, ok := e.roles.Role(acct.Role)
	if !ok {
		e.logger.Warn().Str("account_id", acct.ID).Str("role", acct.Role).Msg("account holds an unknown role")
	}
	return &Principal{Account: acct, Session: sess, Role: role}, nil
}

// EnsureActive logs out a principal whose account was disabled after the
// session began.
func (e *Engine) EnsureActive(ctx context.Context, p *Principal) error {
	if p == nil || p.Account == nil {
		return ErrUnauthenticated
	}
	if p.Account.Active {
		return nil
	}
	e.discardSession(ctx, p.sessionID())
	e.emitAudit(ctx, AuditDisabledSessionClosed, false, p.Account.ID, p.sessionID(), ErrAccountDisabled, nil)
	return ErrAccountDisabled
}

// RequireSecondFactor rejects a session that is still waiting for its second
// factor, and a session of an account with a confirmed factor that this
// session has not verified.
func (e *Engine) RequireSecondFactor(p *Principal) error {
	if p == nil || p.Session == nil {
		return ErrUnauthenticated
	}
	if p.Session.Pending {
		return ErrSecondFactorRequired
	}
	if p.Account.TwoFactorEnabled() && !p.Session.SecondFactorVerified {
		return ErrSecondFactorRequired
	}
	return nil
}

/*
====================================
SESSION HELPERS
====================================
*/

func (e *Engine) newSession(ctx context.Context, acct *Account, pending, verified, remember bool) (*session.Session, error) {
	id, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}
	now := e.now()
	lifetime := e.config.Session.Lifetime
	switch {
	case pending:
		lifetime = e.config.Session.PendingTTL
	case remember:
		lifetime = e.config.Session.RememberLifetime
	}
	return &session.Session{
		ID:                   id,
		AccountID:            acct.ID,
		Pending:              pending,
		SecondFactorVerified: verified,
		Remember:             remember,
		IP:                   ClientIPFromContext(ctx),
		UserAgent:            userAgentFromContext(ctx),
		SchemaVersion:        session.CurrentSchemaVersion,
		CreatedAt:            now.Unix(),
		ExpiresAt:            now.Add(lifetime).Unix(),
	}, nil
}

// discardSession removes a session on a failure path. Errors are logged only.
func (e *Engine) discardSession(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		e.logger.Warn().Err(err).Msg("session cleanup failed")
	}
}

func (e *Engine) loginFailed(ctx context.Context, accountID, reason string, err error) {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, AuditLoginFailure, false, accountID, "", err, func() map[string]string {
		return map[string]string{"reason": reason}
	})
}

// rehashOnLogin upgrades a legacy or weaker hash. It is best-effort and never
// fails the login.
func (e *Engine) rehashOnLogin(ctx context.Context, acct *Account, password string) {
	if !e.config.Password.UpgradeOnLogin || !e.hasher.NeedsRehash(acct.PasswordHash) {
		return
	}
	upgraded, err := e.hasher.Hash(password)
	if err != nil {
		e.logger.Warn().Err(err).Msg("password rehash failed")
		return
	}
	acct.PasswordHash = upgraded
	if err := e.accounts.Update(ctx, acct); err != nil {
		e.logger.Warn().Err(err).Str("account_id", acct.ID).Msg("password rehash update failed")
		return
	}
	e.metricInc(MetricPasswordRehashed)
}
