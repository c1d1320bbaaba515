package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/session"
)

// EnableTwoFactor provisions a new secret for the caller, replacing any
// earlier one, and clears the confirmation. Login behavior does not change
// until ConfirmTwoFactor succeeds.
//
// The returned secret is shown once to the user; the stored copy is sealed.
func (e *Engine) EnableTwoFactor(ctx context.Context, p *Principal) (*TwoFactorSetup, error) {
	if p == nil || p.Account == nil {
		return nil, ErrUnauthenticated
	}
	acct, err := e.findAccount(ctx, p.Account.ID)
	if err != nil {
		return nil, err
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	sealed, err := e.sealer.Seal([]byte(secret), acct.ID)
	if err != nil {
		return nil, err
	}

	acct.TwoFactorSecret = sealed
	acct.TwoFactorConfirmedAt = nil
	if err := e.accounts.Update(ctx, acct); err != nil {
		return nil, storeErr(err)
	}
	p.Account = acct

	e.metricInc(MetricTwoFactorEnabled)
	e.emitAudit(ctx, AuditTwoFactorEnabled, true, acct.ID, p.sessionID(), nil, nil)

	return &TwoFactorSetup{
		Secret:     secret,
		OTPAuthURL: e.totp.ProvisionURI(secret, acct.Email),
	}, nil
}

// ConfirmTwoFactor verifies a code against the provisioned secret. On
// success the factor becomes mandatory at future logins and the current
// session is flagged verified, so the caller is not prompted again.
func (e *Engine) ConfirmTwoFactor(ctx context.Context, p *Principal, code string) error {
	if p == nil || p.Account == nil || p.Session == nil {
		return ErrUnauthenticated
	}
	acct, err := e.findAccount(ctx, p.Account.ID)
	if err != nil {
		return err
	}
	if acct.TwoFactorSecret == "" {
		return ErrSecondFactorNotProvisioned
	}

	secret, err := e.openSecret(acct)
	if err != nil {
		return err
	}
	ok, err := e.totp.Verify(secret, code, e.now())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !ok {
		e.emitAudit(ctx, AuditTwoFactorConfirmed, false, acct.ID, p.sessionID(), ErrInvalidSecondFactorCode, nil)
		return ErrInvalidSecondFactorCode
	}

	now := e.now().UTC()
	acct.TwoFactorConfirmedAt = &now
	if err := e.accounts.Update(ctx, acct); err != nil {
		return storeErr(err)
	}

	sess := *p.Session
	sess.SecondFactorVerified = true
	if err := e.sessions.Update(ctx, &sess); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrUnauthenticated
		}
		return sessionErr(err)
	}
	p.Account = acct
	p.Session = &sess

	e.metricInc(MetricTwoFactorConfirmed)
	e.emitAudit(ctx, AuditTwoFactorConfirmed, true, acct.ID, sess.ID, nil, nil)
	return nil
}

// DisableTwoFactor re-verifies the password, then clears the secret and the
// confirmation in one update. A wrong password fails with
// ErrInvalidCredentials and changes nothing.
func (e *Engine) DisableTwoFactor(ctx context.Context, p *Principal, password string) error {
	if p == nil || p.Account == nil {
		return ErrUnauthenticated
	}
	acct, err := e.findAccount(ctx, p.Account.ID)
	if err != nil {
		return err
	}
	if ok, _ := e.hasher.Verify(password, acct.PasswordHash); !ok {
		e.emitAudit(ctx, AuditTwoFactorDisabled, false, acct.ID, p.sessionID(), ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	acct.TwoFactorSecret = ""
	acct.TwoFactorConfirmedAt = nil
	if err := e.accounts.Update(ctx, acct); err != nil {
		return storeErr(err)
	}
	p.Account = acct

	e.metricInc(MetricTwoFactorDisabled)
	e.emitAudit(ctx, AuditTwoFactorDisabled, true, acct.ID, p.sessionID(), nil, nil)
	return nil
}

func (e *Engine) openSecret(acct *Account) (string, error) {
	if acct.TwoFactorSecret == "" {
		return "", ErrSecondFactorNotProvisioned
	}
	plain, err := e.sealer.Open(acct.TwoFactorSecret, acct.ID)
	if err != nil {
		e.logger.Error().Err(err).Str("account_id", acct.ID).Msg("second factor secret cannot be opened")
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return string(plain), nil
}
