package authcore

import (
	"context"
	"net/mail"
	"strings"

	"github.com/google/uuid"
)

// RegisterInput carries a self-registration request.
type RegisterInput struct {
	Name         string
	Email        string
	Password     string
	Confirmation string
}

// Register creates an active, unverified account holding the default role
// and sends a verification link. It does not log the caller in: login stays
// blocked by the verification gate until the link is redeemed.
//
// Register does not throttle. Callers run Throttle(BucketRegistration) first.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*Identity, error) {
	if !e.config.Account.RegistrationEnabled {
		return nil, ErrRegistrationDisabled
	}
	name := strings.TrimSpace(in.Name)
	email, err := validEmail(in.Email)
	if err != nil || name == "" {
		return nil, ErrValidation
	}
	if err := e.checkPasswordPolicy(in.Password, in.Confirmation); err != nil {
		return nil, err
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	acct := &Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
		Role:         e.config.Account.DefaultRole,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := rotateRememberToken(acct); err != nil {
		return nil, err
	}
	if err := e.accounts.Create(ctx, acct); err != nil {
		return nil, storeErr(err)
	}

	if err := e.sendVerification(ctx, acct); err != nil {
		e.logger.Warn().Err(err).Str("account_id", acct.ID).Msg("verification link not sent")
	}
	e.metricInc(MetricRegistration)
	e.emitAudit(ctx, AuditRegistered, true, acct.ID, "", nil, nil)
	return e.identity(acct), nil
}

// Me returns the caller's identity payload.
func (e *Engine) Me(p *Principal) (*Identity, error) {
	if p == nil || p.Account == nil {
		return nil, ErrUnauthenticated
	}
	return e.identity(p.Account), nil
}

// UpdateProfile changes the caller's name and e-mail. A new address clears
// the verification stamp and triggers a new verification link.
func (e *Engine) UpdateProfile(ctx context.Context, p *Principal, name, email string) (*Identity, error) {
	if p == nil || p.Account == nil {
		return nil, ErrUnauthenticated
	}
	name = strings.TrimSpace(name)
	normalized, err := validEmail(email)
	if err != nil || name == "" {
		return nil, ErrValidation
	}

	acct, err := e.findAccount(ctx, p.Account.ID)
	if err != nil {
		return nil, err
	}
	emailChanged := normalized != acct.Email
	acct.Name = name
	acct.UpdatedAt = e.now().UTC()
	if emailChanged {
		acct.Email = normalized
		acct.EmailVerifiedAt = nil
	}
	if err := e.accounts.Update(ctx, acct); err != nil {
		return nil, storeErr(err)
	}
	p.Account = acct

	if emailChanged {
		if err := e.sendVerification(ctx, acct); err != nil {
			e.logger.Warn().Err(err).Str("account_id", acct.ID).Msg("verification link not sent")
		}
	}
	e.emitAudit(ctx, AuditProfileUpdated, true, acct.ID, p.sessionID(), nil, func() map[string]string {
		if emailChanged {
			return map[string]string{"email_changed": "true"}
		}
		return nil
	})
	return e.identity(acct), nil
}

// ChangePassword re-verifies the current password, then replaces the hash
// and rotates the remember token. Other sessions are kept; see
// LogoutOtherSessions.
func (e *Engine) ChangePassword(ctx context.Context, p *Principal, current, next, confirmation string) error {
	if p == nil || p.Account == nil {
		return ErrUnauthenticated
	}
	acct, err := e.findAccount(ctx, p.Account.ID)
	if err != nil {
		return err
	}
	if ok, _ := e.hasher.Verify(current, acct.PasswordHash); !ok {
		e.emitAudit(ctx, AuditPasswordChanged, false, acct.ID, p.sessionID(), ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}
	if err := e.checkPasswordPolicy(next, confirmation); err != nil {
		return err
	}

	hash, err := e.hasher.Hash(next)
	if err != nil {
		return err
	}
	acct.PasswordHash = hash
	acct.UpdatedAt = e.now().UTC()
	if err := rotateRememberToken(acct); err != nil {
		return err
	}
	if err := e.accounts.Update(ctx, acct); err != nil {
		return storeErr(err)
	}
	p.Account = acct

	e.metricInc(MetricPasswordChanged)
	e.emitAudit(ctx, AuditPasswordChanged, true, acct.ID, p.sessionID(), nil, nil)
	return nil
}

func validEmail(raw string) (string, error) {
	email := NormalizeEmail(raw)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrValidation
	}
	return email, nil
}
