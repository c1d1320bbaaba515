package authcore

import (
	"context"
	"errors"
	"net/url"

	"github.com/MrEthical07/authcore/jwt"
)

// VerifyEmail redeems a signed verification link and stamps the account's
// verification time. Links are bound to the address they were sent to, so
// changing the e-mail invalidates links already in flight. Redeeming a link
// for an already verified account succeeds without change.
func (e *Engine) VerifyEmail(ctx context.Context, token string) error {
	claims, err := e.links.Verify(jwt.PurposeVerifyEmail, token)
	if err != nil {
		e.emitAudit(ctx, AuditEmailVerified, false, "", "", ErrInvalidOrExpiredToken, nil)
		return ErrInvalidOrExpiredToken
	}

	acct, err := e.findAccount(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return err
	}
	if !claims.MatchesEmail(acct.Email) {
		e.emitAudit(ctx, AuditEmailVerified, false, acct.ID, "", ErrInvalidOrExpiredToken, nil)
		return ErrInvalidOrExpiredToken
	}
	if acct.EmailVerified() {
		return nil
	}

	now := e.now().UTC()
	acct.EmailVerifiedAt = &now
	if err := e.accounts.Update(ctx, acct); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, AuditEmailVerified, true, acct.ID, "", nil, nil)
	return nil
}

// ResendVerification sends a fresh link when email belongs to an unverified
// account. It returns nil whether or not the account exists.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return ErrValidation
	}
	acct, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		return storeErr(err)
	}
	if acct.EmailVerified() {
		return nil
	}
	return e.sendVerification(ctx, acct)
}

func (e *Engine) sendVerification(ctx context.Context, acct *Account) error {
	token, err := e.links.Sign(jwt.PurposeVerifyEmail, acct.ID, acct.Email)
	if err != nil {
		return err
	}
	e.notify(ctx, Notification{
		Kind:  NotifyVerifyEmail,
		Email: acct.Email,
		Name:  acct.Name,
		Link:  e.config.EmailVerification.LinkBaseURL + "?token=" + url.QueryEscape(token),
	})
	e.metricInc(MetricEmailVerificationSent)
	return nil
}
