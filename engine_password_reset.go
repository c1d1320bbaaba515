package authcore

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"

	"github.com/MrEthical07/authcore/internal"
)

// ResetInput carries the final step of password recovery.
type ResetInput struct {
	Email        string
	Token        string
	Password     string
	Confirmation string
}

// RequestPasswordReset issues a reset token for email and sends the link.
//
// The result is identical whether or not the account exists: nil for both.
// Only a failing token store surfaces an error. Notification failures are
// logged and swallowed.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return ErrValidation
	}
	e.metricInc(MetricPasswordResetRequest)

	acct, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.emitAudit(ctx, AuditPasswordResetRequest, false, "", "", err, nil)
			return nil
		}
		return storeErr(err)
	}

	token, err := internal.NewResetToken()
	if err != nil {
		return err
	}
	expiresAt := e.now().Add(e.config.PasswordReset.TokenTTL)
	if err := e.resetTokens.Put(ctx, acct.Email, internal.HashToken(token), expiresAt); err != nil {
		return storeErr(err)
	}

	e.notify(ctx, Notification{
		Kind:  NotifyPasswordResetLink,
		Email: acct.Email,
		Name:  acct.Name,
		Link:  e.resetLink(token, acct.Email),
	})
	e.emitAudit(ctx, AuditPasswordResetRequest, true, acct.ID, "", nil, nil)
	return nil
}

// VerifyResetToken checks a reset link for display. It succeeds at most once
// per token: the first valid call sets the viewed marker and a second call
// fails with ErrTokenAlreadyViewed. The token itself stays consumable by
// ResetPassword until it expires.
func (e *Engine) VerifyResetToken(ctx context.Context, email, token string) error {
	email = NormalizeEmail(email)
	if email == "" || token == "" {
		return ErrInvalidOrExpiredToken
	}

	hash := internal.HashToken(token)
	if err := e.checkResetToken(ctx, email, hash); err != nil {
		e.metricInc(MetricPasswordResetFailure)
		return err
	}

	first, err := e.previews.MarkViewed(ctx, hash)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !first {
		e.metricInc(MetricPasswordResetPreviewRepeat)
		e.emitAudit(ctx, AuditPasswordResetPreview, false, "", "", ErrTokenAlreadyViewed, nil)
		return ErrTokenAlreadyViewed
	}

	e.metricInc(MetricPasswordResetPreview)
	e.emitAudit(ctx, AuditPasswordResetPreview, true, "", "", nil, nil)
	return nil
}

func (e *Engine) checkResetToken(ctx context.Context, email, hash string) error {
	stored, expiresAt, err := e.resetTokens.Lookup(ctx, email)
	if err != nil {
		if errors.Is(err, ErrResetTokenNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return storeErr(err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(hash)) != 1 {
		return ErrInvalidOrExpiredToken
	}
	if !e.now().Before(expiresAt) {
		return ErrInvalidOrExpiredToken
	}
	return nil
}

// ResetPassword consumes the token and replaces the password. Consumption is
// a single atomic check-and-delete in the token store, so two concurrent
// submissions of one token cannot both succeed. The viewed marker plays no
// part here.
//
// On success the remember token is rotated, every session of the account is
// destroyed and a NotifyPasswordReset notification is sent.
func (e *Engine) ResetPassword(ctx context.Context, in ResetInput) error {
	if err := e.checkPasswordPolicy(in.Password, in.Confirmation); err != nil {
		return err
	}
	email := NormalizeEmail(in.Email)
	if email == "" || in.Token == "" {
		return ErrInvalidOrExpiredToken
	}

	acct, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricPasswordResetFailure)
			return ErrInvalidOrExpiredToken
		}
		return storeErr(err)
	}

	hash := internal.HashToken(in.Token)
	consumed, err := e.resetTokens.Consume(ctx, acct.Email, hash, e.now())
	if err != nil {
		return storeErr(err)
	}
	if !consumed {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, AuditPasswordReset, false, acct.ID, "", ErrInvalidOrExpiredToken, nil)
		return ErrInvalidOrExpiredToken
	}

	newHash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return err
	}
	acct.PasswordHash = newHash
	if err := rotateRememberToken(acct); err != nil {
		return err
	}
	if err := e.accounts.Update(ctx, acct); err != nil {
		return storeErr(err)
	}

	if err := e.previews.Clear(ctx, hash); err != nil {
		e.logger.Warn().Err(err).Msg("reset preview marker cleanup failed")
	}
	if _, err := e.sessions.DeleteAllForAccount(ctx, acct.ID, ""); err != nil {
		e.logger.Warn().Err(err).Str("account_id", acct.ID).Msg("session revocation after reset failed")
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, AuditPasswordReset, true, acct.ID, "", nil, nil)
	e.notify(ctx, Notification{Kind: NotifyPasswordReset, Email: acct.Email, Name: acct.Name})
	return nil
}

func (e *Engine) resetLink(token, email string) string {
	v := url.Values{}
	v.Set("token", token)
	v.Set("email", email)
	return e.config.PasswordReset.LinkBaseURL + "?" + v.Encode()
}
