package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterRequiresVerificationBeforeLogin(t *testing.T) {
	f := newEngineFixture(t, nil)
	ctx := context.Background()

	id, err := f.engine.Register(ctx, RegisterInput{
		Name: "Ana", Email: " Ana@Example.com", Password: "P1-password", Confirmation: "P1-password",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if id.Email != "ana@example.com" || id.RoleName != "user" || id.EmailVerified || !id.Active {
		t.Fatalf("unexpected identity: %+v", id)
	}

	_, err = f.engine.Login(ctx, LoginInput{Email: "ana@example.com", Password: "P1-password"})
	if !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("expected ErrEmailNotVerified, got %v", err)
	}

	token := linkParam(t, f.notifier.last(t, NotifyVerifyEmail).Link, "token")
	if err := f.engine.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	if err := f.engine.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("second VerifyEmail must be a no-op, got %v", err)
	}

	res := f.login(t, "ana@example.com", "P1-password")
	if res.Identity == nil || !res.Identity.EmailVerified {
		t.Fatalf("login after verification: %+v", res)
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.seed(t, "taken@example.com", "P1-password", "user")
	ctx := context.Background()

	cases := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"duplicate", RegisterInput{Name: "X", Email: "TAKEN@example.com", Password: "P1-password", Confirmation: "P1-password"}, ErrEmailTaken},
		{"bad email", RegisterInput{Name: "X", Email: "not-an-email", Password: "P1-password", Confirmation: "P1-password"}, ErrValidation},
		{"blank name", RegisterInput{Name: "  ", Email: "x@example.com", Password: "P1-password", Confirmation: "P1-password"}, ErrValidation},
		{"short password", RegisterInput{Name: "X", Email: "x@example.com", Password: "short", Confirmation: "short"}, ErrPasswordPolicy},
		{"confirmation", RegisterInput{Name: "X", Email: "x@example.com", Password: "P1-password", Confirmation: "P2-password"}, ErrPasswordConfirmation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.engine.Register(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRegisterDisabled(t *testing.T) {
	f := newEngineFixture(t, func(b *Builder) {
		cfg := testConfig()
		cfg.Account.RegistrationEnabled = false
		b.WithConfig(cfg)
	})
	_, err := f.engine.Register(context.Background(), RegisterInput{
		Name: "X", Email: "x@example.com", Password: "P1-password", Confirmation: "P1-password",
	})
	if !errors.Is(err, ErrRegistrationDisabled) {
		t.Fatalf("expected ErrRegistrationDisabled, got %v", err)
	}
}

func TestVerifyEmailRejectsTamperedToken(t *testing.T) {
	f := newEngineFixture(t, nil)
	if err := f.engine.VerifyEmail(context.Background(), "not-a-token"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken, got %v", err)
	}
}

func TestUpdateProfileEmailChangeInvalidatesLinks(t *testing.T) {
	f := newEngineFixture(t, nil)
	acct := f.seed(t, "a@example.com", "P1-password", "user", func(a *Account) { a.EmailVerifiedAt = nil })
	ctx := context.Background()

	if err := f.engine.ResendVerification(ctx, "a@example.com"); err != nil {
		t.Fatalf("ResendVerification failed: %v", err)
	}
	oldToken := linkParam(t, f.notifier.last(t, NotifyVerifyEmail).Link, "token")

	// Profile edits do not require a verified address.
	stored := f.accounts.get(t, acct.ID)
	p := &Principal{Account: stored}
	id, err := f.engine.UpdateProfile(ctx, p, "Renamed", "new@example.com")
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if id.Email != "new@example.com" || id.Name != "Renamed" || id.EmailVerified {
		t.Fatalf("unexpected identity: %+v", id)
	}

	if err := f.engine.VerifyEmail(ctx, oldToken); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("link for the old address must fail, got %v", err)
	}
	msg := f.notifier.last(t, NotifyVerifyEmail)
	if msg.Email != "new@example.com" {
		t.Fatalf("new link sent to %q", msg.Email)
	}
	if err := f.engine.VerifyEmail(ctx, linkParam(t, msg.Link, "token")); err != nil {
		t.Fatalf("VerifyEmail for new address failed: %v", err)
	}
	if !f.accounts.get(t, acct.ID).EmailVerified() {
		t.Fatal("new address not verified")
	}
}

func TestUpdateProfileKeepsVerificationForSameEmail(t *testing.T) {
	f := newEngineFixture(t, nil)
	acct := f.seed(t, "a@example.com", "P1-password", "user")
	p := f.principal(t, f.login(t, "a@example.com", "P1-password").SessionID)

	if _, err := f.engine.UpdateProfile(context.Background(), p, "New Name", "A@example.com"); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if !f.accounts.get(t, acct.ID).EmailVerified() {
		t.Fatal("unchanged address lost its verification")
	}
	if f.notifier.count(NotifyVerifyEmail) != 0 {
		t.Fatal("no link expected for an unchanged address")
	}
}

func TestUpdateProfileDuplicateEmail(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.seed(t, "a@example.com", "P1-password", "user")
	f.seed(t, "b@example.com", "P1-password", "user")
	p := f.principal(t, f.login(t, "a@example.com", "P1-password").SessionID)

	if _, err := f.engine.UpdateProfile(context.Background(), p, "A", "b@example.com"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestResendVerificationIsSilent(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.seed(t, "verified@example.com", "P1-password", "user")
	ctx := context.Background()

	if err := f.engine.ResendVerification(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("unknown e-mail: %v", err)
	}
	if err := f.engine.ResendVerification(ctx, "verified@example.com"); err != nil {
		t.Fatalf("verified e-mail: %v", err)
	}
	if n := f.notifier.count(NotifyVerifyEmail); n != 0 {
		t.Fatalf("expected no links, got %d", n)
	}
}

func TestChangePassword(t *testing.T) {
	f := newEngineFixture(t, nil)
	acct := f.seed(t, "a@example.com", "P1-password", "user")
	ctx := context.Background()
	current := f.login(t, "a@example.com", "P1-password").SessionID
	other := f.login(t, "a@example.com", "P1-password").SessionID
	p := f.principal(t, current)
	before := f.accounts.get(t, acct.ID).RememberTokenHash

	if err := f.engine.ChangePassword(ctx, p, "wrong-password", "N3w-password", "N3w-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := f.engine.ChangePassword(ctx, p, "P1-password", "N3w-password", "mismatch-1"); !errors.Is(err, ErrPasswordConfirmation) {
		t.Fatalf("expected ErrPasswordConfirmation, got %v", err)
	}
	if err := f.engine.ChangePassword(ctx, p, "P1-password", "N3w-password", "N3w-password"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	if f.accounts.get(t, acct.ID).RememberTokenHash == before {
		t.Fatal("remember token not rotated")
	}
	f.principal(t, other)
	f.login(t, "a@example.com", "N3w-password")
}

func TestMeNeverCarriesSecrets(t *testing.T) {
	f := newEngineFixture(t, nil)
	var secret string
	f.seed(t, "admin@example.com", "P1-password", "admin", f.withTwoFactor(t, &secret))
	pending := f.login(t, "admin@example.com", "P1-password")
	done, err := f.engine.VerifySecondFactor(context.Background(), pending.SessionID, f.code(t, secret))
	if err != nil {
		t.Fatalf("VerifySecondFactor failed: %v", err)
	}

	id, err := f.engine.Me(f.principal(t, done.SessionID))
	if err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if id.Role != "Administrador" || !id.TwoFactorEnabled || len(id.Permissions) != 6 {
		t.Fatalf("unexpected identity: %+v", id)
	}
}
