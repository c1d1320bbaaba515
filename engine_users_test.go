package authcore

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/authcore/permission"
)

type usersFixture struct {
	*engineFixture
	admin, moderator, user, guest *Account
}

func newUsersFixture(t *testing.T) *usersFixture {
	t.Helper()
	f := newEngineFixture(t, nil)
	return &usersFixture{
		engineFixture: f,
		admin:         f.seed(t, "admin@example.com", "P1-password", "admin"),
		moderator:     f.seed(t, "mod@example.com", "P1-password", "moderator"),
		user:          f.seed(t, "user@example.com", "P1-password", "user"),
		guest:         f.seed(t, "guest@example.com", "P1-password", "guest"),
	}
}

func (f *usersFixture) as(t *testing.T, acct *Account) *Principal {
	t.Helper()
	return f.principal(t, f.login(t, acct.Email, "P1-password").SessionID)
}

func pageIDs(p *Page) map[string]bool {
	ids := make(map[string]bool, len(p.Items))
	for _, it := range p.Items {
		ids[it.ID] = true
	}
	return ids
}

func TestListUsersAppliesScope(t *testing.T) {
	f := newUsersFixture(t)
	ctx := context.Background()

	all, err := f.engine.ListUsers(ctx, f.as(t, f.admin), UserQuery{})
	if err != nil {
		t.Fatalf("admin ListUsers failed: %v", err)
	}
	if all.Total != 4 || all.Page != 1 || all.Size != 10 {
		t.Fatalf("unexpected admin page: total=%d page=%d size=%d", all.Total, all.Page, all.Size)
	}

	scoped, err := f.engine.ListUsers(ctx, f.as(t, f.moderator), UserQuery{})
	if err != nil {
		t.Fatalf("moderator ListUsers failed: %v", err)
	}
	ids := pageIDs(scoped)
	if scoped.Total != 2 || !ids[f.user.ID] || !ids[f.guest.ID] {
		t.Fatalf("moderator must see only user and guest rows, got %v", ids)
	}

	if _, err := f.engine.ListUsers(ctx, f.as(t, f.user), UserQuery{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for user role, got %v", err)
	}
}

func TestListUsersPaging(t *testing.T) {
	f := newUsersFixture(t)
	p := f.as(t, f.admin)

	page, err := f.engine.ListUsers(context.Background(), p, UserQuery{Page: 2, PerPage: 3})
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if page.Total != 4 || len(page.Items) != 1 || page.Page != 2 || page.Size != 3 {
		t.Fatalf("unexpected page: %+v", page)
	}

	page, err = f.engine.ListUsers(context.Background(), p, UserQuery{PerPage: 1000})
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if page.Size != maxPageSize {
		t.Fatalf("page size not capped: %d", page.Size)
	}
}

func TestGetUser(t *testing.T) {
	f := newUsersFixture(t)
	ctx := context.Background()

	user := f.as(t, f.user)
	if id, err := f.engine.GetUser(ctx, user, f.user.ID); err != nil || id.ID != f.user.ID {
		t.Fatalf("self read failed: %v", err)
	}
	if _, err := f.engine.GetUser(ctx, user, f.guest.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	mod := f.as(t, f.moderator)
	if _, err := f.engine.GetUser(ctx, mod, f.guest.ID); err != nil {
		t.Fatalf("moderator read of guest failed: %v", err)
	}
	if _, err := f.engine.GetUser(ctx, mod, f.admin.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("row outside scope must be forbidden, got %v", err)
	}

	if _, err := f.engine.GetUser(ctx, f.as(t, f.admin), "missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestCreateUser(t *testing.T) {
	f := newUsersFixture(t)
	ctx := context.Background()
	admin := f.as(t, f.admin)

	id, err := f.engine.CreateUser(ctx, admin, NewUser{
		Name: "New", Email: "new@example.com", Password: "P1-password", Role: "moderator", Active: true,
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if id.RoleName != "moderator" || id.EmailVerified {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if f.notifier.last(t, NotifyVerifyEmail).Email != "new@example.com" {
		t.Fatal("verification link not sent to the new account")
	}

	if _, err := f.engine.CreateUser(ctx, admin, NewUser{Name: "X", Email: "x@example.com", Password: "P1-password", Role: "ghost"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown role must fail validation, got %v", err)
	}
	if _, err := f.engine.CreateUser(ctx, f.as(t, f.moderator), NewUser{Name: "X", Email: "x@example.com", Password: "P1-password"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("moderator has no create permission, got %v", err)
	}
}

func TestUpdateUserDeactivationRevokesSessions(t *testing.T) {
	f := newUsersFixture(t)
	ctx := context.Background()
	target := f.login(t, f.user.Email, "P1-password").SessionID

	inactive := false
	if _, err := f.engine.UpdateUser(ctx, f.as(t, f.admin), f.user.ID, UserChanges{Active: &inactive}); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if _, err := f.engine.Authenticate(ctx, target); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("deactivated account's session survived: %v", err)
	}
	if _, err := f.engine.Login(ctx, LoginInput{Email: f.user.Email, Password: "P1-password"}); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestUpdateUserPasswordRevokesSessions(t *testing.T) {
	f := newUsersFixture(t)
	ctx := context.Background()
	f.login(t, f.user.Email, "P1-password")

	pw := "N3w-password"
	if _, err := f.engine.UpdateUser(ctx, f.as(t, f.admin), f.user.ID, UserChanges{Password: &pw}); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if n := f.sessionCount(t, f.user.ID); n != 0 {
		t.Fatalf("expected no sessions, got %d", n)
	}
	f.login(t, f.user.Email, pw)
}

func TestDeleteUser(t *testing.T) {
	f := newUsersFixture(t)
	ctx := context.Background()
	admin := f.as(t, f.admin)
	f.login(t, f.guest.Email, "P1-password")

	if err := f.engine.DeleteUser(ctx, admin, f.admin.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("self-delete must be forbidden, got %v", err)
	}
	if err := f.engine.DeleteUser(ctx, admin, f.guest.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if n := f.sessionCount(t, f.guest.ID); n != 0 {
		t.Fatalf("deleted account kept %d sessions", n)
	}
	if err := f.engine.DeleteUser(ctx, admin, f.guest.ID); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if err := f.engine.DeleteUser(ctx, f.as(t, f.moderator), f.user.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("moderator has no delete permission, got %v", err)
	}
}

func TestSuperRoleProtectedFromNonSuperEditors(t *testing.T) {
	catalog := DefaultCatalog()
	catalog.Roles = append(catalog.Roles, RoleSpec{
		Name:        "editor",
		Label:       "Editor",
		Permissions: []string{PermUsersView, PermUsersDetail, PermUsersUpdate, PermUsersDelete},
	})
	f := newEngineFixture(t, func(b *Builder) { b.WithCatalog(catalog) })
	ctx := context.Background()

	admin := f.seed(t, "admin@example.com", "P1-password", "admin")
	editorAcct := f.seed(t, "editor@example.com", "P1-password", "editor")
	user := f.seed(t, "user@example.com", "P1-password", "user")
	editor := f.principal(t, f.login(t, editorAcct.Email, "P1-password").SessionID)

	name := "Hijacked"
	if _, err := f.engine.UpdateUser(ctx, editor, admin.ID, UserChanges{Name: &name}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("editor must not edit the super-role, got %v", err)
	}
	if err := f.engine.DeleteUser(ctx, editor, admin.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("editor must not delete the super-role, got %v", err)
	}
	grant := "admin"
	if _, err := f.engine.UpdateUser(ctx, editor, user.ID, UserChanges{Role: &grant}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("editor must not grant the super-role, got %v", err)
	}
	if got := f.accounts.get(t, user.ID).Role; got != "user" {
		t.Fatalf("role changed to %s", got)
	}

	if _, err := f.engine.UpdateUser(ctx, editor, user.ID, UserChanges{Name: &name}); err != nil {
		t.Fatalf("editor update of user failed: %v", err)
	}
}

func TestScopeLimitsAssignableRoles(t *testing.T) {
	catalog := DefaultCatalog()
	catalog.Roles = append(catalog.Roles, RoleSpec{
		Name:        "manager",
		Label:       "Manager",
		Permissions: []string{PermUsersView, PermUsersDetail, PermUsersCreate, PermUsersUpdate},
	})
	catalog.Scopes["manager"] = permission.Scope{VisibleRoles: []string{"user", "guest"}}
	f := newEngineFixture(t, func(b *Builder) { b.WithCatalog(catalog) })
	ctx := context.Background()

	mgrAcct := f.seed(t, "mgr@example.com", "P1-password", "manager")
	guest := f.seed(t, "guest@example.com", "P1-password", "guest")
	mgr := f.principal(t, f.login(t, mgrAcct.Email, "P1-password").SessionID)

	up := "moderator"
	if _, err := f.engine.UpdateUser(ctx, mgr, guest.ID, UserChanges{Role: &up}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("role outside scope must be forbidden, got %v", err)
	}
	ok := "user"
	if _, err := f.engine.UpdateUser(ctx, mgr, guest.ID, UserChanges{Role: &ok}); err != nil {
		t.Fatalf("promotion within scope failed: %v", err)
	}
	if _, err := f.engine.CreateUser(ctx, mgr, NewUser{Name: "M", Email: "m@example.com", Password: "P1-password", Role: "moderator"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("create with role outside scope must be forbidden, got %v", err)
	}
}

func TestAuthorizeLayeredOperations(t *testing.T) {
	f := newUsersFixture(t)
	ctx := context.Background()

	mod := f.as(t, f.moderator)
	if err := f.engine.Authorize(ctx, mod, OpAdminArea, OpUsersList); err != nil {
		t.Fatalf("moderator must pass admin area and list: %v", err)
	}
	if err := f.engine.Authorize(ctx, mod, OpAdminArea, OpUsersDelete); !errors.Is(err, ErrForbidden) {
		t.Fatalf("inner layer must reject, got %v", err)
	}
	if err := f.engine.Authorize(ctx, f.as(t, f.user), OpAdminArea); !errors.Is(err, ErrForbidden) {
		t.Fatalf("user must not enter admin area, got %v", err)
	}
	admin := f.as(t, f.admin)
	if !f.engine.Can(admin, OpUsersDelete) {
		t.Fatal("super-role must pass every declared operation")
	}
	if f.engine.Can(admin, "undefined.operation") {
		t.Fatal("undefined operations must deny")
	}
	if f.engine.MetricsSnapshot().Counters[MetricAuthorizationDenied] < 2 {
		t.Fatal("denials not counted")
	}
}
