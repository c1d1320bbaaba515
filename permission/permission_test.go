package permission

import (
	"errors"
	"reflect"
	"testing"
)

func seeded(t *testing.T) (*Registry, *RoleManager, *Table) {
	t.Helper()
	reg := NewRegistry()
	for _, p := range []string{"users.view", "users.detail", "users.create", "users.update", "users.delete", "roles.manage"} {
		if _, err := reg.Register(p, ""); err != nil {
			t.Fatalf("register %s: %v", p, err)
		}
	}
	reg.Freeze()

	roles := NewRoleManager(reg)
	mustRole := func(name, label string, perms ...string) {
		if err := roles.RegisterRole(name, label, perms); err != nil {
			t.Fatalf("register role %s: %v", name, err)
		}
	}
	mustRole("admin", "Administrador", "users.view", "users.detail", "users.create", "users.update", "users.delete", "roles.manage")
	mustRole("moderator", "Moderador", "users.view", "users.detail")
	mustRole("user", "Usuario")
	mustRole("guest", "Invitado")
	roles.Freeze()

	table := NewTable("admin").
		Define("users.list", Rule{Permissions: []string{"users.view"}}).
		Define("users.delete", Rule{Permissions: []string{"users.delete"}}).
		Define("admin.area", Rule{Roles: []string{"admin", "moderator"}}).
		Define("strict", Rule{Permissions: []string{"users.view", "users.delete"}, Roles: []string{"moderator"}})
	if err := table.Validate(reg, roles); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return reg, roles, table
}

func role(t *testing.T, rm *RoleManager, name string) Role {
	t.Helper()
	r, ok := rm.Role(name)
	if !ok {
		t.Fatalf("role %s missing", name)
	}
	return r
}

func TestRegistryRejectsDuplicatesAndFrozen(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Register("a", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := reg.Register("a", ""); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := reg.Register("", ""); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	reg.Freeze()
	if _, err := reg.Register("b", ""); !errors.Is(err, ErrFrozen) {
		t.Fatalf("expected ErrFrozen, got %v", err)
	}
}

func TestRegistryLimit(t *testing.T) {
	reg := NewRegistry()
	for i := 0; i < MaxPermissions; i++ {
		if _, err := reg.Register(string(rune(0x4e00+i)), ""); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}
	if _, err := reg.Register("overflow", ""); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
	if got := reg.All().Len(); got != MaxPermissions {
		t.Fatalf("All().Len() = %d", got)
	}
}

func TestSetEnumeration(t *testing.T) {
	reg, roles, _ := seeded(t)

	mod := role(t, roles, "moderator")
	if got := mod.Permissions.Names(); !reflect.DeepEqual(got, []string{"users.view", "users.detail"}) {
		t.Fatalf("moderator names = %v", got)
	}
	if !mod.Permissions.HasAll("users.view", "users.detail") || mod.Permissions.Has("users.delete") {
		t.Fatal("moderator membership wrong")
	}
	if role(t, roles, "guest").Permissions.Len() != 0 {
		t.Fatal("guest must have no permissions")
	}
	if role(t, roles, "admin").Permissions.Len() != reg.Count() {
		t.Fatal("admin must hold every permission")
	}
	if _, err := reg.SetOf("nope"); !errors.Is(err, ErrUnknown) {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
}

func TestRoleRequiresRegisteredPermissions(t *testing.T) {
	reg, _, _ := seeded(t)
	rm := NewRoleManager(reg)
	if err := rm.RegisterRole("x", "", []string{"missing"}); !errors.Is(err, ErrUnknown) {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
}

func TestEvaluatorSemantics(t *testing.T) {
	_, roles, table := seeded(t)

	cases := []struct {
		role string
		op   string
		want bool
	}{
		{"admin", "users.delete", true},
		{"admin", "strict", true}, // super-role bypass
		{"moderator", "users.list", true},
		{"moderator", "users.delete", false},
		{"moderator", "admin.area", true},
		{"moderator", "strict", false}, // roles match, permissions AND fails
		{"user", "users.list", false},
		{"user", "admin.area", false},
		{"guest", "unknown.op", false},
	}
	for _, tc := range cases {
		if got := table.Allow(role(t, roles, tc.role), tc.op); got != tc.want {
			t.Errorf("%s on %s = %v, want %v", tc.role, tc.op, got, tc.want)
		}
	}
}

func TestLayeredRulesAllMustPass(t *testing.T) {
	_, roles, table := seeded(t)
	mod := role(t, roles, "moderator")

	if !table.Allow(mod, "admin.area", "users.list") {
		t.Fatal("moderator should pass admin.area then users.list")
	}
	if table.Allow(mod, "admin.area", "users.delete") {
		t.Fatal("inner layer must still be enforced")
	}
	if table.Allow(role(t, roles, "user"), "admin.area", "users.list") {
		t.Fatal("outer layer must still be enforced")
	}
}

func TestZeroRuleAllowsAnySubject(t *testing.T) {
	_, roles, _ := seeded(t)
	if !(Evaluator{}).Allow(role(t, roles, "guest"), Rule{}) {
		t.Fatal("zero rule should allow")
	}
	if (Evaluator{}).Allow(nil, Rule{}) {
		t.Fatal("nil subject must be denied")
	}
}

func TestScopePermits(t *testing.T) {
	scopes := Scopes{"moderator": {VisibleRoles: []string{"user", "guest"}, HideSelf: true}}

	mod := scopes.For("moderator")
	if !mod.Permits("m1", "u1", "user") || !mod.Permits("m1", "g1", "guest") {
		t.Fatal("moderator should see user and guest rows")
	}
	if mod.Permits("m1", "a1", "admin") || mod.Permits("m1", "m2", "moderator") {
		t.Fatal("moderator must not see admin or moderator rows")
	}
	if mod.Permits("m1", "m1", "user") {
		t.Fatal("moderator must not see own row")
	}
	if !scopes.For("admin").Unrestricted() {
		t.Fatal("admin should be unrestricted")
	}
}

func TestTableJSONRoundTrip(t *testing.T) {
	_, roles, table := seeded(t)

	data, err := table.MarshalIndent()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parsed, err := ParseTable(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.SuperRole != "admin" || !reflect.DeepEqual(parsed.Operations(), table.Operations()) {
		t.Fatalf("parsed table differs: %+v", parsed)
	}
	for _, name := range []string{"admin", "moderator", "user"} {
		r := role(t, roles, name)
		for _, op := range table.Operations() {
			if parsed.Allow(r, op) != table.Allow(r, op) {
				t.Fatalf("decision for %s on %s differs after round trip", name, op)
			}
		}
	}
}
