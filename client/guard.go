package client

import "github.com/MrEthical07/authcore/permission"

// Decision is the outcome of a route check.
type Decision int

const (
	// Allow renders the route.
	Allow Decision = iota
	// Wait defers the decision until the bootstrap settles.
	Wait
	// RedirectLogin sends an anonymous caller to sign in.
	RedirectLogin
	// Forbidden shows the forbidden view.
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Wait:
		return "wait"
	case RedirectLogin:
		return "redirect-login"
	case Forbidden:
		return "forbidden"
	}
	return "unknown"
}

// RouteHandle declares what one routing layer requires. Operation names an
// entry of the server's table; Roles (any) and Permissions (all) add inline
// requirements. Any requirement implies RequiresAuth.
type RouteHandle struct {
	RequiresAuth bool
	Operation    string
	Roles        []string
	Permissions  []string
}

func (h RouteHandle) protected() bool {
	return h.RequiresAuth || h.Operation != "" || len(h.Roles) > 0 || len(h.Permissions) > 0
}

// Guard decides navigation from a Snapshot.
type Guard struct {
	table *permission.Table
}

// NewGuard returns a guard over table, usually fetched with
// [Client.AuthzTable]. A nil table denies every handle that names an
// operation.
func NewGuard(table *permission.Table) *Guard {
	if table == nil {
		table = permission.NewTable("")
	}
	return &Guard{table: table}
}

// Check evaluates the matched layers of a route, outermost first.
func (g *Guard) Check(s Snapshot, handles ...RouteHandle) Decision {
	protected := false
	for _, h := range handles {
		if h.protected() {
			protected = true
			break
		}
	}
	if !protected {
		return Allow
	}

	switch s.Status {
	case StatusChecking:
		return Wait
	case StatusUnauthenticated:
		return RedirectLogin
	}

	rules := make([]permission.Rule, 0, len(handles)*2)
	for _, h := range handles {
		if h.Operation != "" {
			r, err := g.table.Rule(h.Operation)
			if err != nil {
				return Forbidden
			}
			rules = append(rules, r)
		}
		if len(h.Roles) > 0 || len(h.Permissions) > 0 {
			rules = append(rules, permission.Rule{Roles: h.Roles, Permissions: h.Permissions})
		}
	}
	if !g.table.Evaluator().Allow(s, rules...) {
		return Forbidden
	}
	return Allow
}

// Can reports whether the snapshot passes the named operations. Use it to
// hide menu entries.
func (g *Guard) Can(s Snapshot, operations ...string) bool {
	if s.Status != StatusAuthenticated {
		return false
	}
	return g.table.Allow(s, operations...)
}
