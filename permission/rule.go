package permission

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
)

// ErrUnknownOperation is returned by [Table.Rule] for an operation that was never declared.
var ErrUnknownOperation = errors.New("permission: unknown operation")

// Rule declares what a protected operation requires.
//
// Every entry of Permissions must be held (AND). If Roles is non-empty the
// subject's role must be one of them (OR). A rule with both lists requires both.
// The zero Rule allows any authenticated subject.
type Rule struct {
	Permissions []string `json:"permissions,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// Subject is anything that carries a role and can answer permission queries.
// The server principal and the client snapshot both implement it.
type Subject interface {
	RoleName() string
	Can(permission string) bool
}

// Evaluator applies rules. SuperRole, when set, passes every rule.
type Evaluator struct {
	SuperRole string
}

// Allow reports whether s satisfies every rule in order. Pass the rules of
// each enclosing routing layer from outermost to innermost.
func (e Evaluator) Allow(s Subject, rules ...Rule) bool {
	if s == nil {
		return false
	}
	if e.SuperRole != "" && s.RoleName() == e.SuperRole {
		return true
	}
	for _, r := range rules {
		if !r.satisfiedBy(s) {
			return false
		}
	}
	return true
}

func (r Rule) satisfiedBy(s Subject) bool {
	if len(r.Roles) > 0 && !slices.Contains(r.Roles, s.RoleName()) {
		return false
	}
	for _, p := range r.Permissions {
		if !s.Can(p) {
			return false
		}
	}
	return true
}

// Table is the declarative map from operation name to Rule. It is the single
// source of the predicates enforced by the server and mirrored by clients.
type Table struct {
	SuperRole string          `json:"super_role,omitempty"`
	Rules     map[string]Rule `json:"rules"`
}

// NewTable returns an empty table with the given super-role.
func NewTable(superRole string) *Table {
	return &Table{SuperRole: superRole, Rules: make(map[string]Rule)}
}

// Define declares the rule for operation, replacing any earlier one.
func (t *Table) Define(operation string, rule Rule) *Table {
	t.Rules[operation] = rule
	return t
}

// Rule returns the rule declared for operation.
func (t *Table) Rule(operation string) (Rule, error) {
	r, ok := t.Rules[operation]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %s", ErrUnknownOperation, operation)
	}
	return r, nil
}

// Operations returns the declared operation names, sorted.
func (t *Table) Operations() []string {
	out := make([]string, 0, len(t.Rules))
	for op := range t.Rules {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}

// Evaluator returns an evaluator configured with the table's super-role.
func (t *Table) Evaluator() Evaluator {
	return Evaluator{SuperRole: t.SuperRole}
}

// Allow checks s against the named operations, outermost first. An unknown
// operation denies.
func (t *Table) Allow(s Subject, operations ...string) bool {
	rules := make([]Rule, 0, len(operations))
	for _, op := range operations {
		r, err := t.Rule(op)
		if err != nil {
			return false
		}
		rules = append(rules, r)
	}
	return t.Evaluator().Allow(s, rules...)
}

// Validate checks that every referenced permission is registered and every
// referenced role exists.
func (t *Table) Validate(reg *Registry, roles *RoleManager) error {
	if t.SuperRole != "" {
		if _, ok := roles.Role(t.SuperRole); !ok {
			return fmt.Errorf("%w: super role %s", ErrUnknown, t.SuperRole)
		}
	}
	for _, op := range t.Operations() {
		r := t.Rules[op]
		for _, p := range r.Permissions {
			if _, ok := reg.Bit(p); !ok {
				return fmt.Errorf("%w: %s in %s", ErrUnknown, p, op)
			}
		}
		for _, role := range r.Roles {
			if _, ok := roles.Role(role); !ok {
				return fmt.Errorf("%w: role %s in %s", ErrUnknown, role, op)
			}
		}
	}
	return nil
}

// MarshalIndent renders the table for the client-facing endpoint.
func (t *Table) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// ParseTable decodes a table produced by the server.
func ParseTable(data []byte) (*Table, error) {
	t := &Table{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, err
	}
	if t.Rules == nil {
		t.Rules = make(map[string]Rule)
	}
	return t, nil
}
