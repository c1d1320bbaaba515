package permission

import "slices"

// Scope restricts which account rows a role may see in list and detail reads.
// It applies after the coarse permission check has passed.
type Scope struct {
	// VisibleRoles limits rows to accounts holding one of these roles.
	// Empty means unrestricted.
	VisibleRoles []string
	// HideSelf removes the caller's own row.
	HideSelf bool
}

// Unrestricted reports whether the scope filters nothing.
func (s Scope) Unrestricted() bool {
	return len(s.VisibleRoles) == 0 && !s.HideSelf
}

// Permits reports whether a row with targetID and targetRole is visible to callerID.
func (s Scope) Permits(callerID, targetID, targetRole string) bool {
	if s.HideSelf && callerID == targetID {
		return false
	}
	if len(s.VisibleRoles) > 0 && !slices.Contains(s.VisibleRoles, targetRole) {
		return false
	}
	return true
}

// Scopes maps a caller role to its data scope. Roles without an entry are unrestricted.
type Scopes map[string]Scope

// For returns the scope of role.
func (m Scopes) For(role string) Scope {
	return m[role]
}
