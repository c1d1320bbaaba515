package permission

import (
	"fmt"
	"sort"
	"sync"
)

// Role is a named role with a display label and its resolved permissions.
type Role struct {
	Name        string
	Label       string
	Permissions Set
}

// RoleManager holds the role catalogue. Roles are registered during
// initialization and the manager is frozen before serving requests.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]Role
	frozen bool
}

// NewRoleManager creates a role manager resolving permissions through registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]Role),
	}
}

// RegisterRole adds a role. Every permission name must already be registered.
func (rm *RoleManager) RegisterRole(name, label string, permissionNames []string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return ErrFrozen
	}
	if name == "" {
		return ErrEmptyName
	}
	if _, exists := rm.roles[name]; exists {
		return fmt.Errorf("%w: role %s", ErrDuplicate, name)
	}

	set, err := rm.registry.SetOf(permissionNames...)
	if err != nil {
		return err
	}
	if label == "" {
		label = name
	}

	rm.roles[name] = Role{Name: name, Label: label, Permissions: set}
	return nil
}

/*
====================================
LOOKUP
*/

// Role returns the named role.
func (rm *RoleManager) Role(name string) (Role, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	r, ok := rm.roles[name]
	return r, ok
}

// Permissions returns the permission set of the named role, or the empty set.
func (rm *RoleManager) Permissions(name string) Set {
	r, _ := rm.Role(name)
	return r.Permissions
}

// Roles returns every role sorted by name.
func (rm *RoleManager) Roles() []Role {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]Role, 0, len(rm.roles))
	for _, r := range rm.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

/*
====================================
FREEZE
*/

// Freeze prevents further role registration.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// Count returns the number of registered roles.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}

// RoleName implements [Subject].
func (r Role) RoleName() string { return r.Name }

// Can implements [Subject].
func (r Role) Can(permission string) bool { return r.Permissions.Has(permission) }
