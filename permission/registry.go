package permission

import (
	"fmt"
	"sync"
)

// MaxPermissions is the number of distinct permissions a Registry can hold.
const MaxPermissions = 256

// Definition is one registered permission key.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Registry maps permission keys to bit positions within a [Set].
//
//	Docs: docs/permission.md
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[string]int
	defs      []Definition
	frozen    bool
}

// NewRegistry creates an empty permission [Registry].
func NewRegistry() *Registry {
	return &Registry{nameToBit: make(map[string]int)}
}

// Register assigns the next available bit to the named permission.
// Returns the assigned bit index. Must be called before [Registry.Freeze].
func (r *Registry) Register(name, description string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, ErrFrozen
	}
	if name == "" {
		return -1, ErrEmptyName
	}
	if _, exists := r.nameToBit[name]; exists {
		return -1, fmt.Errorf("%w: %s", ErrDuplicate, name)
	}

	next := len(r.defs)
	if next >= MaxPermissions {
		return -1, ErrLimitExceeded
	}

	r.nameToBit[name] = next
	r.defs = append(r.defs, Definition{Name: name, Description: description})
	return next, nil
}

// Bit returns the bit index for the named permission, or false if not registered.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the permission name for the given bit index, or false if unassigned.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if bit < 0 || bit >= len(r.defs) {
		return "", false
	}
	return r.defs[bit].Name, true
}

// Definitions returns every registered permission in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// SetOf builds an immutable [Set] from permission names.
func (r *Registry) SetOf(names ...string) (Set, error) {
	s := Set{reg: r}
	for _, name := range names {
		bit, ok := r.Bit(name)
		if !ok {
			return Set{}, fmt.Errorf("%w: %s", ErrUnknown, name)
		}
		s.bits[bit/64] |= 1 << (bit % 64)
	}
	return s, nil
}

// All returns a Set holding every registered permission.
func (r *Registry) All() Set {
	r.mu.RLock()
	n := len(r.defs)
	r.mu.RUnlock()

	s := Set{reg: r}
	for bit := 0; bit < n; bit++ {
		s.bits[bit/64] |= 1 << (bit % 64)
	}
	return s
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}
