package permission

import "math/bits"

// Set is an immutable set of permissions resolved from a [Registry].
// The zero value is the empty set.
type Set struct {
	bits [MaxPermissions / 64]uint64
	reg  *Registry
}

// Has reports whether the named permission is in the set.
func (s Set) Has(name string) bool {
	if s.reg == nil {
		return false
	}
	bit, ok := s.reg.Bit(name)
	if !ok {
		return false
	}
	return s.bits[bit/64]&(1<<(bit%64)) != 0
}

// HasAll reports whether every named permission is in the set.
// An empty list is trivially satisfied.
func (s Set) HasAll(names ...string) bool {
	for _, name := range names {
		if !s.Has(name) {
			return false
		}
	}
	return true
}

// Len returns the number of permissions in the set.
func (s Set) Len() int {
	n := 0
	for _, w := range s.bits {
		n += bits.OnesCount64(w)
	}
	return n
}

// Names returns the permission keys in registration order.
func (s Set) Names() []string {
	out := make([]string, 0, s.Len())
	if s.reg == nil {
		return out
	}
	for i, w := range s.bits {
		for w != 0 {
			low := bits.TrailingZeros64(w)
			if name, ok := s.reg.Name(i*64 + low); ok {
				out = append(out, name)
			}
			w &^= 1 << low
		}
	}
	return out
}

// Union returns a new set holding the permissions of both sets.
func (s Set) Union(other Set) Set {
	out := s
	if out.reg == nil {
		out.reg = other.reg
	}
	for i := range out.bits {
		out.bits[i] |= other.bits[i]
	}
	return out
}
