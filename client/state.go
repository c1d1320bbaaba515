package client

import (
	"slices"
	"sync"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/permission"
)

// Status is the client's view of its session.
type Status string

const (
	StatusChecking        Status = "checking"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

// Snapshot is an immutable copy of the container state.
type Snapshot struct {
	Status   Status
	Identity *authcore.Identity
}

var _ permission.Subject = Snapshot{}

// RoleName implements permission.Subject with the role key, not its label.
func (s Snapshot) RoleName() string {
	if s.Status != StatusAuthenticated || s.Identity == nil {
		return ""
	}
	return s.Identity.RoleName
}

// Can implements permission.Subject.
func (s Snapshot) Can(perm string) bool {
	if s.Status != StatusAuthenticated || s.Identity == nil {
		return false
	}
	return slices.Contains(s.Identity.Permissions, perm)
}

// Ticket identifies the generation a request started in.
type Ticket uint64

// Container is the injected auth state of one client. The zero value is not
// usable; call NewContainer.
type Container struct {
	mu        sync.Mutex
	snap      Snapshot
	gen       uint64
	listeners map[int]func(Snapshot)
	nextID    int
}

// NewContainer returns a container in the checking state. Call Init when
// the bootstrap request starts.
func NewContainer() *Container {
	return &Container{
		snap:      Snapshot{Status: StatusChecking},
		listeners: make(map[int]func(Snapshot)),
	}
}

// Init starts a bootstrap: the state returns to checking and earlier
// tickets are invalidated.
func (c *Container) Init() Ticket {
	c.mu.Lock()
	c.gen++
	t := Ticket(c.gen)
	c.setLocked(Snapshot{Status: StatusChecking})
	return t
}

// Ticket returns the current generation for a request about to start.
func (c *Container) Ticket() Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Ticket(c.gen)
}

// SettleAuthenticated stores identity if t is still current. It reports
// whether the transition was applied.
func (c *Container) SettleAuthenticated(t Ticket, identity *authcore.Identity) bool {
	if identity == nil {
		return c.SettleUnauthenticated(t)
	}
	id := *identity
	id.Permissions = slices.Clone(identity.Permissions)

	c.mu.Lock()
	if Ticket(c.gen) != t {
		c.mu.Unlock()
		return false
	}
	c.setLocked(Snapshot{Status: StatusAuthenticated, Identity: &id})
	return true
}

// SettleUnauthenticated clears the identity if t is still current.
func (c *Container) SettleUnauthenticated(t Ticket) bool {
	c.mu.Lock()
	if Ticket(c.gen) != t {
		c.mu.Unlock()
		return false
	}
	c.setLocked(Snapshot{Status: StatusUnauthenticated})
	return true
}

// Logout discards the identity and invalidates every outstanding ticket.
func (c *Container) Logout() {
	c.mu.Lock()
	c.gen++
	c.setLocked(Snapshot{Status: StatusUnauthenticated})
}

// Reset returns to the initial checking state and invalidates every
// outstanding ticket.
func (c *Container) Reset() {
	c.mu.Lock()
	c.gen++
	c.setLocked(Snapshot{Status: StatusChecking})
}

// Snapshot returns the current state.
func (c *Container) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Subscribe registers fn for every transition. Listeners run synchronously
// after the lock is released. The returned function unregisters fn.
func (c *Container) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// setLocked must be called with mu held; it releases mu before notifying.
func (c *Container) setLocked(s Snapshot) {
	c.snap = s
	fns := make([]func(Snapshot), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
