// Package presence tracks which usernames are online and through which
// connections.
//
// The Registry is the only place that mutates the username <-> connection
// relation. Every mutation runs under a single mutex with short critical
// sections, and every read hands back a copy, so callers can fan out events
// from a snapshot without holding the lock.
package presence

import (
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/Tyrowin/messenger/internal/username"
)

type set map[string]struct{}

// entry holds the live connections of one username. The display name is the
// spelling used by the registration that created the entry.
type entry struct {
	name  string
	conns set
}

// binding records which username a connection registered under.
type binding struct {
	key  string
	name string
}

// Registry maps usernames to their sets of live connection ids and back.
// A username is present iff its connection set is non-empty.
type Registry struct {
	mu          sync.RWMutex
	users       map[string]*entry  // username key -> connections
	connections map[string]binding // connection id -> username
}

// Registration describes the effect of a Register call.
type Registration struct {
	// Applied is false when the username was blank and nothing changed.
	Applied bool
	// Username is the trimmed name the connection registered with.
	Username string
	// Previous is the name the connection was registered under before, if any
	// and if it differs from Username.
	Previous string
	// PreviousRemoved is true when moving the connection emptied Previous.
	PreviousRemoved bool
}

// Departure describes the effect of a Disconnect call.
type Departure struct {
	// Found is false when the connection never registered.
	Found bool
	// Username is the name the connection was registered under.
	Username string
	// FullyRemoved is true when this was the last connection of Username.
	FullyRemoved bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		users:       make(map[string]*entry),
		connections: make(map[string]binding),
	}
}

// Register binds conn to name. Blank names are ignored. Registering a
// connection that is already bound to another username moves it, so a
// connection belongs to at most one username at a time.
func (r *Registry) Register(conn, name string) Registration {
	name = username.Normalize(name)
	if name == "" || conn == "" {
		return Registration{}
	}
	key := username.Key(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	reg := Registration{Applied: true, Username: name}
	if prev, ok := r.connections[conn]; ok && !username.Equal(prev.name, name) {
		reg.Previous = prev.name
		reg.PreviousRemoved = r.detach(conn, prev.key)
	}

	r.connections[conn] = binding{key: key, name: name}
	e, ok := r.users[key]
	if !ok {
		e = &entry{name: name, conns: make(set)}
		r.users[key] = e
	}
	e.conns[conn] = struct{}{}
	return reg
}

// Disconnect removes conn. When it was the last connection of its username
// the username entry is deleted as well.
func (r *Registry) Disconnect(conn string) Departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.connections[conn]
	if !ok {
		return Departure{}
	}
	delete(r.connections, conn)
	return Departure{
		Found:        true,
		Username:     b.name,
		FullyRemoved: r.detach(conn, b.key),
	}
}

// detach removes conn from the set of key and deletes the entry once it is
// empty. Callers hold r.mu.
func (r *Registry) detach(conn, key string) bool {
	e, ok := r.users[key]
	if !ok {
		return false
	}
	delete(e.conns, conn)
	if len(e.conns) > 0 {
		return false
	}
	delete(r.users, key)
	return true
}

// ConnectionsFor returns a sorted snapshot of the connections registered
// under name. It is empty when the user is offline.
func (r *Registry) ConnectionsFor(name string) []string {
	key := username.Key(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.users[key]
	if !ok {
		return []string{}
	}
	conns := lo.Keys(e.conns)
	slices.Sort(conns)
	return conns
}

// UsernameFor returns the name conn registered with.
func (r *Registry) UsernameFor(conn string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.connections[conn]
	return b.name, ok
}

// Online reports whether name has at least one live connection.
func (r *Registry) Online(name string) bool {
	key := username.Key(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.users[key]
	return ok
}

// AllUsernames returns the roster ordered case-insensitively.
func (r *Registry) AllUsernames() []string {
	r.mu.RLock()
	entries := lo.MapToSlice(r.users, func(key string, e *entry) binding {
		return binding{key: key, name: e.name}
	})
	r.mu.RUnlock()

	slices.SortFunc(entries, func(a, b binding) int {
		if c := strings.Compare(a.key, b.key); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})
	return lo.Map(entries, func(b binding, _ int) string { return b.name })
}

// Count returns the number of online usernames.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
