// Package registry fans pushed lines out to every live session.
//
// The registry stores handles only.  Whether a handle still refers to a
// live session is decided by a Resolver backed by the owning table, so
// registry membership never keeps a dead connection around.
package registry

import (
	"switcherd/internal/session"
)

// Sender is the part of a session the registry needs.
type Sender interface {
	Send(line string) error
	Close() error
}

// Resolver looks up the live sender behind a handle.
type Resolver interface {
	Resolve(h session.Handle) (Sender, bool)
}

// ResolverFunc adapts a plain function to [Resolver].
type ResolverFunc func(h session.Handle) (Sender, bool)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(h session.Handle) (Sender, bool) { return f(h) }

// TableResolver resolves handles against a session table.
func TableResolver(t *session.Table) Resolver {
	return ResolverFunc(func(h session.Handle) (Sender, bool) {
		s, ok := t.Get(h)
		if !ok || s.Closed() {
			return nil, false
		}
		return s, true
	})
}

// Registry is the broadcast set.  Like the table it resolves against,
// it is owned by the event loop and is not safe for concurrent use.
type Registry struct {
	resolver Resolver
	handles  []session.Handle

	// OnEvict is called after a session is closed because a push to it
	// failed.
	OnEvict func(h session.Handle, err error)
}

// New returns an empty registry resolving through r.
func New(r Resolver) *Registry {
	return &Registry{resolver: r}
}

// Register adds h.  Registering the same handle twice is a no-op.
func (r *Registry) Register(h session.Handle) {
	for _, have := range r.handles {
		if have == h {
			return
		}
	}
	r.handles = append(r.handles, h)
}

// Len returns the number of stored handles, which may include sessions
// that died since the last broadcast.
func (r *Registry) Len() int { return len(r.handles) }

// Broadcast sends line to every live session in registration order and
// returns how many sends succeeded.  Dead handles are dropped; a session
// whose send fails is closed and dropped.  A failure never aborts the
// rest of the fan-out.
func (r *Registry) Broadcast(line string) int {
	delivered := 0
	kept := r.handles[:0]
	for _, h := range r.handles {
		s, ok := r.resolver.Resolve(h)
		if !ok {
			continue
		}
		if err := s.Send(line); err != nil {
			s.Close() //nolint:errcheck
			if r.OnEvict != nil {
				r.OnEvict(h, err)
			}
			continue
		}
		delivered++
		kept = append(kept, h)
	}
	clear(r.handles[len(kept):])
	r.handles = kept
	return delivered
}

// Prune drops handles that no longer resolve, without sending.
func (r *Registry) Prune() {
	kept := r.handles[:0]
	for _, h := range r.handles {
		if _, ok := r.resolver.Resolve(h); ok {
			kept = append(kept, h)
		}
	}
	clear(r.handles[len(kept):])
	r.handles = kept
}
