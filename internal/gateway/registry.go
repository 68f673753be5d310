package gateway

import (
	"sync"

	"github.com/soratane/duelis-backend/internal/pkg/metrics"
)

// Registry maps player identities to their live connections on this process.
// It is created at startup, mutated only on connect and disconnect, and
// drained at shutdown; no other process ever sees its contents.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Add registers a connection under its identity and returns the connection
// it replaced, if the player was already connected here.
func (r *Registry) Add(c *Connection) *Connection {
	r.mu.Lock()
	prev := r.conns[c.id]
	r.conns[c.id] = c
	r.mu.Unlock()
	if prev == nil {
		metrics.ActiveConnections.Inc()
	}
	return prev
}

// Remove deletes the connection only if it is still the one registered for
// its identity. The check keeps a stale connection's teardown from evicting
// the replacement a reconnecting player just registered.
func (r *Registry) Remove(c *Connection) bool {
	r.mu.Lock()
	current, ok := r.conns[c.id]
	if ok && current == c {
		delete(r.conns, c.id)
	} else {
		ok = false
	}
	r.mu.Unlock()
	if ok {
		metrics.ActiveConnections.Dec()
	}
	return ok
}

func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	c, ok := r.conns[id]
	r.mu.RUnlock()
	return c, ok
}

// Send delivers a message to a locally held connection. Returns false when
// the player is not connected to this process.
func (r *Registry) Send(id string, message any) bool {
	c, ok := r.Get(id)
	if !ok {
		return false
	}
	return c.Send(message)
}

// SendRaw delivers a pre-encoded frame to a locally held connection.
func (r *Registry) SendRaw(id string, payload []byte) bool {
	c, ok := r.Get(id)
	if !ok {
		return false
	}
	return c.SendRaw(payload)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// snapshot returns the current connections so the liveness sweep can walk
// them without holding the lock across network writes.
func (r *Registry) snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// CloseAll terminates every connection. Used at shutdown; the read pumps
// handle their own deregistration.
func (r *Registry) CloseAll() {
	for _, c := range r.snapshot() {
		c.Close()
	}
}
