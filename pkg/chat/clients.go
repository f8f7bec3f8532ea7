package chat

import (
	"fmt"
	"net"
	"sync"
)

// ClientRegistry maps usernames to active sessions under a single lock.
//
// The lock protects only the registry; a returned *Session may be used
// without it because routing-relevant session fields are written only by the
// owning worker and read tolerantly by others (a send on a closed connection
// fails, which the caller logs and moves past).
type ClientRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewClientRegistry creates an empty client registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{sessions: make(map[string]*Session)}
}

// Add registers a session under its username. Fails with ErrUsernameTaken
// if an active session already claims the name; uniqueness of active
// usernames is the registry's invariant.
func (r *ClientRegistry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[s.Username]; ok && existing.Active() {
		return fmt.Errorf("%w: %q", ErrUsernameTaken, s.Username)
	}
	r.sessions[s.Username] = s
	return nil
}

// RemoveByUsername removes a session by name. Reports whether it was present.
func (r *ClientRegistry) RemoveByUsername(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[name]; !ok {
		return false
	}
	delete(r.sessions, name)
	return true
}

// RemoveByConn removes whichever session owns the given connection.
// Reports whether one was present.
func (r *ClientRegistry) RemoveByConn(conn net.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, s := range r.sessions {
		if s.conn == conn {
			delete(r.sessions, name)
			return true
		}
	}
	return false
}

// FindByUsername returns the active session for name, or nil.
func (r *ClientRegistry) FindByUsername(name string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[name]
	if !ok || !s.Active() {
		return nil
	}
	return s
}

// FindByConn returns the active session owning conn, or nil.
func (r *ClientRegistry) FindByConn(conn net.Conn) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if s.conn == conn && s.Active() {
			return s
		}
	}
	return nil
}

// Iterate calls fn for every registered session while holding the registry
// lock. Used by the shutdown broadcast; fn must not call back into the
// registry.
func (r *ClientRegistry) Iterate(fn func(*Session)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		fn(s)
	}
}

// Count returns the number of registered sessions.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
