package core

import "sync"

// SessionRegistry maps live connection IDs to display names. It is a pure
// lookup table shared process-wide; all mutation goes through the router.
type SessionRegistry struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewSessionRegistry constructs an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{names: make(map[string]string)}
}

// Bind records the display name for a connection. Binding the same
// connection twice is a caller error and fails with ErrAlreadyBound.
func (r *SessionRegistry) Bind(id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.names[id]; exists {
		return ErrAlreadyBound
	}
	r.names[id] = name
	return nil
}

// Lookup returns the display name bound to a connection.
func (r *SessionRegistry) Lookup(id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[id]
	if !ok {
		return "", ErrNotBound
	}
	return name, nil
}

// Unbind removes the mapping. Unbinding an absent connection is a no-op,
// since disconnect cleanup may race with other cleanup paths.
func (r *SessionRegistry) Unbind(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.names, id)
}
