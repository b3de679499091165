package dbschema

import "sync"

// Registry (S) is the append-only type environment: message and enum
// declarations committed by the Loader, looked up by name during typing,
// conformance checking, and catalog table creation. Commits are atomic —
// a batch either lands in full or not at all, enforced by the Loader
// building the new map and swapping it in only on success.
type Registry struct {
	mu       sync.RWMutex
	messages map[string]MessageDecl
	enums    map[string]EnumDecl
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		messages: make(map[string]MessageDecl),
		enums:    make(map[string]EnumDecl),
	}
}

// Message looks up a message declaration by name.
func (r *Registry) Message(name string) (MessageDecl, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.messages[name]
	return m, ok
}

// Enum looks up an enum declaration by name.
func (r *Registry) Enum(name string) (EnumDecl, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.enums[name]
	return e, ok
}

// HasType reports whether name is a known message or enum, regardless of
// which.
func (r *Registry) HasType(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.messages[name]
	if ok {
		return true
	}
	_, ok = r.enums[name]
	return ok
}

// snapshot returns shallow copies of the current maps, used by the Loader
// to build a candidate next state without mutating the live registry until
// commit.
func (r *Registry) snapshot() (map[string]MessageDecl, map[string]EnumDecl) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msgs := make(map[string]MessageDecl, len(r.messages))
	for k, v := range r.messages {
		msgs[k] = v
	}
	enums := make(map[string]EnumDecl, len(r.enums))
	for k, v := range r.enums {
		enums[k] = v
	}
	return msgs, enums
}

// commit atomically replaces the registry's contents with the given maps.
func (r *Registry) commit(msgs map[string]MessageDecl, enums map[string]EnumDecl) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = msgs
	r.enums = enums
}
