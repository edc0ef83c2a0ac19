package table

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks the full ids of known sessions so short ids can be
// resolved by prefix match. It is an owned component with an explicit
// lifecycle: populated on creation/discovery, evicted when a session
// completes, cleared wholesale on cache reset.
type Registry struct {
	mu    sync.RWMutex
	known map[uuid.UUID]string // id -> normalized full id
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{known: make(map[uuid.UUID]string)}
}

// Add registers a session id for short-id resolution.
func (r *Registry) Add(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.known[id] = normalizeID(id.String())
}

// Remove evicts a session id, typically when the session completes.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.known, id)
}

// Clear drops every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.known = make(map[uuid.UUID]string)
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.known)
}

// Resolve matches a short id (or a full id) against known sessions. The
// match is case-insensitive and ignores separator characters, so "AB12CD",
// "ab12cd" and "ab-12cd" all resolve the same session.
func (r *Registry) Resolve(shortOrFull string) (uuid.UUID, bool) {
	needle := normalizeID(shortOrFull)
	if needle == "" {
		return uuid.Nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, norm := range r.known {
		if strings.HasPrefix(norm, needle) {
			return id, true
		}
	}
	return uuid.Nil, false
}

func normalizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "-", "")
	return strings.TrimSpace(s)
}
