package catalog

import "sync"

// Registry holds the known candidates. It stands in for the external
// task/agent registry: consumers read snapshots, configuration writes.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]Candidate
	order []string
}

// NewRegistry builds a registry from an initial candidate set, preserving order.
func NewRegistry(candidates []Candidate) *Registry {
	r := &Registry{byID: make(map[string]Candidate, len(candidates))}
	for _, c := range candidates {
		r.upsertLocked(c)
	}
	return r
}

// Upsert inserts or replaces a candidate.
func (r *Registry) Upsert(c Candidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertLocked(c)
}

func (r *Registry) upsertLocked(c Candidate) {
	if _, exists := r.byID[c.ID]; !exists {
		r.order = append(r.order, c.ID)
	}
	r.byID[c.ID] = c
}

// Get returns a candidate by id.
func (r *Registry) Get(id string) (Candidate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// SetActive flips the active flag. Returns false for unknown ids.
func (r *Registry) SetActive(id string, active bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return false
	}
	c.Active = active
	r.byID[id] = c
	return true
}

// All returns every candidate in insertion order.
func (r *Registry) All() []Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Candidate, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Active returns active candidates in insertion order.
func (r *Registry) Active() []Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Candidate, 0, len(r.order))
	for _, id := range r.order {
		if c := r.byID[id]; c.Active {
			out = append(out, c)
		}
	}
	return out
}
