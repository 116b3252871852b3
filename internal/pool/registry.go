package pool

import (
	"fmt"
	"sort"
	"sync"

	"partybid/internal/storage"
)

// Registry holds independent pools by id.
type Registry struct {
	mu    sync.RWMutex
	pools map[string]*Pool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pools: make(map[string]*Pool)}
}

// Add registers p. Returns storage.ErrDuplicateKey if the id is taken.
func (r *Registry) Add(p *Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pools[p.ID()]; ok {
		return fmt.Errorf("pool %s: %w", p.ID(), storage.ErrDuplicateKey)
	}
	r.pools[p.ID()] = p
	return nil
}

// Get returns the pool with id. Returns storage.ErrNotFound if absent.
func (r *Registry) Get(id string) (*Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[id]
	if !ok {
		return nil, fmt.Errorf("pool %s: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

// All returns every pool ordered by id.
func (r *Registry) All() []*Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Pool, 0, len(r.pools))
	for _, p := range r.pools {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
