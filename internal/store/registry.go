package store

import (
	"sort"
	"sync"
)

// Registry keeps the store of the most recent page lifecycle per site
type Registry struct {
	mu     sync.RWMutex
	stores map[string]*Store
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		stores: make(map[string]*Store),
	}
}

// Put makes s the current store for a site, replacing the previous lifecycle
func (r *Registry) Put(site string, s *Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[site] = s
}

// Get returns the current store for a site
func (r *Registry) Get(site string) (*Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[site]
	return s, ok
}

// Sites returns the registered site names in sorted order
func (r *Registry) Sites() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sites := make([]string, 0, len(r.stores))
	for site := range r.stores {
		sites = append(sites, site)
	}
	sort.Strings(sites)
	return sites
}
