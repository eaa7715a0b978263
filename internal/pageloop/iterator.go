package pageloop

import (
	"sync"

	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// SiteIterator hands out sites in round-robin order and counts completed
// rounds
type SiteIterator struct {
	sites   []models.SiteDefinition
	current int
	rounds  int
	mu      sync.Mutex
}

// NewSiteIterator creates a new site iterator over a copy of sites
func NewSiteIterator(sites []models.SiteDefinition) *SiteIterator {
	own := make([]models.SiteDefinition, len(sites))
	copy(own, sites)
	return &SiteIterator{sites: own}
}

// Next returns the next site, or false when no sites are configured
func (i *SiteIterator) Next() (models.SiteDefinition, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if len(i.sites) == 0 {
		return models.SiteDefinition{}, false
	}

	site := i.sites[i.current]
	i.current++
	if i.current == len(i.sites) {
		i.current = 0
		i.rounds++
	}
	return site, true
}

// Rounds returns how many times every site has been handed out
func (i *SiteIterator) Rounds() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.rounds
}

// Count returns the total number of sites
func (i *SiteIterator) Count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.sites)
}

// Reset restarts iteration at the first site
func (i *SiteIterator) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.current = 0
	i.rounds = 0
}
