package metrics

import (
	"sync"

	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// ReportsCache keeps the most recent reports in memory. It is registered
// as an output so every dispatched report lands here; the SNMP agent reads
// its recent-reports table from it. Contents reset on restart.
type ReportsCache struct {
	maxSize int
	reports []*models.Report
	mu      sync.RWMutex
}

// NewReportsCache creates a cache holding at most maxSize reports
func NewReportsCache(maxSize int) *ReportsCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &ReportsCache{
		maxSize: maxSize,
		reports: make([]*models.Report, 0, maxSize),
	}
}

// Add appends a report, evicting the oldest once full
func (c *ReportsCache) Add(report *models.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reports = append(c.reports, report)
	if len(c.reports) > c.maxSize {
		c.reports = c.reports[len(c.reports)-c.maxSize:]
	}
}

// Write implements Output
func (c *ReportsCache) Write(report *models.Report) error {
	c.Add(report)
	return nil
}

// Name implements Output
func (c *ReportsCache) Name() string {
	return "cache"
}

// GetLast returns up to n of the most recent reports, oldest first
func (c *ReportsCache) GetLast(n int) []*models.Report {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n > len(c.reports) {
		n = len(c.reports)
	}
	if n < 0 {
		n = 0
	}

	out := make([]*models.Report, n)
	copy(out, c.reports[len(c.reports)-n:])
	return out
}

// Count returns the current number of cached reports
func (c *ReportsCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.reports)
}

// MaxSize returns the cache capacity
func (c *ReportsCache) MaxSize() int {
	return c.maxSize
}

// Clear empties the cache
func (c *ReportsCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = make([]*models.Report, 0, c.maxSize)
}
