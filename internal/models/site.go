package models

import (
	"net/url"
	"strings"
	"time"
)

// SiteDefinition represents a website whose page loads are observed
type SiteDefinition struct {
	// URL is the full URL to load (e.g., "https://www.google.com")
	URL string `yaml:"url" json:"url"`

	// Name is a short, human-readable identifier (e.g., "google")
	Name string `yaml:"name" json:"name"`

	// Category groups sites by type (e.g., "search", "social", "infrastructure")
	Category string `yaml:"category" json:"category"`

	// TimeoutSeconds bounds how long a page session may wait for its signals
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`

	// WaitForBody waits until the document body is ready before collecting
	WaitForBody bool `yaml:"wait_for_body" json:"wait_for_body"`
}

// GetTimeout returns the timeout duration for this site
func (s *SiteDefinition) GetTimeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 30 * time.Second // Default timeout
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// GetName returns the site name, deriving it from the URL host if not set
func (s *SiteDefinition) GetName() string {
	if s.Name != "" {
		return s.Name
	}
	u, err := url.Parse(s.URL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if idx := strings.Index(host, "."); idx > 0 {
		host = host[:idx]
	}
	return host
}

// Info returns the SiteInfo attached to reports for this site
func (s *SiteDefinition) Info() SiteInfo {
	return SiteInfo{
		URL:      s.URL,
		Name:     s.GetName(),
		Category: s.Category,
	}
}
