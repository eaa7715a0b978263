package config

import (
	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// DefaultSites returns the pages observed when none are configured
func DefaultSites() []models.SiteDefinition {
	return []models.SiteDefinition{
		{
			URL:            "https://www.google.com",
			Name:           "google",
			Category:       "search",
			TimeoutSeconds: 30,
			WaitForBody:    true,
		},
		{
			URL:            "https://github.com",
			Name:           "github",
			Category:       "development",
			TimeoutSeconds: 30,
			WaitForBody:    true,
		},
		{
			URL:            "https://www.wikipedia.org",
			Name:           "wikipedia",
			Category:       "reference",
			TimeoutSeconds: 30,
			WaitForBody:    true,
		},
		{
			URL:            "https://example.com",
			Name:           "example",
			Category:       "test",
			TimeoutSeconds: 15,
		},
	}
}
