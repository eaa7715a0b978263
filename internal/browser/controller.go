package browser

import (
	"context"
	"log/slog"

	"github.com/nickborgers/monorepo/pagegaze/internal/config"
	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// Controller opens browser sessions for page observation
type Controller interface {
	OpenSession(ctx context.Context, site models.SiteDefinition) (Session, error)
	Close() error
}

// Session is one page lifecycle in a fresh browser tab
type Session interface {
	// Environment is the page surface the collector runs against
	Environment() Environment

	// Navigate loads the site in the tab
	Navigate(ctx context.Context) error

	// UserAgent reports the configured user agent
	UserAgent() string

	// Close tears down the tab and its browser process
	Close()
}

// NewController creates a new browser controller
func NewController(cfg *config.BrowserConfig, logger *slog.Logger) (Controller, error) {
	return NewControllerImpl(cfg, logger)
}
