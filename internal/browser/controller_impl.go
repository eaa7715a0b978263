package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/nickborgers/monorepo/pagegaze/internal/config"
	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// ErrChromeStartupFailure indicates Chrome failed to start (not a page issue)
var ErrChromeStartupFailure = errors.New("chrome failed to start")

// ControllerImpl is the chromedp implementation of the browser controller
type ControllerImpl struct {
	config        *config.BrowserConfig
	allocatorOpts []chromedp.ExecAllocatorOption
	logger        *slog.Logger
}

// NewControllerImpl creates a new browser controller with chromedp
func NewControllerImpl(cfg *config.BrowserConfig, logger *slog.Logger) (*ControllerImpl, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Each session gets a fresh allocator so every page load starts cold
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox, // Required for Docker
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		chromedp.Flag("log-level", "3"), // Suppress Chrome warnings
		chromedp.Flag("disable-cache", "true"),
		chromedp.Flag("disable-application-cache", "true"),
		chromedp.Flag("disk-cache-size", "0"),
	}

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}

	if cfg.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	return &ControllerImpl{
		config:        cfg,
		allocatorOpts: opts,
		logger:        logger,
	}, nil
}

// OpenSession starts a browser for the site and installs the page bridge.
// The returned session has not navigated yet.
func (c *ControllerImpl) OpenSession(ctx context.Context, site models.SiteDefinition) (Session, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.allocatorOpts...)
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		site:      site,
		userAgent: c.config.UserAgent,
		ctx:       taskCtx,
		cancel: func() {
			cancelTask()
			cancelAlloc()
		},
	}

	// Run with no actions launches the browser
	if err := chromedp.Run(taskCtx); err != nil {
		s.Close()
		if isChromeStartupFailure(err) {
			return nil, ErrChromeStartupFailure
		}
		return nil, fmt.Errorf("start browser: %w", err)
	}

	env, err := NewCDPEnvironment(taskCtx, c.logger.With("site", site.GetName()))
	if err != nil {
		s.Close()
		return nil, err
	}
	s.env = env

	return s, nil
}

// Close shuts down the browser controller
// Each session owns its browser process, so there is nothing shared to release
func (c *ControllerImpl) Close() error {
	return nil
}

type chromeSession struct {
	site      models.SiteDefinition
	userAgent string
	ctx       context.Context
	cancel    context.CancelFunc
	env       *CDPEnvironment
}

func (s *chromeSession) Environment() Environment {
	return s.env
}

func (s *chromeSession) UserAgent() string {
	return s.userAgent
}

func (s *chromeSession) Navigate(ctx context.Context) error {
	// Bound the navigation by the caller's deadline as well as the tab
	navCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(s.site.URL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if s.site.WaitForBody {
				return chromedp.WaitReady("body", chromedp.ByQuery).Do(ctx)
			}
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("navigate %s (%s): %w", s.site.URL, categorizeError(err), err)
	}
	return nil
}

func (s *chromeSession) Close() {
	s.cancel()
}

// isChromeStartupFailure detects if Chrome failed to start (not a page issue)
func isChromeStartupFailure(err error) bool {
	errStr := strings.ToLower(err.Error())

	// Chrome startup failures typically contain these phrases
	return strings.Contains(errStr, "chrome failed to start") ||
		strings.Contains(errStr, "failed to start chrome") ||
		strings.Contains(errStr, "failed to allocate") ||
		strings.Contains(errStr, "cannot start chrome") ||
		strings.Contains(errStr, "executable file not found")
}

// categorizeError determines the error type
func categorizeError(err error) string {
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "context deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "context canceled"):
		return "timeout"
	case strings.Contains(errStr, "err_name_not_resolved"):
		return "dns"
	case strings.Contains(errStr, "dns"), strings.Contains(errStr, "no such host"):
		return "dns"
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "err_connection_refused"):
		return "connection_refused"
	case strings.Contains(errStr, "tls"), strings.Contains(errStr, "err_cert"):
		return "tls"
	case strings.Contains(errStr, "timeout"):
		return "timeout"
	default:
		return "unknown"
	}
}
