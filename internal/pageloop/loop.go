package pageloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/nickborgers/monorepo/pagegaze/internal/browser"
	"github.com/nickborgers/monorepo/pagegaze/internal/collector"
	"github.com/nickborgers/monorepo/pagegaze/internal/config"
	"github.com/nickborgers/monorepo/pagegaze/internal/metrics"
	"github.com/nickborgers/monorepo/pagegaze/internal/models"
	"github.com/nickborgers/monorepo/pagegaze/internal/store"
)

// ErrTooManyChromeFailures stops the loop so a supervisor can restart the
// process with a fresh environment
var ErrTooManyChromeFailures = errors.New("chrome failed to start too many consecutive times")

// ErrNoSites is returned when the loop has nothing to observe
var ErrNoSites = errors.New("no sites configured")

// HealthRecorder receives session and signal outcomes
type HealthRecorder interface {
	RecordSession(success bool)
	RecordSignal(t models.SignalType)
}

type noopHealth struct{}

func (noopHealth) RecordSession(bool)              {}
func (noopHealth) RecordSignal(models.SignalType) {}

// Loop opens every configured site in turn and runs the collector inside
// each page lifecycle
type Loop struct {
	config     *config.Config
	iterator   *SiteIterator
	browser    browser.Controller
	dispatcher *metrics.Dispatcher
	registry   *store.Registry
	health     HealthRecorder
	logger     *slog.Logger
	metadata   models.ReportMetadata
	stopChan   chan struct{}

	consecutiveChromeFailures int
}

// Option customizes a Loop
type Option func(*Loop)

// WithHealth records session outcomes on h
func WithHealth(h HealthRecorder) Option {
	return func(l *Loop) {
		if h != nil {
			l.health = h
		}
	}
}

// WithLogger sets the loop logger
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithVersion stamps reports with the collector version
func WithVersion(version string) Option {
	return func(l *Loop) {
		l.metadata.Version = version
	}
}

// New creates a page loop. Stores of finished sessions are published to
// registry for re-export.
func New(cfg *config.Config, browserCtrl browser.Controller, dispatcher *metrics.Dispatcher, registry *store.Registry, opts ...Option) *Loop {
	hostname, _ := os.Hostname()

	l := &Loop{
		config:     cfg,
		iterator:   NewSiteIterator(cfg.Sites.List),
		browser:    browserCtrl,
		dispatcher: dispatcher,
		registry:   registry,
		health:     noopHealth{},
		logger:     slog.Default(),
		metadata:   models.ReportMetadata{Hostname: hostname},
		stopChan:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run observes sites forever, one page session at a time
func (l *Loop) Run(ctx context.Context) error {
	if l.iterator.Count() == 0 {
		return ErrNoSites
	}

	l.logger.Info("Starting page loop",
		"sites", l.iterator.Count(),
		"inter_session_delay", l.config.General.InterSessionDelay,
	)

	ticker := time.NewTicker(l.interSessionDelay())
	defer ticker.Stop()

	if err := l.runNext(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Page loop stopped by context")
			return ctx.Err()

		case <-l.stopChan:
			l.logger.Info("Page loop stopped by Stop() call")
			return nil

		case <-ticker.C:
			if err := l.runNext(ctx); err != nil {
				return err
			}
		}
	}
}

// RunRound observes every site once and returns
func (l *Loop) RunRound(ctx context.Context) error {
	if l.iterator.Count() == 0 {
		return ErrNoSites
	}

	l.iterator.Reset()
	for l.iterator.Rounds() == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.runNext(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) interSessionDelay() time.Duration {
	if d := l.config.General.InterSessionDelay; d > 0 {
		return d
	}
	return time.Second
}

func (l *Loop) maxChromeFailures() int {
	if n := l.config.General.MaxChromeFailures; n > 0 {
		return n
	}
	return 3
}

func (l *Loop) runNext(ctx context.Context) error {
	site, ok := l.iterator.Next()
	if !ok {
		return ErrNoSites
	}
	return l.RunSession(ctx, site)
}

// RunSession runs one page lifecycle for site. Site-level failures are
// logged and recorded; only repeated Chrome startup failures are returned.
func (l *Loop) RunSession(ctx context.Context, site models.SiteDefinition) error {
	logger := l.logger.With("site", site.GetName())
	logger.Debug("Opening page session", "url", site.URL)

	// The site timeout is the external deadline for every signal
	sessionCtx, cancel := context.WithTimeout(ctx, site.GetTimeout())
	defer cancel()

	sess, err := l.browser.OpenSession(sessionCtx, site)
	if err != nil {
		if errors.Is(err, browser.ErrChromeStartupFailure) {
			l.consecutiveChromeFailures++
			logger.Warn("Chrome failed to start",
				"consecutive_failures", l.consecutiveChromeFailures,
				"max_allowed", l.maxChromeFailures(),
			)
			if l.consecutiveChromeFailures >= l.maxChromeFailures() {
				return fmt.Errorf("%w (%d)", ErrTooManyChromeFailures, l.consecutiveChromeFailures)
			}
			return nil
		}

		logger.Error("Failed to open page session", "error", err)
		l.health.RecordSession(false)
		return nil
	}
	defer sess.Close()

	l.consecutiveChromeFailures = 0

	if err := sess.Navigate(sessionCtx); err != nil {
		logger.Error("Failed to load page", "error", err)
		l.health.RecordSession(false)
		return nil
	}

	st := store.New(logger)
	l.registry.Put(site.GetName(), st)

	sessionID := uuid.NewString()
	metadata := l.metadata
	metadata.UserAgent = sess.UserAgent()

	uploader := newSessionUploader(l.dispatcher)
	defer uploader.Close()

	upload := func(envelope models.Envelope) {
		report := &models.Report{
			Timestamp: time.Now().UTC(),
			ReportID:  uuid.NewString(),
			SessionID: sessionID,
			Site:      site.Info(),
			Envelope:  envelope,
			Metadata:  metadata,
		}
		l.health.RecordSignal(envelope.Type)
		uploader.Upload(report)
	}

	c := collector.New(sess.Environment(), st, upload, logger)
	visit := c.Init(sessionCtx, collector.Options{
		Immediate:          l.config.Collector.Immediate,
		CollectVisit:       l.config.Collector.CollectVisit,
		CollectEnvironment: l.config.Collector.CollectEnvironment,
	})

	// The load event may still be in flight once timing is stored
	if visit != nil {
		select {
		case <-visit.Done():
		case <-sessionCtx.Done():
			logger.Warn("Page load event not observed before timeout")
		}
		visit.Remove()
	}

	logger.Info("Page session finished", "session", sessionID, "signals", st.Len())
	l.health.RecordSession(true)
	return nil
}

// Stop gracefully stops the page loop
func (l *Loop) Stop() error {
	close(l.stopChan)
	return nil
}
