package collector

import (
	"context"
	"log/slog"

	"github.com/nickborgers/monorepo/pagegaze/internal/browser"
	"github.com/nickborgers/monorepo/pagegaze/internal/envinfo"
	"github.com/nickborgers/monorepo/pagegaze/internal/models"
	"github.com/nickborgers/monorepo/pagegaze/internal/timing"
)

// EventLoad is the window event that marks a completed page load
const EventLoad = "load"

// Uploader hands an envelope to the upload sink. It must not block: it is
// called from page callbacks, so delivery happens on the sink's side.
type Uploader func(env models.Envelope)

// Store is the keyed signal store the collector writes to
type Store interface {
	Set(t models.SignalType, env models.Envelope)
	Get(t models.SignalType) (models.Envelope, bool)
}

// Options control which signals Init collects
type Options struct {
	// Immediate uploads navigation timing as soon as it is stored
	Immediate bool

	// CollectVisit arms the one-shot visit listener
	CollectVisit bool

	// CollectEnvironment uploads the page environment metadata
	CollectEnvironment bool
}

// DefaultOptions collects every signal and uploads immediately
func DefaultOptions() Options {
	return Options{
		Immediate:          true,
		CollectVisit:       true,
		CollectEnvironment: true,
	}
}

// Collector runs signal acquisition for one page lifecycle
type Collector struct {
	env    browser.Environment
	store  Store
	upload Uploader
	logger *slog.Logger
}

// New creates a collector for one page
func New(env browser.Environment, store Store, upload Uploader, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		env:    env,
		store:  store,
		upload: upload,
		logger: logger,
	}
}

// Init emits the environment signal, arms visit detection and then blocks
// on navigation timing until it is stored or ctx is done. Telemetry
// failures are logged and never returned. The armed visit listener is
// returned, or nil when visits are not collected or could not be armed.
func (c *Collector) Init(ctx context.Context, opts Options) *OneShot {
	if opts.CollectEnvironment {
		c.InitEnvironment()
	}

	var visit *OneShot
	if opts.CollectVisit {
		visit = c.InitVisit()
	}

	c.InitNavigationTiming(ctx, opts.Immediate)
	return visit
}

// InitNavigationTiming acquires navigation metrics, stores them and, when
// immediate is set, uploads them after the store write. On failure nothing
// is stored or uploaded.
func (c *Collector) InitNavigationTiming(ctx context.Context, immediate bool) {
	metrics, err := timing.AcquireNavigationMetrics(ctx, c.env)
	if err != nil {
		c.logger.Error("navigation timing unavailable",
			"strategy", timing.SelectStrategy(c.env).String(),
			"error", err,
		)
		return
	}

	envelope := models.NewEnvelope(metrics)
	c.store.Set(models.SignalNavigationTiming, envelope)

	if immediate {
		c.upload(envelope)
	}
}

// InitVisit uploads a visit signal on the first page load event
func (c *Collector) InitVisit() *OneShot {
	upload := func(envelope models.Envelope) {
		c.store.Set(envelope.Type, envelope)
		c.upload(envelope)
	}

	o, err := RunOnce(c.env, EventLoad, visitSignal(c.env), upload)
	if err != nil {
		c.logger.Error("visit detection unavailable", "error", err)
		return nil
	}
	return o
}

// InitEnvironment uploads the page environment metadata
func (c *Collector) InitEnvironment() {
	envelope := models.NewEnvelope(envinfo.Collect(c.env))
	c.store.Set(envelope.Type, envelope)
	c.upload(envelope)
}
