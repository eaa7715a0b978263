package pageloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickborgers/monorepo/pagegaze/internal/browser"
	"github.com/nickborgers/monorepo/pagegaze/internal/browser/browsertest"
	"github.com/nickborgers/monorepo/pagegaze/internal/config"
	"github.com/nickborgers/monorepo/pagegaze/internal/metrics"
	"github.com/nickborgers/monorepo/pagegaze/internal/models"
	"github.com/nickborgers/monorepo/pagegaze/internal/store"
)

// replayEnv fires every listener right after it registers, the way the page
// bridge replays a load event that happened before the listener existed
type replayEnv struct {
	*browsertest.Environment
}

func (e replayEnv) AddEventListener(event string, h browser.EventHandler, opts browser.ListenerOptions) (browser.ListenerID, error) {
	id, err := e.Environment.AddEventListener(event, h, opts)
	go e.Environment.Dispatch(event)
	return id, err
}

type fakeSession struct {
	env         browser.Environment
	navigateErr error
	closed      bool
}

func (s *fakeSession) Environment() browser.Environment { return s.env }
func (s *fakeSession) Navigate(context.Context) error    { return s.navigateErr }
func (s *fakeSession) UserAgent() string                 { return "pagegaze-test" }
func (s *fakeSession) Close()                            { s.closed = true }

type fakeController struct {
	mu       sync.Mutex
	opened   []string
	sessions []*fakeSession
	openErr  error
	newEnv   func() browser.Environment
	navErr   error
}

func (c *fakeController) OpenSession(_ context.Context, site models.SiteDefinition) (browser.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.opened = append(c.opened, site.GetName())
	if c.openErr != nil {
		return nil, c.openErr
	}
	s := &fakeSession{env: c.newEnv(), navigateErr: c.navErr}
	c.sessions = append(c.sessions, s)
	return s, nil
}

func (c *fakeController) Close() error { return nil }

type recordingOutput struct {
	mu      sync.Mutex
	reports []*models.Report
}

func (o *recordingOutput) Write(r *models.Report) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reports = append(o.reports, r)
	return nil
}

func (o *recordingOutput) Name() string { return "recording" }

func (o *recordingOutput) Reports() []*models.Report {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*models.Report(nil), o.reports...)
}

type recordingHealth struct {
	mu        sync.Mutex
	successes int
	failures  int
	signals   map[models.SignalType]int
}

func (h *recordingHealth) RecordSession(ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ok {
		h.successes++
	} else {
		h.failures++
	}
}

func (h *recordingHealth) RecordSignal(t models.SignalType) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.signals == nil {
		h.signals = make(map[models.SignalType]int)
	}
	h.signals[t]++
}

func loadedPage() browser.Environment {
	env := browsertest.New().
		WithSyncTiming(models.RawTiming{
			EntryType:                models.EntryTypeNavigation,
			RequestStart:             9,
			ResponseStart:            20,
			ResponseEnd:              25,
			DOMContentLoadedEventEnd: 42,
			LoadEventStart:           50,
		}).
		WithNavigationType(models.NavigationTypeNavigate)
	env.Meta = models.PageMeta{URL: "https://google.com/", Referrer: "https://example.org/"}
	return replayEnv{env}
}

type harness struct {
	loop     *Loop
	ctrl     *fakeController
	output   *recordingOutput
	health   *recordingHealth
	registry *store.Registry
}

func newHarness(sites ...models.SiteDefinition) *harness {
	cfg := config.DefaultConfig()
	cfg.Sites.List = sites
	cfg.General.InterSessionDelay = 10 * time.Millisecond

	h := &harness{
		ctrl:     &fakeController{newEnv: loadedPage},
		output:   &recordingOutput{},
		health:   &recordingHealth{},
		registry: store.NewRegistry(),
	}

	dispatcher := metrics.NewDispatcher(nil)
	dispatcher.RegisterOutput(h.output)

	h.loop = New(cfg, h.ctrl, dispatcher, h.registry, WithHealth(h.health), WithVersion("test"))
	return h
}

var google = models.SiteDefinition{URL: "https://google.com", Name: "google", Category: "search", TimeoutSeconds: 5}

func TestRunSession_UploadsEverySignal(t *testing.T) {
	h := newHarness(google)

	require.NoError(t, h.loop.RunSession(context.Background(), google))

	reports := h.output.Reports()
	require.Len(t, reports, 3)

	byType := make(map[models.SignalType]*models.Report)
	ids := make(map[string]bool)
	for _, r := range reports {
		byType[r.Envelope.Type] = r
		ids[r.ReportID] = true
		assert.Equal(t, reports[0].SessionID, r.SessionID)
		assert.Equal(t, models.SiteInfo{URL: "https://google.com", Name: "google", Category: "search"}, r.Site)
		assert.Equal(t, "pagegaze-test", r.Metadata.UserAgent)
		assert.Equal(t, "test", r.Metadata.Version)
	}
	assert.Len(t, ids, 3)

	require.Contains(t, byType, models.SignalNavigationTiming)
	metricsValue := byType[models.SignalNavigationTiming].Envelope.Value.(models.NavigationMetrics)
	assert.Equal(t, 11.0, metricsValue.TTFB)
	assert.Equal(t, 50.0, metricsValue.Load)

	require.Contains(t, byType, models.SignalVisit)
	visit := byType[models.SignalVisit].Envelope.Value.(models.VisitInfo)
	assert.Equal(t, models.VisitNormal, visit.Type)
	assert.Equal(t, "https://example.org/", visit.Origin)

	require.Contains(t, byType, models.SignalEnvironment)

	st, ok := h.registry.Get("google")
	require.True(t, ok)
	assert.Equal(t, 3, st.Len())

	assert.Equal(t, 1, h.health.successes)
	assert.Equal(t, 1, h.health.signals[models.SignalVisit])
	require.Len(t, h.ctrl.sessions, 1)
	assert.True(t, h.ctrl.sessions[0].closed)
}

func TestRunSession_DeferredTimingStaysInStore(t *testing.T) {
	h := newHarness(google)
	h.loop.config.Collector = config.CollectorConfig{Immediate: false}

	require.NoError(t, h.loop.RunSession(context.Background(), google))

	assert.Empty(t, h.output.Reports())
	st, ok := h.registry.Get("google")
	require.True(t, ok)
	_, stored := st.Get(models.SignalNavigationTiming)
	assert.True(t, stored)
}

func TestRunSession_UnsupportedPage(t *testing.T) {
	h := newHarness(google)
	h.ctrl.newEnv = func() browser.Environment { return browsertest.New() }
	h.loop.config.Collector = config.CollectorConfig{Immediate: true}

	require.NoError(t, h.loop.RunSession(context.Background(), google))

	assert.Empty(t, h.output.Reports())
	assert.Equal(t, 1, h.health.successes)
}

func TestRunSession_NavigateFailure(t *testing.T) {
	h := newHarness(google)
	h.ctrl.navErr = errors.New("navigate https://google.com (dns): net::ERR_NAME_NOT_RESOLVED")

	require.NoError(t, h.loop.RunSession(context.Background(), google))

	assert.Empty(t, h.output.Reports())
	assert.Empty(t, h.registry.Sites())
	assert.Equal(t, 1, h.health.failures)
	assert.True(t, h.ctrl.sessions[0].closed)
}

func TestRunSession_ChromeFailures(t *testing.T) {
	h := newHarness(google)
	h.ctrl.openErr = browser.ErrChromeStartupFailure

	assert.NoError(t, h.loop.RunSession(context.Background(), google))
	assert.NoError(t, h.loop.RunSession(context.Background(), google))
	err := h.loop.RunSession(context.Background(), google)
	assert.ErrorIs(t, err, ErrTooManyChromeFailures)

	// Startup failures say nothing about the site
	assert.Equal(t, 0, h.health.failures)
}

func TestRunSession_ChromeRecoveryResetsCounter(t *testing.T) {
	h := newHarness(google)

	h.ctrl.openErr = browser.ErrChromeStartupFailure
	require.NoError(t, h.loop.RunSession(context.Background(), google))
	require.NoError(t, h.loop.RunSession(context.Background(), google))

	h.ctrl.openErr = nil
	require.NoError(t, h.loop.RunSession(context.Background(), google))

	h.ctrl.openErr = browser.ErrChromeStartupFailure
	assert.NoError(t, h.loop.RunSession(context.Background(), google))
}

func TestRunRound_VisitsEverySiteOnce(t *testing.T) {
	github := models.SiteDefinition{URL: "https://github.com", TimeoutSeconds: 5}
	h := newHarness(google, github)

	require.NoError(t, h.loop.RunRound(context.Background()))

	assert.Equal(t, []string{"google", "github"}, h.ctrl.opened)
	assert.Equal(t, []string{"github", "google"}, h.registry.Sites())
}

func TestRun_NoSites(t *testing.T) {
	h := newHarness()
	assert.ErrorIs(t, h.loop.Run(context.Background()), ErrNoSites)
	assert.ErrorIs(t, h.loop.RunRound(context.Background()), ErrNoSites)
}

func TestRun_StopsOnContext(t *testing.T) {
	h := newHarness(google)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := h.loop.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	h.ctrl.mu.Lock()
	defer h.ctrl.mu.Unlock()
	assert.GreaterOrEqual(t, len(h.ctrl.opened), 2)
}

func TestRun_Stop(t *testing.T) {
	h := newHarness(google)

	done := make(chan error, 1)
	go func() { done <- h.loop.Run(context.Background()) }()

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, h.loop.Stop())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}
