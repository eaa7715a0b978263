package outputs

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nickborgers/monorepo/pagegaze/internal/config"
	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// PrometheusOutput exposes the latest page signals via an HTTP endpoint
type PrometheusOutput struct {
	config   *config.PrometheusConfig
	registry *prometheus.Registry
	server   *http.Server

	signalsTotal     *prometheus.CounterVec
	visitsTotal      *prometheus.CounterVec
	navigationPhase  *prometheus.GaugeVec
	loadHistogram    *prometheus.HistogramVec
	lastSignalTime   *prometheus.GaugeVec
	environmentsSeen *prometheus.CounterVec
}

// NewPrometheusOutput creates and starts a Prometheus exporter, or returns
// nil when disabled
func NewPrometheusOutput(cfg *config.PrometheusConfig) (*PrometheusOutput, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	p := newPrometheusMetrics(cfg)

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, p.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.Port)
	p.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("Starting Prometheus exporter on %s%s", addr, cfg.Path)
		if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Prometheus server error: %v", err)
		}
	}()

	return p, nil
}

// newPrometheusMetrics registers the collectors on a private registry
func newPrometheusMetrics(cfg *config.PrometheusConfig) *PrometheusOutput {
	p := &PrometheusOutput{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}

	p.signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagegaze_signals_total",
			Help: "Signals uploaded, by site and signal type",
		},
		[]string{"site", "type"},
	)

	p.visitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagegaze_visits_total",
			Help: "Page visits, by site and visit type",
		},
		[]string{"site", "visit_type"},
	)

	p.navigationPhase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pagegaze_navigation_phase_ms",
			Help: "Duration of each navigation phase of the most recent page load in milliseconds",
		},
		[]string{"site", "phase"},
	)

	buckets := cfg.LoadBuckets
	if len(buckets) == 0 {
		buckets = []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000}
	}

	p.loadHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagegaze_page_load_ms",
			Help:    "Histogram of full page load time (fetch start to load event) in milliseconds",
			Buckets: buckets,
		},
		[]string{"site"},
	)

	p.lastSignalTime = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pagegaze_last_signal_timestamp_seconds",
			Help: "Unix timestamp of the last uploaded signal",
		},
		[]string{"site", "type"},
	)

	p.environmentsSeen = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagegaze_environments_total",
			Help: "Page environments observed, by browser and operating system",
		},
		[]string{"browser", "os"},
	)

	p.registry.MustRegister(
		p.signalsTotal,
		p.visitsTotal,
		p.navigationPhase,
		p.loadHistogram,
		p.lastSignalTime,
		p.environmentsSeen,
	)

	if cfg.IncludeGoMetrics {
		p.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return p
}

// Handler serves the exporter's registry
func (p *PrometheusOutput) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Write updates the metrics from one report
func (p *PrometheusOutput) Write(report *models.Report) error {
	if p == nil {
		return nil
	}

	site := report.SiteName()
	signalType := string(report.Envelope.Type)

	p.signalsTotal.WithLabelValues(site, signalType).Inc()
	p.lastSignalTime.WithLabelValues(site, signalType).Set(float64(report.Timestamp.Unix()))

	switch v := report.Envelope.Value.(type) {
	case models.NavigationMetrics:
		for phase, ms := range v.Phases() {
			p.navigationPhase.WithLabelValues(site, phase).Set(ms)
		}
		p.loadHistogram.WithLabelValues(site).Observe(v.Load)
	case models.VisitInfo:
		p.visitsTotal.WithLabelValues(site, string(v.Type)).Inc()
	case models.EnvInfo:
		p.environmentsSeen.WithLabelValues(v.Browser.Type, v.OS.Type).Inc()
	}

	return nil
}

// Name returns the output module name
func (p *PrometheusOutput) Name() string {
	return "prometheus"
}

// Close shuts down the HTTP server
func (p *PrometheusOutput) Close() error {
	if p == nil || p.server == nil {
		return nil
	}

	log.Println("Shutting down Prometheus exporter...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return p.server.Shutdown(ctx)
}
