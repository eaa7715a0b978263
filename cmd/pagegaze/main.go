package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nickborgers/monorepo/pagegaze/internal/browser"
	"github.com/nickborgers/monorepo/pagegaze/internal/config"
	"github.com/nickborgers/monorepo/pagegaze/internal/export"
	"github.com/nickborgers/monorepo/pagegaze/internal/health"
	"github.com/nickborgers/monorepo/pagegaze/internal/metrics"
	"github.com/nickborgers/monorepo/pagegaze/internal/outputs"
	"github.com/nickborgers/monorepo/pagegaze/internal/pageloop"
	"github.com/nickborgers/monorepo/pagegaze/internal/store"
)

var version = "0.3.0"

var (
	configFile string
	once       bool
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:     "pagegaze",
	Short:   "Page load performance telemetry from a real browser",
	Version: version,
	Long: `pagegaze opens each configured site in headless Chrome and collects
navigation timing, visit classification and browser environment signals
from inside the page, then ships them to the configured outputs.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Logging.Level = logLevel
		}
		return run(cfg)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", os.Getenv("CONFIG_FILE"), "Path to a YAML configuration file")
	rootCmd.Flags().BoolVar(&once, "once", false, "Observe every site once and exit")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(cfg *config.LoggingConfig) {
	opts := &slog.HandlerOptions{Level: outputs.ParseLogLevel(cfg.Level)}
	if cfg.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
}

func run(cfg *config.Config) error {
	printBanner()
	setupLogging(&cfg.Logging)

	log.Printf("Loaded configuration: %d sites to observe", len(cfg.Sites.List))
	log.Printf("  Inter-session delay: %v", cfg.General.InterSessionDelay)
	log.Printf("  Immediate upload: %v", cfg.Collector.Immediate)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	browserCtrl, err := browser.NewController(&cfg.Browser, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create browser controller: %w", err)
	}
	defer browserCtrl.Close()
	log.Println("✓ Browser controller initialized")

	dispatcher := metrics.NewDispatcher(slog.Default())

	cache := metrics.NewReportsCache(100)
	dispatcher.RegisterOutput(cache)

	logger, err := outputs.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	dispatcher.RegisterOutput(logger)
	log.Println("✓ Signal logger enabled")

	esOutput, err := outputs.NewElasticsearchOutput(&cfg.Elasticsearch)
	if err != nil {
		return fmt.Errorf("failed to create Elasticsearch output: %w", err)
	}
	if esOutput != nil {
		dispatcher.RegisterOutput(esOutput)
		defer closeOutput("Elasticsearch output", esOutput.Close)
		log.Println("✓ Elasticsearch output enabled")
	}

	promOutput, err := outputs.NewPrometheusOutput(&cfg.Prometheus)
	if err != nil {
		return fmt.Errorf("failed to create Prometheus output: %w", err)
	}
	if promOutput != nil {
		dispatcher.RegisterOutput(promOutput)
		defer closeOutput("Prometheus exporter", promOutput.Close)
		log.Println("✓ Prometheus exporter enabled")
	}

	snmpOutput, err := outputs.NewSNMPOutput(&cfg.SNMP, cache)
	if err != nil {
		return fmt.Errorf("failed to create SNMP output: %w", err)
	}
	if snmpOutput != nil {
		dispatcher.RegisterOutput(snmpOutput)
		defer closeOutput("SNMP agent", snmpOutput.Close)
		log.Println("✓ SNMP agent enabled")
	}

	healthServer, err := health.NewServer(&health.Config{
		Enabled:       cfg.Advanced.HealthCheckEnabled,
		Port:          cfg.Advanced.HealthCheckPort,
		Path:          cfg.Advanced.HealthCheckPath,
		ListenAddress: cfg.Advanced.HealthCheckListenAddress,
	})
	if err != nil {
		return fmt.Errorf("failed to create health check server: %w", err)
	}
	defer closeOutput("Health check server", healthServer.Close)

	registry := store.NewRegistry()
	exportServer := export.NewServer(&export.Config{
		Enabled:       cfg.Advanced.ExportEnabled,
		Port:          cfg.Advanced.ExportPort,
		ListenAddress: cfg.Advanced.ExportListenAddress,
	}, registry)
	defer closeOutput("Signal export server", exportServer.Close)

	opts := []pageloop.Option{pageloop.WithVersion(version)}
	if healthServer != nil {
		opts = append(opts, pageloop.WithHealth(healthServer))
	}
	loop := pageloop.New(cfg, browserCtrl, dispatcher, registry, opts...)
	log.Printf("✓ Page loop initialized (outputs: %v)", dispatcher.Outputs())

	loopDone := make(chan error, 1)
	go func() {
		if once {
			loopDone <- loop.RunRound(ctx)
			return
		}
		loopDone <- loop.Run(ctx)
	}()

	log.Println("pagegaze started. Press Ctrl+C to stop.")

	var loopErr error
	select {
	case <-ctx.Done():
		log.Println("Received shutdown signal...")
		select {
		case loopErr = <-loopDone:
		case <-time.After(cfg.Advanced.ShutdownTimeout):
			log.Println("⚠ Shutdown timeout exceeded")
		}
	case loopErr = <-loopDone:
	}

	if loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		log.Printf("Page loop exited with error: %v", loopErr)
		if errors.Is(loopErr, pageloop.ErrTooManyChromeFailures) {
			healthServer.SetHealthy(false)
		}
		return loopErr
	}

	log.Println("Shutting down gracefully...")
	return nil
}

func closeOutput(name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		log.Printf("Error closing %s: %v", name, err)
		return
	}
	log.Printf("✓ %s closed", name)
}

func printBanner() {
	fmt.Println("╔════════════════════════════════════════════════════════════════╗")
	fmt.Println("║  pagegaze                                                      ║")
	fmt.Printf("║  Version: %-52s ║\n", version)
	fmt.Println("║  Page load telemetry from inside a real browser                ║")
	fmt.Println("╚════════════════════════════════════════════════════════════════╝")
	fmt.Println()
}
