package outputs

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/nickborgers/monorepo/pagegaze/internal/config"
	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// Logger writes reports to stdout, as JSON lines or structured text
type Logger struct {
	logger *slog.Logger
	config *config.LoggingConfig

	mu  sync.Mutex
	out io.Writer
}

// NewLogger creates a report logger writing to stdout
func NewLogger(cfg *config.LoggingConfig) (*Logger, error) {
	return newLoggerTo(cfg, os.Stdout), nil
}

func newLoggerTo(cfg *config.LoggingConfig, out io.Writer) *Logger {
	// Only text format goes through slog; JSON lines are written raw
	var logger *slog.Logger
	if cfg.Format != "json" {
		logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
			Level: ParseLogLevel(cfg.Level),
		}))
	}

	return &Logger{
		logger: logger,
		config: cfg,
		out:    out,
	}
}

// Write outputs one report
func (l *Logger) Write(report *models.Report) error {
	if l.config.Format == "json" {
		data, err := json.Marshal(report)
		if err != nil {
			return err
		}
		data = append(data, '\n')

		l.mu.Lock()
		defer l.mu.Unlock()
		_, err = l.out.Write(data)
		return err
	}

	attrs := []any{
		"site", report.SiteName(),
		"session", report.SessionID,
		"signal", report.Envelope.Type,
	}
	switch v := report.Envelope.Value.(type) {
	case models.NavigationMetrics:
		attrs = append(attrs, "ttfb_ms", v.TTFB, "dom_ready_ms", v.DOMReady, "load_ms", v.Load)
	case models.VisitInfo:
		attrs = append(attrs, "visit", v.Type, "referrer", v.Origin)
	case models.EnvInfo:
		attrs = append(attrs, "browser", v.Browser.Type, "os", v.OS.Type, "network", v.Network)
	}

	l.logger.Info("signal", attrs...)
	return nil
}

// Name returns the output module name
func (l *Logger) Name() string {
	return "logger"
}

// ParseLogLevel converts a config level to slog.Level
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
