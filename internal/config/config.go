package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	General       GeneralConfig       `yaml:"general"`
	Sites         SitesConfig         `yaml:"sites"`
	Browser       BrowserConfig       `yaml:"browser"`
	Collector     CollectorConfig     `yaml:"collector"`
	Logging       LoggingConfig       `yaml:"logging"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	SNMP          SNMPConfig          `yaml:"snmp"`
	Prometheus    PrometheusConfig    `yaml:"prometheus"`
	Advanced      AdvancedConfig      `yaml:"advanced"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	InterSessionDelay time.Duration `yaml:"inter_session_delay"`
	MaxChromeFailures int           `yaml:"max_chrome_failures"`
}

// SitesConfig contains the list of sites to observe
type SitesConfig struct {
	List []models.SiteDefinition `yaml:"list"`
}

// BrowserConfig contains browser-specific settings
type BrowserConfig struct {
	Headless      bool   `yaml:"headless"`
	UserAgent     string `yaml:"user_agent"`
	WindowWidth   int    `yaml:"window_width"`
	WindowHeight  int    `yaml:"window_height"`
	DisableImages bool   `yaml:"disable_images"`
}

// CollectorConfig selects which signals each page session collects
type CollectorConfig struct {
	Immediate          bool `yaml:"immediate"`
	CollectVisit       bool `yaml:"collect_visit"`
	CollectEnvironment bool `yaml:"collect_environment"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ElasticsearchConfig contains Elasticsearch output settings
type ElasticsearchConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Endpoint      string        `yaml:"endpoint"`
	IndexPattern  string        `yaml:"index_pattern"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	APIKey        string        `yaml:"api_key"`
	BulkSize      int           `yaml:"bulk_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	TLSSkipVerify bool          `yaml:"tls_skip_verify"`
}

// SNMPConfig contains SNMP agent settings
type SNMPConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Port          int    `yaml:"port"`
	Community     string `yaml:"community"`
	ListenAddress string `yaml:"listen_address"`
	EnterpriseOID string `yaml:"enterprise_oid"`
}

// PrometheusConfig contains Prometheus exporter settings
type PrometheusConfig struct {
	Enabled          bool      `yaml:"enabled"`
	Port             int       `yaml:"port"`
	Path             string    `yaml:"path"`
	ListenAddress    string    `yaml:"listen_address"`
	IncludeGoMetrics bool      `yaml:"include_go_metrics"`
	LoadBuckets      []float64 `yaml:"load_buckets"`
}

// AdvancedConfig contains health check, export and shutdown settings
type AdvancedConfig struct {
	HealthCheckEnabled       bool          `yaml:"health_check_enabled"`
	HealthCheckPort          int           `yaml:"health_check_port"`
	HealthCheckPath          string        `yaml:"health_check_path"`
	HealthCheckListenAddress string        `yaml:"health_check_listen_address"`
	ExportEnabled            bool          `yaml:"export_enabled"`
	ExportPort               int           `yaml:"export_port"`
	ExportListenAddress      string        `yaml:"export_listen_address"`
	ShutdownTimeout          time.Duration `yaml:"shutdown_timeout"`
}

// Load loads configuration from an optional YAML file, then applies
// environment variable overrides
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	if configFile != "" {
		if err := loadFromYAML(configFile, cfg); err != nil {
			return nil, err
		}
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	if len(cfg.Sites.List) == 0 {
		cfg.Sites.List = DefaultSites()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFromYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks settings that cannot be defaulted
func (c *Config) Validate() error {
	for i, site := range c.Sites.List {
		if site.URL == "" {
			return fmt.Errorf("site %d: url is required", i)
		}
	}
	if c.Elasticsearch.Enabled && c.Elasticsearch.Endpoint == "" {
		return errors.New("elasticsearch enabled without endpoint")
	}
	return nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			InterSessionDelay: 2 * time.Second,
			MaxChromeFailures: 3,
		},
		Browser: BrowserConfig{
			Headless:     true,
			UserAgent:    "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			WindowWidth:  1920,
			WindowHeight: 1080,
		},
		Collector: CollectorConfig{
			Immediate:          true,
			CollectVisit:       true,
			CollectEnvironment: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Elasticsearch: ElasticsearchConfig{
			Enabled:       false,
			IndexPattern:  "pagegaze-%{+yyyy.MM.dd}",
			BulkSize:      50,
			FlushInterval: 10 * time.Second,
		},
		SNMP: SNMPConfig{
			Enabled:       false,
			Port:          161,
			Community:     "public",
			ListenAddress: "0.0.0.0",
			EnterpriseOID: ".1.3.6.1.4.1.99999",
		},
		Prometheus: PrometheusConfig{
			Enabled:          true,
			Port:             9090,
			Path:             "/metrics",
			ListenAddress:    "0.0.0.0",
			IncludeGoMetrics: true,
			LoadBuckets:      []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		Advanced: AdvancedConfig{
			HealthCheckEnabled:       true,
			HealthCheckPort:          8080,
			HealthCheckPath:          "/health",
			HealthCheckListenAddress: "0.0.0.0",
			ExportEnabled:            true,
			ExportPort:               8081,
			ExportListenAddress:      "0.0.0.0",
			ShutdownTimeout:          30 * time.Second,
		},
	}
}
