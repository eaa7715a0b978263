package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv(cfg *Config) error {
	// General settings
	if v := os.Getenv("INTER_SESSION_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid INTER_SESSION_DELAY: %w", err)
		}
		cfg.General.InterSessionDelay = d
	}

	if v := os.Getenv("MAX_CHROME_FAILURES"); v != "" {
		n, err := parsePositive(v)
		if err != nil {
			return fmt.Errorf("invalid MAX_CHROME_FAILURES: %w", err)
		}
		cfg.General.MaxChromeFailures = n
	}

	// Sites from comma-separated list
	if v := os.Getenv("SITES"); v != "" {
		sites, err := ParseSimpleSiteList(v)
		if err != nil {
			return fmt.Errorf("invalid SITES: %w", err)
		}
		cfg.Sites.List = sites
	}

	// Browser settings
	if v := os.Getenv("BROWSER_HEADLESS"); v != "" {
		cfg.Browser.Headless = parseBool(v)
	}

	if v := os.Getenv("BROWSER_USER_AGENT"); v != "" {
		cfg.Browser.UserAgent = v
	}

	if v := os.Getenv("BROWSER_DISABLE_IMAGES"); v != "" {
		cfg.Browser.DisableImages = parseBool(v)
	}

	// Collector
	if v := os.Getenv("COLLECT_IMMEDIATE"); v != "" {
		cfg.Collector.Immediate = parseBool(v)
	}

	if v := os.Getenv("COLLECT_VISIT"); v != "" {
		cfg.Collector.CollectVisit = parseBool(v)
	}

	if v := os.Getenv("COLLECT_ENVIRONMENT"); v != "" {
		cfg.Collector.CollectEnvironment = parseBool(v)
	}

	// Logging
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Elasticsearch
	if v := os.Getenv("ES_ENABLED"); v != "" {
		cfg.Elasticsearch.Enabled = parseBool(v)
	}

	if v := os.Getenv("ES_ENDPOINT"); v != "" {
		cfg.Elasticsearch.Endpoint = v
	}

	if v := os.Getenv("ES_INDEX_PATTERN"); v != "" {
		cfg.Elasticsearch.IndexPattern = v
	}

	if v := os.Getenv("ES_USERNAME"); v != "" {
		cfg.Elasticsearch.Username = v
	}

	if v := os.Getenv("ES_PASSWORD"); v != "" {
		cfg.Elasticsearch.Password = v
	}

	if v := os.Getenv("ES_API_KEY"); v != "" {
		cfg.Elasticsearch.APIKey = v
	}

	if v := os.Getenv("ES_BULK_SIZE"); v != "" {
		n, err := parsePositive(v)
		if err != nil {
			return fmt.Errorf("invalid ES_BULK_SIZE: %w", err)
		}
		cfg.Elasticsearch.BulkSize = n
	}

	if v := os.Getenv("ES_FLUSH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid ES_FLUSH_INTERVAL: %w", err)
		}
		cfg.Elasticsearch.FlushInterval = d
	}

	// SNMP
	if v := os.Getenv("SNMP_ENABLED"); v != "" {
		cfg.SNMP.Enabled = parseBool(v)
	}

	if v := os.Getenv("SNMP_PORT"); v != "" {
		n, err := parsePositive(v)
		if err != nil {
			return fmt.Errorf("invalid SNMP_PORT: %w", err)
		}
		cfg.SNMP.Port = n
	}

	if v := os.Getenv("SNMP_COMMUNITY"); v != "" {
		cfg.SNMP.Community = v
	}

	if v := os.Getenv("SNMP_LISTEN_ADDRESS"); v != "" {
		cfg.SNMP.ListenAddress = v
	}

	// Prometheus
	if v := os.Getenv("PROM_ENABLED"); v != "" {
		cfg.Prometheus.Enabled = parseBool(v)
	}

	if v := os.Getenv("PROM_PORT"); v != "" {
		n, err := parsePositive(v)
		if err != nil {
			return fmt.Errorf("invalid PROM_PORT: %w", err)
		}
		cfg.Prometheus.Port = n
	}

	if v := os.Getenv("PROM_PATH"); v != "" {
		cfg.Prometheus.Path = v
	}

	if v := os.Getenv("PROM_LISTEN_ADDRESS"); v != "" {
		cfg.Prometheus.ListenAddress = v
	}

	// Advanced
	if v := os.Getenv("HEALTH_CHECK_ENABLED"); v != "" {
		cfg.Advanced.HealthCheckEnabled = parseBool(v)
	}

	if v := os.Getenv("HEALTH_CHECK_PORT"); v != "" {
		n, err := parsePositive(v)
		if err != nil {
			return fmt.Errorf("invalid HEALTH_CHECK_PORT: %w", err)
		}
		cfg.Advanced.HealthCheckPort = n
	}

	if v := os.Getenv("HEALTH_CHECK_LISTEN_ADDRESS"); v != "" {
		cfg.Advanced.HealthCheckListenAddress = v
	}

	if v := os.Getenv("EXPORT_ENABLED"); v != "" {
		cfg.Advanced.ExportEnabled = parseBool(v)
	}

	if v := os.Getenv("EXPORT_PORT"); v != "" {
		n, err := parsePositive(v)
		if err != nil {
			return fmt.Errorf("invalid EXPORT_PORT: %w", err)
		}
		cfg.Advanced.ExportPort = n
	}

	return nil
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

func parsePositive(v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}

// ParseSimpleSiteList parses a comma-separated list of domains/URLs
func ParseSimpleSiteList(sitesStr string) ([]models.SiteDefinition, error) {
	if sitesStr == "" {
		return nil, nil
	}

	parts := strings.Split(sitesStr, ",")
	sites := make([]models.SiteDefinition, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		// Normalize to full URL
		url := part
		if !strings.HasPrefix(part, "http://") && !strings.HasPrefix(part, "https://") {
			url = "https://" + part
		}

		site := models.SiteDefinition{
			URL:            url,
			TimeoutSeconds: 30,
			WaitForBody:    true,
		}
		site.Name = site.GetName()

		sites = append(sites, site)
	}

	return sites, nil
}
