package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseSimpleSiteList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		urls  []string
		names []string
	}{
		{
			name:  "bare domains",
			input: "google.com,github.com,example.org",
			urls:  []string{"https://google.com", "https://github.com", "https://example.org"},
			names: []string{"google", "github", "example"},
		},
		{
			name:  "full urls keep scheme and path",
			input: "https://www.google.com,http://example.com/api/status",
			urls:  []string{"https://www.google.com", "http://example.com/api/status"},
			names: []string{"google", "example"},
		},
		{
			name:  "whitespace and empty elements",
			input: "  google.com , ,github.com,,",
			urls:  []string{"https://google.com", "https://github.com"},
			names: []string{"google", "github"},
		},
		{
			name:  "subdomains use first label",
			input: "api.github.com,status.example.com",
			urls:  []string{"https://api.github.com", "https://status.example.com"},
			names: []string{"api", "status"},
		},
		{
			name:  "port is not part of the name",
			input: "localhost:3000,10.0.0.1:8080",
			urls:  []string{"https://localhost:3000", "https://10.0.0.1:8080"},
			names: []string{"localhost", "10"},
		},
		{
			name:  "query and fragment preserved",
			input: "example.com/api?key=value,test.com#fragment",
			urls:  []string{"https://example.com/api?key=value", "https://test.com#fragment"},
			names: []string{"example", "test"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sites, err := ParseSimpleSiteList(tt.input)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(sites) != len(tt.urls) {
				t.Fatalf("Expected %d sites, got %d", len(tt.urls), len(sites))
			}
			for i, site := range sites {
				if site.URL != tt.urls[i] {
					t.Errorf("Site %d: expected URL '%s', got '%s'", i, tt.urls[i], site.URL)
				}
				if site.Name != tt.names[i] {
					t.Errorf("Site %d: expected name '%s', got '%s'", i, tt.names[i], site.Name)
				}
				if site.TimeoutSeconds != 30 {
					t.Errorf("Site %d: expected timeout 30s, got %d", i, site.TimeoutSeconds)
				}
				if !site.WaitForBody {
					t.Errorf("Site %d: expected WaitForBody true", i)
				}
			}
		})
	}
}

func TestParseSimpleSiteList_EmptyString(t *testing.T) {
	sites, err := ParseSimpleSiteList("")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if sites != nil {
		t.Errorf("Expected nil for empty string, got %d sites", len(sites))
	}
}

func TestLoadFromEnv_ListenAddresses(t *testing.T) {
	t.Setenv("HEALTH_CHECK_LISTEN_ADDRESS", "::1")
	t.Setenv("PROM_LISTEN_ADDRESS", "127.0.0.1")
	t.Setenv("SNMP_LISTEN_ADDRESS", "192.168.1.100")

	cfg := DefaultConfig()
	if err := LoadFromEnv(cfg); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Advanced.HealthCheckListenAddress != "::1" {
		t.Errorf("Expected health listen address '::1', got '%s'", cfg.Advanced.HealthCheckListenAddress)
	}
	if cfg.Prometheus.ListenAddress != "127.0.0.1" {
		t.Errorf("Expected Prometheus listen address '127.0.0.1', got '%s'", cfg.Prometheus.ListenAddress)
	}
	if cfg.SNMP.ListenAddress != "192.168.1.100" {
		t.Errorf("Expected SNMP listen address '192.168.1.100', got '%s'", cfg.SNMP.ListenAddress)
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	os.Unsetenv("HEALTH_CHECK_LISTEN_ADDRESS")
	os.Unsetenv("COLLECT_VISIT")

	cfg := DefaultConfig()
	if err := LoadFromEnv(cfg); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Advanced.HealthCheckListenAddress != "0.0.0.0" {
		t.Errorf("Expected default health listen address '0.0.0.0', got '%s'", cfg.Advanced.HealthCheckListenAddress)
	}
	if !cfg.Collector.CollectVisit || !cfg.Collector.Immediate || !cfg.Collector.CollectEnvironment {
		t.Errorf("Expected every collector signal enabled by default, got %+v", cfg.Collector)
	}
}

func TestLoadFromEnv_CollectorToggles(t *testing.T) {
	t.Setenv("COLLECT_IMMEDIATE", "false")
	t.Setenv("COLLECT_VISIT", "0")
	t.Setenv("COLLECT_ENVIRONMENT", "1")

	cfg := DefaultConfig()
	if err := LoadFromEnv(cfg); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Collector.Immediate {
		t.Error("Expected Immediate false")
	}
	if cfg.Collector.CollectVisit {
		t.Error("Expected CollectVisit false")
	}
	if !cfg.Collector.CollectEnvironment {
		t.Error("Expected CollectEnvironment true")
	}
}

func TestLoadFromEnv_InterSessionDelay(t *testing.T) {
	t.Setenv("INTER_SESSION_DELAY", "5s")

	cfg := DefaultConfig()
	if err := LoadFromEnv(cfg); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.General.InterSessionDelay != 5*time.Second {
		t.Errorf("Expected InterSessionDelay 5s, got %v", cfg.General.InterSessionDelay)
	}
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"INTER_SESSION_DELAY", "invalid"},
		{"ES_FLUSH_INTERVAL", "soon"},
		{"PROM_PORT", "abc"},
		{"SNMP_PORT", "-1"},
		{"MAX_CHROME_FAILURES", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			if err := LoadFromEnv(DefaultConfig()); err == nil {
				t.Fatalf("Expected error for %s=%q, got nil", tt.key, tt.value)
			}
		})
	}
}

func TestLoadFromEnv_Sites(t *testing.T) {
	t.Setenv("SITES", "google.com,github.com,example.com")

	cfg := DefaultConfig()
	if err := LoadFromEnv(cfg); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(cfg.Sites.List) != 3 {
		t.Fatalf("Expected 3 sites, got %d", len(cfg.Sites.List))
	}
	if cfg.Sites.List[0].Name != "google" {
		t.Errorf("Expected first site name 'google', got '%s'", cfg.Sites.List[0].Name)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagegaze.yaml")
	content := `
general:
  inter_session_delay: 10s
sites:
  list:
    - url: https://news.example.org/
      name: news
      category: media
      timeout_seconds: 20
collector:
  immediate: false
  collect_visit: true
  collect_environment: false
prometheus:
  port: 9191
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PROM_PORT", "9292")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.General.InterSessionDelay != 10*time.Second {
		t.Errorf("Expected InterSessionDelay 10s, got %v", cfg.General.InterSessionDelay)
	}
	if len(cfg.Sites.List) != 1 || cfg.Sites.List[0].Name != "news" {
		t.Fatalf("Expected the single configured site, got %+v", cfg.Sites.List)
	}
	if cfg.Sites.List[0].GetTimeout() != 20*time.Second {
		t.Errorf("Expected site timeout 20s, got %v", cfg.Sites.List[0].GetTimeout())
	}
	if cfg.Collector.Immediate || cfg.Collector.CollectEnvironment || !cfg.Collector.CollectVisit {
		t.Errorf("Unexpected collector settings %+v", cfg.Collector)
	}
	// Environment overrides the file
	if cfg.Prometheus.Port != 9292 {
		t.Errorf("Expected Prometheus port 9292, got %d", cfg.Prometheus.Port)
	}
	// Defaults survive for keys the file omits
	if cfg.Prometheus.Path != "/metrics" {
		t.Errorf("Expected default metrics path, got '%s'", cfg.Prometheus.Path)
	}
}

func TestLoad_DefaultSites(t *testing.T) {
	os.Unsetenv("SITES")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(cfg.Sites.List) != len(DefaultSites()) {
		t.Errorf("Expected %d default sites, got %d", len(DefaultSites()), len(cfg.Sites.List))
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("sites: [unterminated"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("Expected error for malformed YAML")
	}

	noURL := filepath.Join(dir, "nourl.yaml")
	if err := os.WriteFile(noURL, []byte("sites:\n  list:\n    - name: broken\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(noURL); err == nil {
		t.Error("Expected error for a site without url")
	}
}
