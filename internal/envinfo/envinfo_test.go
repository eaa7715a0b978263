package envinfo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nickborgers/monorepo/pagegaze/internal/browser/browsertest"
	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

const (
	uaChromeLinux  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaEdgeWindows  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91"
	uaSafariMac    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15"
	uaFirefoxLinux = "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	uaOperaWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 OPR/105.0.0.0"
	uaIE11         = "Mozilla/5.0 (Windows NT 6.1; WOW64; Trident/7.0; rv:11.0) like Gecko"
	uaIE10         = "Mozilla/5.0 (compatible; MSIE 10.0; Windows NT 6.2; Trident/6.0)"
	uaSafariIPhone = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	uaChromeMobile = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.43 Mobile Safari/537.36"
)

func TestClassifyBrowser(t *testing.T) {
	tests := []struct {
		name     string
		ua       string
		expected models.MetaInfo
	}{
		{"chrome", uaChromeLinux, models.MetaInfo{Type: BrowserChrome, Version: "120.0.0.0"}},
		{"chromium edge", uaEdgeWindows, models.MetaInfo{Type: BrowserEdge, Version: "120.0.2210.91"}},
		{"safari", uaSafariMac, models.MetaInfo{Type: BrowserSafari, Version: "17.1"}},
		{"firefox", uaFirefoxLinux, models.MetaInfo{Type: BrowserFirefox, Version: "121.0"}},
		{"opera", uaOperaWindows, models.MetaInfo{Type: BrowserOpera, Version: "105.0.0.0"}},
		{"ie 11", uaIE11, models.MetaInfo{Type: BrowserIE, Version: "11.0"}},
		{"ie 10", uaIE10, models.MetaInfo{Type: BrowserIE, Version: "10.0"}},
		{"empty", "", models.MetaInfo{Type: BrowserUnknown}},
		{"curl", "curl/8.4.0", models.MetaInfo{Type: BrowserUnknown}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyBrowser(tt.ua))
		})
	}
}

func TestClassifyOS(t *testing.T) {
	tests := []struct {
		name    string
		ua      string
		os      string
		version string
	}{
		{"linux", uaChromeLinux, OSLinux, ""},
		{"ubuntu", uaFirefoxLinux, OSLinux, ""},
		{"windows", uaEdgeWindows, OSWindows, "10"},
		{"macos", uaSafariMac, OSMacOS, "10.15.7"},
		{"ios before macos", uaSafariIPhone, OSIOS, "17.1"},
		{"android before linux", uaChromeMobile, OSAndroid, "14"},
		{"unknown", "curl/8.4.0", OSUnknown, ""},
		{"empty", "", OSUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyOS(tt.ua)
			assert.Equal(t, tt.os, got.Type)
			if tt.version == "" {
				assert.Empty(t, got.Version)
				return
			}
			// Windows reports its marketing version or the NT version
			assert.True(t, strings.HasPrefix(got.Version, tt.version), "version %q", got.Version)
		})
	}
}

func TestCollect(t *testing.T) {
	env := browsertest.New()
	env.Meta = models.PageMeta{
		Origin:         "https://example.com",
		URL:            "https://example.com/pricing",
		Title:          "Pricing",
		Referrer:       "https://www.google.com/",
		UserAgent:      uaSafariMac,
		Language:       "en-US",
		ConnectionType: "4g",
	}

	info := Collect(env)

	assert.Equal(t, models.EnvInfo{
		Origin:   "https://example.com",
		URL:      "https://example.com/pricing",
		Title:    "Pricing",
		Referer:  "https://www.google.com/",
		OS:       models.MetaInfo{Type: OSMacOS, Version: "10.15.7"},
		Browser:  models.MetaInfo{Type: BrowserSafari, Version: "17.1"},
		Language: "en-US",
		Network:  "4g",
	}, info)
	assert.Equal(t, models.SignalEnvironment, info.SignalType())
}
