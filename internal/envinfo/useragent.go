package envinfo

import (
	"strings"

	"github.com/mssola/useragent"

	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// Browser types
const (
	BrowserChrome  = "chrome"
	BrowserSafari  = "safari"
	BrowserEdge    = "edge"
	BrowserIE      = "ie"
	BrowserFirefox = "firefox"
	BrowserOpera   = "opera"
	BrowserUnknown = "unknown"
)

// OS types
const (
	OSWindows = "windows"
	OSMacOS   = "macos"
	OSLinux   = "linux"
	OSAndroid = "android"
	OSIOS     = "ios"
	OSUnknown = "unknown"
)

// browserNames maps parser browser names onto browser types. Edge and
// Opera are told apart from Chrome by the parser itself.
var browserNames = map[string]string{
	"chrome":            BrowserChrome,
	"headless chrome":   BrowserChrome,
	"chromium":          BrowserChrome,
	"safari":            BrowserSafari,
	"edge":              BrowserEdge,
	"internet explorer": BrowserIE,
	"firefox":           BrowserFirefox,
	"opera":             BrowserOpera,
	"opera mini":        BrowserOpera,
}

// ClassifyBrowser identifies the browser and its version from a user agent
func ClassifyBrowser(ua string) models.MetaInfo {
	if ua == "" {
		return models.MetaInfo{Type: BrowserUnknown}
	}

	name, version := useragent.New(ua).Browser()
	browser, ok := browserNames[strings.ToLower(name)]
	if !ok {
		return models.MetaInfo{Type: BrowserUnknown}
	}
	return models.MetaInfo{Type: browser, Version: version}
}

// ClassifyOS identifies the operating system from a user agent. Mobile
// platforms are checked first: iOS agents mention Mac OS X and Android
// agents run on Linux.
func ClassifyOS(ua string) models.MetaInfo {
	if ua == "" {
		return models.MetaInfo{Type: OSUnknown}
	}

	parsed := useragent.New(ua)
	info := parsed.OSInfo()
	haystack := strings.ToLower(parsed.Platform() + " " + info.FullName)

	switch {
	case strings.Contains(haystack, "windows"):
		return models.MetaInfo{Type: OSWindows, Version: info.Version}
	case containsAny(haystack, "iphone", "ipad", "ipod"):
		return models.MetaInfo{Type: OSIOS, Version: info.Version}
	case strings.Contains(haystack, "android"):
		return models.MetaInfo{Type: OSAndroid, Version: info.Version}
	case strings.Contains(haystack, "mac"):
		return models.MetaInfo{Type: OSMacOS, Version: info.Version}
	case containsAny(haystack, "linux", "ubuntu", "x11"):
		// Linux agents carry an architecture, not a version
		return models.MetaInfo{Type: OSLinux}
	default:
		return models.MetaInfo{Type: OSUnknown}
	}
}

func containsAny(s string, tokens ...string) bool {
	for _, token := range tokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}
