package models

// EntryTypeNavigation is the performance entry type of a page navigation
const EntryTypeNavigation = "navigation"

// RawTiming is a navigation timing record as reported by the browser, either
// a PerformanceNavigationTiming entry or the legacy performance.timing object.
// All values are milliseconds. Entries are relative to the time origin; the
// legacy record carries epoch timestamps. Only differences are meaningful.
type RawTiming struct {
	Name      string  `json:"name,omitempty"`
	EntryType string  `json:"entryType,omitempty"`
	StartTime float64 `json:"startTime,omitempty"`

	RedirectStart              float64 `json:"redirectStart"`
	RedirectEnd                float64 `json:"redirectEnd"`
	FetchStart                 float64 `json:"fetchStart"`
	DomainLookupStart          float64 `json:"domainLookupStart"`
	DomainLookupEnd            float64 `json:"domainLookupEnd"`
	ConnectStart               float64 `json:"connectStart"`
	SecureConnectionStart      float64 `json:"secureConnectionStart"`
	ConnectEnd                 float64 `json:"connectEnd"`
	RequestStart               float64 `json:"requestStart"`
	ResponseStart              float64 `json:"responseStart"`
	ResponseEnd                float64 `json:"responseEnd"`
	DOMInteractive             float64 `json:"domInteractive"`
	DOMContentLoadedEventStart float64 `json:"domContentLoadedEventStart"`
	DOMContentLoadedEventEnd   float64 `json:"domContentLoadedEventEnd"`
	LoadEventStart             float64 `json:"loadEventStart"`
}

// NavigationMetrics contains the page load phases in milliseconds
type NavigationMetrics struct {
	// Redirect is the time spent following redirects
	Redirect float64 `json:"redirect"`

	// DNS is the time spent resolving DNS
	DNS float64 `json:"DNS"`

	// TCP is the time to establish the connection, TLS included
	TCP float64 `json:"TCP"`

	// SSL is the time for TLS negotiation, zero for plain HTTP
	SSL float64 `json:"SSL"`

	// TTFB is the time from request start to the first response byte
	TTFB float64 `json:"TTFB"`

	// Transmit is the time spent receiving the response body
	Transmit float64 `json:"transmit"`

	// DOMParse is the time from response end to DOM interactive
	DOMParse float64 `json:"domParse"`

	// DeferExecuteDuration is the time spent running deferred scripts
	DeferExecuteDuration float64 `json:"deferExecuteDuration"`

	// DOMContentLoadedCallback is the time spent in DOMContentLoaded handlers
	DOMContentLoadedCallback float64 `json:"domContentLoadedCallback"`

	// ResourceLoad is the time from DOMContentLoaded end to the load event
	ResourceLoad float64 `json:"resourceLoad"`

	// DOMReady is the time from fetch start to DOMContentLoaded end
	DOMReady float64 `json:"domReady"`

	// Load is the time from fetch start to the load event
	Load float64 `json:"L"`
}

// SignalType implements Signal
func (NavigationMetrics) SignalType() SignalType { return SignalNavigationTiming }

// Phases returns the metrics keyed by their wire names
func (m NavigationMetrics) Phases() map[string]float64 {
	return map[string]float64{
		"redirect":                 m.Redirect,
		"DNS":                      m.DNS,
		"TCP":                      m.TCP,
		"SSL":                      m.SSL,
		"TTFB":                     m.TTFB,
		"transmit":                 m.Transmit,
		"domParse":                 m.DOMParse,
		"deferExecuteDuration":     m.DeferExecuteDuration,
		"domContentLoadedCallback": m.DOMContentLoadedCallback,
		"resourceLoad":             m.ResourceLoad,
		"domReady":                 m.DOMReady,
		"L":                        m.Load,
	}
}
