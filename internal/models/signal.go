package models

import "time"

// SignalType identifies one kind of telemetry signal
type SignalType string

const (
	// SignalNavigationTiming carries NavigationMetrics
	SignalNavigationTiming SignalType = "navigation-timing"

	// SignalVisit carries VisitInfo
	SignalVisit SignalType = "visit"

	// SignalEnvironment carries EnvInfo
	SignalEnvironment SignalType = "environment"
)

// SignalTypes lists every known signal type in a stable order
func SignalTypes() []SignalType {
	return []SignalType{SignalNavigationTiming, SignalVisit, SignalEnvironment}
}

// ParseSignalType maps a string to a known SignalType
func ParseSignalType(s string) (SignalType, bool) {
	for _, t := range SignalTypes() {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Signal is the value half of an Envelope
type Signal interface {
	SignalType() SignalType
}

// Envelope pairs a signal with its type tag. It is the unit that is stored
// and uploaded.
type Envelope struct {
	Type  SignalType `json:"type"`
	Value Signal     `json:"value"`
}

// NewEnvelope tags a signal with its own type
func NewEnvelope(s Signal) Envelope {
	return Envelope{Type: s.SignalType(), Value: s}
}

// Report is an Envelope as handed to the output modules, with the context
// of the page session that produced it
type Report struct {
	// Timestamp when the envelope was uploaded
	Timestamp time.Time `json:"@timestamp"`

	// ReportID uniquely identifies this report
	ReportID string `json:"report_id"`

	// SessionID groups all reports from one page lifecycle
	SessionID string `json:"session_id"`

	// Site the page belongs to
	Site SiteInfo `json:"site"`

	// Envelope is the uploaded signal
	Envelope Envelope `json:"signal"`

	// Metadata about the collector instance
	Metadata ReportMetadata `json:"metadata,omitempty"`
}

// SiteInfo contains information about the observed site
type SiteInfo struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// ReportMetadata contains information about the collector environment
type ReportMetadata struct {
	// Hostname of the collector instance
	Hostname string `json:"hostname,omitempty"`

	// Version of the collector software
	Version string `json:"version,omitempty"`

	// Browser user agent
	UserAgent string `json:"user_agent,omitempty"`
}

// SiteName returns the site name, falling back to the URL
func (r *Report) SiteName() string {
	if r.Site.Name != "" {
		return r.Site.Name
	}
	return r.Site.URL
}
