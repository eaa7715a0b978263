package models

import "time"

// VisitType classifies how the page was reached
type VisitType string

const (
	VisitNormal      VisitType = "normal"
	VisitReload      VisitType = "reload"
	VisitBackForward VisitType = "back-forward"
	VisitOther       VisitType = "other"
)

// Navigation type names as exposed by the browser
const (
	NavigationTypeNavigate    = "navigate"
	NavigationTypeReload      = "reload"
	NavigationTypeBackForward = "back_forward"
)

// VisitInfo is produced once per page load
type VisitInfo struct {
	Time   time.Time `json:"time"`
	Origin string    `json:"origin"`
	Type   VisitType `json:"type"`
}

// SignalType implements Signal
func (VisitInfo) SignalType() SignalType { return SignalVisit }

// PageMeta is the raw page metadata read from location, document and navigator
type PageMeta struct {
	Origin         string `json:"origin"`
	URL            string `json:"url"`
	Title          string `json:"title"`
	Referrer       string `json:"referrer"`
	UserAgent      string `json:"userAgent"`
	Language       string `json:"language"`
	ConnectionType string `json:"connectionType"`
}

// MetaInfo is a classified OS or browser with its version
type MetaInfo struct {
	Type    string `json:"type"`
	Version string `json:"version"`
}

// EnvInfo describes the environment a page was loaded in
type EnvInfo struct {
	Origin   string   `json:"origin"`
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Referer  string   `json:"referer"`
	OS       MetaInfo `json:"os"`
	Browser  MetaInfo `json:"browser"`
	Language string   `json:"language"`
	Network  string   `json:"network"`
}

// SignalType implements Signal
func (EnvInfo) SignalType() SignalType { return SignalEnvironment }
