package browser

import (
	"time"

	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// Capabilities reports which timing APIs a page exposes
type Capabilities struct {
	// PerformanceObserver is true when navigation entries can be observed
	PerformanceObserver bool `json:"performanceObserver"`

	// Performance is true when a synchronous timing read is available
	// (getEntriesByType or the legacy performance.timing record)
	Performance bool `json:"performance"`

	// NavigationType is true when performance.navigation is present
	NavigationType bool `json:"navigationType"`
}

// Observer is a registered performance observer
type Observer interface {
	// Disconnect stops delivery. Calling it more than once is a no-op.
	Disconnect()
}

// ObserveHandler receives each batch of entries along with the observer
// that delivered them
type ObserveHandler func(entries []models.RawTiming, obs Observer)

// ListenerOptions mirror the DOM addEventListener options
type ListenerOptions struct {
	Once    bool
	Capture bool
}

// ListenerID identifies a registered event listener
type ListenerID uint64

// Event is a DOM event delivered to a listener
type Event struct {
	Type      string  `json:"type"`
	TimeStamp float64 `json:"timeStamp"`
}

// EventHandler is called for each delivered event
type EventHandler func(ev Event)

// Environment is the browser surface of one loaded page. Implementations may
// call handlers from any goroutine.
type Environment interface {
	// Capabilities inspects the page for the timing APIs
	Capabilities() Capabilities

	// Observe registers an observer for the given entry type
	Observe(entryType string, handler ObserveHandler) (Observer, error)

	// EntriesByType reads existing performance entries of a type
	EntriesByType(entryType string) []models.RawTiming

	// LegacyTiming reads the single-record performance.timing object
	LegacyTiming() (models.RawTiming, bool)

	// NavigationType reads performance.navigation.type by name
	NavigationType() (string, bool)

	// PageMeta reads location, document and navigator metadata
	PageMeta() models.PageMeta

	// AddEventListener registers a handler for a window event
	AddEventListener(event string, handler EventHandler, opts ListenerOptions) (ListenerID, error)

	// RemoveEventListener removes a handler. Unknown ids are ignored.
	RemoveEventListener(event string, id ListenerID, opts ListenerOptions)

	// Now returns the current wall-clock time
	Now() time.Time
}

// SupportsObservation reports whether navigation entries can be observed
func SupportsObservation(env Environment) bool {
	return env.Capabilities().PerformanceObserver
}

// SupportsSyncTiming reports whether navigation timing can be read synchronously
func SupportsSyncTiming(env Environment) bool {
	return env.Capabilities().Performance
}
