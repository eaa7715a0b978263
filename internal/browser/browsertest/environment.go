// Package browsertest provides an in-memory browser.Environment for tests.
package browsertest

import (
	"sync"
	"time"

	"github.com/nickborgers/monorepo/pagegaze/internal/browser"
	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// Environment is a scriptable browser.Environment. Configure the exported
// fields before handing it to the code under test; drive callbacks with
// Deliver and Dispatch.
type Environment struct {
	Caps              browser.Capabilities
	NavigationEntries []models.RawTiming
	Legacy            *models.RawTiming
	NavType           string
	Meta              models.PageMeta
	Clock             time.Time
	ObserveErr        error

	// BufferedEntries are delivered synchronously from Observe, the way a
	// buffered PerformanceObserver replays entries recorded before it existed
	BufferedEntries []models.RawTiming

	// IgnoreOnce makes the environment keep once-listeners registered after
	// firing, simulating browsers that do not honor the option
	IgnoreOnce bool

	mu          sync.Mutex
	nextID      uint64
	observers   []*observer
	listeners   map[browser.ListenerID]*listener
	observed    chan struct{}
	observedSet bool
	disconnects int
	removals    int
}

type observer struct {
	env       *Environment
	handler   browser.ObserveHandler
	connected bool
}

type listener struct {
	event   string
	handler browser.EventHandler
	opts    browser.ListenerOptions
}

// New returns an environment with no APIs present
func New() *Environment {
	return &Environment{
		Clock:     time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		listeners: make(map[browser.ListenerID]*listener),
		observed:  make(chan struct{}),
	}
}

// WithObservation enables the PerformanceObserver and synchronous APIs
func (e *Environment) WithObservation() *Environment {
	e.Caps.PerformanceObserver = true
	e.Caps.Performance = true
	return e
}

// WithSyncTiming enables only the synchronous timing API
func (e *Environment) WithSyncTiming(entries ...models.RawTiming) *Environment {
	e.Caps.Performance = true
	e.NavigationEntries = entries
	return e
}

// WithNavigationType enables performance.navigation with the given type name
func (e *Environment) WithNavigationType(name string) *Environment {
	e.Caps.NavigationType = true
	e.NavType = name
	return e
}

// Capabilities implements browser.Environment
func (e *Environment) Capabilities() browser.Capabilities {
	return e.Caps
}

// Observe implements browser.Environment
func (e *Environment) Observe(entryType string, handler browser.ObserveHandler) (browser.Observer, error) {
	if e.ObserveErr != nil {
		return nil, e.ObserveErr
	}

	obs := &observer{env: e, handler: handler, connected: true}

	e.mu.Lock()
	e.observers = append(e.observers, obs)
	if !e.observedSet {
		e.observedSet = true
		close(e.observed)
	}
	buffered := e.BufferedEntries
	e.mu.Unlock()

	if len(buffered) > 0 {
		handler(buffered, obs)
	}

	return obs, nil
}

// Observed is closed once the first observer registers
func (e *Environment) Observed() <-chan struct{} {
	return e.observed
}

// Deliver pushes one batch of entries to every connected observer
func (e *Environment) Deliver(entries ...models.RawTiming) {
	e.mu.Lock()
	targets := make([]*observer, 0, len(e.observers))
	for _, o := range e.observers {
		if o.connected {
			targets = append(targets, o)
		}
	}
	e.mu.Unlock()

	for _, o := range targets {
		o.handler(entries, o)
	}
}

// Disconnect implements browser.Observer
func (o *observer) Disconnect() {
	o.env.mu.Lock()
	defer o.env.mu.Unlock()
	o.env.disconnects++
	o.connected = false
}

// DisconnectCalls counts Disconnect calls across all observers
func (e *Environment) DisconnectCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disconnects
}

// ConnectedObservers counts observers still receiving entries
func (e *Environment) ConnectedObservers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, o := range e.observers {
		if o.connected {
			n++
		}
	}
	return n
}

// EntriesByType implements browser.Environment
func (e *Environment) EntriesByType(entryType string) []models.RawTiming {
	if !e.Caps.Performance || entryType != models.EntryTypeNavigation {
		return nil
	}
	return e.NavigationEntries
}

// LegacyTiming implements browser.Environment
func (e *Environment) LegacyTiming() (models.RawTiming, bool) {
	if !e.Caps.Performance || e.Legacy == nil {
		return models.RawTiming{}, false
	}
	return *e.Legacy, true
}

// NavigationType implements browser.Environment
func (e *Environment) NavigationType() (string, bool) {
	if !e.Caps.NavigationType {
		return "", false
	}
	return e.NavType, true
}

// PageMeta implements browser.Environment
func (e *Environment) PageMeta() models.PageMeta {
	return e.Meta
}

// AddEventListener implements browser.Environment
func (e *Environment) AddEventListener(event string, handler browser.EventHandler, opts browser.ListenerOptions) (browser.ListenerID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := browser.ListenerID(e.nextID)
	e.listeners[id] = &listener{event: event, handler: handler, opts: opts}
	return id, nil
}

// RemoveEventListener implements browser.Environment
func (e *Environment) RemoveEventListener(event string, id browser.ListenerID, opts browser.ListenerOptions) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removals++
	if l, ok := e.listeners[id]; ok && l.event == event && l.opts.Capture == opts.Capture {
		delete(e.listeners, id)
	}
}

// RemoveCalls counts RemoveEventListener calls
func (e *Environment) RemoveCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removals
}

// Listeners counts registered listeners for an event
func (e *Environment) Listeners(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, l := range e.listeners {
		if l.event == event {
			n++
		}
	}
	return n
}

// Dispatch fires an event at every matching listener
func (e *Environment) Dispatch(event string) {
	ev := browser.Event{Type: event, TimeStamp: 100}

	e.mu.Lock()
	var handlers []browser.EventHandler
	for id, l := range e.listeners {
		if l.event != event {
			continue
		}
		handlers = append(handlers, l.handler)
		if l.opts.Once && !e.IgnoreOnce {
			delete(e.listeners, id)
		}
	}
	e.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Now implements browser.Environment
func (e *Environment) Now() time.Time {
	return e.Clock
}
