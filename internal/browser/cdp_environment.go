package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

//go:embed bridge.js
var bridgeJS string

const bindingName = "__pagegaze_binding"

const capabilitiesJS = `(() => ({
	performanceObserver: typeof PerformanceObserver === 'function' &&
		Array.isArray(PerformanceObserver.supportedEntryTypes) &&
		PerformanceObserver.supportedEntryTypes.indexOf('navigation') > -1,
	performance: typeof performance === 'object' && performance !== null &&
		(typeof performance.getEntriesByType === 'function' || !!performance.timing),
	navigationType: typeof performance === 'object' && performance !== null && !!performance.navigation
}))()`

const legacyTimingJS = `(() => (typeof performance === 'object' && performance !== null && performance.timing
	? { ok: true, timing: performance.timing.toJSON() }
	: { ok: false }))()`

const navigationTypeJS = `(() => {
	const n = typeof performance === 'object' && performance !== null ? performance.navigation : null;
	if (!n) return '';
	switch (n.type) {
	case n.TYPE_NAVIGATE: return 'navigate';
	case n.TYPE_RELOAD: return 'reload';
	case n.TYPE_BACK_FORWARD: return 'back_forward';
	default: return 'reserved';
	}
})()`

const pageMetaJS = `(() => ({
	origin: location.origin,
	url: location.href,
	title: document.title,
	referrer: document.referrer,
	userAgent: navigator.userAgent,
	language: navigator.language || '',
	connectionType: (navigator.connection && (navigator.connection.type || navigator.connection.effectiveType)) || ''
}))()`

// bridgeMessage is the payload the page sends through the runtime binding
type bridgeMessage struct {
	Kind    string             `json:"kind"`
	ID      uint64             `json:"id"`
	Entries []models.RawTiming `json:"entries,omitempty"`
	Event   Event              `json:"event"`
}

// CDPEnvironment implements Environment against a live Chrome tab.
// Push-based callbacks run in page JavaScript and are forwarded to Go
// through a CDP runtime binding.
type CDPEnvironment struct {
	ctx    context.Context
	logger *slog.Logger

	messages chan bridgeMessage

	mu        sync.Mutex
	nextID    uint64
	observers map[uint64]*cdpObserver
	listeners map[uint64]*cdpListener
}

type cdpObserver struct {
	env     *CDPEnvironment
	id      uint64
	handler ObserveHandler
	once    sync.Once
}

type cdpListener struct {
	event   string
	handler EventHandler
	opts    ListenerOptions
}

// NewCDPEnvironment installs the page bridge in the tab behind ctx. It must
// run before navigation so the bridge is present from document start.
func NewCDPEnvironment(ctx context.Context, logger *slog.Logger) (*CDPEnvironment, error) {
	if logger == nil {
		logger = slog.Default()
	}

	e := &CDPEnvironment{
		ctx:       ctx,
		logger:    logger,
		messages:  make(chan bridgeMessage, 64),
		observers: make(map[uint64]*cdpObserver),
		listeners: make(map[uint64]*cdpListener),
	}

	chromedp.ListenTarget(ctx, e.onTargetEvent)

	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := runtime.AddBinding(bindingName).Do(ctx); err != nil {
			return fmt.Errorf("add binding: %w", err)
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(bridgeJS).Do(ctx); err != nil {
			return fmt.Errorf("add bridge script: %w", err)
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("install page bridge: %w", err)
	}

	go e.deliverLoop()

	return e, nil
}

// onTargetEvent runs on the chromedp event goroutine and must not block
func (e *CDPEnvironment) onTargetEvent(ev interface{}) {
	called, ok := ev.(*runtime.EventBindingCalled)
	if !ok || called.Name != bindingName {
		return
	}

	var msg bridgeMessage
	if err := json.Unmarshal([]byte(called.Payload), &msg); err != nil {
		e.logger.Warn("bridge: parse binding payload", "error", err)
		return
	}

	select {
	case e.messages <- msg:
	default:
		e.logger.Warn("bridge: message channel full, dropping", "kind", msg.Kind, "id", msg.ID)
	}
}

// deliverLoop calls Go handlers in arrival order, off the event goroutine
func (e *CDPEnvironment) deliverLoop() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case msg := <-e.messages:
			switch msg.Kind {
			case "observe":
				e.deliverEntries(msg)
			case "event":
				e.deliverEvent(msg)
			default:
				e.logger.Debug("bridge: unknown message kind", "kind", msg.Kind)
			}
		}
	}
}

func (e *CDPEnvironment) deliverEntries(msg bridgeMessage) {
	e.mu.Lock()
	obs, ok := e.observers[msg.ID]
	e.mu.Unlock()
	if !ok {
		return
	}
	obs.handler(msg.Entries, obs)
}

func (e *CDPEnvironment) deliverEvent(msg bridgeMessage) {
	e.mu.Lock()
	l, ok := e.listeners[msg.ID]
	if ok && l.opts.Once {
		delete(e.listeners, msg.ID)
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	l.handler(msg.Event)
}

func (e *CDPEnvironment) eval(expr string, res interface{}) error {
	return chromedp.Run(e.ctx, chromedp.Evaluate(expr, res))
}

func (e *CDPEnvironment) allocID() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	return e.nextID
}

// Capabilities implements Environment. Evaluation failures read as absent.
func (e *CDPEnvironment) Capabilities() Capabilities {
	var caps Capabilities
	if err := e.eval(capabilitiesJS, &caps); err != nil {
		e.logger.Debug("capability check failed", "error", err)
		return Capabilities{}
	}
	return caps
}

// Observe implements Environment
func (e *CDPEnvironment) Observe(entryType string, handler ObserveHandler) (Observer, error) {
	id := e.allocID()
	obs := &cdpObserver{env: e, id: id, handler: handler}

	e.mu.Lock()
	e.observers[id] = obs
	e.mu.Unlock()

	typeArg, _ := json.Marshal(entryType)
	var ok bool
	if err := e.eval(fmt.Sprintf("window.__pagegaze.observe(%d, %s)", id, typeArg), &ok); err != nil {
		e.forgetObserver(id)
		return nil, fmt.Errorf("observe %s: %w", entryType, err)
	}

	return obs, nil
}

func (e *CDPEnvironment) forgetObserver(id uint64) {
	e.mu.Lock()
	delete(e.observers, id)
	e.mu.Unlock()
}

// Disconnect implements Observer
func (o *cdpObserver) Disconnect() {
	o.once.Do(func() {
		o.env.forgetObserver(o.id)
		var ok bool
		if err := o.env.eval(fmt.Sprintf("window.__pagegaze.disconnect(%d)", o.id), &ok); err != nil {
			o.env.logger.Debug("disconnect observer in page", "id", o.id, "error", err)
		}
	})
}

// EntriesByType implements Environment
func (e *CDPEnvironment) EntriesByType(entryType string) []models.RawTiming {
	typeArg, _ := json.Marshal(entryType)
	expr := fmt.Sprintf(`(typeof performance === 'object' && performance !== null && typeof performance.getEntriesByType === 'function'
		? performance.getEntriesByType(%s).map((e) => e.toJSON())
		: [])`, typeArg)

	var entries []models.RawTiming
	if err := e.eval(expr, &entries); err != nil {
		e.logger.Debug("read performance entries failed", "type", entryType, "error", err)
		return nil
	}
	return entries
}

// LegacyTiming implements Environment
func (e *CDPEnvironment) LegacyTiming() (models.RawTiming, bool) {
	var res struct {
		OK     bool             `json:"ok"`
		Timing models.RawTiming `json:"timing"`
	}
	if err := e.eval(legacyTimingJS, &res); err != nil {
		e.logger.Debug("read legacy timing failed", "error", err)
		return models.RawTiming{}, false
	}
	return res.Timing, res.OK
}

// NavigationType implements Environment
func (e *CDPEnvironment) NavigationType() (string, bool) {
	var name string
	if err := e.eval(navigationTypeJS, &name); err != nil || name == "" {
		return "", false
	}
	return name, true
}

// PageMeta implements Environment
func (e *CDPEnvironment) PageMeta() models.PageMeta {
	var meta models.PageMeta
	if err := e.eval(pageMetaJS, &meta); err != nil {
		e.logger.Debug("read page metadata failed", "error", err)
	}
	return meta
}

// AddEventListener implements Environment
func (e *CDPEnvironment) AddEventListener(event string, handler EventHandler, opts ListenerOptions) (ListenerID, error) {
	id := e.allocID()

	e.mu.Lock()
	e.listeners[id] = &cdpListener{event: event, handler: handler, opts: opts}
	e.mu.Unlock()

	nameArg, _ := json.Marshal(event)
	var ok bool
	expr := fmt.Sprintf("window.__pagegaze.listen(%d, %s, %t, %t)", id, nameArg, opts.Once, opts.Capture)
	if err := e.eval(expr, &ok); err != nil {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
		return 0, fmt.Errorf("listen %s: %w", event, err)
	}

	return ListenerID(id), nil
}

// RemoveEventListener implements Environment
func (e *CDPEnvironment) RemoveEventListener(event string, id ListenerID, opts ListenerOptions) {
	e.mu.Lock()
	delete(e.listeners, uint64(id))
	e.mu.Unlock()

	nameArg, _ := json.Marshal(event)
	var ok bool
	expr := fmt.Sprintf("window.__pagegaze.unlisten(%d, %s, %t)", id, nameArg, opts.Capture)
	if err := e.eval(expr, &ok); err != nil {
		e.logger.Debug("remove listener in page", "event", event, "id", id, "error", err)
	}
}

// Now implements Environment
func (e *CDPEnvironment) Now() time.Time {
	return time.Now()
}
