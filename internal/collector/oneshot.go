package collector

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nickborgers/monorepo/pagegaze/internal/browser"
	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// OneShot state values
const (
	StateArmed int32 = iota
	StateFired
)

// oneShotOptions are used for registration and for every removal
var oneShotOptions = browser.ListenerOptions{Once: true, Capture: true}

// OneShot is a listener that turns the first firing of a window event into
// one uploaded signal. Armed -> Fired is irreversible.
type OneShot struct {
	env   browser.Environment
	event string

	state atomic.Int32
	done  chan struct{}

	mu         sync.Mutex
	id         browser.ListenerID
	registered bool
	removed    bool
}

// RunOnce registers a one-shot capture listener for event. On the first
// firing it builds the envelope with onFire, uploads it and removes the
// listener, even though the once option should already have done so.
// Later firings are ignored.
func RunOnce(env browser.Environment, event string, onFire func(browser.Event) models.Envelope, upload Uploader) (*OneShot, error) {
	o := &OneShot{env: env, event: event, done: make(chan struct{})}

	handler := func(ev browser.Event) {
		if !o.state.CompareAndSwap(StateArmed, StateFired) {
			return
		}
		upload(onFire(ev))
		close(o.done)
		o.Remove()
	}

	id, err := env.AddEventListener(event, handler, oneShotOptions)
	if err != nil {
		return nil, fmt.Errorf("register %s listener: %w", event, err)
	}

	o.mu.Lock()
	o.id = id
	o.registered = true
	o.mu.Unlock()

	// The event may have fired before the id was known
	if o.Fired() {
		o.Remove()
	}

	return o, nil
}

// Fired reports whether the listener has fired
func (o *OneShot) Fired() bool {
	return o.state.Load() == StateFired
}

// Done is closed once the fired signal has been uploaded
func (o *OneShot) Done() <-chan struct{} {
	return o.done
}

// Remove de-registers the listener. It is safe to call any number of times
// and from any goroutine.
func (o *OneShot) Remove() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.registered || o.removed {
		return
	}
	o.removed = true
	o.env.RemoveEventListener(o.event, o.id, oneShotOptions)
}
