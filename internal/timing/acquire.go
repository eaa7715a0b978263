package timing

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/nickborgers/monorepo/pagegaze/internal/browser"
	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// ErrUnsupportedEnvironment means neither timing API is available in the page
var ErrUnsupportedEnvironment = errors.New("browser does not support the performance API")

// Strategy is the way navigation timing is acquired from a page
type Strategy int

const (
	// StrategyNone means no timing API is available
	StrategyNone Strategy = iota

	// StrategyObserver waits for a navigation entry from a PerformanceObserver
	StrategyObserver

	// StrategyPolling reads existing entries or the legacy timing record
	StrategyPolling
)

func (s Strategy) String() string {
	switch s {
	case StrategyObserver:
		return "observer"
	case StrategyPolling:
		return "polling"
	default:
		return "none"
	}
}

// SelectStrategy picks the acquisition strategy from the page capabilities
func SelectStrategy(env browser.Environment) Strategy {
	switch {
	case browser.SupportsObservation(env):
		return StrategyObserver
	case browser.SupportsSyncTiming(env):
		return StrategyPolling
	default:
		return StrategyNone
	}
}

// AcquireNavigationMetrics returns the navigation metrics of the page.
//
// With the observer strategy the call blocks until the page reports its
// navigation entry. A page that never reports one keeps the call pending
// until ctx is done, so callers that need a deadline set one on ctx.
func AcquireNavigationMetrics(ctx context.Context, env browser.Environment) (models.NavigationMetrics, error) {
	switch SelectStrategy(env) {
	case StrategyObserver:
		m, registered, err := observeNavigation(ctx, env)
		if registered || !browser.SupportsSyncTiming(env) {
			return m, err
		}
		// The observer could not be registered; the synchronous API still works
		return readNavigation(env)
	case StrategyPolling:
		return readNavigation(env)
	default:
		return models.NavigationMetrics{}, ErrUnsupportedEnvironment
	}
}

// observeNavigation honors only the first navigation entry over the whole
// observer lifetime, however the entries are batched
func observeNavigation(ctx context.Context, env browser.Environment) (models.NavigationMetrics, bool, error) {
	results := make(chan models.NavigationMetrics, 1)
	var fired atomic.Bool

	handler := func(entries []models.RawTiming, obs browser.Observer) {
		for _, entry := range entries {
			if entry.EntryType != models.EntryTypeNavigation {
				continue
			}
			if !fired.CompareAndSwap(false, true) {
				return
			}
			obs.Disconnect()
			results <- Extract(entry)
			return
		}
	}

	obs, err := env.Observe(models.EntryTypeNavigation, handler)
	if err != nil {
		return models.NavigationMetrics{}, false, fmt.Errorf("register navigation observer: %w", err)
	}

	select {
	case m := <-results:
		return m, true, nil
	case <-ctx.Done():
		obs.Disconnect()
		return models.NavigationMetrics{}, true, ctx.Err()
	}
}

// readNavigation uses the first existing navigation entry, falling back to
// the legacy single-record timing object
func readNavigation(env browser.Environment) (models.NavigationMetrics, error) {
	if entries := env.EntriesByType(models.EntryTypeNavigation); len(entries) > 0 {
		return Extract(entries[0]), nil
	}
	if legacy, ok := env.LegacyTiming(); ok {
		return Extract(legacy), nil
	}
	return models.NavigationMetrics{}, ErrUnsupportedEnvironment
}
