package pageloop

import (
	"sync"

	"github.com/nickborgers/monorepo/pagegaze/internal/metrics"
	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// sessionUploader dispatches reports off the producer's goroutine so page
// callbacks never wait on outputs. Close waits for the reports accepted
// while the session was open; later ones are dispatched untracked.
type sessionUploader struct {
	dispatcher *metrics.Dispatcher

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func newSessionUploader(dispatcher *metrics.Dispatcher) *sessionUploader {
	return &sessionUploader{dispatcher: dispatcher}
}

// Upload hands the report to the dispatcher and returns immediately
func (u *sessionUploader) Upload(report *models.Report) {
	u.mu.Lock()
	tracked := !u.closed
	if tracked {
		u.inflight.Add(1)
	}
	u.mu.Unlock()

	go func() {
		if tracked {
			defer u.inflight.Done()
		}
		u.dispatcher.Dispatch(report)
	}()
}

// Close waits until every tracked report has been written by all outputs
func (u *sessionUploader) Close() {
	u.mu.Lock()
	u.closed = true
	u.mu.Unlock()

	u.inflight.Wait()
}
