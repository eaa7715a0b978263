package store

import (
	"log/slog"
	"sync"

	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// Store holds the latest envelope per signal type for one page lifecycle.
// Each type has a single writer by convention; a second Set for the same
// type replaces the first.
type Store struct {
	mu      sync.RWMutex
	entries map[models.SignalType]models.Envelope
	logger  *slog.Logger
}

// New creates an empty store
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		entries: make(map[models.SignalType]models.Envelope),
		logger:  logger,
	}
}

// Set records the envelope for a signal type
func (s *Store) Set(t models.SignalType, env models.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[t]; exists {
		s.logger.Debug("store: replacing signal", "type", t)
	}
	s.entries[t] = env
}

// Get returns the envelope for a signal type, if one was recorded
func (s *Store) Get(t models.SignalType) (models.Envelope, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	env, ok := s.entries[t]
	return env, ok
}

// Len returns the number of recorded signal types
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns a copy of all recorded envelopes
func (s *Store) Snapshot() map[models.SignalType]models.Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[models.SignalType]models.Envelope, len(s.entries))
	for t, env := range s.entries {
		snapshot[t] = env
	}
	return snapshot
}
