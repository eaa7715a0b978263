package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// StaleAfter is how long without a finished page session before the
// process reports unhealthy
const StaleAfter = 5 * time.Minute

// Server provides a health check endpoint
type Server struct {
	config *Config
	server *http.Server

	mu              sync.RWMutex
	lastSessionTime time.Time
	sessionCount    int64
	successCount    int64
	failureCount    int64
	signalCounts    map[models.SignalType]int64
	isHealthy       bool
	now             func() time.Time
}

// Config contains health check server configuration
type Config struct {
	Enabled       bool
	Port          int
	Path          string
	ListenAddress string
}

// Response is the JSON response structure
type Response struct {
	Status          string           `json:"status"`
	Timestamp       time.Time        `json:"timestamp"`
	LastSessionTime time.Time        `json:"last_session_time,omitempty"`
	SessionCount    int64            `json:"session_count"`
	SuccessCount    int64            `json:"success_count"`
	FailureCount    int64            `json:"failure_count"`
	Signals         map[string]int64 `json:"signals"`
	Uptime          string           `json:"uptime"`
}

var startTime = time.Now()

// New creates a health server without starting its listener
func New(cfg *Config) *Server {
	h := &Server{
		config:       cfg,
		signalCounts: make(map[models.SignalType]int64),
		isHealthy:    true,
		now:          time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, h.handleHealth)

	h.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return h
}

// NewServer creates and starts a health check server, or returns nil when
// disabled. A nil *Server is safe to use.
func NewServer(cfg *Config) (*Server, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	h := New(cfg)

	go func() {
		log.Printf("Health check endpoint started on %s%s", h.server.Addr, cfg.Path)
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Health check server error: %v", err)
		}
	}()

	return h, nil
}

// Handler returns the HTTP handler serving the health path
func (h *Server) Handler() http.Handler {
	return h.server.Handler
}

func (h *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	status := "healthy"
	statusCode := http.StatusOK

	if h.sessionCount > 0 && now.Sub(h.lastSessionTime) > StaleAfter {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	if !h.isHealthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	signals := make(map[string]int64, len(h.signalCounts))
	for t, n := range h.signalCounts {
		signals[string(t)] = n
	}

	response := Response{
		Status:          status,
		Timestamp:       now,
		LastSessionTime: h.lastSessionTime,
		SessionCount:    h.sessionCount,
		SuccessCount:    h.successCount,
		FailureCount:    h.failureCount,
		Signals:         signals,
		Uptime:          time.Since(startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}

// RecordSession records a finished page session. A session succeeds when
// the page loaded, whether or not every signal was acquired.
func (h *Server) RecordSession(success bool) {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastSessionTime = h.now()
	h.sessionCount++

	if success {
		h.successCount++
	} else {
		h.failureCount++
	}
}

// RecordSignal counts an uploaded signal
func (h *Server) RecordSignal(t models.SignalType) {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.signalCounts[t]++
}

// SetHealthy sets the health status
func (h *Server) SetHealthy(healthy bool) {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.isHealthy = healthy
}

// Stats returns current session counters
func (h *Server) Stats() (sessions, successes, failures int64, last time.Time) {
	if h == nil {
		return 0, 0, 0, time.Time{}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.sessionCount, h.successCount, h.failureCount, h.lastSessionTime
}

// Close shuts down the health check server
func (h *Server) Close() error {
	if h == nil || h.server == nil {
		return nil
	}

	log.Println("Shutting down health check server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return h.server.Shutdown(ctx)
}
