// Package export serves the latest page lifecycle store of every site over
// HTTP, so deferred signals can be pulled instead of pushed.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nickborgers/monorepo/pagegaze/internal/models"
	"github.com/nickborgers/monorepo/pagegaze/internal/store"
)

// Config contains export server configuration
type Config struct {
	Enabled       bool
	Port          int
	ListenAddress string
}

// Server exposes a store.Registry as JSON
type Server struct {
	registry *store.Registry
	router   chi.Router
	server   *http.Server
}

// New builds the export router without starting a listener
func New(cfg *Config, registry *store.Registry) *Server {
	s := &Server{registry: registry}

	r := chi.NewRouter()
	r.Route("/signals", func(r chi.Router) {
		r.Get("/", s.handleAll)
		r.Get("/{site}", s.handleSite)
		r.Get("/{site}/{type}", s.handleSignal)
	})
	s.router = r

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// NewServer starts the export server, or returns nil when disabled
func NewServer(cfg *Config, registry *store.Registry) *Server {
	if !cfg.Enabled {
		return nil
	}

	s := New(cfg, registry)
	go func() {
		log.Printf("Signal export endpoint started on %s/signals", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Signal export server error: %v", err)
		}
	}()
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleAll(w http.ResponseWriter, _ *http.Request) {
	sites := make(map[string]map[models.SignalType]models.Envelope)
	for _, name := range s.registry.Sites() {
		if st, ok := s.registry.Get(name); ok {
			sites[name] = st.Snapshot()
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sites": sites})
}

func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	site := chi.URLParam(r, "site")
	st, ok := s.registry.Get(site)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown site %q", site))
		return
	}
	writeJSON(w, http.StatusOK, st.Snapshot())
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	site := chi.URLParam(r, "site")
	t, ok := models.ParseSignalType(chi.URLParam(r, "type"))
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown signal type %q", chi.URLParam(r, "type")))
		return
	}

	st, ok := s.registry.Get(site)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown site %q", site))
		return
	}

	env, ok := st.Get(t)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no %s signal recorded for %q", t, site))
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding export response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Close shuts down the export server
func (s *Server) Close() error {
	if s == nil || s.server == nil {
		return nil
	}

	log.Println("Shutting down signal export server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}
