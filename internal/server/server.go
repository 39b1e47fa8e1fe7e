// Package server exposes the generation service over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/readmegen/internal/config"
	apperrors "git.home.luguber.info/inful/readmegen/internal/errors"
	"git.home.luguber.info/inful/readmegen/internal/events"
	"git.home.luguber.info/inful/readmegen/internal/generator"
	"git.home.luguber.info/inful/readmegen/internal/identity"
	"git.home.luguber.info/inful/readmegen/internal/observability"
	"git.home.luguber.info/inful/readmegen/internal/storage"
)

const sessionCookieName = "readmegen_session"

// Options carries the collaborators the server needs. Publisher may be nil.
type Options struct {
	Store     storage.Store
	Identity  *identity.Service
	Generator *generator.Generator
	Publisher *events.Publisher
	// InspectorFor backs repository validation, bound to the same credential
	// selection the generator uses.
	InspectorFor generator.InspectorFactory
	// FallbackToken authenticates GitHub reads for anonymous callers.
	FallbackToken string
}

// Server wires handlers, middleware and the HTTP listener.
type Server struct {
	cfg          *config.Config
	opts         Options
	errorAdapter *apperrors.HTTPErrorAdapter
	httpServer   *http.Server

	// defaults may be swapped by the config watcher while serving.
	defaultsMu sync.RWMutex
	defaults   config.GenerationSettings

	// outstanding OAuth states, consumed on callback.
	statesMu sync.Mutex
	states   map[string]time.Time
}

// New constructs the server.
func New(cfg *config.Config, opts Options) *Server {
	return &Server{
		cfg:          cfg,
		opts:         opts,
		errorAdapter: apperrors.NewHTTPErrorAdapter(slog.Default()),
		defaults:     cfg.Defaults,
		states:       make(map[string]time.Time),
	}
}

// Handler builds the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/generate-readme", s.handleGenerate)
	mux.HandleFunc("GET /api/generate-readme/stream", s.handleGenerateStream)
	mux.HandleFunc("GET /api/readme/{id}", s.handleGetReadme)
	mux.HandleFunc("GET /api/readme/{id}/download", s.handleDownloadReadme)
	mux.HandleFunc("GET /api/readme/{id}/preview", s.handlePreviewReadme)
	mux.HandleFunc("GET /api/recent-generations", s.handleRecentGenerations)
	mux.HandleFunc("POST /api/validate-repository", s.handleValidateRepository)

	mux.HandleFunc("GET /auth/github", s.handleAuthRedirect)
	mux.HandleFunc("GET /auth/github/callback", s.handleAuthCallback)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.HandleFunc("GET /api/user", s.handleUser)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", observability.MetricsHandler())

	return chain(slog.Default(), s.errorAdapter)(mux)
}

// Start binds the listener and serves until Stop. Binding happens before
// serving so port conflicts surface as a startup error.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("http startup failed: %w", err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("HTTP server listening", "addr", addr)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// ApplyDefaults replaces the generation defaults. Called by the config
// watcher on reload.
func (s *Server) ApplyDefaults(defaults config.GenerationSettings) {
	s.defaultsMu.Lock()
	defer s.defaultsMu.Unlock()
	s.defaults = defaults
}

func (s *Server) currentDefaults() config.GenerationSettings {
	s.defaultsMu.RLock()
	defer s.defaultsMu.RUnlock()
	return s.defaults
}

// newOAuthState delegates to the identity package. Declared here because
// the handlers shadow the package name with local variables.
func newOAuthState() (string, error) {
	return identity.NewState()
}

// rememberState registers an OAuth state for later consumption. Stale
// states are pruned as a side effect.
func (s *Server) rememberState(state string) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for k, created := range s.states {
		if created.Before(cutoff) {
			delete(s.states, k)
		}
	}
	s.states[state] = time.Now()
}

// consumeState validates and removes an OAuth state.
func (s *Server) consumeState(state string) bool {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()

	created, ok := s.states[state]
	if !ok {
		return false
	}
	delete(s.states, state)
	return time.Since(created) < 10*time.Minute
}
