// Package api provides the HTTP surface for claim intake, adjudication, and
// policy management.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openclaims/gavel/internal/domain"
	"github.com/openclaims/gavel/internal/engine"
	"github.com/openclaims/gavel/internal/policy"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, ledger domain.Ledger, bus domain.EventBus, eng *engine.Engine, policies *policy.Engine, version string) *Server {
	handler := NewHandler(repo, ledger, bus, eng, policies, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no actor required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes
	router.Route("/", func(r chi.Router) {
		r.Use(ActorMiddleware)

		// Claim intake and adjudication
		r.Post("/claims", handler.SubmitClaim)
		r.Post("/claims/evaluate", handler.EvaluateClaim)
		r.Post("/claims/batch", handler.EvaluateBatch)
		r.Post("/claims/extracted", handler.CreateExtractedClaim)

		// Claim retrieval
		r.Get("/claims/{id}", handler.GetClaim)
		r.Get("/claims/{id}/explanation", handler.GetClaimExplanation)
		r.Get("/claims/{id}/history", handler.GetClaimHistory)

		// Patient view
		r.Get("/patients/{id}/claims", handler.ListPatientClaims)

		// Decision retrieval
		r.Get("/decisions/{id}", handler.GetDecision)

		// Policy rule management
		r.Get("/policies", handler.ListPolicies)
		r.Get("/policies/{id}", handler.GetPolicy)
		r.Post("/policies", handler.CreatePolicy)
		r.Post("/policies/reload", handler.ReloadPolicies)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
