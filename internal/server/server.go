// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the wiring layer: it decides which URL maps to which
// handler, which middleware runs on which routes, and how the server stops.
// Repositories, the conversion engine and the verifier are built by main
// and injected, so tests can run the full router against in-memory storage.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/signature-plotter/internal/auth"
	"github.com/sakif/signature-plotter/internal/handler"
	"github.com/sakif/signature-plotter/internal/middleware"
	"github.com/sakif/signature-plotter/internal/service"
)

// Config holds server configuration.
type Config struct {
	Port           int
	TrustedOrigins []string
	MaxUploadBytes int64
	// ShutdownTimeout bounds how long in-flight requests may run after a
	// shutdown signal. Zero means 30 seconds.
	ShutdownTimeout time.Duration
}

// Dependencies are the application services the routes are built on.
type Dependencies struct {
	Verifier    *auth.Verifier
	Conversion  *service.ConversionService
	Submissions *service.SubmissionService
}

// Server represents the HTTP server and its router.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
}

// New creates a Server with all routes registered.
func New(cfg Config, deps Dependencies, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	s.setupRoutes(deps)
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// POST /api/convert           → SVG to G-code (open, any origin)
// GET  /api/health            → health check (open, any origin)
// POST /api/signed/submit     → store profile + signature (HMAC, trusted origins)
// POST /api/signed/retrieve   → fetch profile + signatures (HMAC, trusted origins)
//
// Trailing slashes are stripped, so /api/convert/ works too.
//
// CORS:
// The open routes answer any origin. The signed routes only send CORS
// headers to trusted origins; the handlers check the Origin header again
// as part of signature verification, so CORS is never the only barrier.
func (s *Server) setupRoutes(deps Dependencies) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(chimiddleware.StripSlashes)

	openCORS := cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		MaxAge:         300,
	})
	signedCORS := cors.Handler(cors.Options{
		AllowedOrigins: s.config.TrustedOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})

	convertHandler := handler.NewConvertHandler(deps.Conversion, s.config.MaxUploadBytes, s.logger)
	signedHandler := handler.NewSignedHandler(deps.Verifier, deps.Submissions, s.config.MaxUploadBytes, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		// Group middleware only wraps registered endpoints, so preflight
		// requests need their own OPTIONS routes to reach the CORS handler.
		r.Group(func(r chi.Router) {
			r.Use(openCORS)
			r.Post("/convert", convertHandler.HandleConvert)
			r.Options("/convert", noContent)
			r.Get("/health", handler.HandleHealth)
			r.Options("/health", noContent)
		})
		r.Route("/signed", func(r chi.Router) {
			r.Use(signedCORS)
			r.Post("/submit", signedHandler.HandleSubmit)
			r.Post("/retrieve", signedHandler.HandleRetrieve)
		})
	})
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully:
// stop accepting connections, wait for in-flight requests, return.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second, // conversions can be slow
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	}
}
