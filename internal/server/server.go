// Package server assembles the chi router and runs the HTTP server with
// graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/book-expert/audiobook-service/internal/api/handlers"
	"github.com/book-expert/audiobook-service/internal/api/middleware"
	"github.com/book-expert/audiobook-service/internal/config"
)

// Server is the HTTP front of the audiobook service.
type Server struct {
	httpServer *http.Server
	cfg        config.HTTPConfig
	log        *logger.Logger
}

// New builds the router and the server around it.
func New(
	cfg config.HTTPConfig,
	handler *handlers.Handler,
	tokens middleware.Authenticator,
	db handlers.Pinger,
	log *logger.Logger,
) *Server {
	router := NewRouter(handler, tokens, db, log)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
			WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		},
		cfg: cfg,
		log: log,
	}
}

// NewRouter assembles the chi router with the full middleware stack and
// every API route.
func NewRouter(
	handler *handlers.Handler,
	tokens middleware.Authenticator,
	db handlers.Pinger,
	log *logger.Logger,
) chi.Router {
	router := chi.NewRouter()

	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.RequestLogging(log))
	router.Use(middleware.Metrics())

	router.Get("/healthz", handlers.Health(db))
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Route("/api/v1", func(api chi.Router) {
		api.Route("/auth", func(r chi.Router) {
			r.Post("/register", handler.Register)
			r.Post("/login", handler.Login)
			r.Post("/refresh", handler.Refresh)
		})

		api.Route("/books", func(r chi.Router) {
			r.Use(middleware.RequireAuth(tokens))
			r.Post("/", handler.UploadBook)
			r.Get("/", handler.ListBooks)
			r.Get("/{bookID}", handler.GetBook)
			r.Delete("/{bookID}", handler.DeleteBook)
		})

		api.Route("/audio", func(r chi.Router) {
			// Download authorizes itself: session or capability token.
			r.Get("/{jobID}/download", handler.Download)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth(tokens))
				r.Post("/generate", handler.Generate)
				r.Get("/", handler.ListJobs)
				r.Get("/{jobID}", handler.GetJob)
				r.Get("/{jobID}/status", handler.JobStatus)
				r.Post("/{jobID}/download-token", handler.IssueDownloadToken)
				r.Delete("/{jobID}", handler.DeleteJob)
			})
		})
	})

	return router
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("HTTP server listening on %s", s.httpServer.Addr)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(s.cfg.ShutdownTimeoutSeconds)*time.Second,
	)
	defer cancel()

	shutdownErr := s.httpServer.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		return fmt.Errorf("failed to shut down http server: %w", shutdownErr)
	}

	s.log.Info("HTTP server stopped")

	return nil
}
