// Package http is the thin HTTP adapter: it maps one incoming request onto
// one operation, hands it to the transactional service, and serializes the
// result (or the error envelope) back. All CRUD semantics live below the
// adapter; nothing here touches SQL.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/faucetdb/api-maker/internal/adapter/http/middleware"
	"github.com/faucetdb/api-maker/internal/model"
	"github.com/faucetdb/api-maker/internal/operation"
)

// Executor runs one operation in one transaction. txservice.Service is the
// production implementation.
type Executor interface {
	Execute(ctx context.Context, op operation.Operation) ([]map[string]any, error)
}

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	MaxBodySize     int64 // bytes

	// EnableCORS mounts the CORS handler. It mirrors the gateway
	// document's preflight section: the adapter serves cross-origin
	// requests only when the generated spec declares them.
	EnableCORS  bool
	CORSOrigins []string

	// RateLimitPerMinute caps requests per client IP; 0 disables limiting.
	RateLimitPerMinute int

	// Authorizer, when non-nil, gates every entity route behind the token
	// authorizer hook.
	Authorizer middleware.TokenAuthorizer
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ShutdownTimeout:    30 * time.Second,
		CORSOrigins:        []string{"*"},
		MaxBodySize:        10 * 1024 * 1024, // 10MB
		RateLimitPerMinute: 600,
	}
}

// Server is the top-level HTTP server. It owns the Chi router, the executor,
// the model, and the generated gateway document it serves at /openapi.json.
type Server struct {
	cfg        Config
	router     chi.Router
	exec       Executor
	model      *model.Model
	gatewayDoc *openapi3.T
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, exec Executor, m *model.Model, gatewayDoc *openapi3.T, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:        cfg,
		exec:       exec,
		model:      m,
		gatewayDoc: gatewayDoc,
		logger:     logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	if s.cfg.RateLimitPerMinute > 0 {
		r.Use(middleware.RateLimit(s.cfg.RateLimitPerMinute))
	}
	if s.cfg.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(chimw.Compress(5))

	r.Get("/healthz", s.handleHealthz)
	if s.gatewayDoc != nil {
		r.Get("/openapi.json", s.handleOpenAPI)
	}

	r.Group(func(r chi.Router) {
		if s.cfg.Authorizer != nil {
			r.Use(middleware.Authorize(s.cfg.Authorizer))
		}

		r.Route("/{entity}", func(r chi.Router) {
			r.Post("/", s.handleEntity(operation.ActionCreate, false, false))
			r.Get("/", s.handleEntity(operation.ActionRead, false, false))
			r.Put("/", s.handleEntity(operation.ActionUpdate, false, false))
			r.Delete("/", s.handleEntity(operation.ActionDelete, false, false))

			r.Route("/{key}", func(r chi.Router) {
				r.Get("/", s.handleEntity(operation.ActionRead, true, false))
				r.Put("/", s.handleEntity(operation.ActionUpdate, true, false))
				r.Delete("/", s.handleEntity(operation.ActionDelete, true, false))

				r.Route("/{versionName}/{versionValue}", func(r chi.Router) {
					r.Put("/", s.handleEntity(operation.ActionUpdate, true, true))
					r.Delete("/", s.handleEntity(operation.ActionDelete, true, true))
				})
			})
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleOpenAPI serves the generated gateway document.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(s.gatewayDoc)
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received, then drains in-flight requests before returning.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
