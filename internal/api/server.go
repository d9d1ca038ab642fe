// Package api serves every HTTP surface of crispbridge: the Crisp webhook,
// the embedded settings page, and the operator endpoints.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/crispbridge/internal/auth"
	"github.com/mattjoyce/crispbridge/internal/events"
	"github.com/mattjoyce/crispbridge/internal/metrics"
	"github.com/mattjoyce/crispbridge/internal/settings"
	"github.com/mattjoyce/crispbridge/internal/storage"
	"github.com/mattjoyce/crispbridge/internal/webhook"
)

// Gate guards the settings page.
type Gate interface {
	Middleware(next http.Handler) http.Handler
}

// JournalReader lists recently received webhooks.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]storage.Entry, error)
}

// HealthCheck checks one dependency; nil means healthy.
type HealthCheck func(ctx context.Context) error

// Config holds API server configuration
type Config struct {
	Listen string
	// SettingsPath is the settings page route, without leading slash.
	SettingsPath    string
	OpsAPIKey       string
	ShutdownTimeout time.Duration
}

// Deps are the components the server routes to. Journal and Checks are optional.
type Deps struct {
	Webhook  *webhook.Handler
	Gate     Gate
	Settings *settings.Controller
	Events   *events.Hub
	Journal  JournalReader
	Checks   map[string]HealthCheck
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	deps      Deps
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance
func New(config Config, deps Deps, logger *slog.Logger) *Server {
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:    config,
		deps:      deps,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No write timeout: /ops/events streams stay open.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// SettingsRoute is the mounted settings page path.
func (s *Server) SettingsRoute() string {
	return "/" + strings.Trim(s.config.SettingsPath, "/")
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated.
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/openapi.json", s.handleOpenAPI)

	// Signed by Crisp.
	if s.deps.Webhook != nil {
		s.deps.Webhook.Mount(r)
	}

	// Token-gated settings page.
	if s.deps.Settings != nil && s.deps.Gate != nil {
		r.Group(func(r chi.Router) {
			r.Use(s.deps.Gate.Middleware)
			r.Get(s.SettingsRoute(), s.handleSettings)
			r.Post(s.SettingsRoute(), s.handleSettings)
		})
	}

	// Operator endpoints exist only when a key is configured.
	if s.config.OpsAPIKey != "" {
		r.Route("/ops", func(r chi.Router) {
			r.Use(auth.Middleware(s.config.OpsAPIKey, s.writeError))
			if s.deps.Events != nil {
				r.Get("/events", s.handleWebhookStream)
			}
			if s.deps.Journal != nil {
				r.Get("/webhooks", s.handleJournal)
			}
		})
	}

	return r
}

// loggingMiddleware logs HTTP requests and records request metrics
// under the matched route pattern.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		elapsed := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPLatency.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
