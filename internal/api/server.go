package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seantiz/esgqa/internal/auth"
	"github.com/seantiz/esgqa/internal/engine"
	"github.com/seantiz/esgqa/internal/ratelimit"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
)

// Options tunes the simulated upstream answer endpoint.
type Options struct {
	// UpstreamDelay is the response latency of POST /aiml/answer.
	UpstreamDelay engine.Range
	// UpstreamErrorRate is the probability POST /aiml/answer fails with a 500.
	UpstreamErrorRate float64
	Random            engine.Random
}

// DefaultOptions returns a 0.5-1.5s upstream latency and a 5% error rate.
func DefaultOptions() Options {
	return Options{
		UpstreamDelay:     engine.Range{Min: 500 * time.Millisecond, Max: 1500 * time.Millisecond},
		UpstreamErrorRate: 0.05,
		Random:            engine.DefaultOptions().Random,
	}
}

// Server wraps the chi router and application dependencies.
type Server struct {
	router  *chi.Mux
	engine  *engine.Engine
	auth    *auth.Manager
	limiter ratelimit.Limiter
	opts    Options
	logger  *slog.Logger
	addr    string
}

// NewServer creates and configures a new HTTP server.
func NewServer(addr string, eng *engine.Engine, am *auth.Manager, limiter ratelimit.Limiter, logger *slog.Logger, opts Options) *Server {
	if opts.Random == nil {
		opts.Random = engine.DefaultOptions().Random
	}
	srv := &Server{
		router:  chi.NewRouter(),
		engine:  eng,
		auth:    am,
		limiter: limiter,
		opts:    opts,
		logger:  logger,
		addr:    addr,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", metricsHandler())
	s.router.Get("/ws", s.handleWebSocket)
	s.router.Get("/", s.handleRootUpgrade)
	s.router.Post("/aiml/answer", s.handleUpstreamAnswer)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Post("/auth/logout", s.handleLogout)
			r.Post("/qa", s.handleSubmitQuestion)
			r.Get("/qa", s.handleListAnswers)
			r.Get("/qa/{jobId}", s.handleGetJob)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/stats", s.handleGetStats)
				r.Post("/admin/companies/upload", s.handleUploadCompanies)
			})
		})
	})

	s.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "Endpoint not found")
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
