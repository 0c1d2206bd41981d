package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"openserver-hq/guardrails/pkg/config"
	"openserver-hq/guardrails/pkg/server/handlers"
	"openserver-hq/guardrails/pkg/server/middleware"
	"openserver-hq/guardrails/pkg/server/ratelimit"
	"openserver-hq/guardrails/pkg/telemetry/health"
	"openserver-hq/guardrails/pkg/telemetry/metrics"
	"openserver-hq/guardrails/pkg/telemetry/tracing"
)

// Deps are the components the server routes to.
type Deps struct {
	Moderator handlers.Moderator
	Health    *health.Checker
	Version   health.VersionInfo

	// Metrics instruments the API routes and serves MetricsPath. Nil
	// disables both.
	Metrics     *metrics.Collector
	MetricsPath string

	Tracer *tracing.Tracer
	Logger *slog.Logger
}

// Server is the guardrails HTTP server.
type Server struct {
	config  config.ServerConfig
	deps    Deps
	logger  *slog.Logger
	handler http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// New creates a server. Routes are built once here.
func New(cfg config.ServerConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Tracer == nil {
		deps.Tracer = tracing.Noop()
	}
	if deps.Health == nil {
		deps.Health = health.New(0)
	}
	if deps.MetricsPath == "" {
		deps.MetricsPath = config.DefaultMetricsPath
	}

	s := &Server{config: cfg, deps: deps, logger: deps.Logger.With("component", "server")}
	s.handler = s.routes()
	return s
}

// Handler returns the HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	h := handlers.New(s.deps.Moderator, s.deps.Logger)
	limit := middleware.RateLimit(ratelimit.New(ratelimit.Config{
		Rate:  s.config.RateLimit.RequestsPerSecond,
		Burst: s.config.RateLimit.Burst,
	}))

	handle := func(pattern, route string, fn http.HandlerFunc) {
		handler := limit(fn)
		if s.deps.Metrics != nil {
			handler = s.deps.Metrics.InstrumentHandler(route, handler)
		}
		mux.Handle(pattern, handler)
	}
	handle("POST /v1/moderations", "/v1/moderations", h.Moderations)
	handle("POST /v1/classifications", "/v1/classifications", h.Classifications)
	handle("POST /v1/inference-mitigation", "/v1/inference-mitigation", h.InferenceMitigation)

	mux.Handle("/health", s.deps.Health.LivenessHandler())
	mux.Handle("/ready", s.deps.Health.ReadinessHandler())
	mux.Handle("/version", health.VersionHandler(s.deps.Version))
	if s.deps.Metrics != nil {
		mux.Handle("GET "+s.deps.MetricsPath, s.deps.Metrics.Handler())
	}

	return middleware.Chain(mux,
		middleware.Recovery(s.deps.Logger),
		middleware.RequestID,
		tracing.HTTPMiddleware(s.deps.Tracer),
		middleware.Logging(s.deps.Logger),
		middleware.BodyLimit(s.config.MaxBodyBytes),
	)
}

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		_ = ln.Close()
		return errors.New("server is already running")
	}
	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.listener = ln
	srv := s.httpServer
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting guardrails server", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.logger.Info("guardrails server stopped")
	return nil
}

// Addr returns the listening address, or "" before Serve.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
