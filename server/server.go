package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jonwraymond/agriroute/classify"
	"github.com/jonwraymond/agriroute/health"
	"github.com/jonwraymond/agriroute/orchestrate"
)

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address.
	// Default: ":8080"
	Addr string

	// RatePerSecond is the inbound request rate. Zero disables limiting.
	RatePerSecond float64

	// Burst is the inbound burst.
	// Default: 1
	Burst int

	// ReadTimeout bounds reading a request.
	// Default: 10s
	ReadTimeout time.Duration

	// WriteTimeout bounds writing a response.
	// Default: 30s
	WriteTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration

	// MaxBodyBytes caps request bodies.
	// Default: DefaultMaxBodyBytes
	MaxBodyBytes int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHealth mounts the health routes.
func WithHealth(agg *health.Aggregator) Option {
	return func(s *Server) { s.health = agg }
}

// WithGatherer mounts /metrics for the given registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithClassifier enables POST /v1/classify.
func WithClassifier(c *classify.Classifier) Option {
	return func(s *Server) { s.classifier = c }
}

// WithTracer adds a server span per request.
func WithTracer(t trace.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithRequestIDs sets the request ID generator. Default: uuid.NewString.
func WithRequestIDs(next func() string) Option {
	return func(s *Server) { s.newID = next }
}

// Server serves the agriroute HTTP API.
type Server struct {
	config     Config
	orch       *orchestrate.Orchestrator
	classifier *classify.Classifier
	health     *health.Aggregator
	gatherer   prometheus.Gatherer
	tracer     trace.Tracer
	logger     *zap.Logger
	newID      func() string
	handler    http.Handler
}

// New builds the server and its handler chain.
func New(orch *orchestrate.Orchestrator, config Config, opts ...Option) *Server {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 30 * time.Second
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 15 * time.Second
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{config: config, orch: orch, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "server"))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/query", s.handleQuery)
	mux.HandleFunc("POST /v1/classify", s.handleClassify)
	mux.HandleFunc("GET /v1/cache/{category}/stats", s.handleCacheStats)
	mux.HandleFunc("POST /v1/cache/{category}/invalidate", s.handleCacheInvalidate)
	mux.HandleFunc("GET /v1/limits", s.handleLimits)
	if s.health != nil {
		health.RegisterHandlers(mux, s.health)
	}
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// Probes and scrapes bypass the inbound limiter.
	limited := RateLimiter(config.RatePerSecond, config.Burst, s.logger)(mux)
	root := http.NewServeMux()
	root.Handle("/", limited)
	root.Handle("/healthz", mux)
	root.Handle("/readyz", mux)
	root.Handle("/metrics", mux)

	chain := []Middleware{Recovery(s.logger), RequestID(s.newID)}
	if s.tracer != nil {
		chain = append(chain, Tracing(s.tracer))
	}
	chain = append(chain, RequestLogger(s.logger))
	s.handler = Chain(root, chain...)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully within ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       2 * s.config.ReadTimeout,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on Config.Addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
