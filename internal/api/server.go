package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-ingest/internal/batch"
	"github.com/nerrad567/gray-logic-ingest/internal/deadletter"
	"github.com/nerrad567/gray-logic-ingest/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-ingest/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-ingest/internal/point"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Writer is the part of batch.Writer the API drives.
type Writer interface {
	Stats() batch.Stats
	FlushNow(ctx context.Context) error
	WriteBatch(ctx context.Context, b *point.Batch) error
}

// HealthChecker is implemented by every infrastructure client
// (transports, MQTT, database).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	Logger      *logging.Logger
	Writer      Writer
	DeadLetters deadletter.Repository    // optional: dead-letter endpoints answer 503 without it
	Components  map[string]HealthChecker // reported by /health, keyed by name
	Version     string
}

// Server is the admin HTTP server for Gray Logic Ingest.
//
// It manages the HTTP listener, routes and middleware.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	logger      *logging.Logger
	writer      Writer
	deadLetters deadletter.Repository
	replayer    *deadletter.Replayer
	components  map[string]HealthChecker
	version     string
	startTime   time.Time
	server      *http.Server
	addr        string
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, writer); dead letters and
//     components are optional
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Writer == nil {
		return nil, fmt.Errorf("writer is required")
	}

	s := &Server{
		cfg:         deps.Config,
		logger:      deps.Logger,
		writer:      deps.Writer,
		deadLetters: deps.DeadLetters,
		components:  deps.Components,
		version:     deps.Version,
		startTime:   time.Now(),
	}
	if s.deadLetters != nil {
		s.replayer = deadletter.NewReplayer(s.deadLetters, s.writer)
	}

	return s, nil
}

// Start binds the listen address and serves in the background. Binding
// happens before Start returns, so a port already in use is reported to the
// caller instead of only being logged.
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(_ context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding API listener on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}
	s.addr = ln.Addr().String()

	go func() {
		s.logger.Info("API server listening", "address", s.addr)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string { return s.addr }

// Close stops accepting connections and waits up to
// gracefulShutdownTimeout for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports an error until Start has bound the listener.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
