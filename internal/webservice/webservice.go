// Package webservice provides an HTTP server accepting frames to ingest over multipart requests.
package webservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/laav10/astro-ingester/internal/metrics"
	"github.com/laav10/astro-ingester/internal/webservice/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is a struct that holds the HTTP server and its configuration.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger

	mu   sync.RWMutex
	addr net.Addr

	// This context is used to interrupt any action.
	// It must be the parent of gracefulCtx.
	ctx    context.Context
	cancel context.CancelFunc

	// This context waits for in-flight requests before interrupting.
	gracefulCtx    context.Context
	gracefulCancel context.CancelFunc
}

// Config holds the configuration of the server.
type Config struct {
	ListenHost     string        `mapstructure:"listen-host"`
	ListenPort     int           `mapstructure:"listen-port"`
	UploadDir      string        `mapstructure:"upload-dir"`
	MaxUploadBytes int64         `mapstructure:"max-upload-bytes"`
	ReadTimeout    time.Duration `mapstructure:"read-timeout"`
	WriteTimeout   time.Duration `mapstructure:"write-timeout"`
}

type options struct {
	log *slog.Logger
}

// Option is a functional option for the server.
type Option func(*options)

// WithLogger sets the logger of the server.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// New creates a new Server running ingestions with runner and exposing the metrics of rec.
func New(ctx context.Context, cfg Config, runner handlers.Runner, rec *metrics.Recorder, args ...Option) (*Server, error) {
	if cfg.UploadDir == "" {
		return nil, errors.New("upload directory is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("invalid maximum upload size: %d", cfg.MaxUploadBytes)
	}

	opts := options{log: slog.Default()}
	for _, opt := range args {
		opt(&opts)
	}

	ctx, cancel := context.WithCancel(ctx)
	gCtx, gCancel := context.WithCancel(ctx)

	s := Server{
		log:    opts.log,
		ctx:    ctx,
		cancel: cancel,

		gracefulCtx:    gCtx,
		gracefulCancel: gCancel,
	}

	reg := rec.Registry()
	ingest := handlers.NewIngest(runner, cfg.UploadDir, cfg.MaxUploadBytes, rec)

	mux := http.NewServeMux()
	mux.Handle("POST /api/ingest", metrics.Monitor(reg, "ingest", ingest))
	mux.Handle("GET /api/health", metrics.Monitor(reg, "health", http.HandlerFunc(handlers.HealthHandler)))
	mux.Handle("GET /version", http.HandlerFunc(handlers.VersionHandler))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.ListenHost, fmt.Sprint(cfg.ListenPort)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Handler:      allowCrossOrigin(mux),
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	return &s, nil
}

// Handler returns the root handler of the server.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the address the server listens on, or the configured one before it starts.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.addr != nil {
		return s.addr.String()
	}
	return s.httpServer.Addr
}

// Run starts the HTTP server and listens for incoming requests until Quit is called.
func (s *Server) Run() error {
	// already asked to quit?
	select {
	case <-s.gracefulCtx.Done():
		return errors.New("server is already shutting down")
	default:
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("failed to listen on %s: %v", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.log.Info("Starting server", "addr", ln.Addr())

	serverErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-s.gracefulCtx.Done():
		s.log.Info("Graceful shutdown initiated")
		// Parent ctx, so that a forced quit unblocks Shutdown immediately.
		if err := s.httpServer.Shutdown(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("Graceful shutdown failed", "err", err)
			s.cancel()
			return err
		}
		s.log.Info("Server shut down gracefully")
		s.cancel()
		return nil

	case err := <-serverErr:
		if err != nil {
			s.log.Error("Server encountered error", "err", err)
		}
		s.cancel()
		return err
	}
}

// Quit shuts down the HTTP server, waiting for in-flight ingestions unless force is set.
func (s *Server) Quit(force bool) {
	if force {
		_ = s.httpServer.Close()
		s.cancel()
	} else {
		s.gracefulCancel()
	}
	s.log.Info("Server quit")
}

// allowCrossOrigin lets browser front ends hosted elsewhere call the API.
func allowCrossOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
