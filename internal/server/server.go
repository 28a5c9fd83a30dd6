// Package server exposes the generation service over HTTP.
//
// Routes:
//
//	GET  /api/patterns   sorted .xml names in the patterns directory
//	POST /api/generate   compose the requested layers, respond with a zip
//	GET  /healthz        liveness
//
// The handler is served with cleartext HTTP/2 (h2c) alongside HTTP/1.1.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/roach88/patternweave/internal/eventb"
	"github.com/roach88/patternweave/internal/generate"
	"github.com/roach88/patternweave/internal/publish"
	"github.com/roach88/patternweave/internal/store"
)

const (
	defaultTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	maxRequestBody  = 1 << 20
)

// Recorder persists completed runs.
type Recorder interface {
	RecordRun(ctx context.Context, project string, layers [][]string, artifacts []eventb.Artifact) (store.Run, error)
}

// Options configures a Server. Service and PatternsDir are required; the
// rest is optional.
type Options struct {
	Addr        string
	PatternsDir string

	Service   *generate.Service
	Writer    *generate.Writer
	Recorder  Recorder
	Publisher publish.Publisher

	RequestTimeout time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

// Server is the HTTP front end. Requests share no mutable state.
type Server struct {
	opts Options
}

// New creates a server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{opts: opts}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/patterns", s.handlePatterns)
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           h2c.NewHandler(s.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.opts.Logger.Info("serving", "addr", ln.Addr().String(), "patterns_dir", s.opts.PatternsDir)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.opts.Logger.Info("server stopped")
	return nil
}
