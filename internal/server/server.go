// Package server is the live development server. It serves the front-end
// bundle and the freshly built wasm artifact, and answers change queries
// from the browser over a websocket.
//
// Routes:
//
//	GET /, /index.html     the HTML bundle
//	GET /assets/<js>       the JS bundle
//	GET /assets/<css>      the CSS bundle
//	GET /current.wasm      rebuild, clear the dirty flag, serve the artifact
//	GET /ws                reply "true" or "false" to every message
//	GET /health            JSON status
//	GET /metrics           Prometheus exposition
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/wasmreload/internal/assets"
	"github.com/conneroisu/wasmreload/internal/build"
	"github.com/conneroisu/wasmreload/internal/config"
	"github.com/conneroisu/wasmreload/internal/dirty"
	apperrors "github.com/conneroisu/wasmreload/internal/errors"
	"github.com/conneroisu/wasmreload/internal/fingerprint"
	"github.com/conneroisu/wasmreload/internal/logging"
	"github.com/conneroisu/wasmreload/internal/metrics"
	"github.com/conneroisu/wasmreload/internal/watcher"
)

// ArtifactBuilder builds the project and returns the artifact bytes.
type ArtifactBuilder interface {
	Build(ctx context.Context, dir string) (build.Result, error)
}

// FatalHandler is called with errors that must end the process.
type FatalHandler func(error)

// Options holds everything a Server is composed from.
type Options struct {
	Config     *config.Config
	ProjectDir string
	Bundle     *assets.Bundle
	Flag       *dirty.Flag
	Builder    ArtifactBuilder
	// Stats, when set, backs the build section of /health.
	Stats *build.BuildMetrics
	// Poller runs in the background while the server is started with live
	// reload enabled.
	Poller *watcher.Poller
	// Notifier, when set, is run alongside the poller.
	Notifier *watcher.Notifier
	// Store, when set, reports the tracked file count on /health.
	Store   *fingerprint.Store
	Metrics *metrics.Metrics
	Logger  logging.Logger
	Fatal   FatalHandler
}

// Server serves one project.
type Server struct {
	cfg        *config.Config
	projectDir string
	bundle     *assets.Bundle
	flag       *dirty.Flag
	builder    ArtifactBuilder
	stats      *build.BuildMetrics
	poller     *watcher.Poller
	notifier   *watcher.Notifier
	store      *fingerprint.Store
	metrics    *metrics.Metrics
	logger     logging.Logger
	fatal      FatalHandler
	started    time.Time

	// sessions is cancelled on shutdown to end open websocket sessions,
	// which http.Server.Shutdown does not track.
	sessions       context.Context
	cancelSessions context.CancelFunc

	serverMutex  sync.RWMutex
	httpServer   *http.Server
	listener     net.Listener
	shutdownOnce sync.Once
}

// New creates a server. Config, ProjectDir, Bundle, Flag and Builder are
// required.
func New(opts Options) (*Server, error) {
	switch {
	case opts.Config == nil:
		return nil, errors.New("server: config is required")
	case opts.ProjectDir == "":
		return nil, errors.New("server: project directory is required")
	case opts.Bundle == nil:
		return nil, errors.New("server: asset bundle is required")
	case opts.Flag == nil:
		return nil, errors.New("server: dirty flag is required")
	case opts.Builder == nil:
		return nil, errors.New("server: builder is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	s := &Server{
		cfg:        opts.Config,
		projectDir: opts.ProjectDir,
		bundle:     opts.Bundle,
		flag:       opts.Flag,
		builder:    opts.Builder,
		stats:      opts.Stats,
		poller:     opts.Poller,
		notifier:   opts.Notifier,
		store:      opts.Store,
		metrics:    opts.Metrics,
		logger:     logger.WithComponent("server"),
		fatal:      opts.Fatal,
		started:    time.Now(),
	}
	s.sessions, s.cancelSessions = context.WithCancel(context.Background())

	if s.fatal == nil {
		s.fatal = func(err error) {
			s.logger.Fatal(context.Background(), err, "Unhandled fatal error")
		}
	}

	s.registerGauges()

	return s, nil
}

func (s *Server) registerGauges() {
	s.metrics.RegisterGauge("dirty", "Whether a rebuild is pending (1) or not (0)", func() float64 {
		if s.flag.IsSet() {
			return 1
		}
		return 0
	})
	if s.store != nil {
		s.metrics.RegisterGauge("tracked_files", "Files in the fingerprint store", func() float64 {
			return float64(s.store.Len())
		})
	}
}

// Handler returns the HTTP handler with every route and middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /index.html", s.handleIndex)
	mux.HandleFunc("GET /assets/"+s.bundle.JSName, s.handleJS)
	mux.HandleFunc("GET /assets/"+s.bundle.CSSName, s.handleCSS)
	mux.HandleFunc("GET /current.wasm", s.handleArtifact)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	if s.cfg.Development.LiveReload {
		mux.HandleFunc("GET /ws", s.handleWebSocket)
	}

	return s.addMiddleware(mux)
}

// Start builds the project once, starts the background poller when live
// reload is enabled, and serves HTTP until ctx is done or Shutdown is
// called. A failed startup build is returned without serving.
func (s *Server) Start(ctx context.Context) error {
	if err := s.startupBuild(ctx); err != nil {
		return err
	}

	if s.cfg.Development.LiveReload && s.poller != nil {
		if err := s.poller.Baseline(ctx); err != nil {
			return err
		}
		go func() {
			_ = s.poller.Loop(ctx)
		}()
		if s.notifier != nil {
			go func() {
				_ = s.notifier.Run(ctx)
			}()
		}
	}

	listener, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return apperrors.NewInternalError(apperrors.ErrCodeInternalError,
			"failed to listen on "+s.cfg.Address(), err)
	}

	return s.Serve(ctx, listener)
}

// Serve serves HTTP on l until ctx is done or Shutdown is called.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.serverMutex.Lock()
	s.listener = l
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	})
	defer stop()

	s.logger.Info(ctx, "Serving", "url", fmt.Sprintf("http://%s", l.Addr()), "project", s.projectDir,
		"live_reload", s.cfg.Development.LiveReload)

	if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Addr returns the address being served, or "" before Serve.
func (s *Server) Addr() string {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) startupBuild(ctx context.Context) error {
	result, err := s.builder.Build(ctx, s.projectDir)
	if err != nil {
		s.logger.Error(ctx, err, "Startup build failed", "output", apperrors.BuildOutput(err))
		return err
	}

	s.logger.Info(ctx, "Startup build finished", "artifact", result.Artifact.Path,
		"bytes", len(result.Data), "duration", result.Duration.String())

	return nil
}

// Shutdown ends websocket sessions and gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		s.cancelSessions()

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}
