// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/kvault/internal/api"
	"github.com/starford/kvault/internal/apperr"
	"github.com/starford/kvault/internal/corpus"
	"github.com/starford/kvault/internal/docservice"
	"github.com/starford/kvault/internal/index"
	"github.com/starford/kvault/internal/mcpserver"
	"github.com/starford/kvault/internal/search"
	"github.com/starford/kvault/internal/sse"
)

// App wires the corpus services for one process.
type App struct {
	config *Config
	logger *slog.Logger
	reg    *corpus.Registry
	docs   *docservice.Service
	disp   *search.Dispatcher
	events *sse.Broker
}

// ServeOptions selects the front ends run by Serve.
type ServeOptions struct {
	HTTP bool
	MCP  bool
	// Watch rebuilds indexes when a manifest changes.
	Watch bool
}

// New builds the application from its options.
func New(opts ...Option) (*App, error) {
	app := &App{}
	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Logs go to stderr; stdout carries command output and the MCP stream.
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	logger := app.logger

	paths := cfg.Corpus.ExpandedPaths()
	app.reg = corpus.Open(paths, logger)
	logger.Debug("Configuration loaded",
		slog.Any("corpus_paths", paths),
		slog.Int("roots", app.reg.Len()),
		slog.String("backend", string(cfg.Search.DefaultBackend())),
		slog.String("log_level", cfg.App.LogLevel.String()))

	app.docs = docservice.NewService(app.reg, logger)
	app.disp = search.NewDispatcher(app.reg, search.NewRipgrep(),
		search.WithBM25(cfg.Search.BM25.Params()),
		search.WithLogger(logger))
	return app, nil
}

// Config returns the validated configuration.
func (a *App) Config() *Config { return a.config }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Registry returns the opened roots.
func (a *App) Registry() *corpus.Registry { return a.reg }

// Docs returns the document service.
func (a *App) Docs() *docservice.Service { return a.docs }

// Dispatcher returns the search dispatcher.
func (a *App) Dispatcher() *search.Dispatcher { return a.disp }

// SearchRequest fills unset request fields from the configured defaults.
// A negative limit selects the configured default.
func (a *App) SearchRequest(req search.Request) search.Request {
	if req.Limit < 0 {
		req.Limit = a.config.Search.DefaultLimit
	}
	if req.Backend == "" {
		req.Backend = a.config.Search.DefaultBackend()
	}
	return req
}

// BuildIndex rebuilds the ranked index of every root. Roots are built
// concurrently; stats are returned in root order for the roots that
// succeeded, together with the first failure.
func (a *App) BuildIndex(ctx context.Context) ([]*index.BuildStats, error) {
	roots := a.reg.Roots()
	if len(roots) == 0 {
		return nil, apperr.ErrNoRoots
	}
	stats := make([]*index.BuildStats, len(roots))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, r := range roots {
		g.Go(func() error {
			st, err := index.Build(gCtx, r, a.logger)
			if err != nil {
				return fmt.Errorf("index %s: %w", r.Path(), err)
			}
			stats[i] = st
			return nil
		})
	}
	err := g.Wait()
	out := make([]*index.BuildStats, 0, len(stats))
	for _, st := range stats {
		if st != nil {
			out = append(out, st)
		}
	}
	return out, err
}

// IndexStatus reports the index state of every root.
func (a *App) IndexStatus() ([]*index.Status, error) {
	roots := a.reg.Roots()
	if len(roots) == 0 {
		return nil, apperr.ErrNoRoots
	}
	out := make([]*index.Status, 0, len(roots))
	for _, r := range roots {
		st, err := index.Inspect(r)
		if err != nil {
			return nil, fmt.Errorf("index status %s: %w", r.Path(), err)
		}
		out = append(out, st)
	}
	return out, nil
}

// WatchIndex rebuilds a root's index whenever its manifest changes until ctx
// is done.
func (a *App) WatchIndex(ctx context.Context, cb index.BuildCallback) error {
	if a.reg.Len() == 0 {
		return apperr.ErrNoRoots
	}
	return index.Watch(ctx, a.reg.Roots(), a.logger, cb)
}

// Serve runs the requested front ends until ctx is cancelled or a
// termination signal arrives. Document and index events are published to
// the HTTP event stream.
func (a *App) Serve(ctx context.Context, opts ServeOptions) error {
	if !opts.HTTP && !opts.MCP {
		return fmt.Errorf("nothing to serve: enable --http and/or --mcp")
	}

	a.events = sse.NewBroker(2 * time.Second)
	defer a.events.Close()

	g, gCtx := errgroup.WithContext(ctx)
	if opts.HTTP {
		g.Go(func() error { return a.runHTTP(gCtx) })
	}
	if opts.MCP {
		g.Go(func() error { return a.runMCP(gCtx) })
	}
	if opts.Watch {
		g.Go(func() error {
			return index.Watch(gCtx, a.reg.Roots(), a.logger, func(root string, st *index.BuildStats, err error) {
				a.events.IndexBuilt(root, st, err)
			})
		})
	}

	if err := g.Wait(); err != nil {
		a.logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}
	a.logger.Info("Server stopped successfully")
	return nil
}

// Router builds the HTTP handler: health checks plus the API under /api.
func (a *App) Router() http.Handler {
	cfg := a.config
	h := api.NewHandler(a.docs, a.disp, api.HandlerOptions{
		DefaultLimit:   cfg.Search.DefaultLimit,
		DefaultBackend: cfg.Search.DefaultBackend(),
		Logger:         a.logger,
		Events:         a.events,
	})
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if a.reg.Len() == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"no roots"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)
	return r
}

func (a *App) runHTTP(ctx context.Context) error {
	logger := a.logger
	addr := a.config.App.HTTP.Address()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	return g.Wait()
}

func (a *App) runMCP(ctx context.Context) error {
	srv := mcpserver.New(a.docs, a.disp, mcpserver.Options{
		DefaultLimit:   a.config.Search.DefaultLimit,
		DefaultBackend: a.config.Search.DefaultBackend(),
		Logger:         a.logger,
		Events:         a.events,
	})
	a.logger.Info("Starting MCP server on stdio", slog.Int("roots", a.reg.Len()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}
