package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/config"
	httpadapter "github.com/aretw0/parley/pkg/adapters/http"
	"github.com/aretw0/parley/pkg/adapters/mcp"
	"github.com/aretw0/parley/pkg/adapters/skill"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// ServeOptions configures the HTTP server.
type ServeOptions struct {
	Config config.Config
	Debug  bool

	// Listener, when set, is used instead of listening on Config.HTTP.Addr.
	Listener net.Listener
}

// host bundles what the server entrypoints share.
type host struct {
	logger   *slog.Logger
	catalog  *skill.Catalog
	store    ports.SnapshotStore
	streams  *httpadapter.StreamManager
	sessions *session.Manager
	registry *prometheus.Registry
	close    func() error
}

func newHost(ctx context.Context, cfg config.Config, debug bool) (*host, error) {
	logger := createLogger(cfg, debug)

	catalog, err := skill.LoadFile(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewMetrics(registry)
	if err != nil {
		_ = closeStore()
		return nil, err
	}
	hooks := metrics.Hooks()
	if debug {
		hooks = hooks.Merge(createDebugHooks(logger))
	}

	streams := httpadapter.NewStreamManager(logger)
	sessions := session.NewManager(func(id string) (*parley.Assistant, error) {
		return parley.New(catalog, streams.Sink(id),
			append(assistantOptions(catalog, store, logger, hooks), parley.WithConversationID(id))...)
	}, session.WithStore(store), session.WithLogger(logger))

	return &host{
		logger:   logger,
		catalog:  catalog,
		store:    store,
		streams:  streams,
		sessions: sessions,
		registry: registry,
		close:    closeStore,
	}, nil
}

func (h *host) shutdown(ctx context.Context) error {
	err := h.sessions.Shutdown(ctx)
	return errors.Join(err, h.close())
}

// Serve runs the HTTP server until ctx is cancelled.
func Serve(ctx context.Context, opts ServeOptions) error {
	h, err := newHost(ctx, opts.Config, opts.Debug)
	if err != nil {
		return err
	}

	handler := httpadapter.NewHandler(h.sessions, h.streams,
		httpadapter.WithLogger(h.logger),
		httpadapter.WithMetrics(observability.Handler(h.registry)),
	)
	srv := &http.Server{
		Addr:    opts.Config.HTTP.Addr,
		Handler: handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h.logger.Info("Starting Parley Server", "addr", srv.Addr, "catalog", opts.Config.Catalog)
		var err error
		if opts.Listener != nil {
			err = srv.Serve(opts.Listener)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.Config.HTTP.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("graceful shutdown did not complete: %w", err))
			_ = srv.Close()
		}
		if err := h.shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		h.logger.Info("Parley Server stopped")
		return errors.Join(errs...)
	})
	return g.Wait()
}

// MCPOptions configures the MCP server.
type MCPOptions struct {
	Config    config.Config
	Debug     bool
	Transport string
	Port      int
}

// ServeMCP runs the MCP server on the selected transport until ctx is
// cancelled or stdin is closed.
func ServeMCP(ctx context.Context, opts MCPOptions) error {
	h, err := newHost(ctx, opts.Config, opts.Debug)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.Config.HTTP.ShutdownTimeout)
		defer cancel()
		if err := h.shutdown(shutdownCtx); err != nil {
			h.logger.Warn("Shutdown incomplete", "err", err)
		}
	}()

	srv := mcp.NewServer(h.sessions, h.streams, mcp.WithLogger(h.logger))
	switch opts.Transport {
	case "", "stdio":
		h.logger.Info("Starting Parley MCP Server (Stdio)")
		return srv.ServeStdio()
	case "sse":
		h.logger.Info("Starting Parley MCP Server (SSE)", "port", opts.Port)
		return srv.ServeSSE(ctx, opts.Port)
	default:
		return fmt.Errorf("unknown transport %q, supported: stdio, sse", opts.Transport)
	}
}
