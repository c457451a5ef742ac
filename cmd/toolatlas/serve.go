package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"toolatlas/internal/adapters/explorer"
	"toolatlas/internal/adapters/exports"
	"toolatlas/internal/blob"
	"toolatlas/internal/config"
)

const shutdownGrace = 10 * time.Second

type serveOptions struct {
	addr       string
	blobDriver string
	blobRoot   string
	warm       bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the explorer JSON API and Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, root, opts, cmd)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", "", "listen address (TOOLATLAS_HTTP_ADDR)")
	f.StringVar(&opts.blobDriver, "blob-driver", "", "export storage: fs, s3 or memory (TOOLATLAS_BLOB_DRIVER)")
	f.StringVar(&opts.blobRoot, "blob-root", "", "export directory for the fs driver (TOOLATLAS_BLOB_FS_ROOT)")
	f.BoolVar(&opts.warm, "warm", true, "fetch the unfiltered collection before accepting requests")
	return cmd
}

func serve(ctx context.Context, root *rootOptions, opts *serveOptions, cmd *cobra.Command) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.HTTPAddr = opts.addr
	}
	if opts.blobDriver != "" {
		cfg.BlobDriver = blob.Driver(opts.blobDriver)
	}
	if opts.blobRoot != "" {
		cfg.BlobRoot = opts.blobRoot
	}
	if err := cfg.Validate(false); err != nil {
		return err
	}
	logger, err := cfg.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := newApp(ctx, cfg, logger, reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close app", "error", err)
		}
	}()

	store, err := blob.Open(ctx, cfg.Blob())
	if err != nil {
		return fmt.Errorf("open export storage: %w", err)
	}
	worker, err := exports.NewWorker(store,
		exports.WithLogger(logger),
		exports.WithAudit(exports.SlogAudit{Logger: logger.With("component", "export_audit")}),
		exports.WithMetrics(a.metrics),
	)
	if err != nil {
		return err
	}
	worker.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := worker.Stop(stopCtx); err != nil {
			logger.Warn("stop export worker", "error", err)
		}
	}()

	if opts.warm {
		if _, err := a.explorer.Refresh(ctx); err != nil {
			logger.Warn("initial dataset fetch failed", "error", err)
		}
	}

	handler := explorer.NewHandler(a.explorer)
	handler.Exports = worker
	handler.Logger = logger
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newMux(handler, reg),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	return runServer(ctx, srv, cfg, logger)
}

func newMux(h *explorer.Handler, reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(explorer.BasePath, h)
	mux.Handle(explorer.BasePath+"/", h)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func runServer(ctx context.Context, srv *http.Server, cfg config.Config, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("explorer api listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	logger.Info("shutting down explorer api")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
