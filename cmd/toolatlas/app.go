package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"toolatlas/internal/adapters/catalog"
	"toolatlas/internal/adapters/fixture"
	"toolatlas/internal/config"
	"toolatlas/internal/core"
	"toolatlas/internal/dataset"
)

// app is the wired dataset pipeline shared by every subcommand.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	metrics  core.MetricsRecorder
	storage  core.CacheStorage
	explorer *core.Explorer
}

type sources interface {
	dataset.Fetcher
	core.OptionsSource
	core.OrganizationSource
}

func openSources(cfg config.Config, logger *slog.Logger) (sources, error) {
	if cfg.FixturePath != "" {
		src, err := fixture.Load(cfg.FixturePath)
		if err != nil {
			return nil, err
		}
		logger.Info("using fixture dataset", "path", cfg.FixturePath, "tools", len(src.Entities()))
		return src, nil
	}
	client, err := catalog.NewClient(cfg.CatalogURL,
		catalog.WithTimeout(cfg.RequestTimeout),
		catalog.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// newApp opens cache storage and the dataset source and builds an explorer.
// reg may be nil when metrics are not exported.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*app, error) {
	src, err := openSources(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open dataset source: %w", err)
	}
	storage, err := core.OpenCacheStorage(ctx, cfg.CacheDriver, cfg.SQLitePath, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open cache storage: %w", err)
	}

	recorders := core.MultiRecorder{core.NewExpvarMetricsRecorder("")}
	if reg != nil {
		recorders = append(recorders, core.NewPrometheusRecorder(reg))
	}

	cache, err := dataset.NewCache(src, storage,
		dataset.WithLogger(logger),
		dataset.WithObserver(recorders),
	)
	if err != nil {
		return nil, errors.Join(err, storage.Close())
	}
	explorer, err := core.NewExplorer(cache,
		core.WithOptionsSource(src),
		core.WithOrganizationSource(src),
		core.WithLogger(logger),
		core.WithMetrics(recorders),
		core.WithSearchDebounce(cfg.SearchDebounce),
		core.WithPageSize(cfg.PageSize),
		core.WithDrillBase(cfg.DrillBase),
	)
	if err != nil {
		return nil, errors.Join(err, storage.Close())
	}
	logger.Debug("explorer ready", "cache_driver", string(cfg.CacheDriver))
	return &app{cfg: cfg, logger: logger, metrics: recorders, storage: storage, explorer: explorer}, nil
}

func (a *app) Close() error {
	a.explorer.Close()
	return a.storage.Close()
}
