package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"toolatlas/internal/config"
	"toolatlas/internal/core"
	"toolatlas/pkg/catalogapi"
)

type rootOptions struct {
	catalogURL  string
	fixture     string
	cacheDriver string
	logLevel    string
	logFormat   string
	pageSize    int
	drillBase   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "toolatlas",
		Short:         "Explore the media-tool catalog by facet",
		Long:          "toolatlas aggregates catalog tools by facet, narrows them with a single crossfilter pick\nand hands the resulting tool names to the organizations view.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.catalogURL, "catalog-url", "", "catalog API base URL (TOOLATLAS_CATALOG_URL)")
	flags.StringVar(&opts.fixture, "fixture", "", "YAML or JSON fixture used instead of the catalog API (TOOLATLAS_FIXTURE)")
	flags.StringVar(&opts.cacheDriver, "cache-driver", "", "dataset cache storage: memory, sqlite or postgres (TOOLATLAS_CACHE_DRIVER)")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (TOOLATLAS_LOG_LEVEL)")
	flags.StringVar(&opts.logFormat, "log-format", "", "text or json (TOOLATLAS_LOG_FORMAT)")
	flags.IntVar(&opts.pageSize, "page-size", -1, "maximum tools per dataset request, 0 for unbounded (TOOLATLAS_PAGE_SIZE)")
	flags.StringVar(&opts.drillBase, "drill-base", "", "organizations view URL drill targets point at (TOOLATLAS_DRILL_BASE)")

	root.AddCommand(newServeCmd(opts), newSummaryCmd(opts), newDrillCmd(opts))
	return root
}

// load reads the environment and applies flag overrides.
func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if o.catalogURL != "" {
		cfg.CatalogURL = o.catalogURL
	}
	if o.fixture != "" {
		cfg.FixturePath = o.fixture
	}
	if o.cacheDriver != "" {
		cfg.CacheDriver = core.StorageDriver(strings.ToLower(o.cacheDriver))
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	if o.pageSize >= 0 {
		cfg.PageSize = o.pageSize
	}
	if o.drillBase != "" {
		cfg.DrillBase = o.drillBase
	}
	return cfg, nil
}

// open loads configuration, validates it and wires the app. Logs go to stderr.
func (o *rootOptions) open(ctx context.Context, stderr io.Writer, mutate func(*config.Config)) (*app, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(&cfg)
	}
	if err := cfg.Validate(false); err != nil {
		return nil, err
	}
	logger, err := cfg.NewLogger(stderr)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, logger, nil)
}

type queryOptions struct {
	filters []string
	search  string
	yearMin string
	yearMax string
	pick    string
}

func (q *queryOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringArrayVar(&q.filters, "filter", nil, "field=value filter, repeatable; values of one field are alternatives")
	f.StringVar(&q.search, "search", "", "free-text search")
	f.StringVar(&q.yearMin, "year-min", "", "earliest release year")
	f.StringVar(&q.yearMax, "year-max", "", "latest release year")
	f.StringVar(&q.pick, "pick", "", "dimension=value crossfilter pick, e.g. service=QC")
}

func (q *queryOptions) parseFilters() (catalogapi.Filters, error) {
	filters := catalogapi.Filters{}
	for _, raw := range q.filters {
		name, value, ok := strings.Cut(raw, "=")
		if !ok {
			return nil, fmt.Errorf("filter %q must be field=value", raw)
		}
		field, err := catalogapi.ParseFilterField(name)
		if err != nil {
			return nil, err
		}
		filters[field] = append(filters[field], value)
	}
	return filters, nil
}

func (q *queryOptions) parsePick() (catalogapi.Dimension, string, bool, error) {
	if q.pick == "" {
		return "", "", false, nil
	}
	name, value, ok := strings.Cut(q.pick, "=")
	if !ok {
		return "", "", false, fmt.Errorf("pick %q must be dimension=value", q.pick)
	}
	dimension, err := catalogapi.ParseDimension(name)
	if err != nil {
		return "", "", false, err
	}
	return dimension, value, true, nil
}
