package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"toolatlas/internal/aggregate"
	"toolatlas/internal/dataset"
	"toolatlas/internal/drill"
	"toolatlas/internal/selection"
	"toolatlas/pkg/catalogapi"
)

var (
	// ErrStaleResult is returned when a fetch finished after a newer query was
	// requested. Its result was discarded.
	ErrStaleResult = errors.New("stale dataset result discarded")
	// ErrNoOptionsSource is returned when no filter options source is configured.
	ErrNoOptionsSource = errors.New("filter options source not configured")
	// ErrNoOrganizationSource is returned when no organization preview source is configured.
	ErrNoOrganizationSource = errors.New("organization source not configured")
)

// OptionsSource supplies the distinct raw values per filter field.
type OptionsSource interface {
	FetchOptions(ctx context.Context) (catalogapi.FilterOptions, error)
}

// OrganizationSource answers the organization preview request.
type OrganizationSource interface {
	PreviewOrganizations(ctx context.Context, preview drill.Preview) (catalogapi.OrganizationPage, error)
}

// QueryState is the filter state a snapshot was taken under.
type QueryState struct {
	Filters       catalogapi.Filters `json:"filters"`
	Search        string             `json:"search"`
	PendingSearch *string            `json:"pending_search,omitempty"`
	YearMin       *int               `json:"year_min,omitempty"`
	YearMax       *int               `json:"year_max,omitempty"`
	Key           string             `json:"key"`
}

// Snapshot is a consistent read of the explorer: every aggregate, KPI and row
// is computed over the same scope.
type Snapshot struct {
	Query          QueryState                      `json:"query"`
	Selection      catalogapi.Selection            `json:"selection"`
	Highlights     map[catalogapi.Dimension]string `json:"highlights"`
	Scope          catalogapi.ScopeKind            `json:"scope"`
	CollectionSize int                             `json:"collection_size"`
	Summary        aggregate.Summary               `json:"summary"`
	Table          []aggregate.Row                 `json:"table"`
	Loaded         bool                            `json:"loaded"`
	Loading        bool                            `json:"loading"`
	DatasetError   string                          `json:"dataset_error,omitempty"`
	OptionsError   string                          `json:"options_error,omitempty"`
	Cache          dataset.Stats                   `json:"cache"`
}

// Explorer is one browsing session: filter state, the filtered collection and
// the crossfilter pick. Transitions run to completion under mu; the dataset
// fetch is the only step performed outside it.
type Explorer struct {
	cache    *dataset.Cache
	options  OptionsSource
	orgs     OrganizationSource
	logger   *slog.Logger
	metrics  MetricsRecorder
	debounce time.Duration
	pageSize int
	drillURL string

	search *dataset.Debouncer

	mu         sync.Mutex
	filters    catalogapi.Filters
	text       string
	pending    *string
	yearMin    *int
	yearMax    *int
	collection []catalogapi.Entity
	loaded     bool
	loading    bool
	latestKey  string
	datasetErr error
	machine    selection.Machine

	optMu      sync.Mutex
	optCache   catalogapi.FilterOptions
	optionsErr error
}

// ExplorerOption customizes an Explorer.
type ExplorerOption func(*Explorer)

// WithOptionsSource sets the filter options source.
func WithOptionsSource(src OptionsSource) ExplorerOption {
	return func(e *Explorer) { e.options = src }
}

// WithOrganizationSource sets the organization preview source.
func WithOrganizationSource(src OrganizationSource) ExplorerOption {
	return func(e *Explorer) { e.orgs = src }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ExplorerOption {
	return func(e *Explorer) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) ExplorerOption {
	return func(e *Explorer) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithSearchDebounce overrides the search quiet period.
func WithSearchDebounce(d time.Duration) ExplorerOption {
	return func(e *Explorer) { e.debounce = d }
}

// WithPageSize bounds each dataset request. Zero leaves paging to the source.
func WithPageSize(n int) ExplorerOption {
	return func(e *Explorer) { e.pageSize = n }
}

// WithDrillBase sets the organizations view URL drill targets point at.
func WithDrillBase(base string) ExplorerOption {
	return func(e *Explorer) { e.drillURL = base }
}

// NewExplorer constructs a session over cache.
func NewExplorer(cache *dataset.Cache, opts ...ExplorerOption) (*Explorer, error) {
	if cache == nil {
		return nil, errors.New("dataset cache required")
	}
	e := &Explorer{
		cache:   cache,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: noopMetrics{},
		filters: catalogapi.Filters{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.search = dataset.NewDebouncer(e.debounce, e.applyDebouncedSearch)
	return e, nil
}

// Close drops any pending search input.
func (e *Explorer) Close() {
	e.search.Stop()
}

// Refresh fetches the collection for the current filter state.
func (e *Explorer) Refresh(ctx context.Context) (Snapshot, error) {
	return e.load(ctx, "explorer.refresh")
}

// SetFilters replaces every facet filter and fetches.
func (e *Explorer) SetFilters(ctx context.Context, filters catalogapi.Filters) (Snapshot, error) {
	cleaned := cleanFilters(filters)
	e.mu.Lock()
	e.filters = cleaned
	e.mu.Unlock()
	return e.load(ctx, "explorer.set_filters")
}

// ToggleFilter adds or removes one value of a filter field and fetches.
func (e *Explorer) ToggleFilter(ctx context.Context, field catalogapi.FilterField, value string) (Snapshot, error) {
	e.mu.Lock()
	e.filters.Toggle(field, value)
	e.mu.Unlock()
	return e.load(ctx, "explorer.toggle_filter")
}

// SetYearRange applies release-year bounds. Unparseable input means no bound.
func (e *Explorer) SetYearRange(ctx context.Context, minRaw, maxRaw string) (Snapshot, error) {
	e.mu.Lock()
	e.yearMin = dataset.ParseYearBound(minRaw)
	e.yearMax = dataset.ParseYearBound(maxRaw)
	e.mu.Unlock()
	return e.load(ctx, "explorer.set_years")
}

// SetQuery replaces filters, search text and year bounds in one transition
// with a single fetch.
func (e *Explorer) SetQuery(ctx context.Context, filters catalogapi.Filters, search, minRaw, maxRaw string) (Snapshot, error) {
	cleaned := cleanFilters(filters)
	e.search.Stop()
	e.mu.Lock()
	e.filters = cleaned
	e.text = search
	e.pending = nil
	e.yearMin = dataset.ParseYearBound(minRaw)
	e.yearMax = dataset.ParseYearBound(maxRaw)
	e.mu.Unlock()
	return e.load(ctx, "explorer.set_query")
}

// TypeSearch records search input. It participates in the query only once
// the debounce period passes without further input.
func (e *Explorer) TypeSearch(text string) Snapshot {
	e.mu.Lock()
	e.pending = &text
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.search.Push(text)
	return snap
}

// SubmitSearch applies search text immediately, discarding pending input.
func (e *Explorer) SubmitSearch(ctx context.Context, text string) (Snapshot, error) {
	e.search.Stop()
	e.mu.Lock()
	e.text = text
	e.pending = nil
	e.mu.Unlock()
	return e.load(ctx, "explorer.search")
}

func (e *Explorer) applyDebouncedSearch(text string) {
	e.mu.Lock()
	if e.pending == nil || *e.pending != text {
		e.mu.Unlock()
		return
	}
	e.text = text
	e.pending = nil
	e.mu.Unlock()
	ctx := context.Background()
	if _, err := e.load(ctx, "explorer.search"); err != nil && !errors.Is(err, ErrStaleResult) {
		e.logger.WarnContext(ctx, "debounced search failed", "search", text, "error", err)
	}
}

// TogglePick applies a chart click against the current collection.
func (e *Explorer) TogglePick(dimension catalogapi.Dimension, value string) (selection.Outcome, Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	outcome := e.machine.Toggle(dimension, value, e.collection)
	e.logger.Debug("pick toggled", "dimension", dimension, "value", value, "outcome", outcome.String())
	return outcome, e.snapshotLocked()
}

// ClearPick drops the pick unconditionally.
func (e *Explorer) ClearPick() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.machine.Clear()
	return e.snapshotLocked()
}

// Snapshot returns the current state.
func (e *Explorer) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Scope returns the entities aggregates currently read from.
func (e *Explorer) Scope() catalogapi.Scope {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scopeLocked()
}

// Drill returns the outbound filter for the current scope and, when a drill
// base is configured, the navigation target.
func (e *Explorer) Drill() (drill.Expression, string, error) {
	scope := e.Scope()
	expr := drill.FilterExpression(scope)
	if e.drillURL == "" {
		return expr, "", nil
	}
	target, err := drill.Target(e.drillURL, scope)
	if err != nil {
		return expr, "", err
	}
	return expr, target, nil
}

// PreviewOrganizations fetches one page of organizations for the current scope.
// It does not change explorer state.
func (e *Explorer) PreviewOrganizations(ctx context.Context, search string, page, pageSize int) (catalogapi.OrganizationPage, error) {
	if e.orgs == nil {
		return catalogapi.OrganizationPage{}, ErrNoOrganizationSource
	}
	started := time.Now()
	req := drill.PreviewRequest(e.Scope(), search, page, pageSize)
	out, err := e.orgs.PreviewOrganizations(ctx, req)
	e.metrics.Observe(ctx, "explorer.organizations", err == nil, time.Since(started))
	if err != nil {
		return catalogapi.OrganizationPage{}, fmt.Errorf("preview organizations: %w", err)
	}
	return out, nil
}

// Options returns the filter options, fetching them on first use. Failures
// are recorded for the snapshot and retried on the next call.
func (e *Explorer) Options(ctx context.Context) (catalogapi.FilterOptions, error) {
	if e.options == nil {
		return nil, ErrNoOptionsSource
	}
	e.optMu.Lock()
	cached := e.optCache
	e.optMu.Unlock()
	if cached != nil {
		return cached, nil
	}
	started := time.Now()
	opts, err := e.options.FetchOptions(ctx)
	e.metrics.Observe(ctx, "explorer.options", err == nil, time.Since(started))
	e.optMu.Lock()
	defer e.optMu.Unlock()
	if err != nil {
		e.optionsErr = err
		e.logger.WarnContext(ctx, "filter options fetch failed", "error", err)
		return nil, fmt.Errorf("fetch filter options: %w", err)
	}
	if opts == nil {
		opts = catalogapi.FilterOptions{}
	}
	e.optionsErr = nil
	e.optCache = opts
	return opts, nil
}

func (e *Explorer) load(ctx context.Context, op string) (Snapshot, error) {
	e.mu.Lock()
	q := e.queryLocked()
	key := q.Key()
	e.latestKey = key
	e.loading = true
	e.mu.Unlock()

	started := time.Now()
	entities, err := e.cache.Fetch(ctx, q)

	e.mu.Lock()
	defer e.mu.Unlock()
	if key != e.latestKey {
		e.metrics.Observe(ctx, op, false, time.Since(started))
		e.logger.DebugContext(ctx, "stale dataset result discarded", "key", key, "latest", e.latestKey)
		return e.snapshotLocked(), ErrStaleResult
	}
	e.loading = false
	e.metrics.Observe(ctx, op, err == nil, time.Since(started))
	if err != nil {
		e.datasetErr = err
		e.logger.WarnContext(ctx, "dataset query failed", "key", key, "error", err)
		return e.snapshotLocked(), err
	}
	e.datasetErr = nil
	e.collection = entities
	e.loaded = true
	if e.machine.Reconcile(entities) {
		e.logger.DebugContext(ctx, "selection cleared after collection change", "key", key)
	}
	return e.snapshotLocked(), nil
}

func (e *Explorer) queryLocked() dataset.Query {
	var yearMin, yearMax *int
	if e.yearMin != nil {
		v := *e.yearMin
		yearMin = &v
	}
	if e.yearMax != nil {
		v := *e.yearMax
		yearMax = &v
	}
	return dataset.Query{
		Filters: e.filters.Clone(),
		Search:  e.text,
		YearMin: yearMin,
		YearMax: yearMax,
		Limit:   e.pageSize,
	}
}

func (e *Explorer) scopeLocked() catalogapi.Scope {
	return e.machine.Scope(e.collection)
}

func (e *Explorer) snapshotLocked() Snapshot {
	q := e.queryLocked()
	scope := e.scopeLocked()
	highlights := make(map[catalogapi.Dimension]string)
	for _, d := range catalogapi.Dimensions() {
		if v, ok := e.machine.Highlighted(d); ok {
			highlights[d] = v
		}
	}
	var pending *string
	if e.pending != nil {
		v := *e.pending
		pending = &v
	}
	snap := Snapshot{
		Query: QueryState{
			Filters:       q.Filters,
			Search:        q.Search,
			PendingSearch: pending,
			YearMin:       q.YearMin,
			YearMax:       q.YearMax,
			Key:           q.Key(),
		},
		Selection:      e.machine.Selection(),
		Highlights:     highlights,
		Scope:          scope.Kind,
		CollectionSize: len(e.collection),
		Summary:        aggregate.Summarize(scope),
		Table:          aggregate.Table(scope),
		Loaded:         e.loaded,
		Loading:        e.loading,
		Cache:          e.cache.Stats(),
	}
	if e.datasetErr != nil {
		snap.DatasetError = e.datasetErr.Error()
	}
	e.optMu.Lock()
	if e.optionsErr != nil {
		snap.OptionsError = e.optionsErr.Error()
	}
	e.optMu.Unlock()
	return snap
}

func cleanFilters(filters catalogapi.Filters) catalogapi.Filters {
	cleaned := catalogapi.Filters{}
	for field, values := range filters {
		if canonical := dataset.CanonicalValues(values); len(canonical) > 0 {
			cleaned[field] = canonical
		}
	}
	return cleaned
}
