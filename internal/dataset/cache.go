package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"toolatlas/pkg/catalogapi"
)

// Observer receives timing and outcome for cache operations. core.MetricsRecorder
// satisfies it.
type Observer interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Shared  int64 `json:"shared"`
	Fetches int64 `json:"fetches"`
	Failed  int64 `json:"failed"`
}

// Cache memoizes entity collections by canonical query key and collapses
// concurrent identical requests into a single upstream fetch. Failed fetches
// are never stored.
type Cache struct {
	fetcher  Fetcher
	storage  Storage
	group    singleflight.Group
	logger   *slog.Logger
	observer Observer

	hits    atomic.Int64
	misses  atomic.Int64
	shared  atomic.Int64
	fetches atomic.Int64
	failed  atomic.Int64
}

// CacheOption customizes a Cache.
type CacheOption func(*Cache)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) CacheOption {
	return func(c *Cache) { c.observer = o }
}

// NewCache constructs a cache in front of fetcher using storage for entries.
func NewCache(fetcher Fetcher, storage Storage, opts ...CacheOption) (*Cache, error) {
	if fetcher == nil {
		return nil, errors.New("dataset fetcher required")
	}
	if storage == nil {
		return nil, errors.New("dataset cache storage required")
	}
	c := &Cache{
		fetcher: fetcher,
		storage: storage,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch returns the entity collection for q. A stored entry is returned
// without touching the fetcher. On a miss, callers asking for the same key
// while a fetch is in flight wait for and share that fetch. The upstream
// request is detached from the caller's cancellation so an abandoned caller
// does not fail the others; the caller itself stops waiting when ctx ends.
func (c *Cache) Fetch(ctx context.Context, q Query) ([]catalogapi.Entity, error) {
	key := q.Key()
	if entities, ok := c.lookup(ctx, key); ok {
		c.hits.Add(1)
		c.observe(ctx, "dataset.cache_hit", true, 0)
		return cloneEntities(entities), nil
	}
	c.misses.Add(1)

	led := false
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		led = true
		if entities, ok := c.lookup(detached, key); ok {
			return entities, nil
		}
		return c.fetchAndStore(detached, key, q)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if !led {
			c.shared.Add(1)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneEntities(res.Val.([]catalogapi.Entity)), nil
	}
}

// Stats reports cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Shared:  c.shared.Load(),
		Fetches: c.fetches.Load(),
		Failed:  c.failed.Load(),
	}
}

// Purge drops every cached collection.
func (c *Cache) Purge(ctx context.Context) error {
	if err := c.storage.Purge(ctx); err != nil {
		return fmt.Errorf("purge dataset cache: %w", err)
	}
	return nil
}

func (c *Cache) fetchAndStore(ctx context.Context, key string, q Query) ([]catalogapi.Entity, error) {
	c.fetches.Add(1)
	started := time.Now()
	entities, err := c.fetcher.FetchEntities(ctx, q.Clone())
	c.observe(ctx, "dataset.fetch", err == nil, time.Since(started))
	if err != nil {
		c.failed.Add(1)
		c.logger.WarnContext(ctx, "dataset fetch failed", "key", key, "error", err)
		return nil, fmt.Errorf("fetch dataset %q: %w", key, err)
	}
	if entities == nil {
		entities = []catalogapi.Entity{}
	}
	if err := c.storage.Save(ctx, key, entities); err != nil {
		c.logger.WarnContext(ctx, "dataset cache save failed", "key", key, "error", err)
	}
	c.logger.DebugContext(ctx, "dataset fetched", "key", key, "entities", len(entities))
	return entities, nil
}

func (c *Cache) lookup(ctx context.Context, key string) ([]catalogapi.Entity, bool) {
	entities, ok, err := c.storage.Load(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "dataset cache load failed", "key", key, "error", err)
		return nil, false
	}
	return entities, ok
}

func (c *Cache) observe(ctx context.Context, op string, success bool, d time.Duration) {
	if c.observer != nil {
		c.observer.Observe(ctx, op, success, d)
	}
}

func cloneEntities(in []catalogapi.Entity) []catalogapi.Entity {
	return append([]catalogapi.Entity(nil), in...)
}
