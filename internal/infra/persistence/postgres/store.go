// Package postgres provides a Postgres-backed dataset cache that mirrors the
// in-memory semantics and writes entries through to a JSONB table.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"toolatlas/internal/dataset"
	"toolatlas/internal/infra/persistence/memory"
	"toolatlas/pkg/catalogapi"
)

// Compile-time contract assertion ensuring the store satisfies dataset.Storage.
var _ dataset.Storage = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/toolatlas?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists cache entries to Postgres while serving reads from memory.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using dsn (falls back to defaultDSN),
// ensures the cache table exists and hydrates the mirror from it.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureCacheTable(ctx, db); err != nil {
		return nil, err
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore()
	mem.Import(snapshot)
	return &Store{Store: mem, db: db}, nil
}

// Save upserts the entry and updates the mirror once the write succeeded.
func (s *Store) Save(ctx context.Context, key string, entities []catalogapi.Entity) error {
	payload, err := json.Marshal(entities)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO dataset_cache(cache_key,payload,stored_at) VALUES($1,$2,$3) ON CONFLICT(cache_key) DO UPDATE SET payload=EXCLUDED.payload, stored_at=EXCLUDED.stored_at`,
		key, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return s.Store.Save(ctx, key, entities)
}

// Purge truncates the cache table and the mirror.
func (s *Store) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `TRUNCATE TABLE dataset_cache`); err != nil {
		return fmt.Errorf("truncate cache: %w", err)
	}
	return s.Store.Purge(ctx)
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func ensureCacheTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS dataset_cache (
		cache_key TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		stored_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure cache table: %w", err)
	}
	return nil
}

func loadSnapshot(ctx context.Context, db *sql.DB) (map[string][]catalogapi.Entity, error) {
	rows, err := db.QueryContext(ctx, `SELECT cache_key, payload FROM dataset_cache`)
	if err != nil {
		return nil, fmt.Errorf("select cache: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshot := make(map[string][]catalogapi.Entity)
	for rows.Next() {
		var key string
		var payload []byte
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, fmt.Errorf("scan cache: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		var entities []catalogapi.Entity
		if err := json.Unmarshal(payload, &entities); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		snapshot[key] = entities
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache: %w", err)
	}
	return snapshot, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
