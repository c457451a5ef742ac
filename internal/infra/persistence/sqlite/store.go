// Package sqlite persists the dataset cache to an embedded SQLite file so a
// restarted process can answer previously seen queries without refetching.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"toolatlas/internal/dataset"
	"toolatlas/internal/infra/persistence/memory"
	"toolatlas/pkg/catalogapi"
)

var _ dataset.Storage = (*Store)(nil)

const defaultPath = "toolatlas-cache.db"

// Store mirrors the in-memory cache and writes every saved entry through to a
// single SQLite table as a JSON payload.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the cache database at path and hydrates the
// in-memory mirror from it.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS dataset_cache (
		cache_key TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		stored_at TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT cache_key, payload FROM dataset_cache`)
	if err != nil {
		return fmt.Errorf("select cache: %w", err)
	}
	defer func() { _ = rows.Close() }()
	snapshot := make(map[string][]catalogapi.Entity)
	for rows.Next() {
		var key string
		var payload []byte
		if err := rows.Scan(&key, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		var entities []catalogapi.Entity
		if err := json.Unmarshal(payload, &entities); err != nil {
			return fmt.Errorf("decode cache entry %q: %w", key, err)
		}
		snapshot[key] = entities
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate cache: %w", err)
	}
	s.Import(snapshot)
	return nil
}

// Save writes the entry to SQLite and then to the in-memory mirror.
func (s *Store) Save(ctx context.Context, key string, entities []catalogapi.Entity) error {
	payload, err := json.Marshal(entities)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO dataset_cache(cache_key,payload,stored_at) VALUES(?,?,?) ON CONFLICT(cache_key) DO UPDATE SET payload=excluded.payload, stored_at=excluded.stored_at`,
		key, payload, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return s.Store.Save(ctx, key, entities)
}

// Purge clears both the table and the mirror.
func (s *Store) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM dataset_cache`); err != nil {
		return fmt.Errorf("purge cache: %w", err)
	}
	return s.Store.Purge(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
