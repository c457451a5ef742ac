package core

import (
	"context"
	"fmt"

	"toolatlas/internal/dataset"
	"toolatlas/internal/infra/persistence/memory"
	"toolatlas/internal/infra/persistence/postgres"
	"toolatlas/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a dataset cache storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // process lifetime only
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// CacheStorage is a dataset cache backend that owns resources.
type CacheStorage interface {
	dataset.Storage
	Close() error
}

type memoryStorage struct{ *memory.Store }

func (memoryStorage) Close() error { return nil }

// OpenCacheStorage selects a cache backend. An empty driver means memory.
func OpenCacheStorage(ctx context.Context, driver StorageDriver, sqlitePath, postgresDSN string) (CacheStorage, error) {
	switch driver {
	case "", StorageMemory:
		return memoryStorage{memory.NewStore()}, nil
	case StorageSQLite:
		store, err := sqlite.NewStore(sqlitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, postgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
