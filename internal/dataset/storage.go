package dataset

import (
	"context"

	"toolatlas/pkg/catalogapi"
)

// Storage holds cached entity collections by key. Implementations live under
// internal/infra/persistence. Entries never expire; Purge drops everything.
type Storage interface {
	Load(ctx context.Context, key string) ([]catalogapi.Entity, bool, error)
	Save(ctx context.Context, key string, entities []catalogapi.Entity) error
	Purge(ctx context.Context) error
}

// Fetcher issues the upstream dataset request for a query.
type Fetcher interface {
	FetchEntities(ctx context.Context, q Query) ([]catalogapi.Entity, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, q Query) ([]catalogapi.Entity, error)

func (f FetcherFunc) FetchEntities(ctx context.Context, q Query) ([]catalogapi.Entity, error) {
	return f(ctx, q)
}
