package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolatlas/pkg/catalogapi"
)

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())

	entities := []catalogapi.Entity{
		{Name: "Transcoder", Services: "Encoding,QC", Extensions: map[string]any{"hq": "Oslo"}},
		{Name: "Player"},
	}
	require.NoError(t, store.Save(ctx, "q=&yearMin=&yearMax=", entities))
	require.NoError(t, store.Save(ctx, "q=&yearMin=&yearMax=", entities[:1]))
	require.NoError(t, store.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, ok, err := reopened.Load(ctx, "q=&yearMin=&yearMax=")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "Transcoder", got[0].Name)
	assert.Equal(t, "Encoding,QC", got[0].Services)
	assert.Equal(t, "Oslo", got[0].Extensions["hq"])

	require.NoError(t, reopened.Purge(ctx))
	_, ok, err = reopened.Load(ctx, "q=&yearMin=&yearMax=")
	require.NoError(t, err)
	assert.False(t, ok)

	var rows int
	require.NoError(t, reopened.DB().QueryRow(`SELECT COUNT(*) FROM dataset_cache`).Scan(&rows))
	assert.Zero(t, rows)
}
