package fs

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolatlas/internal/blob/core"
)

func TestPutWritesSidecar(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)

	info, err := s.Put(ctx, `exports\1\summary.json`, bytes.NewReader([]byte(`{}`)), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"job": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "exports/1/summary.json", info.Key)
	assert.Len(t, info.ETag, 64)

	_, err = os.Stat(filepath.Join(root, "exports", "1", "summary.json"+metaSuffix))
	require.NoError(t, err)

	head, err := s.Head(ctx, "exports/1/summary.json")
	require.NoError(t, err)
	assert.Equal(t, "1", head.Metadata["job"])
	assert.Equal(t, info.ETag, head.ETag)
}

func TestRejectsReservedAndEscapingKeys(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "/abs", "a/../../b", "x.meta"} {
		_, err := s.Put(ctx, key, bytes.NewReader(nil), core.PutOptions{})
		assert.ErrorIs(t, err, core.ErrInvalidKey, key)
	}
}

func TestPresignReturnsLocalURL(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	require.NoError(t, err)

	u, err := s.PresignURL(ctx, "exports/1/table.csv", core.SignedURLOptions{})
	require.NoError(t, err)
	assert.Contains(t, u, "file://")
	assert.Contains(t, u, "exports/1/table.csv")

	_, err = s.PresignURL(ctx, "exports/1/table.csv", core.SignedURLOptions{Method: "PUT"})
	assert.ErrorIs(t, err, core.ErrUnsupported)
}
