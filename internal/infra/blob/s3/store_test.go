package s3

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolatlas/internal/blob/core"
)

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{Region: "eu-west-1"})
	assert.ErrorContains(t, err, "s3 bucket required")
}

func TestNewAcceptsStaticCredentials(t *testing.T) {
	s, err := New(context.Background(), Config{
		Bucket:          "atlas-exports",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio-secret",
		PathStyle:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, "atlas-exports", s.Bucket())
	assert.Equal(t, core.DriverS3, s.Driver())
}

func TestMockRoundTripKeepsMetadata(t *testing.T) {
	ctx := context.Background()
	s := NewMockForTests()

	_, err := s.Put(ctx, "exports/9/table.csv", bytes.NewReader([]byte("name\n")), core.PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"scope": "collection"},
	})
	require.NoError(t, err)

	head, err := s.Head(ctx, "exports/9/table.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(5), head.Size)
	assert.Equal(t, "text/csv", head.ContentType)
	assert.Equal(t, "collection", head.Metadata["scope"])
}

func TestPresignGet(t *testing.T) {
	s := NewMockForTests()
	u, err := s.PresignURL(context.Background(), "exports/9/table.csv", core.SignedURLOptions{Expiry: time.Minute})
	require.NoError(t, err)
	assert.Contains(t, u, "mock-bucket/exports/9/table.csv")
	assert.Contains(t, u, "X-Amz-Expires=60")

	_, err = s.PresignURL(context.Background(), "exports/9/table.csv", core.SignedURLOptions{Method: "DELETE"})
	assert.ErrorIs(t, err, core.ErrUnsupported)
}

func TestDecodeChunked(t *testing.T) {
	body, ok := decodeChunked([]byte("5;chunk-signature=abc\r\nhello\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n"))
	require.True(t, ok)
	assert.Equal(t, "hello", string(body))

	_, ok = decodeChunked([]byte("plain body"))
	assert.False(t, ok)
}
