package blob

import (
	"context"

	fsstore "toolatlas/internal/infra/blob/fs"
	memorystore "toolatlas/internal/infra/blob/memory"
	s3store "toolatlas/internal/infra/blob/s3"
)

// S3Config configures the S3 driver.
type S3Config = s3store.Config

// Config selects and configures a backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open constructs the configured store. An empty driver means the filesystem.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver, err := ParseDriver(string(cfg.Driver))
	if err != nil {
		return nil, err
	}
	switch driver {
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return NewFilesystem(cfg.FSRoot)
	}
}

// NewFilesystem returns a store rooted at root, creating the directory.
func NewFilesystem(root string) (Store, error) {
	store, err := fsstore.New(root)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewMemory returns a process-local store.
func NewMemory() Store { return memorystore.New() }

// NewS3 returns an S3-backed store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	store, err := s3store.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewMockS3ForTests returns an S3 store served by an in-process fake transport.
func NewMockS3ForTests() Store { return s3store.NewMockForTests() }
