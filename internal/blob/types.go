// Package blob is the entry point for artifact storage. Callers depend on
// the Store interface and obtain implementations through Open or the
// constructors here; the backends under internal/infra/blob are not imported
// directly.
package blob

import (
	"toolatlas/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrNotFound    = core.ErrNotFound
	ErrExists      = core.ErrExists
	ErrInvalidKey  = core.ErrInvalidKey
)

// ParseDriver resolves a driver name. Empty means DriverFilesystem.
func ParseDriver(raw string) (Driver, error) { return core.ParseDriver(raw) }
