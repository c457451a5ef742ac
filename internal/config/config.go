// Package config loads process configuration from TOOLATLAS_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"toolatlas/internal/blob"
	"toolatlas/internal/core"
)

// Prefix is prepended to every variable name.
const Prefix = "TOOLATLAS_"

// Config is the full process configuration.
type Config struct {
	CatalogURL     string        `env:"CATALOG_URL"`
	FixturePath    string        `env:"FIXTURE"`
	HTTPAddr       string        `env:"HTTP_ADDR" envDefault:":8080"`
	PageSize       int           `env:"PAGE_SIZE" envDefault:"0"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	SearchDebounce time.Duration `env:"SEARCH_DEBOUNCE" envDefault:"300ms"`
	DrillBase      string        `env:"DRILL_BASE"`

	CacheDriver core.StorageDriver `env:"CACHE_DRIVER" envDefault:"memory"`
	SQLitePath  string             `env:"SQLITE_PATH" envDefault:"toolatlas.db"`
	PostgresDSN string             `env:"POSTGRES_DSN"`

	BlobDriver blob.Driver   `env:"BLOB_DRIVER" envDefault:"fs"`
	BlobRoot   string        `env:"BLOB_FS_ROOT" envDefault:"./exports"`
	S3         blob.S3Config `envPrefix:"BLOB_S3_"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// FromMap parses vars as if they were the environment. Keys carry the prefix.
func FromMap(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field rules. A dataset source is required unless
// allowNoSource is set.
func (c Config) Validate(allowNoSource bool) error {
	var errs []error
	if c.CatalogURL == "" && c.FixturePath == "" && !allowNoSource {
		errs = append(errs, errors.New("one of TOOLATLAS_CATALOG_URL or TOOLATLAS_FIXTURE is required"))
	}
	if c.CatalogURL != "" {
		if u, err := url.Parse(c.CatalogURL); err != nil || !u.IsAbs() {
			errs = append(errs, fmt.Errorf("catalog url %q must be absolute", c.CatalogURL))
		}
	}
	if c.PageSize < 0 {
		errs = append(errs, fmt.Errorf("page size %d must not be negative", c.PageSize))
	}
	switch c.CacheDriver {
	case "", core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres cache driver requires TOOLATLAS_POSTGRES_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache driver %q", c.CacheDriver))
	}
	if driver, err := blob.ParseDriver(string(c.BlobDriver)); err != nil {
		errs = append(errs, err)
	} else if driver == blob.DriverS3 && strings.TrimSpace(c.S3.Bucket) == "" {
		errs = append(errs, errors.New("s3 blob driver requires TOOLATLAS_BLOB_S3_BUCKET"))
	}
	if _, err := c.level(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Blob returns the blob store configuration.
func (c Config) Blob() blob.Config {
	return blob.Config{Driver: c.BlobDriver, FSRoot: c.BlobRoot, S3: c.S3}
}

// NewLogger builds the slog logger selected by LogLevel and LogFormat.
func (c Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := c.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func (c Config) level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
