// Eventspool - Durable Event Buffering and Batch Upload Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventspool

package eventspool

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix is the prefix for environment variable overrides:
// EVENTSPOOL_PROJECT_ID -> project_id, EVENTSPOOL_WRITE_KEY -> write_key.
const envPrefix = "EVENTSPOOL_"

// HTTPDoer abstracts the HTTP client used for uploads so hosts and tests can
// substitute their own transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds everything a Client needs. Zero-valued fields are filled from
// DefaultConfig by New, so hosts only set what they care about.
type Config struct {
	// ProjectID identifies the ingestion project. Required.
	ProjectID string `koanf:"project_id" validate:"required"`

	// WriteKey authorizes event submission. Required for AddEvent and
	// Upload; its absence is a distinct ErrNoWriteKey, not a config error.
	WriteKey string `koanf:"write_key"`

	// ReadKey authorizes the read API. Carried for completeness; the
	// buffering core never uses it.
	ReadKey string `koanf:"read_key"`

	// BaseURL is the ingestion server root.
	BaseURL string `koanf:"base_url" validate:"required,url"`

	// APIVersion is the API version path segment.
	APIVersion string `koanf:"api_version" validate:"required"`

	// CacheRoot is the local directory under which the event queue lives
	// (a "keen" sub-directory is created inside it).
	CacheRoot string `koanf:"cache_root" validate:"required"`

	// MaxEventsPerCollection caps each collection's queue; when a
	// collection is at capacity the oldest EvictBatch records are dropped
	// before the new event is written.
	MaxEventsPerCollection int `koanf:"max_events_per_collection" validate:"min=1"`

	// EvictBatch is the number of oldest records removed per eviction.
	EvictBatch int `koanf:"evict_batch" validate:"min=1"`

	// UploadTimeout bounds the single upload POST.
	UploadTimeout time.Duration `koanf:"upload_timeout"`

	// Sync runs Upload inline on the caller's goroutine instead of
	// dispatching a background goroutine. Intended for tests and for hosts
	// that manage their own scheduling.
	Sync bool `koanf:"sync"`

	// HTTPClient overrides the upload transport. Nil gets a plain
	// http.Client with UploadTimeout.
	HTTPClient HTTPDoer `koanf:"-"`
}

// DefaultConfig returns the configuration defaults. CacheRoot defaults to an
// "eventspool" directory under the user cache dir, falling back to the
// system temp dir.
func DefaultConfig() Config {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return Config{
		BaseURL:                "https://api.keen.io",
		APIVersion:             "3.0",
		CacheRoot:              filepath.Join(cacheDir, "eventspool"),
		MaxEventsPerCollection: 1000,
		EvictBatch:             2,
		UploadTimeout:          30 * time.Second,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.APIVersion == "" {
		c.APIVersion = def.APIVersion
	}
	if c.CacheRoot == "" {
		c.CacheRoot = def.CacheRoot
	}
	if c.MaxEventsPerCollection == 0 {
		c.MaxEventsPerCollection = def.MaxEventsPerCollection
	}
	if c.EvictBatch == 0 {
		c.EvictBatch = def.EvictBatch
	}
	if c.UploadTimeout == 0 {
		c.UploadTimeout = def.UploadTimeout
	}
	return c
}

// singleton validator instance (thread-safe, caches struct info)
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the configuration. Failures wrap ErrInvalidConfig.
func (c Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// LoadConfig loads a Config from layered sources: built-in defaults, then an
// optional YAML file at path (skipped when path is empty or missing), then
// EVENTSPOOL_* environment variables. The result is validated.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("%w: load defaults: %v", ErrInvalidConfig, err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("%w: load config file %s: %v", ErrInvalidConfig, path, err)
			}
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("%w: load environment: %v", ErrInvalidConfig, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: unmarshal: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
