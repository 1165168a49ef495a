// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - Keys are flat and match the koanf tags below.
//   - New builds a Config holding every default.
//   - Load layers a YAML file and DIVTRACKER_* environment variables on top.
package config

import (
	"context"
	"fmt"
	"time"
)

// Store drivers.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Browser drivers.
const (
	BrowserWebDriver = "webdriver"
	BrowserDevTools  = "devtools"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Credentials for the session endpoint.
	UbiUsername string `koanf:"ubi_username"`
	UbiPassword string `koanf:"ubi_password"`
	// UbiBaseURL is the root of the profile, session and statscard endpoints.
	UbiBaseURL string `koanf:"ubi_base_url"`
	// UbiAppID is sent as Ubi-AppId.
	UbiAppID string `koanf:"ubi_app_id"`
	// SpaceID selects the game 1 statscard dataset.
	SpaceID string `koanf:"space_id"`

	// TrackerBaseURL is the game 2 profile page prefix; the display name is appended.
	TrackerBaseURL string `koanf:"tracker_base_url"`

	StoreDriver   string `koanf:"store_driver"`
	StoreDSN      string `koanf:"store_dsn"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	BrowserDriver   string `koanf:"browser_driver"`
	BrowserURL      string `koanf:"browser_url"`
	BrowserHeadless bool   `koanf:"browser_headless"`

	// FetchConcurrency bounds per-batch fan-out; 0 means unbounded.
	FetchConcurrency int `koanf:"fetch_concurrency"`
	// RecordCacheSize is how many (id, name) pairs are remembered to skip
	// repeated store writes; 0 disables the cache.
	RecordCacheSize int `koanf:"record_cache_size"`

	RequestTimeoutMS int `koanf:"request_timeout_ms"`
	BrowserTimeoutMS int `koanf:"browser_timeout_ms"`

	RenewalAttempts   int `koanf:"renewal_attempts"`
	RenewalMarginMS   int `koanf:"renewal_margin_ms"`
	RenewalIntervalMS int `koanf:"renewal_interval_ms"`
}

// New creates a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		UbiBaseURL:        "https://public-ubiservices.ubi.com",
		UbiAppID:          "314d4fef-e568-454a-ae06-43e3bece12a6",
		SpaceID:           "6edd234a-abff-4e90-9aab-b9b9c6e49ff7",
		TrackerBaseURL:    "https://api.tracker.gg/api/v2/division-2/standard/profile/uplay/",
		StoreDriver:       StoreSQLite,
		StoreDSN:          "divtracker.db",
		RedisAddr:         "localhost:6379",
		BrowserDriver:     BrowserWebDriver,
		BrowserURL:        "http://localhost:9515",
		BrowserHeadless:   true,
		FetchConcurrency:  5,
		RecordCacheSize:   10_000,
		RequestTimeoutMS:  10_000,
		BrowserTimeoutMS:  30_000,
		RenewalAttempts:   5,
		RenewalMarginMS:   300_000,
		RenewalIntervalMS: 250,
	}
}

// RequestTimeout returns the per-request deadline.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// BrowserTimeout returns the per-session browser deadline.
func (c *Config) BrowserTimeout() time.Duration {
	return time.Duration(c.BrowserTimeoutMS) * time.Millisecond
}

// RenewalMargin returns how close to expiry a ticket is renewed.
func (c *Config) RenewalMargin() time.Duration {
	return time.Duration(c.RenewalMarginMS) * time.Millisecond
}

// RenewalInterval returns the pause between login attempts.
func (c *Config) RenewalInterval() time.Duration {
	return time.Duration(c.RenewalIntervalMS) * time.Millisecond
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.UbiBaseURL == "":
		return fmt.Errorf("%w: ubi_base_url must not be empty", ErrInvalidConfig)
	case c.TrackerBaseURL == "":
		return fmt.Errorf("%w: tracker_base_url must not be empty", ErrInvalidConfig)
	case c.FetchConcurrency < 0:
		return fmt.Errorf("%w: fetch_concurrency must be >= 0", ErrInvalidConfig)
	case c.RecordCacheSize < 0:
		return fmt.Errorf("%w: record_cache_size must be >= 0", ErrInvalidConfig)
	case c.RenewalAttempts < 1:
		return fmt.Errorf("%w: renewal_attempts must be >= 1", ErrInvalidConfig)
	case c.RenewalMarginMS < 0 || c.RenewalIntervalMS < 0:
		return fmt.Errorf("%w: renewal durations must be >= 0", ErrInvalidConfig)
	case c.RequestTimeoutMS <= 0 || c.BrowserTimeoutMS <= 0:
		return fmt.Errorf("%w: timeouts must be > 0", ErrInvalidConfig)
	}

	switch c.StoreDriver {
	case StoreSQLite, StorePostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: store_dsn required for %s", ErrInvalidConfig, c.StoreDriver)
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis_addr required", ErrInvalidConfig)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}

	switch c.BrowserDriver {
	case BrowserWebDriver, BrowserDevTools:
	default:
		return fmt.Errorf("%w: unknown browser_driver %q", ErrInvalidConfig, c.BrowserDriver)
	}
	return nil
}
