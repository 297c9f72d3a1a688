// Package config loads application settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config holds all runtime settings. Every field has a sensible default so a
// bare environment yields a working local setup.
type Config struct {
	// APIURL is the base URL of the price service.
	APIURL string `env:"OPEN2LOG_API_URL" envDefault:"https://api.open2log.org/api/v1"`

	// DBPath is the SQLite database file. Parent directories must exist.
	DBPath string `env:"OPEN2LOG_DB_PATH" envDefault:"open2log.db"`

	// Token is the bearer token for authenticated endpoints. Empty means
	// anonymous submissions.
	Token string `env:"OPEN2LOG_TOKEN"`

	// WifiOnly restricts automatic syncs to wifi interfaces.
	WifiOnly bool `env:"OPEN2LOG_WIFI_ONLY" envDefault:"false"`

	// CacheTTL is how long cached shops stay fresh.
	CacheTTL time.Duration `env:"OPEN2LOG_CACHE_TTL" envDefault:"168h"`

	// ProbeInterval is how often connectivity is rechecked.
	ProbeInterval time.Duration `env:"OPEN2LOG_PROBE_INTERVAL" envDefault:"15s"`

	// APITimeout bounds individual API requests.
	APITimeout time.Duration `env:"OPEN2LOG_API_TIMEOUT" envDefault:"30s"`

	// UploadTimeout bounds individual image transfers.
	UploadTimeout time.Duration `env:"OPEN2LOG_UPLOAD_TIMEOUT" envDefault:"60s"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"OPEN2LOG_LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid OPEN2LOG_API_URL %q", c.APIURL)
	}
	if c.DBPath == "" {
		return fmt.Errorf("OPEN2LOG_DB_PATH must not be empty")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("OPEN2LOG_CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("OPEN2LOG_PROBE_INTERVAL must be positive, got %s", c.ProbeInterval)
	}
	return nil
}

// ProbeTarget derives the host:port the connectivity monitor should dial from
// the API URL.
func (c *Config) ProbeTarget() string {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "http" {
		return u.Hostname() + ":80"
	}
	return u.Hostname() + ":443"
}
