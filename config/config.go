// Package config loads the server configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/phishvars/cache"
	"github.com/GoCodeAlone/phishvars/metrics"
	"github.com/GoCodeAlone/phishvars/observability/tracing"
	"github.com/GoCodeAlone/phishvars/store"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the complete server configuration.
type Config struct {
	Listen          string          `yaml:"listen"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64           `yaml:"max_upload_bytes"`
	Log             LogConfig       `yaml:"log"`
	Store           StoreConfig     `yaml:"store"`
	Redis           RedisConfig     `yaml:"redis"`
	Tracing         tracing.Config  `yaml:"tracing"`
	Metrics         metrics.Config  `yaml:"metrics"`
	Auth            AuthConfig      `yaml:"auth"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// StoreConfig selects and configures the persistence driver.
type StoreConfig struct {
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"` // SQLite database file
	Postgres store.PGConfig `yaml:"postgres"`
}

// RedisConfig enables the summary cache.
type RedisConfig struct {
	Enabled      bool `yaml:"enabled"`
	cache.Config `yaml:",inline"`
}

// AuthConfig seeds a bootstrap API key at startup.
type AuthConfig struct {
	AdminAPIKey string `yaml:"admin_api_key"`
	AdminUserID int64  `yaml:"admin_user_id"`
}

// RateLimitConfig limits CSV imports per client IP.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	// TrustedProxies lists addresses or CIDRs allowed to name the client in
	// X-Forwarded-For. Empty means forwarding headers are ignored.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// TrustedPrefixes parses TrustedProxies. A bare address becomes a
// single-host prefix.
func (r RateLimitConfig) TrustedPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(r.TrustedProxies))
	for _, s := range r.TrustedProxies {
		s = strings.TrimSpace(s)
		if p, err := netip.ParsePrefix(s); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("rate_limit.trusted_proxies: invalid address or CIDR %q", s)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen:          ":3333",
		ShutdownTimeout: 10 * time.Second,
		MaxUploadBytes:  10 << 20,
		Log:             LogConfig{Level: "info", Format: "text"},
		Store:           StoreConfig{Driver: DriverSQLite, Path: "phishvars.db"},
		Redis: RedisConfig{Config: cache.Config{
			Address: "localhost:6379",
			Prefix:  "phishvars:",
			TTL:     5 * time.Minute,
		}},
		Tracing:   tracing.DefaultConfig(),
		Metrics:   metrics.DefaultConfig(),
		Auth:      AuthConfig{AdminUserID: 1},
		RateLimit: RateLimitConfig{RequestsPerSecond: 2, Burst: 5},
	}
}

// LoadFromFile reads a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from PHISHVARS_* variables. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PHISHVARS_LISTEN", &c.Listen)
	str("PHISHVARS_LOG_LEVEL", &c.Log.Level)
	str("PHISHVARS_LOG_FORMAT", &c.Log.Format)
	str("PHISHVARS_STORE_DRIVER", &c.Store.Driver)
	str("PHISHVARS_SQLITE_PATH", &c.Store.Path)
	str("PHISHVARS_PG_URL", &c.Store.Postgres.URL)
	str("PHISHVARS_ADMIN_API_KEY", &c.Auth.AdminAPIKey)
	str("PHISHVARS_OTLP_ENDPOINT", &c.Tracing.Endpoint)

	if v, ok := lookup("PHISHVARS_REDIS_ADDR"); ok && v != "" {
		c.Redis.Enabled = true
		c.Redis.Address = v
	}
	if v, ok := lookup("PHISHVARS_TRUSTED_PROXIES"); ok && v != "" {
		c.RateLimit.TrustedProxies = strings.Split(v, ",")
	}
	if v, ok := lookup("PHISHVARS_ADMIN_USER_ID"); ok && v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PHISHVARS_ADMIN_USER_ID: %w", err)
		}
		c.Auth.AdminUserID = id
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for sqlite"))
		}
	case DriverPostgres:
		if c.Store.Postgres.URL == "" {
			errs = append(errs, errors.New("store.postgres.url is required for postgres"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Auth.AdminAPIKey != "" && c.Auth.AdminUserID <= 0 {
		errs = append(errs, errors.New("auth.admin_user_id must be positive"))
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must not be negative"))
	}
	if _, err := c.RateLimit.TrustedPrefixes(); err != nil {
		errs = append(errs, err)
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max_upload_bytes must be positive"))
	}
	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", l.Level)
	}
	return lvl, nil
}
