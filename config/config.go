package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/agriroute/classify"
	"github.com/jonwraymond/agriroute/observe"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Config is the complete agriroute configuration.
type Config struct {
	Observe      observe.Config     `yaml:"observe"`
	Server       ServerConfig       `yaml:"server"`
	Store        StoreConfig        `yaml:"store"`
	Secrets      []SecretConfig     `yaml:"secrets"`
	Categories   []CategoryConfig   `yaml:"categories"`
	Upstreams    []UpstreamConfig   `yaml:"upstreams"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Classifier   *classify.Signals  `yaml:"classifier"`
	Health       HealthConfig       `yaml:"health"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// Addr is the listen address.
	// Default: ":8080"
	Addr string `yaml:"addr"`

	// RatePerSecond is the inbound request rate. Zero disables the limiter.
	RatePerSecond float64 `yaml:"rate_per_second"`

	// Burst is the inbound limiter burst.
	// Default: 1 when RatePerSecond is set
	Burst int `yaml:"burst"`

	// ReadTimeout bounds reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing a response. It must exceed the
	// orchestrator timeout.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects the durable cache tier.
type StoreConfig struct {
	// Kind is memory (no durable tier), redis or sqlite.
	// Default: memory
	Kind string `yaml:"kind"`

	Redis  RedisConfig  `yaml:"redis"`
	SQLite SQLiteConfig `yaml:"sqlite"`

	// WriteTimeout bounds a detached cache write.
	// Default: 2s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Coalesce enables single-flight for concurrent misses on one key.
	Coalesce bool `yaml:"coalesce"`
}

// RedisConfig configures the redis durable tier.
type RedisConfig struct {
	// Default: "localhost:6379"
	Addr string `yaml:"addr"`

	// Password may be a secret reference.
	Password string `yaml:"password"`

	DB int `yaml:"db"`

	// Prefix is prepended to every key.
	Prefix string `yaml:"prefix"`
}

// SQLiteConfig configures the sqlite durable tier.
type SQLiteConfig struct {
	// Default: "agriroute-cache.db"
	Path string `yaml:"path"`

	// PurgeInterval is how often expired rows are removed. Zero disables
	// purging.
	// Default: 10m
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

// SecretConfig declares one secret provider.
type SecretConfig struct {
	// Kind is a provider registered in secret.NewDefaultRegistry.
	Kind    string         `yaml:"kind"`
	Options map[string]any `yaml:"options"`
}

// OrchestratorConfig configures dispatch.
type OrchestratorConfig struct {
	// Timeout bounds each invocation.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// MaxConcurrency caps concurrent invocations per dispatch. Zero means
	// one per target category.
	MaxConcurrency int `yaml:"max_concurrency"`

	// FallbackCategories serve queries with no target category.
	FallbackCategories []string `yaml:"fallback_categories"`
}

// HealthConfig configures health checks.
type HealthConfig struct {
	// Timeout bounds each check.
	// Default: 5s
	Timeout time.Duration `yaml:"timeout"`

	// WarnOccupancy is the fallback occupancy reported as full.
	// Default: 0.9
	WarnOccupancy float64 `yaml:"warn_occupancy"`
}

// Default returns a Config with the French agronomy categories and no
// upstreams.
func Default() *Config {
	return &Config{
		Observe: observe.Config{
			ServiceName: "agriroute",
			Tracing:     observe.TracingConfig{Exporter: "none", SamplePct: 1.0},
			Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info", Format: "json"},
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Store: StoreConfig{
			Kind:         StoreMemory,
			Redis:        RedisConfig{Addr: "localhost:6379"},
			SQLite:       SQLiteConfig{Path: "agriroute-cache.db", PurgeInterval: 10 * time.Minute},
			WriteTimeout: 2 * time.Second,
		},
		Categories: DefaultCategories(),
		Orchestrator: OrchestratorConfig{
			Timeout: 10 * time.Second,
		},
		Health: HealthConfig{
			Timeout:       5 * time.Second,
			WarnOccupancy: 0.9,
		},
	}
}

// Load reads a YAML file over Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result. Unknown fields
// are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Store.Kind == "" {
		c.Store.Kind = StoreMemory
	}
	if c.Server.RatePerSecond > 0 && c.Server.Burst <= 0 {
		c.Server.Burst = 1
	}
	if c.Orchestrator.Timeout <= 0 {
		c.Orchestrator.Timeout = 10 * time.Second
	}
}

// Signals returns the classifier signals.
// Default: classify.DefaultSignals()
func (c *Config) Signals() classify.Signals {
	if c.Classifier == nil {
		return classify.DefaultSignals()
	}
	return *c.Classifier
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	if err := c.Observe.Validate(); err != nil {
		return fmt.Errorf("%w: observe: %w", ErrInvalidConfig, err)
	}
	switch c.Store.Kind {
	case StoreMemory, StoreRedis, StoreSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStore, c.Store.Kind)
	}
	if c.Server.RatePerSecond < 0 {
		return fmt.Errorf("%w: server.rate_per_second must not be negative", ErrInvalidConfig)
	}
	if c.Health.WarnOccupancy < 0 || c.Health.WarnOccupancy > 1 {
		return fmt.Errorf("%w: health.warn_occupancy must be within [0, 1]", ErrInvalidConfig)
	}

	categories := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if _, err := cat.Build(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		if categories[cat.Name] {
			return fmt.Errorf("%w: category %q declared twice", ErrInvalidConfig, cat.Name)
		}
		categories[cat.Name] = true
	}

	upstreams := make(map[string]bool, len(c.Upstreams))
	for _, up := range c.Upstreams {
		if err := up.validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		if !categories[up.Category] {
			return fmt.Errorf("%w: upstream %q has no cache category", ErrInvalidConfig, up.Category)
		}
		if upstreams[up.Category] {
			return fmt.Errorf("%w: upstream %q declared twice", ErrInvalidConfig, up.Category)
		}
		upstreams[up.Category] = true
	}

	for _, name := range c.Orchestrator.FallbackCategories {
		if !categories[name] {
			return fmt.Errorf("%w: fallback category %q is not declared", ErrInvalidConfig, name)
		}
	}

	signals := c.Signals()
	if err := signals.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for _, name := range signals.Categories() {
		if !categories[name] {
			return fmt.Errorf("%w: classifier targets undeclared category %q", ErrInvalidConfig, name)
		}
	}
	return nil
}
