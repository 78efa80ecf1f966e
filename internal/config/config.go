// Package config loads the application configuration from layered
// sources: built-in defaults, an optional config file, FISDASH_
// environment variables and finally command line flags. Later sources
// win.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "FISDASH_"

// Config is the full application configuration tree.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Cache    CacheConfig    `koanf:"cache"`
	Upload   UploadConfig   `koanf:"upload"`
	Stats    StatsConfig    `koanf:"stats"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig configures the receipt store connection.
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite3".
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// CacheConfig configures the client cache store.
type CacheConfig struct {
	DedupeWindow  time.Duration `koanf:"dedupe_window"`
	RetryCount    int           `koanf:"retry_count"`
	RetryInterval time.Duration `koanf:"retry_interval"`
	EvictionGrace time.Duration `koanf:"eviction_grace"`
}

// UploadConfig configures the extraction webhook.
type UploadConfig struct {
	WebhookURL string        `koanf:"webhook_url"`
	Timeout    time.Duration `koanf:"timeout"`
}

// StatsConfig configures the statistics view refresh cadence.
type StatsConfig struct {
	RefreshInterval time.Duration `koanf:"refresh_interval"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level string `koanf:"level"`
}

func defaults() map[string]any {
	return map[string]any{
		"server.addr":             ":8080",
		"server.read_timeout":     "15s",
		"server.write_timeout":    "6m", // must outlive the upload webhook timeout
		"server.shutdown_timeout": "10s",
		"database.driver":         "postgres",
		"database.dsn":            "",
		"cache.dedupe_window":     "10s",
		"cache.retry_count":       3,
		"cache.retry_interval":    "5s",
		"cache.eviction_grace":    "0s",
		"upload.webhook_url":      "",
		"upload.timeout":          "5m",
		"stats.refresh_interval":  "2m",
		"log.level":               "info",
	}
}

// Load builds the configuration from defaults, the optional file at
// path, the environment, and flags. Both path and flags may be empty.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// FISDASH_SERVER__ADDR becomes server.addr.
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", ext)
	}
}

// Validate checks the values that would otherwise fail far from their
// source, deep inside a component constructor.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite3, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn must not be empty")
	}
	if c.Cache.DedupeWindow <= 0 {
		return fmt.Errorf("cache.dedupe_window must be positive")
	}
	if c.Cache.RetryCount < 1 {
		return fmt.Errorf("cache.retry_count must be at least 1")
	}
	if c.Cache.RetryInterval < 0 {
		return fmt.Errorf("cache.retry_interval must not be negative")
	}
	if c.Upload.Timeout <= 0 {
		return fmt.Errorf("upload.timeout must be positive")
	}
	if c.Stats.RefreshInterval < 0 {
		return fmt.Errorf("stats.refresh_interval must not be negative")
	}
	return nil
}
