package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FISDASH_DATABASE__DSN", "postgres://localhost/fisdash")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 10*time.Second, cfg.Cache.DedupeWindow)
	assert.Equal(t, 3, cfg.Cache.RetryCount)
	assert.Equal(t, 5*time.Second, cfg.Cache.RetryInterval)
	assert.Equal(t, 5*time.Minute, cfg.Upload.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.Stats.RefreshInterval)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  addr: ":9090"
database:
  driver: sqlite3
  dsn: "file:fisdash.db"
cache:
  dedupe_window: 30s
upload:
  webhook_url: "https://hooks.example.com/extract"
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Cache.DedupeWindow)
	assert.Equal(t, "https://hooks.example.com/extract", cfg.Upload.WebhookURL)
	// Untouched keys keep their defaults.
	assert.Equal(t, 3, cfg.Cache.RetryCount)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  "server": {"addr": ":9090"},
  "database": {"driver": "sqlite3", "dsn": "file:fisdash.db"}
}`)
	t.Setenv("FISDASH_SERVER__ADDR", ":7070")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoad_FlagsWinOverEverything(t *testing.T) {
	t.Setenv("FISDASH_DATABASE__DSN", "postgres://localhost/fisdash")
	t.Setenv("FISDASH_SERVER__ADDR", ":7070")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("server.addr", "", "listen address")
	require.NoError(t, flags.Parse([]string{"--server.addr=:6060"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.Server.Addr)
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeConfig(t, "config.toml", "")
	_, err := Load(path, nil)
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("", nil)
		require.NoError(t, err)
		return cfg
	}
	t.Setenv("FISDASH_DATABASE__DSN", "postgres://localhost/fisdash")

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }},
		{"zero dedupe window", func(c *Config) { c.Cache.DedupeWindow = 0 }},
		{"zero retry count", func(c *Config) { c.Cache.RetryCount = 0 }},
		{"negative retry interval", func(c *Config) { c.Cache.RetryInterval = -time.Second }},
		{"zero upload timeout", func(c *Config) { c.Upload.Timeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
