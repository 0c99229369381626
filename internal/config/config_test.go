package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 500, cfg.Ingest.BatchSize)
	assert.False(t, cfg.Ingest.BackfillUnpriced)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "catalog.toml")

	cfg := DefaultConfig()
	cfg.Database.Path = "/var/lib/catalog.db"
	cfg.Ingest.BackfillUnpriced = true
	cfg.Server.AllowedOrigins = []string{"https://example.org"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ingest]\nbatch_size = 50\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Ingest.BatchSize)
	assert.Equal(t, "100ms", cfg.Scryfall.RateLimit)
}

func TestLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ingest\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MTGCAT_DB_PATH", "/tmp/env.db")
	t.Setenv("MTGCAT_INGEST_BATCH_SIZE", "42")
	t.Setenv("MTGCAT_INGEST_BACKFILL_UNPRICED", "true")
	t.Setenv("MTGCAT_SERVER_PORT", "not-a-number")
	t.Setenv("MTGCAT_SERVER_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("MTGCAT_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, 42, cfg.Ingest.BatchSize)
	assert.True(t, cfg.Ingest.BackfillUnpriced)
	assert.Equal(t, 8080, cfg.Server.Port, "malformed values keep the previous setting")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"bad rate limit", func(c *Config) { c.Scryfall.RateLimit = "fast" }},
		{"zero batch", func(c *Config) { c.Ingest.BatchSize = 0 }},
		{"hour out of range", func(c *Config) { c.Ingest.RefreshHour = 24 }},
		{"weekday out of range", func(c *Config) { c.Ingest.WeeklyDay = 7 }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, Duration("100ms"))
	assert.Zero(t, Duration("soon"))
}
