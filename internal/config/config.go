package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MTGCAT_"

// Config represents the application configuration.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Scryfall ScryfallConfig `toml:"scryfall"`
	Ingest   IngestConfig   `toml:"ingest"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`           // SQLite file
	MaxOpenConns int    `toml:"max_open_conns"` // Connection pool size
	BusyTimeout  string `toml:"busy_timeout"`   // e.g. "5s"
	AutoMigrate  bool   `toml:"auto_migrate"`   // Run migrations on open
	LogQueries   bool   `toml:"log_queries"`    // Log read-path SQL
}

// ScryfallConfig contains catalog source settings.
type ScryfallConfig struct {
	BaseURL    string `toml:"base_url"`
	UserAgent  string `toml:"user_agent"`
	RateLimit  string `toml:"rate_limit"` // Minimum delay between requests
	Timeout    string `toml:"timeout"`
	MaxRetries int    `toml:"max_retries"`
}

// IngestConfig contains ingestion settings.
type IngestConfig struct {
	BatchSize        int    `toml:"batch_size"`        // Price records per write batch
	BackfillUnpriced bool   `toml:"backfill_unpriced"` // Backfill cards that never had a price row
	Schedule         bool   `toml:"schedule"`          // Run the in-process scheduler in apiserver
	RefreshHour      int    `toml:"refresh_hour"`      // UTC hour of the daily run
	WeeklyDay        int    `toml:"weekly_day"`        // Weekday (0 = Sunday) of the full card refresh
	CheckInterval    string `toml:"check_interval"`
}

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
	RequestTimeout string   `toml:"request_timeout"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // json or console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         filepath.Join("data", "catalog.db"),
			MaxOpenConns: 25,
			BusyTimeout:  "5s",
			AutoMigrate:  true,
		},
		Scryfall: ScryfallConfig{
			BaseURL:    "https://api.scryfall.com",
			UserAgent:  "MTGCatalog/1.0",
			RateLimit:  "100ms",
			Timeout:    "30s",
			MaxRetries: 3,
		},
		Ingest: IngestConfig{
			BatchSize:     500,
			RefreshHour:   4,
			WeeklyDay:     int(time.Sunday),
			CheckInterval: "1h",
		},
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"*"},
			RequestTimeout: "60s",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the configuration at path and applies environment overrides.
// A missing file (or an empty path) yields the defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := toml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	config.ApplyEnv()
	return config, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from MTGCAT_* environment variables.
func (c *Config) ApplyEnv() {
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)
	c.Database.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.AutoMigrate = getEnvAsBool("DB_AUTO_MIGRATE", c.Database.AutoMigrate)

	c.Scryfall.BaseURL = getEnv("SCRYFALL_BASE_URL", c.Scryfall.BaseURL)
	c.Scryfall.UserAgent = getEnv("SCRYFALL_USER_AGENT", c.Scryfall.UserAgent)
	c.Scryfall.RateLimit = getEnv("SCRYFALL_RATE_LIMIT", c.Scryfall.RateLimit)

	c.Ingest.BatchSize = getEnvAsInt("INGEST_BATCH_SIZE", c.Ingest.BatchSize)
	c.Ingest.BackfillUnpriced = getEnvAsBool("INGEST_BACKFILL_UNPRICED", c.Ingest.BackfillUnpriced)
	c.Ingest.Schedule = getEnvAsBool("INGEST_SCHEDULE", c.Ingest.Schedule)
	c.Ingest.RefreshHour = getEnvAsInt("INGEST_REFRESH_HOUR", c.Ingest.RefreshHour)

	c.Server.Port = getEnvAsInt("SERVER_PORT", c.Server.Port)
	if origins := getEnv("SERVER_ALLOWED_ORIGINS", ""); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("max open connections must be positive: %d", c.Database.MaxOpenConns)
	}

	durations := map[string]string{
		"database busy timeout":  c.Database.BusyTimeout,
		"scryfall rate limit":    c.Scryfall.RateLimit,
		"scryfall timeout":       c.Scryfall.Timeout,
		"ingest check interval":  c.Ingest.CheckInterval,
		"server request timeout": c.Server.RequestTimeout,
	}
	for name, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}

	if c.Scryfall.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative: %d", c.Scryfall.MaxRetries)
	}
	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("ingest batch size must be positive: %d", c.Ingest.BatchSize)
	}
	if c.Ingest.RefreshHour < 0 || c.Ingest.RefreshHour > 23 {
		return fmt.Errorf("refresh hour must be between 0 and 23: %d", c.Ingest.RefreshHour)
	}
	if c.Ingest.WeeklyDay < 0 || c.Ingest.WeeklyDay > 6 {
		return fmt.Errorf("weekly day must be between 0 and 6: %d", c.Ingest.WeeklyDay)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}

	return nil
}

// Duration parses a duration field that Validate has already checked. An
// unparseable value yields zero, letting the consumer fall back to its default.
func Duration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(EnvPrefix + key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
