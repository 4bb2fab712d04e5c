// Package config loads application configuration from environment variables.
// All variables use the PROGRESS_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Cache       CacheConfig
	Log         LogConfig
	CatalogPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL makes
// the service run on the in-memory store, which only makes sense for local
// development and tests.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis connection settings. Caching is
// optional; an empty URL disables it.
type CacheConfig struct {
	URL string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with PROGRESS_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("PROGRESS_SERVER_PORT", 8080),
			Host: envStr("PROGRESS_SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL:      envStr("PROGRESS_DATABASE_URL", ""),
			MaxConns: envInt("PROGRESS_DATABASE_MAX_CONNS", 25),
			MinConns: envInt("PROGRESS_DATABASE_MIN_CONNS", 5),
		},
		Cache: CacheConfig{
			URL: envStr("PROGRESS_CACHE_URL", ""),
		},
		Log: LogConfig{
			Level:  envStr("PROGRESS_LOG_LEVEL", "info"),
			Format: envStr("PROGRESS_LOG_FORMAT", "json"),
		},
		CatalogPath: envStr("PROGRESS_CATALOG_PATH", "./content"),
	}

	return cfg, nil
}

// Validate checks that required configuration is present and coherent.
func (c *Config) Validate() error {
	if c.CatalogPath == "" {
		return fmt.Errorf("PROGRESS_CATALOG_PATH is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PROGRESS_SERVER_PORT must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Database.URL != "" && c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("PROGRESS_DATABASE_MIN_CONNS (%d) exceeds PROGRESS_DATABASE_MAX_CONNS (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("PROGRESS_LOG_LEVEL must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

// HasDatabase returns true when a PostgreSQL backend is configured.
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasCache returns true when a Redis/Dragonfly cache is configured.
func (c *Config) HasCache() bool {
	return c.Cache.URL != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
