package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults overridable via MCP_QUERY_TIMEOUT and MCP_MAX_ROWS.
const (
	DefaultQueryTimeout = 30 * time.Second
	DefaultMaxRows      = 0
)

// Flags carries command-line values. Empty/zero fields fall back to the
// environment, then to defaults.
type Flags struct {
	Dialect      string
	DSN          string
	LogLevel     string
	QueryTimeout string
	MaxRows      int
	Strict       bool
}

// Config is the resolved startup configuration. The descriptor (Adapter,
// DSN) is immutable once loaded.
type Config struct {
	Adapter      DBAdapter
	Dialect      string
	DSN          string
	DatabaseName string
	LogLevel     string
	QueryTimeout time.Duration
	MaxRows      int
	Strict       bool
}

// LoadConfig resolves flags and environment into a Config. Any error is
// fatal at startup.
func LoadConfig(f Flags) (*Config, error) {
	dialect := getStringWithFallback(f.Dialect, "MCP_DIALECT", "mssql")
	adapter, err := adapterFor(dialect)
	if err != nil {
		return nil, err
	}

	dsn := getStringWithFallback(f.DSN, "DB_CONNECTION_STRING", "")
	if dsn == "" {
		dsn, err = adapter.BuildDSN()
		if err != nil {
			return nil, fmt.Errorf("no connection string: set DB_CONNECTION_STRING or pass a DSN (%w)", err)
		}
	}

	cfg := &Config{
		Adapter:      adapter,
		Dialect:      dialect,
		DSN:          dsn,
		DatabaseName: adapter.DatabaseName(dsn),
		LogLevel:     getStringWithFallback(f.LogLevel, "MCP_LOG_LEVEL", "info"),
		QueryTimeout: DefaultQueryTimeout,
		MaxRows:      DefaultMaxRows,
		Strict:       f.Strict,
	}

	if v := getStringWithFallback(f.QueryTimeout, "MCP_QUERY_TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid query timeout %q: must be a non-negative duration such as 30s", v)
		}
		cfg.QueryTimeout = d
	}

	if f.MaxRows > 0 {
		cfg.MaxRows = f.MaxRows
	} else if v := os.Getenv("MCP_MAX_ROWS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid MCP_MAX_ROWS %q: must be a non-negative integer", v)
		}
		cfg.MaxRows = n
	}

	if !cfg.Strict {
		if v := os.Getenv("MCP_STRICT_GUARD"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("invalid MCP_STRICT_GUARD %q: %w", v, err)
			}
			cfg.Strict = b
		}
	}

	return cfg, nil
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DispatchOptions returns the dispatcher tuning derived from the config.
func (c *Config) DispatchOptions() DispatchOptions {
	return DispatchOptions{
		QueryTimeout: c.QueryTimeout,
		MaxRows:      c.MaxRows,
		Strict:       c.Strict,
	}
}

// getStringWithFallback returns the flag value, or env var, or default
func getStringWithFallback(flag, envVar, defaultValue string) string {
	if flag != "" {
		return flag
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		return envValue
	}
	return defaultValue
}
