// Package config loads service settings from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config holds the settings of the pandemus API service.
type Config struct {
	HTTPAddr       string        `env:"PANDEMUS_HTTP_ADDR" envDefault:":3000"`
	StoreDriver    string        `env:"STORE_DRIVER" envDefault:"memory"`
	PGHost         string        `env:"PG_HOST" envDefault:"localhost"`
	PGPort         string        `env:"PG_PORT" envDefault:"5432"`
	PGUser         string        `env:"PG_USER" envDefault:"postgres"`
	PGPass         string        `env:"PG_PASS" envDefault:"password"`
	PGDB           string        `env:"PG_DB" envDefault:"pandemus"`
	SQLitePath     string        `env:"SQLITE_PATH" envDefault:"pandemus.db"`
	MemoryCapacity int           `env:"MEMORY_CAPACITY" envDefault:"1000"`
	NATSURL        string        `env:"NATS_URL"`
	ProfilesFile   string        `env:"PROFILES_FILE"`
	FactorMode     string        `env:"FACTOR_MODE" envDefault:"overwrite"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"INFO"`
	ReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout    time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownGrace  time.Duration `env:"SHUTDOWN_GRACE" envDefault:"30s"`
}

// ClientConfig holds the settings of the command line client.
type ClientConfig struct {
	APIURL       string        `env:"PANDEMUS_API_URL" envDefault:"http://localhost:3000/api"`
	Timeout      time.Duration `env:"PANDEMUS_API_TIMEOUT" envDefault:"10s"`
	ProfilesFile string        `env:"PROFILES_FILE"`
	FactorMode   string        `env:"FACTOR_MODE" envDefault:"overwrite"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"WARN"`
}

// Load parses the environment into a Config and checks it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadClient parses the environment into a ClientConfig.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate rejects unknown drivers and non-positive capacities.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory, StorePostgres, StoreSQLite:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.StoreDriver == StoreMemory && c.MemoryCapacity <= 0 {
		return fmt.Errorf("MEMORY_CAPACITY must be > 0, got %d", c.MemoryCapacity)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	return ParseLevel(c.LogLevel)
}

// ParseLevel maps DEBUG, INFO, WARN and ERROR onto slog levels. Anything else is INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
