package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"

	defaultSecretKey = "change_me"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DatabaseName string `env:"DATABASE_NAME" envDefault:"blog.db"`
	SecretKey    string `env:"SECRET_KEY" envDefault:"change_me"`
	DatabaseURL  string `env:"DATABASE_URL"`
	ServerAddr   string `env:"SERVER_ADDR" envDefault:":8080"`
	Env          string `env:"APP_ENV" envDefault:"development"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c Config) IsDevelopment() bool {
	return c.Env != "production"
}

// UsesDefaultSecret reports whether sessions are signed with the built-in key.
func (c Config) UsesDefaultSecret() bool {
	return c.SecretKey == defaultSecretKey
}

// loadConfig parses the environment and normalizes the database URL.
func loadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.SecretKey == "" {
		return nil, errors.New("SECRET_KEY must not be empty")
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "sqlite:///" + cfg.DatabaseName
	}
	cfg.DatabaseURL = normalizeDatabaseURL(cfg.DatabaseURL)

	if _, _, err := parseDatabaseURL(cfg.DatabaseURL); err != nil {
		return nil, err
	}

	return cfg, nil
}

// normalizeDatabaseURL rewrites the legacy postgres:// scheme that some
// hosting providers still hand out.
func normalizeDatabaseURL(raw string) string {
	if strings.HasPrefix(raw, "postgres://") {
		return "postgresql://" + strings.TrimPrefix(raw, "postgres://")
	}
	return raw
}

// parseDatabaseURL splits a connection URL into a database/sql driver name
// and the DSN that driver expects.
//
// sqlite:///blog.db is a path relative to the working directory,
// sqlite:////var/lib/blog.db is absolute and a bare sqlite:// is in-memory.
func parseDatabaseURL(raw string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(raw, "postgresql://"):
		return driverPostgres, raw, nil
	case strings.HasPrefix(raw, "sqlite:///"):
		path := strings.TrimPrefix(raw, "sqlite:///")
		if path == "" {
			return "", "", fmt.Errorf("database url %q: missing sqlite path", raw)
		}
		return driverSQLite, path, nil
	case raw == "sqlite://" || raw == "sqlite://:memory:":
		return driverSQLite, ":memory:", nil
	}

	scheme, _, found := strings.Cut(raw, "://")
	if !found {
		return "", "", fmt.Errorf("database url %q: missing scheme", raw)
	}
	return "", "", fmt.Errorf("database url: unsupported scheme %q", scheme)
}
