// Package config loads the server configuration from environment variables.
//
// Environment Variables:
//
//   - PORT: listen port (default: 8080)
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//   - DB_DRIVER: "sqlite" or "postgres" (default: sqlite)
//   - DB_PATH: sqlite database file (default: data/signatures.db)
//   - DATABASE_URL: postgres DSN, required when DB_DRIVER=postgres
//   - TRUSTED_FRONTEND_ORIGINS: comma-separated origins allowed to call signed endpoints
//   - FRONTEND_SIGNING_KEY: shared HMAC secret (required)
//   - ALLOWED_ROLES: comma-separated role names (default: student,staff,faculty,other)
//   - CONVERTER: "builtin" or "docker" (default: builtin)
//   - CONVERTER_IMAGE: image used by the docker converter (default: svg2gcode:latest)
//   - CONVERSION_TIMEOUT: per-conversion timeout (default: 30s)
//   - MAX_UPLOAD_BYTES: maximum request body size (default: 5 MiB)
//
// The configuration is loaded once at startup and treated as read-only.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	ConverterBuiltin = "builtin"
	ConverterDocker  = "docker"
)

var defaultOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
	"http://localhost:4200",
	"http://127.0.0.1:4200",
}

var defaultRoles = []string{"student", "staff", "faculty", "other"}

// Config holds all configuration values for the server.
type Config struct {
	Port     int
	LogLevel slog.Level

	DBDriver    string
	DBPath      string
	DatabaseURL string

	TrustedOrigins []string
	SigningKey     string
	AllowedRoles   []string

	Converter         string
	ConverterImage    string
	ConversionTimeout time.Duration
	MaxUploadBytes    int64
}

// Load builds a Config from the environment. Malformed numeric or duration
// values are reported immediately; semantic checks are left to Validate.
func Load() (Config, error) {
	cfg := Config{
		Port:              8080,
		LogLevel:          slog.LevelInfo,
		DBDriver:          getEnv("DB_DRIVER", DriverSQLite),
		DBPath:            getEnv("DB_PATH", "data/signatures.db"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		TrustedOrigins:    getList("TRUSTED_FRONTEND_ORIGINS", defaultOrigins),
		SigningKey:        NormalizeSecret(os.Getenv("FRONTEND_SIGNING_KEY")),
		AllowedRoles:      getList("ALLOWED_ROLES", defaultRoles),
		Converter:         getEnv("CONVERTER", ConverterBuiltin),
		ConverterImage:    getEnv("CONVERTER_IMAGE", "svg2gcode:latest"),
		ConversionTimeout: 30 * time.Second,
		MaxUploadBytes:    5 << 20,
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("config: invalid LOG_LEVEL %q: %w", v, err)
		}
	}

	if v := os.Getenv("CONVERSION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid CONVERSION_TIMEOUT %q: %w", v, err)
		}
		cfg.ConversionTimeout = d
	}

	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid MAX_UPLOAD_BYTES %q: %w", v, err)
		}
		cfg.MaxUploadBytes = n
	}

	return cfg, nil
}

// Validate checks that the configuration is usable. It fails closed: a
// server without a signing key or an origin allow-list does not start.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver))
	}
	if c.SigningKey == "" {
		errs = append(errs, errors.New("FRONTEND_SIGNING_KEY is required"))
	}
	if len(c.TrustedOrigins) == 0 {
		errs = append(errs, errors.New("TRUSTED_FRONTEND_ORIGINS must list at least one origin"))
	}
	if len(c.AllowedRoles) == 0 {
		errs = append(errs, errors.New("ALLOWED_ROLES must list at least one role"))
	}
	switch c.Converter {
	case ConverterBuiltin:
	case ConverterDocker:
		if c.ConverterImage == "" {
			errs = append(errs, errors.New("CONVERTER_IMAGE is required for the docker converter"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CONVERTER %q", c.Converter))
	}
	if c.ConversionTimeout <= 0 {
		errs = append(errs, errors.New("CONVERSION_TIMEOUT must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// NormalizeSecret strips surrounding whitespace and quote characters, which
// commonly leak in from .env files and secret managers.
func NormalizeSecret(s string) string {
	return strings.Trim(s, " \t\r\n\"'")
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
