package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{
		"PORT", "LOG_LEVEL", "DB_DRIVER", "DB_PATH", "DATABASE_URL",
		"TRUSTED_FRONTEND_ORIGINS", "FRONTEND_SIGNING_KEY", "ALLOWED_ROLES",
		"CONVERTER", "CONVERTER_IMAGE", "CONVERSION_TIMEOUT", "MAX_UPLOAD_BYTES",
	} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "data/signatures.db", cfg.DBPath)
	assert.Equal(t, defaultOrigins, cfg.TrustedOrigins)
	assert.Equal(t, []string{"student", "staff", "faculty", "other"}, cfg.AllowedRoles)
	assert.Equal(t, ConverterBuiltin, cfg.Converter)
	assert.Equal(t, 30*time.Second, cfg.ConversionTimeout)
	assert.Equal(t, int64(5<<20), cfg.MaxUploadBytes)

	// no key configured: Validate must refuse to start
	assert.Error(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TRUSTED_FRONTEND_ORIGINS", " https://a.example , https://b.example,, ")
	t.Setenv("FRONTEND_SIGNING_KEY", `  "s3cret-key"  `)
	t.Setenv("CONVERSION_TIMEOUT", "5s")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.TrustedOrigins)
	assert.Equal(t, "s3cret-key", cfg.SigningKey)
	assert.Equal(t, 5*time.Second, cfg.ConversionTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"port", "PORT", "eighty"},
		{"log level", "LOG_LEVEL", "loud"},
		{"timeout", "CONVERSION_TIMEOUT", "soon"},
		{"upload size", "MAX_UPLOAD_BYTES", "5MB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestNormalizeSecret(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"  padded\n", "padded"},
		{`"double"`, "double"},
		{`'single'`, "single"},
		{` "'mixed'" `, "mixed"},
		{`in"side`, `in"side`},
		{`""`, ""},
	}
	for _, tt := range tests {
		if got := NormalizeSecret(tt.in); got != tt.want {
			t.Errorf("NormalizeSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Port:              8080,
		DBDriver:          DriverSQLite,
		DBPath:            ":memory:",
		TrustedOrigins:    []string{"http://localhost:3000"},
		SigningKey:        "key",
		AllowedRoles:      []string{"student"},
		Converter:         ConverterBuiltin,
		ConversionTimeout: time.Second,
		MaxUploadBytes:    1024,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty key", func(c *Config) { c.SigningKey = "" }},
		{"no origins", func(c *Config) { c.TrustedOrigins = nil }},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }},
		{"postgres without url", func(c *Config) { c.DBDriver = DriverPostgres }},
		{"unknown converter", func(c *Config) { c.Converter = "inkscape" }},
		{"docker without image", func(c *Config) { c.Converter = ConverterDocker; c.ConverterImage = "" }},
		{"zero timeout", func(c *Config) { c.ConversionTimeout = 0 }},
		{"bad port", func(c *Config) { c.Port = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
