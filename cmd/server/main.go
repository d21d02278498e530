// Package main is the entry point for the signature plotter API server.
//
// main keeps to wiring: read configuration, build the logger, open the
// store, pick a conversion engine, and start the HTTP server. All logic
// lives in the internal packages.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakif/signature-plotter/internal/auth"
	"github.com/sakif/signature-plotter/internal/config"
	"github.com/sakif/signature-plotter/internal/converter"
	"github.com/sakif/signature-plotter/internal/converter/builtin"
	"github.com/sakif/signature-plotter/internal/converter/docker"
	"github.com/sakif/signature-plotter/internal/repository"
	"github.com/sakif/signature-plotter/internal/repository/postgres"
	sqliteRepo "github.com/sakif/signature-plotter/internal/repository/sqlite"
	"github.com/sakif/signature-plotter/internal/server"
	"github.com/sakif/signature-plotter/internal/service"
)

// store is what both database backends provide.
type store interface {
	repository.UserRepository
	repository.SignatureRepository
	Close() error
}

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// === 1. CONFIGURATION ===
	// A .env file is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// === 2. LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === 3. STORAGE ===
	db, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	// === 4. CONVERSION ENGINE ===
	engine, closeEngine := newEngine(ctx, cfg, logger)
	defer closeEngine()

	// === 5. SERVICES ===
	verifier, err := auth.NewVerifier(cfg.TrustedOrigins, cfg.SigningKey, logger)
	if err != nil {
		return err
	}
	// The fingerprint lets operators check both sides share a key without
	// ever printing the key.
	logger.Info("request signing configured",
		slog.String("key_fingerprint", verifier.KeyFingerprint()),
		slog.Any("trusted_origins", cfg.TrustedOrigins),
	)

	convOpts := service.DefaultConversionOptions()
	convOpts.Timeout = cfg.ConversionTimeout
	conversion := service.NewConversionService(engine, convOpts, logger)
	submissions := service.NewSubmissionService(db, db, conversion, cfg.AllowedRoles, logger)

	// === 6. HTTP SERVER ===
	srv := server.New(server.Config{
		Port:           cfg.Port,
		TrustedOrigins: cfg.TrustedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, server.Dependencies{
		Verifier:    verifier,
		Conversion:  conversion,
		Submissions: submissions,
	}, logger)

	// Start blocks until SIGINT/SIGTERM.
	return srv.Start(ctx)
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		db, err := postgres.Open(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("using postgres store")
		return db, nil

	default:
		if cfg.DBPath != sqliteRepo.MemoryPath {
			dir := filepath.Dir(cfg.DBPath)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		logger.Info("using sqlite store", slog.String("path", cfg.DBPath))
		return db, nil
	}
}

// newEngine returns the configured engine. The docker engine is optional:
// when the daemon is unreachable the server falls back to the builtin one.
func newEngine(ctx context.Context, cfg config.Config, logger *slog.Logger) (converter.Engine, func()) {
	fallback := builtin.New(builtin.DefaultOptions())

	if cfg.Converter != config.ConverterDocker {
		logger.Info("using builtin converter")
		return fallback, func() {}
	}

	dcfg := docker.DefaultConfig()
	dcfg.Image = cfg.ConverterImage
	dcfg.Timeout = cfg.ConversionTimeout

	engine, err := docker.New(ctx, dcfg, logger)
	if err != nil {
		logger.Warn("docker converter unavailable, falling back to builtin converter",
			slog.String("error", err.Error()),
		)
		return fallback, func() {}
	}

	logger.Info("using docker converter", slog.String("image", dcfg.Image))
	return engine, func() {
		if err := engine.Close(); err != nil {
			logger.Warn("closing docker converter", slog.String("error", err.Error()))
		}
	}
}
