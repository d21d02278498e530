// Package service contains the business logic layer of the application.
//
// Handler (HTTP layer) → Service (rules, orchestration) → Repository (SQL)
//
// Services accept plain Go values and return domain errors from
// internal/apperror; they know nothing about HTTP. Storage and the
// conversion engine are injected as interfaces so tests can swap them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/signature-plotter/internal/apperror"
	"github.com/sakif/signature-plotter/internal/converter"
	"github.com/sakif/signature-plotter/internal/model"
)

// ConversionOptions controls how metadata is derived from G-code.
type ConversionOptions struct {
	// MovementPrefixes mark a line as a movement command.
	MovementPrefixes []string
	// SetupPrefixes mark a line as a setup command. A line may match both
	// sets ("G28" starts with "G2") and is then counted in both.
	SetupPrefixes []string
	// SecondsPerLine drives the duration estimate: lines * SecondsPerLine.
	SecondsPerLine float64
	// Timeout bounds a single engine call. Zero means no extra timeout.
	Timeout time.Duration
}

// DefaultConversionOptions returns the standard plotter metadata rules.
func DefaultConversionOptions() ConversionOptions {
	return ConversionOptions{
		MovementPrefixes: []string{"G0", "G1", "G2", "G3"},
		SetupPrefixes:    []string{"G28", "G90", "G91", "M"},
		SecondsPerLine:   0.1,
		Timeout:          30 * time.Second,
	}
}

// ConversionService wraps the conversion engine and describes its output.
type ConversionService struct {
	engine converter.Engine
	opts   ConversionOptions
	logger *slog.Logger
}

// NewConversionService creates a ConversionService.
func NewConversionService(engine converter.Engine, opts ConversionOptions, logger *slog.Logger) *ConversionService {
	return &ConversionService{
		engine: engine,
		opts:   opts,
		logger: logger,
	}
}

// Convert runs the engine on svg and derives metadata from the result.
//
// Failures come back as apperror.ErrConversion. Malformed SVG and empty
// output are input faults (400); timeouts and engine errors are not (500).
func (s *ConversionService) Convert(ctx context.Context, svg string) (*model.Conversion, error) {
	if strings.TrimSpace(svg) == "" {
		return nil, apperror.ValidationFailed("svg_data", "SVG content is empty")
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	gcode, err := s.engine.Convert(ctx, svg)
	if err != nil {
		s.logger.Warn("svg conversion failed",
			slog.Int("svg_bytes", len(svg)),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()),
		)
		switch {
		case errors.Is(err, converter.ErrInvalidInput):
			return nil, apperror.ConversionFailed("SVG could not be converted", true, err)
		case errors.Is(err, context.DeadlineExceeded):
			return nil, apperror.ConversionFailed("SVG conversion timed out", false, err)
		default:
			return nil, apperror.ConversionFailed("SVG conversion failed", false, err)
		}
	}
	if strings.TrimSpace(gcode) == "" {
		return nil, apperror.ConversionFailed("SVG produced no G-code", true, nil)
	}

	meta := s.Describe(gcode)
	s.logger.Info("svg conversion successful",
		slog.Int("lines", meta.Lines),
		slog.Int("movements", meta.MovementCommands),
		slog.Int("setup", meta.SetupCommands),
		slog.Int("bytes", meta.Size),
		slog.Duration("elapsed", time.Since(start)),
	)

	return &model.Conversion{GCode: gcode, Metadata: meta}, nil
}

// Describe derives metadata from G-code text. Lines are split on "\n" and
// trimmed; blank lines are ignored. Size is the UTF-8 byte length of the
// whole text.
func (s *ConversionService) Describe(gcode string) model.GCodeMetadata {
	var meta model.GCodeMetadata
	for _, line := range strings.Split(gcode, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		meta.Lines++
		if hasAnyPrefix(line, s.opts.MovementPrefixes) {
			meta.MovementCommands++
		}
		if hasAnyPrefix(line, s.opts.SetupPrefixes) {
			meta.SetupCommands++
		}
	}
	meta.Size = len(gcode)
	meta.EstimatedDuration = fmt.Sprintf("%.1f seconds", float64(meta.Lines)*s.opts.SecondsPerLine)
	return meta
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
