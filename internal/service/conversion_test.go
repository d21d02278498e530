package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sakif/signature-plotter/internal/apperror"
	"github.com/sakif/signature-plotter/internal/converter"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// staticEngine returns fixed output (or a fixed error) for every SVG.
func staticEngine(gcode string, err error) converter.Engine {
	return converter.EngineFunc(func(ctx context.Context, _ string) (string, error) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return gcode, err
	})
}

func TestDescribe(t *testing.T) {
	svc := NewConversionService(nil, DefaultConversionOptions(), discardLogger())

	tests := []struct {
		name     string
		gcode    string
		lines    int
		size     int
		movement int
		setup    int
		duration string
	}{
		{
			name:     "typical program",
			gcode:    "G90\nM05\nG0 X0 Y0\nM03\nG1 X1 Y1\nM05\n",
			lines:    6,
			size:     34,
			movement: 2,
			setup:    4,
			duration: "0.6 seconds",
		},
		{
			name:     "G28 counts as movement and setup",
			gcode:    "G28\nG1 X0 Y0",
			lines:    2,
			size:     12,
			movement: 2,
			setup:    1,
			duration: "0.2 seconds",
		},
		{
			name:     "blank and indented lines",
			gcode:    "\n   G1 X1\n\n\t\nM3  \n",
			lines:    2,
			size:     18,
			movement: 1,
			setup:    1,
			duration: "0.2 seconds",
		},
		{
			name:     "comments count as lines only",
			gcode:    "; plotted ✓\nG0 X0",
			lines:    2,
			size:     19,
			movement: 1,
			setup:    0,
			duration: "0.2 seconds",
		},
		{
			name:     "empty",
			gcode:    "",
			duration: "0.0 seconds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := svc.Describe(tt.gcode)
			if meta.Lines != tt.lines {
				t.Errorf("Lines = %d, want %d", meta.Lines, tt.lines)
			}
			if meta.Size != tt.size {
				t.Errorf("Size = %d, want %d", meta.Size, tt.size)
			}
			if meta.MovementCommands != tt.movement {
				t.Errorf("MovementCommands = %d, want %d", meta.MovementCommands, tt.movement)
			}
			if meta.SetupCommands != tt.setup {
				t.Errorf("SetupCommands = %d, want %d", meta.SetupCommands, tt.setup)
			}
			if meta.EstimatedDuration != tt.duration {
				t.Errorf("EstimatedDuration = %q, want %q", meta.EstimatedDuration, tt.duration)
			}
		})
	}
}

func TestConvert_Success(t *testing.T) {
	svc := NewConversionService(staticEngine("G90\nG1 X1 Y1\n", nil), DefaultConversionOptions(), discardLogger())

	conv, err := svc.Convert(context.Background(), "<svg></svg>")
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if conv.GCode != "G90\nG1 X1 Y1\n" {
		t.Errorf("GCode = %q", conv.GCode)
	}
	if conv.Metadata.Lines != 2 {
		t.Errorf("Lines = %d, want 2", conv.Metadata.Lines)
	}
}

func TestConvert_Failures(t *testing.T) {
	tests := []struct {
		name       string
		engine     converter.Engine
		svg        string
		wantErr    error
		inputFault bool
	}{
		{
			name:    "empty svg",
			engine:  staticEngine("G90", nil),
			svg:     "   ",
			wantErr: apperror.ErrValidation,
		},
		{
			name:       "malformed svg",
			engine:     staticEngine("", converter.ErrInvalidInput),
			svg:        "<svg",
			wantErr:    apperror.ErrConversion,
			inputFault: true,
		},
		{
			name:       "blank output",
			engine:     staticEngine(" \n\n", nil),
			svg:        "<svg></svg>",
			wantErr:    apperror.ErrConversion,
			inputFault: true,
		},
		{
			name:    "engine crash",
			engine:  staticEngine("", errors.New("engine exploded")),
			svg:     "<svg></svg>",
			wantErr: apperror.ErrConversion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewConversionService(tt.engine, DefaultConversionOptions(), discardLogger())

			_, err := svc.Convert(context.Background(), tt.svg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}

			var appErr *apperror.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("error %v is not an *AppError", err)
			}
			if appErr.InputFault != tt.inputFault {
				t.Errorf("InputFault = %v, want %v", appErr.InputFault, tt.inputFault)
			}
		})
	}
}

func TestConvert_Timeout(t *testing.T) {
	slow := converter.EngineFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	opts := DefaultConversionOptions()
	opts.Timeout = 10 * time.Millisecond
	svc := NewConversionService(slow, opts, discardLogger())

	_, err := svc.Convert(context.Background(), "<svg></svg>")
	if !errors.Is(err, apperror.ErrConversion) {
		t.Fatalf("error = %v, want ErrConversion", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want it to wrap DeadlineExceeded", err)
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.InputFault {
		t.Error("a timeout must not be reported as an input fault")
	}
}
