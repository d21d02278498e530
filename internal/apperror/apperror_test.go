package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	dbErr := errors.New("disk I/O error")

	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("user", "a@x.com"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("email", "email is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "AuthenticationFailed wraps ErrAuthentication",
			err:       AuthenticationFailed("request signature verification failed"),
			target:    ErrAuthentication,
			wantMatch: true,
		},
		{
			name:      "ConversionFailed wraps ErrConversion",
			err:       ConversionFailed("svg has no geometry", true, nil),
			target:    ErrConversion,
			wantMatch: true,
		},
		{
			name:      "DataLayer wraps ErrDataLayer",
			err:       DataLayer("storing signature", dbErr),
			target:    ErrDataLayer,
			wantMatch: true,
		},
		{
			name:      "DataLayer keeps its cause",
			err:       DataLayer("storing signature", dbErr),
			target:    dbErr,
			wantMatch: true,
		},
		{
			name:      "wrapped with fmt.Errorf still matches",
			err:       fmt.Errorf("submitting: %w", NotFound("user", "a@x.com")),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("user", "a@x.com"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "DataLayer does NOT match ErrValidation",
			err:       DataLayer("upserting user", dbErr),
			target:    ErrValidation,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("user", "a@x.com"),
			wantMessage: "user not found with id a@x.com",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("name", "name is required"),
			wantMessage: "name is required",
		},
		{
			name:        "DataLayer appends cause",
			err:         DataLayer("listing signatures", errors.New("database is locked")),
			wantMessage: "listing signatures: database is locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestErrorsAsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("storing: %w", ConversionFailed("engine timed out", false, errors.New("deadline")))

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As did not find *AppError")
	}
	if appErr.InputFault {
		t.Error("InputFault = true, want false")
	}
	if appErr.Message != "engine timed out" {
		t.Errorf("Message = %q, want %q", appErr.Message, "engine timed out")
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("email", "invalid email format")

	if err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
}
