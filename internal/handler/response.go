package handler

// RESPONSE HELPERS:
// Every endpoint answers with JSON. Success bodies carry "success": true;
// error bodies always have the same shape so clients can parse them
// without looking at the status code first:
//
//	{"success": false, "error": "not_found", "message": "user not found with id a@x.com"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/signature-plotter/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`           // Machine-readable category (e.g. "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Offending request field, if known
}

// writeJSON sends a JSON response with the given status code.
// Headers must be set before WriteHeader; anything set afterwards is ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent, so all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and sends it.
//
// ERROR MAPPING:
//
//	ErrValidation     → 400 validation_error
//	ErrAuthentication → 403 authentication_error
//	ErrNotFound       → 404 not_found
//	ErrConversion     → 400 conversion_error (bad SVG) or 500 (engine failure)
//	ErrDataLayer      → 500 data_error
//	anything else     → 500 internal_error
//
// Storage and unexpected errors never reach the client verbatim: the raw
// message might contain SQL, file paths or container IDs. They are logged
// here and replaced by a generic message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		logger.Error("unexpected error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	resp := ErrorResponse{
		Error:   "internal_error",
		Message: appErr.Message,
		Field:   appErr.Field,
	}
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
		resp.Error = "validation_error"
	case errors.Is(err, apperror.ErrAuthentication):
		status = http.StatusForbidden
		resp.Error = "authentication_error"
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
		resp.Error = "not_found"
	case errors.Is(err, apperror.ErrConversion):
		resp.Error = "conversion_error"
		if appErr.InputFault {
			status = http.StatusBadRequest
		} else {
			logger.Error("conversion engine failure", slog.String("error", err.Error()))
		}
	case errors.Is(err, apperror.ErrDataLayer):
		logger.Error("data layer failure", slog.String("error", err.Error()))
		resp.Error = "data_error"
		resp.Message = "A storage error occurred"
	default:
		logger.Error("unexpected error", slog.String("error", err.Error()))
		resp.Message = "An internal error occurred"
	}

	writeJSON(w, status, resp)
}
