package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sakif/signature-plotter/internal/apperror"
)

// decodeJSON reads a single JSON object from the (already size-limited)
// request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return bodyError(err)
	}
	return nil
}

// bodyError converts a body read/parse failure into a validation error.
func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperror.ValidationFailed("", fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperror.ValidationFailed(typeErr.Field, fmt.Sprintf("%s has the wrong type", typeErr.Field))
	}

	return apperror.ValidationFailed("", "malformed request body")
}
