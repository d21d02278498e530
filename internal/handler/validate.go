package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/signature-plotter/internal/apperror"
)

// newValidator returns a validator that reports JSON field names and knows
// the "svg" tag (content must start with an <svg element).
func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// Optional fields validate as their string value; absent or null
	// values are nil and satisfy omitempty.
	v.RegisterCustomTypeFunc(optionalValue, optionalString{})

	// RegisterValidation only fails for an empty or duplicate tag name.
	_ = v.RegisterValidation("svg", func(fl validator.FieldLevel) bool {
		return looksLikeSVG(fl.Field().String())
	})

	return v
}

func optionalValue(field reflect.Value) any {
	if o, ok := field.Interface().(optionalString); ok && o.Value != nil {
		return *o.Value
	}
	return nil
}

func looksLikeSVG(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "<svg")
}

// validationError turns the first failed rule into an apperror.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.ValidationFailed("", "invalid request")
	}

	fe := verrs[0]
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", field)
	case "max":
		msg = fmt.Sprintf("%s must be %s characters or less", field, fe.Param())
	case "email":
		msg = "enter a valid email address"
	case "datetime":
		msg = fmt.Sprintf("%s must be an RFC 3339 timestamp", field)
	case "svg":
		msg = "invalid SVG content, must start with <svg tag"
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return apperror.ValidationFailed(field, msg)
}
