// Package validation provides request validation and custom validators.
package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rmpassist/rmp-assistant/internal/apperrors"
)

// validate is a package-level singleton that is safe for concurrent use once init has run.
// RegisterValidation is not thread-safe, so registrations happen in init only.
var validate *validator.Validate

func init() {
	validate = validator.New()

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}

		return name
	})

	if err := validate.RegisterValidation("no_null_bytes", validateNoNullBytes); err != nil {
		slog.Error("Failed to register no_null_bytes validator", "error", err)
	}
}

// ValidateStruct validates a struct and returns an apperrors.InvalidInputError describing
// every failing field.
func ValidateStruct(s any) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationErrors(err)
	}

	return nil
}

// ValidateSlice validates every struct element of a slice.
func ValidateSlice(s any) error {
	if err := validate.Var(s, "dive"); err != nil {
		return formatValidationErrors(err)
	}

	return nil
}

// formatValidationErrors converts validator errors to an InvalidInputError. Other errors
// (e.g. a non-struct argument) are returned unchanged.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	fields := make([]string, 0, len(validationErrors))

	for _, fieldError := range validationErrors {
		messages = append(messages, formatFieldError(fieldError))
		fields = append(fields, fieldError.Namespace())
	}

	return apperrors.NewInvalidInputError(
		strings.Join(fields, ","),
		"validation failed: "+strings.Join(messages, "; "),
	)
}

// formatFieldError formats a single field validation error.
func formatFieldError(fieldError validator.FieldError) string {
	field := fieldError.Namespace()
	if field == "" {
		field = fieldError.Field()
	}

	switch fieldError.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fieldError.Param())
	case "url", "http_url":
		return field + " must be a valid URL"
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fieldError.Param())
	case "no_null_bytes":
		return field + " must not contain NULL bytes"
	default:
		return field + " is invalid"
	}
}

// validateNoNullBytes checks that a string field does not contain NULL bytes.
func validateNoNullBytes(fl validator.FieldLevel) bool {
	field := fl.Field()

	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return true
		}

		field = field.Elem()
	}

	if field.Kind() != reflect.String {
		return true
	}

	return !strings.Contains(field.String(), "\x00")
}
