package domain

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports a malformed or out-of-range request field. It is
// surfaced to clients immediately and never queued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// validatorInstance shares gin's tag name so the same struct tags drive both
// HTTP binding and service-level validation.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.SetTagName("binding")
	})
	return validate
}

// Validate runs struct-tag validation over v and converts the first failure
// into a *ValidationError.
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	return AsValidationError(err)
}

// AsValidationError converts binding/validator failures into a
// *ValidationError. Other errors are wrapped with an empty field.
func AsValidationError(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	var fe validator.ValidationErrors
	if errors.As(err, &fe) && len(fe) > 0 {
		f := fe[0]
		return &ValidationError{Field: fieldPath(f.Namespace()), Reason: describe(f)}
	}
	return &ValidationError{Reason: err.Error()}
}

// fieldPath drops the root struct name and lowercases Go field names into the
// API's snake_case ("BinSpec.Dividers.Vertical" -> "dividers.vertical").
func fieldPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snakeCase(p)
	}
	return strings.Join(parts, ".")
}

func describe(f validator.FieldError) string {
	switch f.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be >= " + f.Param()
	case "max":
		return "must be <= " + f.Param()
	case "oneof":
		return "must be one of: " + f.Param()
	}
	return "failed " + f.Tag() + " check"
}
