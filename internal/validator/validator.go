// Package validator wraps go-playground/validator/v10 struct-tag validation
// for the runtime HTTP surface's request schemas (paths, identifiers, enum
// fields), returning field-keyed messages httpapi folds into a
// RuntimeError's Details.
package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs struct-tag validation, returning the raw
// validator.ValidationErrors (or nil) for callers that want the typed form.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidateRequest validates s and returns a field -> human message map, or
// nil if s is valid.
func ValidateRequest(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	out := make(map[string]string, len(fieldErrs))
	for _, e := range fieldErrs {
		out[strings.ToLower(e.Field())] = formatValidationError(e)
	}
	return out
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "max":
		return fmt.Sprintf("must be at most %s bytes", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}
