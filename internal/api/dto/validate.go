package dto

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/druginsight-api/pkg/util"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validate checks struct tags and returns a VALIDATION_ERROR listing every
// failing field.
func Validate(req any) error {
	err := getValidator().Struct(req)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.NewValidationError("Request validation failed", nil)
	}

	fields := make([]FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, FieldError{Field: fe.Field(), Message: describe(fe)})
	}
	return apperrors.NewValidationError("Request validation failed", map[string]any{"fields": fields})
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "uuid":
		return "must be a valid UUID"
	default:
		return "is invalid"
	}
}
