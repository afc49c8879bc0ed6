// Package validation checks API input and decoded backup records with
// validator/v10 and reports failures as domain validation errors.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	domainerrors "github.com/shelfsy/shelfsy-server/internal/errors"
)

// Validator wraps a configured validator/v10 instance.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator. Fields are reported by their JSON names, and
// the nocontrol tag rejects strings with control characters.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("nocontrol", noControl)
	return &Validator{v: v}
}

// jsonName returns the JSON key of a field. "-" makes the validator skip it.
func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" {
		return f.Name
	}
	return name
}

func noControl(fl validator.FieldLevel) bool {
	return !strings.ContainsFunc(fl.Field().String(), unicode.IsControl)
}

// Validate checks s. Failures come back as a validation error whose
// details map field paths such as "manga[2].chapters[0].url" to messages.
func (v *Validator) Validate(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fieldPath(fe)] = message(fe)
	}
	return domainerrors.ValidationWithDetails("validation failed", details)
}

// fieldPath is the namespace without the root struct name.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// messages holds the fixed text for tags whose message only needs the param.
var messages = map[string]string{
	"required":  "is required",
	"oneof":     "must be one of: ",
	"gte":       "must be greater than or equal to ",
	"lte":       "must be less than or equal to ",
	"gt":        "must be greater than ",
	"lt":        "must be less than ",
	"url":       "must be a valid URL",
	"uuid":      "must be a valid UUID",
	"nocontrol": "must not contain control characters",
}

func message(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch tag := fe.Tag(); tag {
	case "min":
		if isString {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if isString {
			return "must not exceed " + fe.Param() + " characters"
		}
		return "must not exceed " + fe.Param()
	default:
		msg, ok := messages[tag]
		if !ok {
			return "is invalid"
		}
		if strings.HasSuffix(msg, " ") {
			return msg + fe.Param()
		}
		return msg
	}
}
