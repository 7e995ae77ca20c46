package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// enumTags are custom validate tags accepting a fixed, case-insensitive set.
// The empty string passes so optional fields can stay unset.
var enumTags = map[string][]string{
	"loglevel":  {"trace", "debug", "info", "warn", "error", "fatal", "panic"},
	"logformat": {"console", "text", "json"},
	"mode":      {ModeOneTime, ModeWatch},
}

func newValidator() *validator.Validate {
	validate := validator.New()
	for tag, allowed := range enumTags {
		allowed := allowed
		_ = validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			value := strings.ToLower(fl.Field().String())
			if value == "" {
				return true
			}
			for _, a := range allowed {
				if value == a {
					return true
				}
			}
			return false
		})
	}
	return validate
}

// ValidateConfig checks cfg against the validate tags and reports every
// failing field in one error.
func ValidateConfig(cfg *GlobalConfig) error {
	err := newValidator().Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("configuration validation error: %w", err)
	}

	lines := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		lines = append(lines, describeFieldError(fe))
	}
	return fmt.Errorf("configuration validation failed:\n  %s", strings.Join(lines, "\n  "))
}

// describeFieldError renders fe as "'Section.Field': rule 'tag' ...".
func describeFieldError(fe validator.FieldError) string {
	field := fe.StructNamespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	var b strings.Builder
	fmt.Fprintf(&b, "'%s': rule '%s'", field, fe.Tag())
	if allowed, ok := enumTags[fe.Tag()]; ok {
		fmt.Fprintf(&b, " (one of: %s)", strings.Join(allowed, ", "))
	} else if fe.Param() != "" {
		fmt.Fprintf(&b, " (expected: %s)", fe.Param())
	}
	if v := fe.Value(); v != nil && v != "" {
		fmt.Fprintf(&b, ", got '%v'", v)
	}
	return b.String()
}
