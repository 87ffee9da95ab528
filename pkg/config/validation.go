package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for invalid values.
//
// Validation uses struct tags (see the validate tags on Config and its
// sections) plus a handful of cross-field rules that tags cannot express.
// Validation never mutates the config; normalization belongs to
// ApplyDefaults.
func Validate(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			messages := make([]string, 0, len(validationErrors))
			for _, fieldErr := range validationErrors {
				messages = append(messages, formatFieldError(fieldErr))
			}
			return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(messages, "\n  - "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Cross-field rules the tags cannot express.
	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("invalid database configuration: %w", err)
	}

	return nil
}

// formatFieldError renders one field error as a human-readable message
// that names the offending field and the failed rule.
func formatFieldError(fieldErr validator.FieldError) string {
	// Namespace looks like "Config.Logging.Level"; drop the leading type
	// name and lowercase for readability.
	namespace := fieldErr.Namespace()
	if idx := strings.Index(namespace, "."); idx >= 0 {
		namespace = namespace[idx+1:]
	}
	field := strings.ToLower(namespace)

	if fieldErr.Param() != "" {
		return fmt.Sprintf("%s: failed '%s=%s' validation (value: %v)",
			field, fieldErr.Tag(), fieldErr.Param(), fieldErr.Value())
	}
	return fmt.Sprintf("%s: failed '%s' validation (value: %v)",
		field, fieldErr.Tag(), fieldErr.Value())
}
