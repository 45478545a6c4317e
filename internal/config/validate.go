package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Message)
}

// ValidatePort checks if a port number is valid.
func ValidatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return &ValidationError{Field: field, Message: "must be between 1 and 65535"}
	}
	return nil
}

// ValidateLogLevel checks if a log level is valid. Empty means info.
func ValidateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return &ValidationError{Field: "log.level", Message: "must be one of: debug, info, warn, error"}
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags first, then the rules that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ValidationError{Field: fieldPath(fe.Namespace()), Message: describe(fe)}
		}
		return fmt.Errorf("config error: %w", err)
	}

	if err := ValidatePort("server.port", c.Server.Port); err != nil {
		return err
	}
	if err := ValidateLogLevel(c.Log.Level); err != nil {
		return err
	}

	switch c.Cache.Backend {
	case CacheRedis:
		if c.Cache.Redis.Address == "" {
			return &ValidationError{Field: "cache.redis.address", Message: "is required for the redis backend"}
		}
	case CachePostgres:
		if c.Cache.DatabaseURL == "" {
			return &ValidationError{Field: "cache.database_url", Message: "is required for the postgres backend"}
		}
	}

	if c.Auth.Secret != "" {
		if err := c.Auth.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// fieldPath turns "Config.Cache.Backend" into "cache.backend".
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.ToLower(strings.Join(parts, "."))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "url":
		return "must be an absolute URL"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
