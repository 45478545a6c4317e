package config

import "fmt"

// DefaultExpirationHours is how long issued tokens stay valid.
const DefaultExpirationHours = 24

// JWTConfig holds configuration for signing and validating revalidation
// tokens.
type JWTConfig struct {
	Secret          string `yaml:"secret" env:"JWT_SECRET"`
	ExpirationHours int    `yaml:"expiration_hours" env:"JWT_EXPIRATION_HOURS"`
}

// Validate checks the secret is set and tokens live at least an hour.
func (c *JWTConfig) Validate() error {
	if c.Secret == "" {
		return &ValidationError{Field: "auth.secret", Message: "JWT_SECRET cannot be empty"}
	}
	if c.ExpirationHours < 1 {
		return &ValidationError{
			Field:   "auth.expiration_hours",
			Message: fmt.Sprintf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours),
		}
	}
	return nil
}
