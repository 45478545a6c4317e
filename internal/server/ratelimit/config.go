package ratelimit

import (
	"net/http"
	"time"
)

// EndpointConfig is the limit for one route. Paths ending in "/" match
// every path below them.
type EndpointConfig struct {
	Path   string        `yaml:"path"`
	Method string        `yaml:"method"`
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
	Burst  int           `yaml:"burst"`
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool             `yaml:"enabled" env:"RATE_LIMIT_ENABLED"`
	DefaultLimit    int              `yaml:"default_limit" env:"RATE_LIMIT_DEFAULT_LIMIT" validate:"gte=0"`
	DefaultWindow   time.Duration    `yaml:"default_window" env:"RATE_LIMIT_DEFAULT_WINDOW"`
	CleanupInterval time.Duration    `yaml:"cleanup_interval" env:"RATE_LIMIT_CLEANUP_INTERVAL"`
	IdleTimeout     time.Duration    `yaml:"idle_timeout" env:"RATE_LIMIT_IDLE_TIMEOUT"`
	Whitelist       []string         `yaml:"whitelist" env:"RATE_LIMIT_WHITELIST"`
	Blacklist       []string         `yaml:"blacklist" env:"RATE_LIMIT_BLACKLIST"`
	Exempt          []string         `yaml:"exempt"`
	Endpoints       []EndpointConfig `yaml:"endpoints"`
}

// DefaultConfig returns the limits the site runs with.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		DefaultLimit:    600,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		IdleTimeout:     time.Hour,
		Exempt:          []string{"/health", "/metrics"},
		Endpoints:       DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the endpoint-specific limits. Page reads
// use the default limit.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Cache invalidation hits the content store on the next request.
		{Path: "/api/revalidate", Method: http.MethodPost, Limit: 30, Window: time.Minute, Burst: 5},
	}
}

func toSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, item := range list {
		if item != "" {
			set[item] = true
		}
	}
	return set
}
