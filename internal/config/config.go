// Package config loads the site configuration from an optional YAML file,
// .env files and the environment.
//
// Values are applied in order, later ones winning:
//
//  1. Defaults()
//  2. the YAML file, when a path is given
//  3. variables named by `env:` struct tags, including ones read from
//     ENV_FILE or .env.local and .env
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/nirman-site/internal/cache"
	"github.com/jonathan/nirman-site/internal/logger"
	"github.com/jonathan/nirman-site/internal/sanity"
	"github.com/jonathan/nirman-site/internal/server/ratelimit"
	"github.com/jonathan/nirman-site/internal/site"
)

// Cache backends.
const (
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
)

// Config is the complete site configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Sanity    sanity.Config    `yaml:"sanity"`
	Cache     CacheConfig      `yaml:"cache"`
	Log       logger.Config    `yaml:"log"`
	Auth      JWTConfig        `yaml:"auth"`
	RateLimit ratelimit.Config `yaml:"rate_limit"`
	Export    ExportConfig     `yaml:"export"`
	Lint      ValidateConfig   `yaml:"validate"`
	Site      site.Info        `yaml:"site"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	// BaseURL is the public origin. The export link check resolves links
	// against it.
	BaseURL string `yaml:"base_url" env:"BASE_URL" validate:"omitempty,url"`
}

// CacheConfig configures the content cache.
type CacheConfig struct {
	Backend    string        `yaml:"backend" env:"CACHE_BACKEND" validate:"oneof=memory redis postgres"`
	Revalidate time.Duration `yaml:"revalidate" env:"CACHE_REVALIDATE" validate:"gte=0"`
	// MaxStale bounds how long redis keeps an entry. Zero keeps entries
	// until they are invalidated.
	MaxStale    time.Duration     `yaml:"max_stale" env:"CACHE_MAX_STALE" validate:"gte=0"`
	Redis       cache.RedisConfig `yaml:"redis"`
	DatabaseURL string            `yaml:"database_url" env:"DATABASE_URL"`
}

// ExportConfig configures the static export.
type ExportConfig struct {
	OutputDir   string `yaml:"output_dir" env:"EXPORT_OUTPUT_DIR" validate:"required"`
	Concurrency int    `yaml:"concurrency" env:"EXPORT_CONCURRENCY" validate:"min=1,max=64"`
}

// ValidateConfig configures the content linter.
type ValidateConfig struct {
	ForbiddenPhrases     []string `yaml:"forbidden_phrases" env:"VALIDATE_FORBIDDEN_PHRASES"`
	MaxDescriptionLength int      `yaml:"max_description_length" validate:"gte=0"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Sanity: sanity.DefaultConfig(),
		Cache: CacheConfig{
			Backend:    CacheMemory,
			Revalidate: cache.DefaultRevalidate,
			MaxStale:   24 * time.Hour,
			Redis:      cache.RedisConfig{Prefix: cache.DefaultRedisPrefix},
		},
		Log:       logger.Config{Level: "info"},
		Auth:      JWTConfig{ExpirationHours: DefaultExpirationHours},
		RateLimit: ratelimit.DefaultConfig(),
		Export:    ExportConfig{OutputDir: "out", Concurrency: 4},
		Site:      site.DefaultInfo(),
	}
}

// Load builds the configuration. An empty path skips the YAML file.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Addr returns the listen address for the server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
