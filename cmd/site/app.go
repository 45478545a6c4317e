package main

import (
	"context"
	"fmt"

	"github.com/jonathan/nirman-site/internal/cache"
	"github.com/jonathan/nirman-site/internal/config"
	"github.com/jonathan/nirman-site/internal/content"
	"github.com/jonathan/nirman-site/internal/imageurl"
	"github.com/jonathan/nirman-site/internal/logger"
	"github.com/jonathan/nirman-site/internal/metrics"
	"github.com/jonathan/nirman-site/internal/rendering"
	"github.com/jonathan/nirman-site/internal/sanity"
	"github.com/jonathan/nirman-site/internal/site"
)

// loadConfig loads the configuration named by --config or CONFIG_PATH.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Path(configPath))
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

// app is the content stack shared by serve and export.
type app struct {
	cache *cache.Cached
	site  *site.Site
	close func()
}

// newRenderer reports skipped rich content nodes to the log and metrics.
func newRenderer(cfg *config.Config, log logger.Logger, m *metrics.Metrics) (*rendering.Renderer, *imageurl.Builder) {
	images := imageurl.New(cfg.Sanity.ProjectID, cfg.Sanity.Dataset)
	renderer := rendering.New(images, rendering.WithUnknownHandler(func(category rendering.Category, kind string) {
		log.Debug("skipped unknown rich content node",
			logger.String("category", string(category)),
			logger.String("kind", kind),
		)
		m.UnknownKind(string(category), kind)
	}))
	return renderer, images
}

// newStore opens the configured cache backend.
func newStore(ctx context.Context, cfg *config.Config) (cache.Store, func(), error) {
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		client, err := cache.NewRedisClient(cfg.Cache.Redis)
		if err != nil {
			return nil, nil, err
		}
		store := cache.NewRedisStore(client, cfg.Cache.Redis.Prefix, cfg.Cache.MaxStale)
		return store, func() { _ = client.Close() }, nil
	case config.CachePostgres:
		store, err := cache.ConnectPostgres(ctx, cfg.Cache.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return cache.NewMemoryStore(), func() {}, nil
	}
}

func newApp(ctx context.Context, cfg *config.Config, log logger.Logger, m *metrics.Metrics) (*app, error) {
	client := sanity.New(cfg.Sanity, log.With(logger.String("component", "sanity")))

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s cache: %w", cfg.Cache.Backend, err)
	}
	cached := cache.New(client, store,
		cache.WithRevalidate(cfg.Cache.Revalidate),
		cache.WithLogger(log.With(logger.String("component", "cache"))),
		cache.WithMetrics(m),
	)

	renderer, images := newRenderer(cfg, log, m)
	pages, err := site.New(
		content.New(cached, log.With(logger.String("component", "content"))),
		renderer,
		images,
		site.WithInfo(cfg.Site),
		site.WithLogger(log.With(logger.String("component", "site"))),
		site.WithMetrics(m),
	)
	if err != nil {
		closeStore()
		return nil, err
	}

	return &app{cache: cached, site: pages, close: closeStore}, nil
}
