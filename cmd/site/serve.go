package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jonathan/nirman-site/internal/logger"
	"github.com/jonathan/nirman-site/internal/metrics"
	"github.com/jonathan/nirman-site/internal/server"
	"github.com/jonathan/nirman-site/internal/server/ratelimit"
	"github.com/jonathan/nirman-site/internal/site"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the site over HTTP",
	Long: `Serve pages rendered on request. Content is cached and refreshed after the
revalidate interval; POST /api/revalidate with a bearer token from "site token"
drops cached content immediately.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	a, err := newApp(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer a.close()

	opts := []server.Option{
		server.WithLogger(log.With(logger.String("component", "server"))),
		server.WithMetrics(m, reg),
		server.WithStatic(site.Static()),
		server.WithRateLimiter(ratelimit.NewLimiter(cfg.RateLimit)),
	}
	if cfg.Auth.Secret != "" {
		opts = append(opts, server.WithRevalidation(a.cache, server.NewJWTService(&cfg.Auth)))
	} else {
		log.Warn("JWT_SECRET not set; POST /api/revalidate is disabled")
	}

	srv, err := server.New(server.Config{
		Addr:            cfg.Addr(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, a.site, opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info("serving site",
		logger.String("addr", cfg.Addr()),
		logger.String("dataset", cfg.Sanity.Dataset),
		logger.String("cache", cfg.Cache.Backend),
		logger.Duration("revalidate", a.cache.Revalidate()),
	)
	return srv.Run(ctx)
}
