package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jonathan/nirman-site/internal/config"
	"github.com/jonathan/nirman-site/internal/logger"
	"github.com/jonathan/nirman-site/internal/metrics"
	"github.com/jonathan/nirman-site/internal/observability"
	"github.com/jonathan/nirman-site/internal/pipeline"
	"github.com/jonathan/nirman-site/internal/site"
)

var (
	exportOutputDir   string
	exportConcurrency int
	exportBaseURL     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render every page to static files",
	Long: `Render every page to <out>/<path>/index.html, plus 404.html and the static
assets, and write manifest.json. With a base URL, internal links are checked
against the exported pages.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutputDir, "out", "o", "", "Output directory (overrides config)")
	exportCmd.Flags().IntVar(&exportConcurrency, "concurrency", 0, "Pages rendered at once (overrides config)")
	exportCmd.Flags().StringVar(&exportBaseURL, "base-url", "", "Public origin used to check internal links (overrides config)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if exportOutputDir != "" {
		cfg.Export.OutputDir = exportOutputDir
	}
	if exportConcurrency > 0 {
		cfg.Export.Concurrency = exportConcurrency
	}
	if exportBaseURL != "" {
		cfg.Server.BaseURL = exportBaseURL
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// An export reads every document once, so the cache only collapses
	// duplicate queries.
	cfg.Cache.Backend = config.CacheMemory
	a, err := newApp(ctx, cfg, log, metrics.New(nil))
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	var outMu sync.Mutex
	manifest, err := pipeline.RunExport(ctx, a.site, pipeline.RunOptions{
		OutputDir:   cfg.Export.OutputDir,
		Concurrency: cfg.Export.Concurrency,
		BaseURL:     cfg.Server.BaseURL,
		Logger:      log.With(logger.String("component", "export")),
		Assets:      site.Static(),
		OnProgress: func(e pipeline.ProgressEvent) {
			if verbose {
				outMu.Lock()
				fmt.Fprintf(out, "[%s] %s\n", e.Step, e.Message)
				outMu.Unlock()
			}
		},
	})
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	observability.NewPrinter(out).PrintExport(manifest)
	if len(manifest.BrokenLinks) > 0 {
		return fmt.Errorf("found %d broken links", len(manifest.BrokenLinks))
	}
	return nil
}
