package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/nirman-site/internal/logger"
	"github.com/jonathan/nirman-site/internal/observability"
	"github.com/jonathan/nirman-site/internal/sanity"
	"github.com/jonathan/nirman-site/internal/types"
	"github.com/jonathan/nirman-site/internal/validation"
)

var (
	validateForbidden []string
	validateTimeout   time.Duration
)

var validateCmd = &cobra.Command{
	Use:   "validate [file.json]",
	Short: "Check content documents for problems",
	Long: `Check services and projects against the document schema, the rich content
schema and the site's content rules. Without a file every published document
is fetched from the content store. Exits non-zero when errors are found;
warnings are only reported.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringSliceVar(&validateForbidden, "forbid", nil, "Phrases that must not appear (adds to config)")
	validateCmd.Flags().DurationVar(&validateTimeout, "timeout", 30*time.Second, "Timeout for fetching documents")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	opts := validation.Options{
		ForbiddenPhrases:     append(append([]string{}, cfg.Lint.ForbiddenPhrases...), validateForbidden...),
		MaxDescriptionLength: cfg.Lint.MaxDescriptionLength,
	}

	var result *types.Violations
	if len(args) == 1 {
		result, err = validation.CheckFile(args[0], opts)
	} else {
		ctx, cancel := context.WithTimeout(cmd.Context(), validateTimeout)
		defer cancel()
		client := sanity.New(cfg.Sanity, log.With(logger.String("component", "sanity")))
		source := cfg.Sanity.ProjectID + "/" + cfg.Sanity.Dataset
		result, err = validation.CheckStore(ctx, client, source, opts)
	}
	if err != nil {
		return err
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintViolations(result)
	if n := result.Errors(); n > 0 {
		return fmt.Errorf("found %d content errors", n)
	}
	return nil
}
