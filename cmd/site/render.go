package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/nirman-site/internal/logger"
	"github.com/jonathan/nirman-site/internal/portabletext"
)

// Output formats.
const (
	formatHTML     = "html"
	formatMarkdown = "markdown"
)

var (
	renderFormat string
	renderOut    string
)

var renderCmd = &cobra.Command{
	Use:   "render <file.json|->",
	Short: "Render a rich content document to HTML or Markdown",
	Long: `Render a Portable Text document (a JSON array of blocks, a single block, or
"-" for stdin) with the same components the site uses.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderFormat, "format", "f", formatHTML, "Output format: html or markdown")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "Output file (default: stdout)")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	if renderFormat != formatHTML && renderFormat != formatMarkdown {
		return fmt.Errorf("unknown format %q: use %s or %s", renderFormat, formatHTML, formatMarkdown)
	}

	doc, err := readDocument(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	out, err := renderDocument(doc, renderFormat)
	if err != nil {
		return err
	}

	if renderOut == "" {
		_, err = io.WriteString(cmd.OutOrStdout(), out)
		return err
	}
	if err := os.WriteFile(renderOut, []byte(out), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", renderOut, err)
	}
	return nil
}

// readDocument decodes a document from path, or from stdin when path is "-".
func readDocument(stdin io.Reader, path string) (portabletext.Document, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc, err := portabletext.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return doc, nil
}

func renderDocument(doc portabletext.Document, format string) (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return "", err
	}
	defer func() { _ = log.Sync() }()

	renderer, _ := newRenderer(cfg, log.With(logger.String("component", "render")), nil)
	if format == formatMarkdown {
		return renderer.RenderMarkdown(doc), nil
	}
	return renderer.Render(doc).HTML() + "\n", nil
}
