package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var (
	previewStyle string
	previewWidth int
)

var previewCmd = &cobra.Command{
	Use:   "preview <file.json|->",
	Short: "Preview a rich content document in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

func init() {
	previewCmd.Flags().StringVar(&previewStyle, "style", "auto", "Glamour style: auto, dark, light or notty")
	previewCmd.Flags().IntVar(&previewWidth, "width", 80, "Word wrap width")
	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	doc, err := readDocument(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	markdown, err := renderDocument(doc, formatMarkdown)
	if err != nil {
		return err
	}

	styleOpt := glamour.WithStandardStyle(previewStyle)
	if previewStyle == "auto" {
		styleOpt = glamour.WithAutoStyle()
	}
	renderer, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(previewWidth))
	if err != nil {
		return fmt.Errorf("failed to create terminal renderer: %w", err)
	}

	out, err := renderer.Render(markdown)
	if err != nil {
		return fmt.Errorf("failed to render preview: %w", err)
	}
	_, err = io.WriteString(cmd.OutOrStdout(), out)
	return err
}
