// Package observability provides formatted summaries for the command line.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/nirman-site/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer writes boxed summaries.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintExport outputs the pages written by a static export and any broken
// internal links.
func (p *Printer) PrintExport(manifest *types.ExportManifest) {
	if manifest == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Pages:  %d\n", len(manifest.Pages))
	fmt.Fprintf(&sb, "Size:   %s\n", formatBytes(manifest.TotalBytes()))
	fmt.Fprintf(&sb, "Built:  %s\n", manifest.GeneratedAt.Format("2006-01-02 15:04:05"))

	if len(manifest.Pages) > 0 {
		sb.WriteString("\n")
		count := min(len(manifest.Pages), maxItemsToShow)
		for i := 0; i < count; i++ {
			page := manifest.Pages[i]
			fmt.Fprintf(&sb, "  • %s (%d, %s)\n", page.Path, page.Status, formatBytes(page.Bytes))
		}
		if len(manifest.Pages) > maxItemsToShow {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(manifest.Pages)-maxItemsToShow)
		}
	}

	if len(manifest.BrokenLinks) > 0 {
		fmt.Fprintf(&sb, "\nBroken links: %d\n", len(manifest.BrokenLinks))
		count := min(len(manifest.BrokenLinks), maxItemsToShow)
		for i := 0; i < count; i++ {
			link := manifest.BrokenLinks[i]
			fmt.Fprintf(&sb, "  ⚠ %s → %s\n", link.Page, link.Target)
		}
		if len(manifest.BrokenLinks) > maxItemsToShow {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(manifest.BrokenLinks)-maxItemsToShow)
		}
	}

	p.printBox("STATIC EXPORT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintViolations outputs the problems found by a content check.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintViolations(violations *types.Violations) {
	if violations == nil || len(violations.Violations) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "✅ NO VIOLATIONS FOUND")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Checked %d documents, found %d violations (%d errors):\n\n",
		violations.Documents, len(violations.Violations), violations.Errors())

	for i, v := range violations.Violations {
		marker := "⚠"
		if v.Severity == types.SeverityError {
			marker = "✗"
		}
		where := v.Document
		if v.Field != "" {
			where += " " + v.Field
		}
		fmt.Fprintf(&sb, "%s %s %s\n", marker, v.Type, strings.TrimSpace(where))
		fmt.Fprintf(&sb, "  %s\n", v.Details)
		if i < len(violations.Violations)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("CONTENT VIOLATIONS", sb.String())
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
