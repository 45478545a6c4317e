package rendering

import (
	"strconv"
	"strings"

	"github.com/jonathan/nirman-site/internal/imageurl"
	"github.com/jonathan/nirman-site/internal/portabletext"
)

// RenderMarkdown renders doc as CommonMark using the same mark order as
// the HTML output. Nodes without a Markdown form render to nothing.
func (r *Renderer) RenderMarkdown(doc portabletext.Document) string {
	var parts []string
	for _, n := range portabletext.GroupLists(doc) {
		if s := r.markdownNode(n); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n\n") + "\n"
}

func (r *Renderer) markdownNode(n portabletext.Node) string {
	switch t := n.(type) {
	case *portabletext.Block:
		return r.markdownBlock(t)
	case *portabletext.List:
		var lines []string
		r.markdownList(t, 0, &lines)
		return strings.Join(lines, "\n")
	case *portabletext.Image:
		return r.markdownImage(t)
	default:
		r.unknown(CategoryType, n.Type())
		return ""
	}
}

func (r *Renderer) markdownBlock(b *portabletext.Block) string {
	body := markdownInlines(b)
	switch b.Style {
	case portabletext.StyleNormal:
		return body
	case portabletext.StyleH1, portabletext.StyleH2, portabletext.StyleH3,
		portabletext.StyleH4, portabletext.StyleH5, portabletext.StyleH6:
		level, _ := strconv.Atoi(b.Style[1:])
		return strings.Repeat("#", level) + " " + strings.ReplaceAll(body, "\n", " ")
	case portabletext.StyleBlockquote:
		return "> " + strings.ReplaceAll(body, "\n", "\n> ")
	default:
		r.unknown(CategoryBlock, b.Style)
		return ""
	}
}

func (r *Renderer) markdownList(l *portabletext.List, depth int, lines *[]string) {
	indent := strings.Repeat("   ", depth)
	for i, item := range l.Items {
		marker := "- "
		if l.Kind == portabletext.ListNumber {
			marker = strconv.Itoa(i+1) + ". "
		}
		var body string
		if item.Block != nil {
			body = strings.ReplaceAll(markdownInlines(item.Block), "\n", " ")
		}
		*lines = append(*lines, indent+marker+body)
		for _, sub := range item.Children {
			r.markdownList(sub, depth+1, lines)
		}
	}
}

func (r *Renderer) markdownImage(img *portabletext.Image) string {
	if img.Asset == nil || r.locator == nil {
		return ""
	}
	src := r.locator.URL(img.Asset, imageurl.BodyWidth, imageurl.BodyHeight)
	if src == "" {
		return ""
	}
	alt := img.Alt
	if alt == "" {
		alt = DefaultImageAlt
	}
	out := "![" + EscapeMarkdown(alt) + "](" + markdownDestination(src) + ")"
	if img.Caption != "" {
		out += "\n\n_" + EscapeMarkdown(img.Caption) + "_"
	}
	return out
}

func markdownInlines(b *portabletext.Block) string {
	var sb strings.Builder
	for _, child := range b.Children {
		span, ok := child.(*portabletext.Span)
		if !ok {
			continue
		}
		sb.WriteString(markdownSpan(b, span))
	}
	return sb.String()
}

func markdownSpan(b *portabletext.Block, s *portabletext.Span) string {
	if s.Text == "" {
		return ""
	}
	marks := resolveMarks(b, s.Marks)

	var out string
	if hasMark(marks, MarkCode) {
		out = codeSpan(s.Text)
	} else {
		out = EscapeMarkdown(s.Text)
	}

	for i := len(marks) - 1; i >= 0; i-- {
		m := marks[i]
		switch m.Name {
		case MarkStrong:
			out = "**" + out + "**"
		case MarkEm:
			out = "_" + out + "_"
		case MarkStrikeThrough:
			out = "~~" + out + "~~"
		case MarkLink:
			if m.Def != nil && safeHref(m.Def.Href) {
				out = "[" + out + "](" + markdownDestination(m.Def.Href) + ")"
			}
		}
	}
	return out
}

// destinationEscaper percent-encodes the characters that would end or
// split a link destination.
var destinationEscaper = strings.NewReplacer(
	" ", "%20",
	"\t", "%09",
	"\n", "%0A",
	"\r", "%0D",
	"(", "%28",
	")", "%29",
	"<", "%3C",
	">", "%3E",
	"\\", "%5C",
)

func markdownDestination(href string) string {
	return destinationEscaper.Replace(strings.TrimSpace(href))
}

func hasMark(marks []Mark, name string) bool {
	for _, m := range marks {
		if m.Name == name && m.Def == nil {
			return true
		}
	}
	return false
}
