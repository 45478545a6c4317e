package portabletext

import "strings"

// PlainText returns the document's text with blocks separated by blank
// lines. Images contribute their caption, unsupported nodes nothing.
func PlainText(doc Document) string {
	var parts []string
	for _, n := range GroupLists(doc) {
		if s := nodeText(n); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// BlockText concatenates the text of a block's spans.
func BlockText(b *Block) string {
	var sb strings.Builder
	for _, child := range b.Children {
		if span, ok := child.(*Span); ok {
			sb.WriteString(span.Text)
		}
	}
	return sb.String()
}

func nodeText(n Node) string {
	switch t := n.(type) {
	case *Block:
		return BlockText(t)
	case *List:
		var lines []string
		collectListText(t, &lines)
		return strings.Join(lines, "\n")
	case *Image:
		return t.Caption
	default:
		return ""
	}
}

func collectListText(l *List, lines *[]string) {
	for _, item := range l.Items {
		if s := BlockText(item.Block); s != "" {
			*lines = append(*lines, s)
		}
		for _, child := range item.Children {
			collectListText(child, lines)
		}
	}
}
