// Package rendering turns Portable Text documents into HTML nodes (and
// Markdown) by dispatching every node to a handler chosen by its category
// and kind.
package rendering

import (
	"html/template"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/jonathan/nirman-site/internal/portabletext"
)

// UnknownFunc is notified when no handler exists for a node. The node
// renders to nothing and rendering continues.
type UnknownFunc func(category Category, kind string)

// Renderer renders Content Documents. It holds no per-render state and is
// safe for concurrent use.
type Renderer struct {
	components Components
	locator    Locator
	onUnknown  UnknownFunc
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithComponents overrides individual handlers of the default components.
func WithComponents(override Components) Option {
	return func(r *Renderer) {
		r.components = r.components.Merge(override)
	}
}

// WithUnknownHandler installs a callback for nodes without a handler.
func WithUnknownHandler(fn UnknownFunc) Option {
	return func(r *Renderer) {
		r.onUnknown = fn
	}
}

// New creates a Renderer using loc for image URLs. A nil locator makes
// every image render to nothing.
func New(loc Locator, opts ...Option) *Renderer {
	r := &Renderer{
		components: DefaultComponents(),
		locator:    loc,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result is the output of one render pass: one slot per top-level node
// after list grouping. A nil slot is a node that rendered to nothing.
type Result struct {
	Nodes []*html.Node
}

// Len returns the number of slots, including empty ones.
func (r Result) Len() int {
	return len(r.Nodes)
}

// HTML serializes the non-empty slots in order.
func (r Result) HTML() string {
	var sb strings.Builder
	for _, n := range r.Nodes {
		if n != nil {
			_ = html.Render(&sb, n)
		}
	}
	return sb.String()
}

// Render renders doc. Nil or empty documents produce an empty Result.
func (r *Renderer) Render(doc portabletext.Document) Result {
	grouped := portabletext.GroupLists(doc)
	nodes := make([]*html.Node, len(grouped))
	for i, n := range grouped {
		nodes[i] = r.renderNode(n)
	}
	return Result{Nodes: nodes}
}

// RenderHTML renders doc for embedding in an html/template page.
func (r *Renderer) RenderHTML(doc portabletext.Document) template.HTML {
	//nolint:gosec // output is built from escaped html.Node trees
	return template.HTML(r.Render(doc).HTML())
}

func (r *Renderer) unknown(category Category, kind string) {
	if r.onUnknown != nil {
		r.onUnknown(category, kind)
	}
}

func (r *Renderer) renderNode(n portabletext.Node) *html.Node {
	switch t := n.(type) {
	case *portabletext.Block:
		return r.renderBlock(t)
	case *portabletext.List:
		return r.renderList(t)
	case *portabletext.Image:
		return r.renderType(t.Type(), t)
	case *portabletext.Unsupported:
		return r.renderType(t.RawType, t)
	default:
		r.unknown(CategoryType, n.Type())
		return nil
	}
}

func (r *Renderer) renderBlock(b *portabletext.Block) *html.Node {
	h, ok := r.components.Block[b.Style]
	if !ok {
		r.unknown(CategoryBlock, b.Style)
		return nil
	}
	return h(b, r.renderInlines(b))
}

func (r *Renderer) renderList(l *portabletext.List) *html.Node {
	h, ok := r.components.List[l.Kind]
	if !ok {
		r.unknown(CategoryList, l.Kind)
		return nil
	}
	items := make([]*html.Node, 0, len(l.Items))
	for _, item := range l.Items {
		if n := r.renderListItem(l.Kind, item); n != nil {
			items = append(items, n)
		}
	}
	return h(l, items)
}

func (r *Renderer) renderListItem(kind string, item *portabletext.ListItem) *html.Node {
	h, ok := r.components.ListItem[kind]
	if !ok {
		r.unknown(CategoryListItem, kind)
		return nil
	}

	var children []*html.Node
	if item.Block != nil {
		inline := r.renderInlines(item.Block)
		// Styled list items (e.g. a heading inside a list) keep their block element.
		if style := item.Block.Style; style != "" && style != portabletext.StyleNormal {
			if bh, ok := r.components.Block[style]; ok {
				inline = []*html.Node{bh(item.Block, inline)}
			}
		}
		children = append(children, inline...)
	}
	for _, sub := range item.Children {
		if n := r.renderList(sub); n != nil {
			children = append(children, n)
		}
	}
	return h(item, children)
}

func (r *Renderer) renderType(kind string, value any) *html.Node {
	h, ok := r.components.Type[kind]
	if !ok {
		r.unknown(CategoryType, kind)
		return nil
	}
	return h(value, r.locator)
}

func (r *Renderer) renderInlines(b *portabletext.Block) []*html.Node {
	out := make([]*html.Node, 0, len(b.Children))
	for _, child := range b.Children {
		switch c := child.(type) {
		case *portabletext.Span:
			out = append(out, r.renderSpan(b, c)...)
		case *portabletext.InlineObject:
			if n := r.renderType(c.RawType, c); n != nil {
				out = append(out, n)
			}
		}
	}
	return out
}

func (r *Renderer) renderSpan(b *portabletext.Block, s *portabletext.Span) []*html.Node {
	nodes := textWithBreaks(s.Text)
	marks := resolveMarks(b, s.Marks)

	// Wrap innermost first so the first mark in canonical order ends up outermost.
	for i := len(marks) - 1; i >= 0; i-- {
		m := marks[i]
		h, ok := r.components.Mark[m.Name]
		if !ok {
			r.unknown(CategoryMark, m.Name)
			continue
		}
		if wrapped := h(m, nodes); wrapped != nil {
			nodes = []*html.Node{wrapped}
		}
	}
	return nodes
}

func textWithBreaks(s string) []*html.Node {
	lines := strings.Split(s, "\n")
	out := make([]*html.Node, 0, len(lines)*2-1)
	for i, line := range lines {
		if i > 0 {
			out = append(out, element("br", "", nil))
		}
		if line != "" {
			out = append(out, text(line))
		}
	}
	return out
}

// decoratorRank is the canonical nesting order of decorators, outermost
// first. Annotations always sit outside every decorator.
var decoratorRank = map[string]int{
	MarkStrong:        1,
	MarkEm:            2,
	MarkUnderline:     3,
	MarkStrikeThrough: 4,
	MarkCode:          5,
}

const unknownDecoratorRank = 6

// resolveMarks maps a span's mark keys to Marks in canonical order,
// dropping duplicates. The order does not depend on how the marks were
// declared.
func resolveMarks(b *portabletext.Block, keys []string) []Mark {
	if len(keys) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(keys))
	marks := make([]Mark, 0, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		if def, ok := b.MarkDef(key); ok {
			marks = append(marks, Mark{Name: def.Type, Def: &def})
			continue
		}
		marks = append(marks, Mark{Name: key})
	}

	sort.SliceStable(marks, func(i, j int) bool {
		ri, rj := markRank(marks[i]), markRank(marks[j])
		if ri != rj {
			return ri < rj
		}
		return markSortKey(marks[i]) < markSortKey(marks[j])
	})
	return marks
}

func markRank(m Mark) int {
	if m.Def != nil {
		return 0
	}
	if r, ok := decoratorRank[m.Name]; ok {
		return r
	}
	return unknownDecoratorRank
}

func markSortKey(m Mark) string {
	if m.Def != nil {
		return m.Name + "\x00" + m.Def.Key
	}
	return m.Name
}
