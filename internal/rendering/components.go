package rendering

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/jonathan/nirman-site/internal/imageurl"
	"github.com/jonathan/nirman-site/internal/portabletext"
)

// Category groups handlers by the part of the document they render.
type Category string

const (
	CategoryBlock    Category = "block"
	CategoryList     Category = "list"
	CategoryListItem Category = "listItem"
	CategoryMark     Category = "mark"
	CategoryType     Category = "type"
)

// Decorator marks.
const (
	MarkStrong        = "strong"
	MarkEm            = "em"
	MarkCode          = "code"
	MarkUnderline     = "underline"
	MarkStrikeThrough = "strike-through"
	MarkLink          = "link"
)

// Locator derives a display URL for an image asset at a target size.
type Locator interface {
	URL(ref *portabletext.AssetRef, width, height int) string
}

// Mark is one mark applied to a span. Def is set for annotations and nil
// for decorators.
type Mark struct {
	Name string
	Def  *portabletext.MarkDef
}

// Handler signatures. Every handler receives its node and the already
// rendered children and returns one node; returning nil renders nothing,
// except for MarkHandler where nil passes the children through unwrapped.
type (
	BlockHandler    func(b *portabletext.Block, children []*html.Node) *html.Node
	ListHandler     func(l *portabletext.List, items []*html.Node) *html.Node
	ListItemHandler func(item *portabletext.ListItem, children []*html.Node) *html.Node
	MarkHandler     func(m Mark, children []*html.Node) *html.Node
	TypeHandler     func(value any, loc Locator) *html.Node
)

// Components holds one handler map per category, keyed by kind: block
// style, list kind, mark name (decorator or annotation type), or object
// type.
type Components struct {
	Block    map[string]BlockHandler
	List     map[string]ListHandler
	ListItem map[string]ListItemHandler
	Mark     map[string]MarkHandler
	Type     map[string]TypeHandler
}

// Merge returns a copy of c with every handler in override replacing the
// handler of the same kind.
func (c Components) Merge(override Components) Components {
	return Components{
		Block:    mergeMap(c.Block, override.Block),
		List:     mergeMap(c.List, override.List),
		ListItem: mergeMap(c.ListItem, override.ListItem),
		Mark:     mergeMap(c.Mark, override.Mark),
		Type:     mergeMap(c.Type, override.Type),
	}
}

func mergeMap[V any](base, override map[string]V) map[string]V {
	out := make(map[string]V, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// DefaultComponents returns the site's handlers.
func DefaultComponents() Components {
	return Components{
		Block: map[string]BlockHandler{
			portabletext.StyleH1:         blockElement("h1", "mb-6 mt-10 text-4xl font-bold text-gray-900"),
			portabletext.StyleH2:         blockElement("h2", "mb-4 mt-8 text-3xl font-bold text-gray-900"),
			portabletext.StyleH3:         blockElement("h3", "mb-3 mt-6 text-2xl font-bold text-gray-900"),
			portabletext.StyleH4:         blockElement("h4", "mb-2 mt-4 text-xl font-bold text-gray-900"),
			portabletext.StyleH5:         blockElement("h5", ""),
			portabletext.StyleH6:         blockElement("h6", ""),
			portabletext.StyleNormal:     blockElement("p", "mb-4 text-lg leading-relaxed text-gray-700"),
			portabletext.StyleBlockquote: blockElement("blockquote", "my-6 border-l-4 border-yellow-500 bg-gray-50 p-4 italic text-gray-700"),
		},
		List: map[string]ListHandler{
			portabletext.ListBullet: listElement("ul", "mb-4 ml-6 list-disc space-y-2 text-gray-700"),
			portabletext.ListNumber: listElement("ol", "mb-4 ml-6 list-decimal space-y-2 text-gray-700"),
		},
		ListItem: map[string]ListItemHandler{
			portabletext.ListBullet: listItemElement("text-lg"),
			portabletext.ListNumber: listItemElement("text-lg"),
		},
		Mark: map[string]MarkHandler{
			MarkStrong:        markElement("strong", "font-bold text-gray-900"),
			MarkEm:            markElement("em", "italic"),
			MarkCode:          markElement("code", "rounded bg-gray-100 px-2 py-1 font-mono text-sm text-gray-800"),
			MarkUnderline:     markElement("u", ""),
			MarkStrikeThrough: markElement("s", ""),
			MarkLink:          linkMark,
		},
		Type: map[string]TypeHandler{
			"image": imageType,
		},
	}
}

func blockElement(tag, class string) BlockHandler {
	return func(_ *portabletext.Block, children []*html.Node) *html.Node {
		return element(tag, class, children)
	}
}

func listElement(tag, class string) ListHandler {
	return func(_ *portabletext.List, items []*html.Node) *html.Node {
		return element(tag, class, items)
	}
}

func listItemElement(class string) ListItemHandler {
	return func(_ *portabletext.ListItem, children []*html.Node) *html.Node {
		return element("li", class, children)
	}
}

func markElement(tag, class string) MarkHandler {
	return func(_ Mark, children []*html.Node) *html.Node {
		return element(tag, class, children)
	}
}

// linkMark opens links in a new browsing context. Links with an empty or
// script-capable href render their text without an anchor.
func linkMark(m Mark, children []*html.Node) *html.Node {
	if m.Def == nil || !safeHref(m.Def.Href) {
		return nil
	}
	return element("a", "text-yellow-600 underline hover:text-yellow-700", children,
		attr("href", m.Def.Href),
		attr("target", "_blank"),
		attr("rel", "noopener noreferrer"),
	)
}

func safeHref(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" {
		return false
	}
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "javascript", "data", "vbscript":
		return false
	}
	return true
}

// DefaultImageAlt is used when an image has no alt text.
const DefaultImageAlt = "Image"

func imageType(value any, loc Locator) *html.Node {
	img, ok := value.(*portabletext.Image)
	if !ok || img.Asset == nil || loc == nil {
		return nil
	}
	src := loc.URL(img.Asset, imageurl.BodyWidth, imageurl.BodyHeight)
	if src == "" {
		return nil
	}

	alt := img.Alt
	if alt == "" {
		alt = DefaultImageAlt
	}

	frame := element("div", "relative h-[400px] w-full overflow-hidden rounded-lg", []*html.Node{
		element("img", "h-full w-full object-cover", nil,
			attr("src", src),
			attr("alt", alt),
			attr("loading", "lazy"),
		),
	})
	children := []*html.Node{frame}
	if img.Caption != "" {
		children = append(children, element("figcaption", "mt-2 text-center text-sm text-gray-600",
			[]*html.Node{text(img.Caption)}))
	}
	return element("figure", "my-8", children)
}
