// Package portabletext defines the typed Content Document model for CMS rich text
// and decodes raw Portable Text JSON into it.
package portabletext

import "encoding/json"

// Document is an ordered sequence of content nodes. A nil Document is empty.
type Document []Node

// Node is one content block. The set of implementations is closed:
// *Block, *List, *Image and *Unsupported.
type Node interface {
	// Type returns the node's discriminator as it appears in the source (or
	// "list" for grouped list containers).
	Type() string
	node()
}

// Block styles recognized by the default renderer.
const (
	StyleNormal     = "normal"
	StyleH1         = "h1"
	StyleH2         = "h2"
	StyleH3         = "h3"
	StyleH4         = "h4"
	StyleH5         = "h5"
	StyleH6         = "h6"
	StyleBlockquote = "blockquote"
)

// List kinds.
const (
	ListBullet = "bullet"
	ListNumber = "number"
)

// Block is a text block: a paragraph, heading, quote, or a list item when
// ListItem is set.
type Block struct {
	Key      string
	Style    string
	Children []Inline
	MarkDefs []MarkDef
	ListItem string
	Level    int
}

func (*Block) Type() string { return "block" }
func (*Block) node()        {}

// MarkDef returns the annotation definition referenced by key.
func (b *Block) MarkDef(key string) (MarkDef, bool) {
	for _, def := range b.MarkDefs {
		if def.Key == key {
			return def, true
		}
	}
	return MarkDef{}, false
}

// List is a list container built by GroupLists from consecutive list-item
// blocks. It never appears in decoded input.
type List struct {
	Kind  string
	Level int
	Items []*ListItem
}

func (*List) Type() string { return "list" }
func (*List) node()        {}

// ListItem is one entry of a List; Children holds lists nested below it.
type ListItem struct {
	Block    *Block
	Children []*List
}

// Image is an embedded image object. Asset is nil when the reference has
// no asset pointer.
type Image struct {
	Key     string
	Asset   *AssetRef
	Alt     string
	Caption string
}

func (*Image) Type() string { return "image" }
func (*Image) node()        {}

// AssetRef points at an externally stored image asset.
type AssetRef struct {
	Ref string
	URL string
}

// Unsupported marks a node whose type or shape was not recognized.
type Unsupported struct {
	Key     string
	RawType string
	Raw     json.RawMessage
}

func (u *Unsupported) Type() string { return u.RawType }
func (*Unsupported) node()          {}

// Inline is a child of a Block: a *Span or an *InlineObject.
type Inline interface {
	inline()
}

// Span is a run of text with zero or more marks. A mark is either a
// decorator name ("strong", "em", ...) or the key of a MarkDef on the
// enclosing block.
type Span struct {
	Key   string
	Text  string
	Marks []string
}

func (*Span) inline() {}

// InlineObject is a non-text child of a block (for example an inline icon).
type InlineObject struct {
	Key     string
	RawType string
	Raw     json.RawMessage
}

func (*InlineObject) inline() {}

// MarkDef is an annotation definition such as a link.
type MarkDef struct {
	Key    string
	Type   string
	Href   string
	Fields map[string]any
}
