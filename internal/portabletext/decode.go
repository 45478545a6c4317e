package portabletext

import (
	"bytes"
	"encoding/json"
)

type header struct {
	Type string `json:"_type"`
	Key  string `json:"_key"`
}

type rawBlock struct {
	Key      string            `json:"_key"`
	Style    string            `json:"style"`
	Children []json.RawMessage `json:"children"`
	MarkDefs []json.RawMessage `json:"markDefs"`
	ListItem string            `json:"listItem"`
	Level    int               `json:"level"`
}

type rawSpan struct {
	Key   string   `json:"_key"`
	Text  string   `json:"text"`
	Marks []string `json:"marks"`
}

type rawImage struct {
	Key   string `json:"_key"`
	Asset *struct {
		Ref string `json:"_ref"`
		URL string `json:"url"`
	} `json:"asset"`
	Alt     string `json:"alt"`
	Caption string `json:"caption"`
}

// Decode converts raw Portable Text JSON into a Document. Empty input and
// JSON null decode to an empty document. A single object is treated as a
// one-block document. Nodes that cannot be understood become *Unsupported
// rather than failing the whole document.
func Decode(raw []byte) (Document, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Document{}, nil
	}

	var items []json.RawMessage
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, &DecodeError{Message: "invalid document array", Cause: err}
		}
	case '{':
		if !json.Valid(raw) {
			return nil, &DecodeError{Message: "invalid document object"}
		}
		items = []json.RawMessage{raw}
	default:
		return nil, &DecodeError{Message: "document must be a JSON array or object"}
	}

	doc := make(Document, 0, len(items))
	for _, item := range items {
		doc = append(doc, decodeNode(item))
	}
	return doc, nil
}

// DecodeValue decodes a document held in an already unmarshaled value, such
// as a query result field. Nil decodes to an empty document.
func DecodeValue(v any) (Document, error) {
	switch t := v.(type) {
	case nil:
		return Document{}, nil
	case json.RawMessage:
		return Decode(t)
	case []byte:
		return Decode(t)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, &DecodeError{Message: "failed to encode value", Cause: err}
	}
	return Decode(raw)
}

func decodeNode(raw json.RawMessage) Node {
	var h header
	if err := json.Unmarshal(raw, &h); err != nil {
		return &Unsupported{Raw: raw}
	}

	switch h.Type {
	case "block":
		if b, ok := decodeBlock(raw); ok {
			return b
		}
	case "image":
		if img, ok := decodeImage(raw); ok {
			return img
		}
	}
	return &Unsupported{Key: h.Key, RawType: h.Type, Raw: raw}
}

func decodeBlock(raw json.RawMessage) (*Block, bool) {
	var rb rawBlock
	if err := json.Unmarshal(raw, &rb); err != nil {
		return nil, false
	}

	b := &Block{
		Key:      rb.Key,
		Style:    rb.Style,
		ListItem: rb.ListItem,
		Level:    rb.Level,
	}
	if b.Style == "" {
		b.Style = StyleNormal
	}
	if b.ListItem != "" && b.Level < 1 {
		b.Level = 1
	}

	for _, child := range rb.Children {
		b.Children = append(b.Children, decodeInline(child))
	}
	for _, def := range rb.MarkDefs {
		if md, ok := decodeMarkDef(def); ok {
			b.MarkDefs = append(b.MarkDefs, md)
		}
	}
	return b, true
}

func decodeInline(raw json.RawMessage) Inline {
	var h header
	if err := json.Unmarshal(raw, &h); err != nil {
		return &InlineObject{Raw: raw}
	}
	// Spans written by older editors sometimes omit _type.
	if h.Type == "span" || h.Type == "" {
		var rs rawSpan
		if err := json.Unmarshal(raw, &rs); err == nil {
			return &Span{Key: rs.Key, Text: rs.Text, Marks: rs.Marks}
		}
	}
	return &InlineObject{Key: h.Key, RawType: h.Type, Raw: raw}
}

func decodeMarkDef(raw json.RawMessage) (MarkDef, bool) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return MarkDef{}, false
	}
	md := MarkDef{Fields: fields}
	md.Key, _ = fields["_key"].(string)
	md.Type, _ = fields["_type"].(string)
	md.Href, _ = fields["href"].(string)
	if md.Key == "" {
		return MarkDef{}, false
	}
	return md, true
}

func decodeImage(raw json.RawMessage) (*Image, bool) {
	var ri rawImage
	if err := json.Unmarshal(raw, &ri); err != nil {
		return nil, false
	}
	img := &Image{Key: ri.Key, Alt: ri.Alt, Caption: ri.Caption}
	if ri.Asset != nil && (ri.Asset.Ref != "" || ri.Asset.URL != "") {
		img.Asset = &AssetRef{Ref: ri.Asset.Ref, URL: ri.Asset.URL}
	}
	return img, true
}
