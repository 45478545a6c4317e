package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/jonathan/nirman-site/internal/imageurl"
	"github.com/jonathan/nirman-site/internal/portabletext"
	"github.com/jonathan/nirman-site/internal/rendering"
	iSchemas "github.com/jonathan/nirman-site/internal/schemas"
	"github.com/jonathan/nirman-site/internal/types"
	"github.com/jonathan/nirman-site/schemas"
)

// DocumentsQuery fetches every publishable document with its rich text.
const DocumentsQuery = `*[_type in ["service", "project"]]{_id, _type, title, slug, description, body, features, image, gallery, technologies, completedAt}`

// Options tune a content check.
type Options struct {
	ForbiddenPhrases     []string
	MaxDescriptionLength int
}

// Querier runs content store queries.
type Querier interface {
	Query(ctx context.Context, query string, params map[string]any, out any) error
}

type document struct {
	types.Project
	Type string `json:"_type"`
}

// CheckFile checks a JSON file holding one document, an array of
// documents, or a raw query response with a "result" member.
func CheckFile(path string, opts Options) (*types.Violations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileReadError{Message: fmt.Sprintf("failed to read %s", path), Cause: err}
	}

	docs, err := splitDocuments(data)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("%s is not a document or list of documents", path), Cause: err}
	}
	return CheckDocuments(path, docs, opts), nil
}

// CheckStore fetches every document from the content store and checks it.
func CheckStore(ctx context.Context, q Querier, source string, opts Options) (*types.Violations, error) {
	var docs []json.RawMessage
	if err := q.Query(ctx, DocumentsQuery, nil, &docs); err != nil {
		return nil, &Error{Message: "failed to fetch documents", Cause: err}
	}
	return CheckDocuments(source, docs, opts), nil
}

// CheckDocuments checks each raw document. Checks never stop early: every
// problem in every document is reported.
func CheckDocuments(source string, docs []json.RawMessage, opts Options) *types.Violations {
	result := &types.Violations{Source: source, Documents: len(docs), Violations: []types.Violation{}}
	if opts.MaxDescriptionLength == 0 {
		opts.MaxDescriptionLength = MaxDescriptionLength
	}

	slugs := make(map[string]string)
	for i, raw := range docs {
		name := "#" + strconv.Itoa(i)

		var doc document
		if err := json.Unmarshal(raw, &doc); err != nil {
			result.Add(types.Violation{
				Type: "malformed", Severity: types.SeverityError,
				Details: err.Error(), Document: name,
			})
			continue
		}
		if doc.ID != "" {
			name = doc.ID
		}

		for _, v := range checkSchema(name, raw) {
			result.Add(v)
		}

		if slug := doc.Slug.Current; slug != "" {
			key := doc.Type + "/" + slug
			if first, ok := slugs[key]; ok {
				result.Add(types.Violation{
					Type: "duplicate_slug", Severity: types.SeverityError,
					Details:  fmt.Sprintf("slug %q is already used by %s", slug, first),
					Document: name, Field: "slug.current",
				})
			} else {
				slugs[key] = name
			}
		}

		for _, v := range CheckDescription(name, doc.Description, opts.MaxDescriptionLength) {
			result.Add(v)
		}
		for _, v := range checkImages(name, &doc.Project) {
			result.Add(v)
		}

		text := doc.Title + "\n" + doc.Description
		if body, violations := checkBody(name, doc.Body); len(violations) > 0 || body != nil {
			for _, v := range violations {
				result.Add(v)
			}
			text += "\n" + portabletext.PlainText(body)
		}
		for _, v := range CheckForbiddenPhrases(name, "", text, opts.ForbiddenPhrases) {
			result.Add(v)
		}
	}
	return result
}

func checkSchema(name string, raw json.RawMessage) []types.Violation {
	err := iSchemas.Validate(schemas.Document, raw)
	if err == nil {
		return nil
	}

	var validationErr *iSchemas.ValidationError
	if !errors.As(err, &validationErr) {
		return []types.Violation{{Type: "schema", Severity: types.SeverityError, Details: err.Error(), Document: name}}
	}
	out := make([]types.Violation, 0, len(validationErr.Errors))
	for _, fe := range validationErr.Errors {
		out = append(out, types.Violation{
			Type: "schema", Severity: types.SeverityError,
			Details: fe.Message, Document: name, Field: fe.Field,
		})
	}
	return out
}

// checkBody validates the rich text strictly, then renders it to find node
// kinds the site has no handler for.
func checkBody(name string, body json.RawMessage) (portabletext.Document, []types.Violation) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	doc, err := portabletext.DecodeStrict(body)
	if err != nil {
		var validationErr *iSchemas.ValidationError
		if !errors.As(err, &validationErr) {
			return nil, []types.Violation{{
				Type: "rich_text", Severity: types.SeverityError,
				Details: err.Error(), Document: name, Field: "body",
			}}
		}
		out := make([]types.Violation, 0, len(validationErr.Errors))
		for _, fe := range validationErr.Errors {
			out = append(out, types.Violation{
				Type: "rich_text", Severity: types.SeverityError,
				Details: fe.Message, Document: name, Field: "body." + fe.Field,
			})
		}
		return nil, out
	}

	var out []types.Violation
	seen := make(map[string]bool)
	r := rendering.New(nil, rendering.WithUnknownHandler(func(category rendering.Category, kind string) {
		key := string(category) + ":" + kind
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, types.Violation{
			Type:     "unknown_kind",
			Severity: types.SeverityWarning,
			Details:  fmt.Sprintf("no handler for %s %q; it will not be shown", category, kind),
			Document: name,
			Field:    "body",
		})
	}))
	r.Render(doc)
	return doc, out
}

func checkImages(name string, p *types.Project) []types.Violation {
	var out []types.Violation
	check := func(field string, img *types.ImageField) {
		if img == nil || img.Asset == nil || img.Asset.Ref == "" {
			return
		}
		if _, _, ok := imageurl.Dimensions(img.Asset.Ref); !ok {
			out = append(out, types.Violation{
				Type:     "image_ref",
				Severity: types.SeverityWarning,
				Details:  fmt.Sprintf("asset reference %q is not an image reference", img.Asset.Ref),
				Document: name,
				Field:    field,
			})
		}
	}
	check("image", p.Image)
	for i := range p.Gallery {
		check(fmt.Sprintf("gallery[%d]", i), &p.Gallery[i])
	}
	return out
}

func splitDocuments(data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty input")
	}

	switch data[0] {
	case '[':
		var docs []json.RawMessage
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, err
		}
		return docs, nil
	case '{':
		var envelope struct {
			Result json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, err
		}
		if bytes.Equal(envelope.Result, []byte("null")) {
			return []json.RawMessage{}, nil
		}
		if len(envelope.Result) > 0 {
			return splitDocuments(envelope.Result)
		}
		return []json.RawMessage{data}, nil
	default:
		return nil, fmt.Errorf("unexpected %q at start of input", data[0])
	}
}
