// Package types provides the CMS document types shared by the content
// repository, page composition and the HTTP server.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/nirman-site/internal/portabletext"
)

// SlugPattern is the accepted shape of a document slug.
var SlugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidSlug reports whether s is a well-formed slug.
func ValidSlug(s string) bool {
	return SlugPattern.MatchString(s)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return ValidSlug(fl.Field().String())
	})
	return v
}

// Slug is the CMS slug object.
type Slug struct {
	Current string `json:"current" validate:"required,slug"`
}

// AssetField is the asset pointer inside an image field.
type AssetField struct {
	Ref string `json:"_ref,omitempty"`
	URL string `json:"url,omitempty"`
}

// ImageField is an image attached to a document (hero image, gallery entry).
type ImageField struct {
	Key   string      `json:"_key,omitempty"`
	Asset *AssetField `json:"asset,omitempty"`
	Alt   string      `json:"alt,omitempty"`
}

// AssetRef converts the field to the renderer's asset reference. It
// returns nil when the image has no usable asset.
func (i *ImageField) AssetRef() *portabletext.AssetRef {
	if i == nil || i.Asset == nil || (i.Asset.Ref == "" && i.Asset.URL == "") {
		return nil
	}
	return &portabletext.AssetRef{Ref: i.Asset.Ref, URL: i.Asset.URL}
}

// Service is a service offered by the company.
type Service struct {
	ID          string          `json:"_id" validate:"required"`
	Title       string          `json:"title" validate:"required"`
	Slug        Slug            `json:"slug"`
	Description string          `json:"description"`
	Body        json.RawMessage `json:"body,omitempty"`
	Features    []string        `json:"features,omitempty"`
	Image       *ImageField     `json:"image,omitempty"`
	Order       int             `json:"order,omitempty"`

	// Content is Body decoded into a document. It is filled by the
	// content repository.
	Content portabletext.Document `json:"-"`
}

// Validate validates the Service using the validator.
func (s *Service) Validate() error {
	return validate.Struct(s)
}

// Summary returns at most n characters of the description, followed by an
// ellipsis when it was cut.
func (s *Service) Summary(n int) string {
	return truncate(s.Description, n)
}

// Project is a completed or ongoing construction project.
type Project struct {
	ID           string          `json:"_id" validate:"required"`
	Title        string          `json:"title" validate:"required"`
	Slug         Slug            `json:"slug"`
	Description  string          `json:"description"`
	Body         json.RawMessage `json:"body,omitempty"`
	Category     string          `json:"category,omitempty"`
	Location     string          `json:"location,omitempty"`
	Image        *ImageField     `json:"image,omitempty"`
	Gallery      []ImageField    `json:"gallery,omitempty"`
	Technologies []string        `json:"technologies,omitempty"`
	Client       string          `json:"client,omitempty"`
	CompletedAt  string          `json:"completedAt,omitempty"`
	Order        int             `json:"order,omitempty"`

	Content portabletext.Document `json:"-"`
}

// Validate validates the Project using the validator.
func (p *Project) Validate() error {
	return validate.Struct(p)
}

// Completed parses CompletedAt, which the CMS stores either as a date or
// as an RFC 3339 timestamp.
func (p *Project) Completed() (time.Time, bool) {
	if p.CompletedAt == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, p.CompletedAt); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SlugRef is the projection returned by slug listing queries. It carries
// the fields a document needs to render, so listings skip what would 404.
type SlugRef struct {
	ID    string `json:"_id" validate:"required"`
	Title string `json:"title" validate:"required"`
	Slug  Slug   `json:"slug"`
}

// Validate validates the SlugRef using the validator.
func (r *SlugRef) Validate() error {
	return validate.Struct(r)
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
