// Package content loads services and projects from the content store.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonathan/nirman-site/internal/logger"
	"github.com/jonathan/nirman-site/internal/portabletext"
	"github.com/jonathan/nirman-site/internal/sanity"
	"github.com/jonathan/nirman-site/internal/types"
)

// GROQ queries. Parameters are always bound, never interpolated.
const (
	ServicesQuery = `*[_type == "service" && defined(slug.current)]|order(order asc){_id, title, slug, description, features, image, order}`
	ServiceQuery  = `*[_type == "service" && slug.current == $slug][0]{_id, title, slug, description, body, features, image}`
	ServiceSlugs  = `*[_type == "service" && defined(slug.current)]{_id, title, slug}`

	ProjectsQuery = `*[_type == "project" && defined(slug.current)]|order(order asc){_id, title, slug, description, category, location, image, order}`
	ProjectQuery  = `*[_type == "project" && slug.current == $slug][0]{_id, title, slug, description, body, category, location, image, gallery, technologies, client, completedAt}`
	ProjectSlugs  = `*[_type == "project" && defined(slug.current)]{_id, title, slug}`
)

// Document types.
const (
	TypeService = "service"
	TypeProject = "project"
)

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("content not found")

// NotFoundError reports a missing document.
type NotFoundError struct {
	Type string
	Slug string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Type, e.Slug)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Querier runs content store queries.
type Querier interface {
	Query(ctx context.Context, query string, params map[string]any, out any) error
}

// Repository returns typed, validated documents.
type Repository struct {
	q   Querier
	log logger.Logger
}

// New creates a Repository over q.
func New(q Querier, log logger.Logger) *Repository {
	if log == nil {
		log = logger.NewNop()
	}
	return &Repository{q: q, log: log}
}

// ListServices returns every service with a slug, in display order.
// Documents that fail validation are skipped.
func (r *Repository) ListServices(ctx context.Context) ([]types.Service, error) {
	var raw []types.Service
	if err := r.list(ctx, ServicesQuery, &raw); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	out := raw[:0]
	for i := range raw {
		if err := raw[i].Validate(); err != nil {
			r.log.Warn("skipping invalid service", logger.String("id", raw[i].ID), logger.Error(err))
			continue
		}
		out = append(out, raw[i])
	}
	return out, nil
}

// GetService returns the service with slug, or a NotFoundError. A document
// that fails validation is reported as missing, matching ListServices.
func (r *Repository) GetService(ctx context.Context, slug string) (*types.Service, error) {
	if !types.ValidSlug(slug) {
		return nil, &NotFoundError{Type: TypeService, Slug: slug}
	}
	var s types.Service
	if err := r.q.Query(ctx, ServiceQuery, map[string]any{"slug": slug}, &s); err != nil {
		if errors.Is(err, sanity.ErrNoResult) {
			return nil, &NotFoundError{Type: TypeService, Slug: slug}
		}
		return nil, fmt.Errorf("failed to get service %q: %w", slug, err)
	}
	if err := s.Validate(); err != nil {
		r.log.Warn("invalid service treated as missing", logger.String("slug", slug), logger.Error(err))
		return nil, &NotFoundError{Type: TypeService, Slug: slug}
	}
	s.Content = r.decodeBody(TypeService, slug, s.Body)
	return &s, nil
}

// FeaturedServices returns the first n services.
func (r *Repository) FeaturedServices(ctx context.Context, n int) ([]types.Service, error) {
	all, err := r.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	return firstN(all, n), nil
}

// ServiceSlugs returns the slug of every service.
func (r *Repository) ServiceSlugs(ctx context.Context) ([]string, error) {
	return r.slugs(ctx, ServiceSlugs)
}

// ListProjects returns every project with a slug, in display order.
func (r *Repository) ListProjects(ctx context.Context) ([]types.Project, error) {
	var raw []types.Project
	if err := r.list(ctx, ProjectsQuery, &raw); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	out := raw[:0]
	for i := range raw {
		if err := raw[i].Validate(); err != nil {
			r.log.Warn("skipping invalid project", logger.String("id", raw[i].ID), logger.Error(err))
			continue
		}
		out = append(out, raw[i])
	}
	return out, nil
}

// GetProject returns the project with slug, or a NotFoundError. A document
// that fails validation is reported as missing.
func (r *Repository) GetProject(ctx context.Context, slug string) (*types.Project, error) {
	if !types.ValidSlug(slug) {
		return nil, &NotFoundError{Type: TypeProject, Slug: slug}
	}
	var p types.Project
	if err := r.q.Query(ctx, ProjectQuery, map[string]any{"slug": slug}, &p); err != nil {
		if errors.Is(err, sanity.ErrNoResult) {
			return nil, &NotFoundError{Type: TypeProject, Slug: slug}
		}
		return nil, fmt.Errorf("failed to get project %q: %w", slug, err)
	}
	if err := p.Validate(); err != nil {
		r.log.Warn("invalid project treated as missing", logger.String("slug", slug), logger.Error(err))
		return nil, &NotFoundError{Type: TypeProject, Slug: slug}
	}
	p.Content = r.decodeBody(TypeProject, slug, p.Body)
	return &p, nil
}

// FeaturedProjects returns the first n projects.
func (r *Repository) FeaturedProjects(ctx context.Context, n int) ([]types.Project, error) {
	all, err := r.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	return firstN(all, n), nil
}

// ProjectSlugs returns the slug of every project.
func (r *Repository) ProjectSlugs(ctx context.Context) ([]string, error) {
	return r.slugs(ctx, ProjectSlugs)
}

// list treats a null result as an empty list.
func (r *Repository) list(ctx context.Context, query string, out any) error {
	err := r.q.Query(ctx, query, nil, out)
	if errors.Is(err, sanity.ErrNoResult) {
		return nil
	}
	return err
}

func (r *Repository) slugs(ctx context.Context, query string) ([]string, error) {
	var refs []types.SlugRef
	if err := r.list(ctx, query, &refs); err != nil {
		return nil, fmt.Errorf("failed to list slugs: %w", err)
	}
	out := make([]string, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		s := ref.Slug.Current
		if err := ref.Validate(); err != nil {
			r.log.Debug("skipping invalid document", logger.String("slug", s), logger.Error(err))
			continue
		}
		if !types.ValidSlug(s) || seen[s] {
			r.log.Debug("skipping slug", logger.String("slug", s))
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}

// decodeBody never fails the page: a malformed body renders as empty.
func (r *Repository) decodeBody(docType, slug string, body json.RawMessage) portabletext.Document {
	doc, err := portabletext.DecodeValue(body)
	if err != nil {
		r.log.Warn("malformed rich text body",
			logger.String("type", docType),
			logger.String("slug", slug),
			logger.Error(err),
		)
		return nil
	}
	return doc
}

func firstN[T any](items []T, n int) []T {
	if n < 0 || n >= len(items) {
		return items
	}
	return items[:n]
}
