// Package site composes the public pages from CMS content.
package site

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/nirman-site/internal/content"
	"github.com/jonathan/nirman-site/internal/imageurl"
	"github.com/jonathan/nirman-site/internal/logger"
	"github.com/jonathan/nirman-site/internal/metrics"
	"github.com/jonathan/nirman-site/internal/rendering"
	"github.com/jonathan/nirman-site/internal/types"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static returns the files served next to the pages, rooted so that
// "placeholder.svg" is served at PlaceholderImage.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Page names. Each has a template of the same name.
const (
	PageHome     = "home"
	PageServices = "services"
	PageService  = "service"
	PageProjects = "projects"
	PageProject  = "project"
	PageNotFound = "notfound"
)

var pageNames = []string{PageHome, PageServices, PageService, PageProjects, PageProject, PageNotFound}

// Number of featured items on the home page.
const featuredCount = 3

// descriptionLength bounds generated meta descriptions.
const descriptionLength = 160

// PlaceholderImage is shown when a document has no image.
const PlaceholderImage = "/placeholder.svg"

// Source provides the documents pages are built from.
type Source interface {
	ListServices(ctx context.Context) ([]types.Service, error)
	GetService(ctx context.Context, slug string) (*types.Service, error)
	FeaturedServices(ctx context.Context, n int) ([]types.Service, error)
	ServiceSlugs(ctx context.Context) ([]string, error)
	ListProjects(ctx context.Context) ([]types.Project, error)
	GetProject(ctx context.Context, slug string) (*types.Project, error)
	FeaturedProjects(ctx context.Context, n int) ([]types.Project, error)
	ProjectSlugs(ctx context.Context) ([]string, error)
}

// Info is the company information shown in the header and footer.
type Info struct {
	Name     string `yaml:"name"`
	Tagline  string `yaml:"tagline"`
	Address  string `yaml:"address"`
	Phone    string `yaml:"phone"`
	Email    string `yaml:"email"`
	Facebook string `yaml:"facebook"`
}

// DefaultInfo returns the company's published contact details.
func DefaultInfo() Info {
	return Info{
		Name:     "Shree Jayanti Nirman Sewa",
		Tagline:  "Quality construction services for residential and commercial projects.",
		Address:  "Pepsicola 32, Kathmandu, Nepal",
		Phone:    "01-4993108",
		Email:    "info.shreejayanti.com@gmail.com",
		Facebook: "https://www.facebook.com/shreejayanti.nirman.sewa",
	}
}

// Page is one rendered page.
type Page struct {
	Path   string
	Name   string
	Status int
	Title  string
	HTML   []byte
}

// Site renders pages. It is safe for concurrent use.
type Site struct {
	source    Source
	renderer  *rendering.Renderer
	images    rendering.Locator
	info      Info
	log       logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	templates map[string]*template.Template
}

// Option configures a Site.
type Option func(*Site)

// WithInfo replaces the company information.
func WithInfo(info Info) Option {
	return func(s *Site) { s.info = info }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Site) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics counts rendered pages on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Site) { s.metrics = m }
}

// WithClock replaces time.Now (used for the footer year).
func WithClock(now func() time.Time) Option {
	return func(s *Site) { s.now = now }
}

// New parses the page templates.
func New(source Source, renderer *rendering.Renderer, images rendering.Locator, opts ...Option) (*Site, error) {
	s := &Site{
		source:   source,
		renderer: renderer,
		images:   images,
		info:     DefaultInfo(),
		log:      logger.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	funcs := template.FuncMap{
		"image": s.imageURL,
		"hero":  s.sized(imageurl.HeroWidth, imageurl.HeroHeight),
		"card":  s.sized(imageurl.CardWidth, imageurl.CardHeight),
		"side":  s.sized(imageurl.SideWidth, imageurl.SideHeight),
		"date":  formatDate,
		"add":   func(a, b int) int { return a + b },
		"cut":   truncate,
	}

	s.templates = make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("layout.gohtml").Funcs(funcs).ParseFS(templateFS,
			"templates/layout.gohtml",
			"templates/"+name+".gohtml",
		)
		if err != nil {
			return nil, &TemplateError{Page: name, Message: "failed to parse template", Cause: err}
		}
		s.templates[name] = t
	}
	return s, nil
}

type layoutData struct {
	Title       string
	Description string
	Year        int
	Info        Info
	Data        any
}

type homeData struct {
	Services []types.Service
	Projects []types.Project
}

type servicesData struct {
	Services []types.Service
}

type serviceData struct {
	Service *types.Service
	Body    template.HTML
}

type projectsData struct {
	Projects   []types.Project
	Categories []string
}

type projectData struct {
	Project *types.Project
	Body    template.HTML
}

// projectCategories are the filter labels on the projects page.
var projectCategories = []string{"All", "Residential", "Commercial", "Renovation", "Interior Design"}

// Render resolves path and renders its page. A missing document yields the
// not-found page with status 404 and no error; content store failures are
// returned as errors.
func (s *Site) Render(ctx context.Context, path string) (*Page, error) {
	path = cleanPath(path)
	segments := strings.Split(strings.Trim(path, "/"), "/")

	var (
		page *Page
		err  error
	)
	switch {
	case path == "/":
		page, err = s.home(ctx)
	case segments[0] == "services" && len(segments) == 1:
		page, err = s.services(ctx)
	case segments[0] == "services" && len(segments) == 2:
		page, err = s.service(ctx, segments[1])
	case segments[0] == "projects" && len(segments) == 1:
		page, err = s.projects(ctx)
	case segments[0] == "projects" && len(segments) == 2:
		page, err = s.project(ctx, segments[1])
	default:
		err = &content.NotFoundError{Type: "page", Slug: path}
	}

	if errors.Is(err, content.ErrNotFound) {
		s.log.Debug("page not found", logger.String("path", path), logger.Error(err))
		page, err = s.NotFound(ctx)
	}
	if err != nil {
		s.metrics.PageRendered(routeName(segments), "error")
		return nil, err
	}
	page.Path = path
	s.metrics.PageRendered(page.Name, fmt.Sprint(page.Status))
	return page, nil
}

// NotFound renders the not-found page.
func (s *Site) NotFound(_ context.Context) (*Page, error) {
	return s.execute(PageNotFound, http.StatusNotFound, "Page Not Found",
		"The page you are looking for does not exist.", nil)
}

// Paths lists every page path for static export, in a stable order.
func (s *Site) Paths(ctx context.Context) ([]string, error) {
	paths := []string{"/", "/services", "/projects"}

	serviceSlugs, err := s.source.ServiceSlugs(ctx)
	if err != nil {
		return nil, err
	}
	for _, slug := range serviceSlugs {
		paths = append(paths, "/services/"+slug)
	}

	projectSlugs, err := s.source.ProjectSlugs(ctx)
	if err != nil {
		return nil, err
	}
	for _, slug := range projectSlugs {
		paths = append(paths, "/projects/"+slug)
	}
	return paths, nil
}

func (s *Site) home(ctx context.Context) (*Page, error) {
	services, err := s.source.FeaturedServices(ctx, featuredCount)
	if err != nil {
		return nil, err
	}
	projects, err := s.source.FeaturedProjects(ctx, featuredCount)
	if err != nil {
		return nil, err
	}
	return s.execute(PageHome, http.StatusOK, "Building Your Future, Brick by Brick", s.info.Tagline,
		homeData{Services: services, Projects: projects})
}

func (s *Site) services(ctx context.Context) (*Page, error) {
	services, err := s.source.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	return s.execute(PageServices, http.StatusOK, "Our Services",
		"Comprehensive construction solutions tailored to meet your specific needs and vision.",
		servicesData{Services: services})
}

func (s *Site) service(ctx context.Context, slug string) (*Page, error) {
	svc, err := s.source.GetService(ctx, slug)
	if err != nil {
		return nil, err
	}
	body := s.renderer.RenderHTML(svc.Content)
	return s.execute(PageService, http.StatusOK, svc.Title, s.describe(svc.Description, body),
		serviceData{Service: svc, Body: body})
}

func (s *Site) projects(ctx context.Context) (*Page, error) {
	projects, err := s.source.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	return s.execute(PageProjects, http.StatusOK, "Our Projects",
		"Explore our portfolio of completed projects showcasing our expertise and craftsmanship.",
		projectsData{Projects: projects, Categories: projectCategories})
}

func (s *Site) project(ctx context.Context, slug string) (*Page, error) {
	p, err := s.source.GetProject(ctx, slug)
	if err != nil {
		return nil, err
	}
	body := s.renderer.RenderHTML(p.Content)
	return s.execute(PageProject, http.StatusOK, p.Title, s.describe(p.Description, body),
		projectData{Project: p, Body: body})
}

func (s *Site) execute(name string, status int, title, description string, data any) (*Page, error) {
	t, ok := s.templates[name]
	if !ok {
		return nil, &TemplateError{Page: name, Message: "unknown page"}
	}

	var buf bytes.Buffer
	err := t.ExecuteTemplate(&buf, "layout", layoutData{
		Title:       title,
		Description: description,
		Year:        s.now().Year(),
		Info:        s.info,
		Data:        data,
	})
	if err != nil {
		return nil, &TemplateError{Page: name, Message: "failed to execute template", Cause: err}
	}
	return &Page{Name: name, Status: status, Title: title, HTML: buf.Bytes()}, nil
}

func (s *Site) describe(description string, body template.HTML) string {
	if d := strings.TrimSpace(description); d != "" {
		return truncate(d, descriptionLength)
	}
	return Summary(string(body), descriptionLength)
}

func (s *Site) imageURL(img *types.ImageField, width, height int) string {
	ref := img.AssetRef()
	if ref == nil || s.images == nil {
		return ""
	}
	return s.images.URL(ref, width, height)
}

// sized returns a template func accepting both image fields and gallery
// entries, which templates see as values.
func (s *Site) sized(width, height int) func(any) string {
	return func(v any) string {
		switch img := v.(type) {
		case *types.ImageField:
			return s.imageURL(img, width, height)
		case types.ImageField:
			return s.imageURL(&img, width, height)
		default:
			return ""
		}
	}
}

func formatDate(p *types.Project) string {
	t, ok := p.Completed()
	if !ok {
		return p.CompletedAt
	}
	return t.Format("January 2, 2006")
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if n <= 0 || len(r) <= n {
		return string(r)
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}

func cleanPath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = "/" + strings.Trim(path, "/")
	return path
}

func routeName(segments []string) string {
	switch {
	case len(segments) == 0 || segments[0] == "":
		return PageHome
	case len(segments) == 1:
		return segments[0]
	default:
		return strings.TrimSuffix(segments[0], "s")
	}
}
