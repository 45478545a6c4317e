package content

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/nirman-site/internal/portabletext"
	"github.com/jonathan/nirman-site/internal/sanity"
)

// stubQuerier answers queries from canned JSON keyed by query and slug.
type stubQuerier struct {
	responses map[string]string
	err       error
	seen      []map[string]any
}

func (s *stubQuerier) Query(_ context.Context, query string, params map[string]any, out any) error {
	s.seen = append(s.seen, params)
	if s.err != nil {
		return s.err
	}
	key := query
	if slug, ok := params["slug"].(string); ok {
		key += "|" + slug
	}
	raw, ok := s.responses[key]
	if !ok || raw == "null" {
		return sanity.ErrNoResult
	}
	return json.Unmarshal([]byte(raw), out)
}

const servicesJSON = `[
	{"_id":"1","title":"Residential Construction","slug":{"current":"residential"},"description":"Homes","order":1},
	{"_id":"2","title":"","slug":{"current":"untitled"}},
	{"_id":"3","title":"Commercial Projects","slug":{"current":"commercial"},"order":2},
	{"_id":"4","title":"Renovations","slug":{"current":"renovations"},"order":3}
]`

func TestListServices_SkipsInvalid(t *testing.T) {
	q := &stubQuerier{responses: map[string]string{ServicesQuery: servicesJSON}}
	repo := New(q, nil)

	got, err := repo.ListServices(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "residential", got[0].Slug.Current)
	assert.Equal(t, "renovations", got[2].Slug.Current)
}

func TestListServices_NullIsEmpty(t *testing.T) {
	repo := New(&stubQuerier{responses: map[string]string{}}, nil)
	got, err := repo.ListServices(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFeaturedServices(t *testing.T) {
	repo := New(&stubQuerier{responses: map[string]string{ServicesQuery: servicesJSON}}, nil)

	got, err := repo.FeaturedServices(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = repo.FeaturedServices(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestGetService(t *testing.T) {
	q := &stubQuerier{responses: map[string]string{
		ServiceQuery + "|roofing": `{
			"_id":"s1","title":"Roofing","slug":{"current":"roofing"},
			"body":[{"_type":"block","style":"h2","children":[{"_type":"span","text":"Our Services"}]}],
			"features":["Waterproofing"]
		}`,
	}}
	repo := New(q, nil)

	svc, err := repo.GetService(context.Background(), "roofing")
	require.NoError(t, err)
	assert.Equal(t, "Roofing", svc.Title)
	require.Len(t, svc.Content, 1)
	assert.Equal(t, portabletext.StyleH2, svc.Content[0].(*portabletext.Block).Style)
	assert.Equal(t, map[string]any{"slug": "roofing"}, q.seen[0])
}

func TestGetService_NotFound(t *testing.T) {
	repo := New(&stubQuerier{responses: map[string]string{}}, nil)

	_, err := repo.GetService(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, TypeService, nf.Type)
	assert.Equal(t, `service "missing" not found`, err.Error())
}

func TestGetService_InvalidSlugNeverQueries(t *testing.T) {
	q := &stubQuerier{responses: map[string]string{}}
	repo := New(q, nil)

	_, err := repo.GetService(context.Background(), `x" || true || "`)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, q.seen)
}

func TestGetService_UpstreamError(t *testing.T) {
	boom := errors.New("connection refused")
	repo := New(&stubQuerier{err: boom}, nil)

	_, err := repo.GetService(context.Background(), "roofing")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestGetService_MalformedBodyRendersEmpty(t *testing.T) {
	q := &stubQuerier{responses: map[string]string{
		ServiceQuery + "|roofing": `{"_id":"s1","title":"Roofing","slug":{"current":"roofing"},"body":"not portable text"}`,
	}}
	svc, err := New(q, nil).GetService(context.Background(), "roofing")
	require.NoError(t, err)
	assert.Empty(t, svc.Content)
}

func TestGetProject(t *testing.T) {
	q := &stubQuerier{responses: map[string]string{
		ProjectQuery + "|ring-road": `{
			"_id":"p1","title":"Ring Road Maintenance","slug":{"current":"ring-road"},
			"category":"Commercial","location":"Kathmandu, Nepal",
			"gallery":[{"asset":{"_ref":"image-a-10x10-jpg"}},{"asset":{"_ref":"image-b-10x10-jpg"}}],
			"technologies":["Asphalt"],"client":"KMC","completedAt":"2024-06-01"
		}`,
	}}
	p, err := New(q, nil).GetProject(context.Background(), "ring-road")
	require.NoError(t, err)
	assert.Equal(t, "Kathmandu, Nepal", p.Location)
	assert.Len(t, p.Gallery, 2)
	assert.Empty(t, p.Content)

	_, err = New(q, nil).GetProject(context.Background(), "other")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSlugs(t *testing.T) {
	q := &stubQuerier{responses: map[string]string{
		ServiceSlugs: `[
			{"_id":"1","title":"A","slug":{"current":"a"}},
			{"_id":"2","title":"Bad","slug":{"current":"Bad Slug"}},
			{"_id":"3","title":"A again","slug":{"current":"a"}},
			{"_id":"4","title":"B","slug":{"current":"b-2"}},
			{"_id":"s9","slug":{"current":"untitled"}}
		]`,
		ProjectSlugs: `[]`,
	}}
	repo := New(q, nil)

	services, err := repo.ServiceSlugs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b-2"}, services)

	projects, err := repo.ProjectSlugs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestGet_InvalidDocumentIsNotFound(t *testing.T) {
	q := &stubQuerier{responses: map[string]string{
		ServiceQuery + "|untitled": `{"_id":"s9","slug":{"current":"untitled"}}`,
		ProjectQuery + "|nameless": `{"title":"No id","slug":{"current":"nameless"}}`,
	}}
	repo := New(q, nil)

	_, err := repo.GetService(context.Background(), "untitled")
	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, TypeService, notFound.Type)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetProject(context.Background(), "nameless")
	assert.ErrorIs(t, err, ErrNotFound)
}
