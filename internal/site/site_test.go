package site

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/nirman-site/internal/content"
	"github.com/jonathan/nirman-site/internal/imageurl"
	"github.com/jonathan/nirman-site/internal/metrics"
	"github.com/jonathan/nirman-site/internal/rendering"
	"github.com/jonathan/nirman-site/internal/sanity"
)

type stubQuerier struct {
	mu        sync.Mutex
	responses map[string]string
	err       error
}

func (s *stubQuerier) Query(_ context.Context, query string, params map[string]any, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	key := query
	if slug, ok := params["slug"].(string); ok {
		key += "|" + slug
	}
	raw, ok := s.responses[key]
	if !ok {
		return sanity.ErrNoResult
	}
	return json.Unmarshal([]byte(raw), out)
}

const testImageRef = "image-abc123-1200x800-jpg"

func fixtures() map[string]string {
	return map[string]string{
		content.ServicesQuery: `[
			{"_id":"s1","title":"Residential Construction","slug":{"current":"residential"},"description":"Homes built to last","image":{"asset":{"_ref":"` + testImageRef + `"}}},
			{"_id":"s2","title":"Commercial Projects","slug":{"current":"commercial"},"description":"Offices and shops"},
			{"_id":"s3","title":"Renovations","slug":{"current":"renovations"},"description":"Make it new"},
			{"_id":"s4","title":"Interior Design","slug":{"current":"interior"},"description":"Inside out"}
		]`,
		content.ServiceQuery + "|residential": `{
			"_id":"s1","title":"Residential Construction","slug":{"current":"residential"},
			"description":"Homes built to last",
			"features":["Custom plans","Quality materials"],
			"image":{"asset":{"_ref":"` + testImageRef + `"}},
			"body":[
				{"_type":"block","style":"h2","children":[{"_type":"span","text":"Our Services"}]},
				{"_type":"block","style":"normal","children":[{"_type":"span","text":"We build homes"}]}
			]
		}`,
		content.ServiceQuery + "|commercial": `{
			"_id":"s2","title":"Commercial Projects","slug":{"current":"commercial"},
			"body":[{"_type":"block","style":"normal","children":[{"_type":"span","text":"Offices, shops and warehouses."}]}]
		}`,
		content.ServiceQuery + "|untitled": `{"_id":"s9","slug":{"current":"untitled"}}`,
		content.ServiceSlugs: `[
			{"_id":"s1","title":"Residential Construction","slug":{"current":"residential"}},
			{"_id":"s2","title":"Commercial Projects","slug":{"current":"commercial"}},
			{"_id":"s9","slug":{"current":"untitled"}}
		]`,
		content.ProjectsQuery: `[
			{"_id":"p1","title":"Villa","slug":{"current":"villa"},"description":"A family villa","category":"Residential","location":"Lalitpur"}
		]`,
		content.ProjectQuery + "|villa": `{
			"_id":"p1","title":"Villa","slug":{"current":"villa"},"description":"A family villa",
			"category":"Residential","location":"Lalitpur","client":"The Shresthas","completedAt":"2024-03-05",
			"technologies":["Steel frame","Solar"],
			"gallery":[
				{"_key":"g1","asset":{"_ref":"` + testImageRef + `"}},
				{"_key":"g2","asset":{"_ref":"image-def456-800x600-png"}}
			]
		}`,
		content.ProjectSlugs: `[{"_id":"p1","title":"Villa","slug":{"current":"villa"}}]`,
	}
}

func newTestSite(t *testing.T, q *stubQuerier, opts ...Option) *Site {
	t.Helper()
	images := imageurl.New("z1g1o05i", "production")
	clock := func() time.Time { return time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC) }
	s, err := New(content.New(q, nil), rendering.New(images), images, append([]Option{WithClock(clock)}, opts...)...)
	require.NoError(t, err)
	return s
}

func parse(t *testing.T, page *Page) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(page.HTML)))
	require.NoError(t, err)
	return doc
}

func metaDescription(doc *goquery.Document) string {
	v, _ := doc.Find(`meta[name="description"]`).Attr("content")
	return v
}

func TestRender_Home(t *testing.T) {
	s := newTestSite(t, &stubQuerier{responses: fixtures()})

	page, err := s.Render(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.Status)
	assert.Equal(t, PageHome, page.Name)
	assert.Equal(t, "/", page.Path)

	doc := parse(t, page)
	assert.Equal(t, "Building Your Future, Brick by Brick | Shree Jayanti Nirman Sewa", doc.Find("title").Text())
	assert.Equal(t, featuredCount, doc.Find("#featured-services h3").Length())
	assert.Equal(t, 1, doc.Find("#featured-projects a[href='/projects/villa']").Length())
	assert.Contains(t, doc.Find("footer").Text(), "2026")
	assert.Contains(t, doc.Find("footer").Text(), "Pepsicola 32, Kathmandu, Nepal")

	src, _ := doc.Find("#featured-services img").First().Attr("src")
	assert.Equal(t, "https://cdn.sanity.io/images/z1g1o05i/production/abc123-1200x800.jpg?fit=crop&h=600&w=800", src)
	src, _ = doc.Find("#featured-services img").Eq(1).Attr("src")
	assert.Equal(t, PlaceholderImage, src)
}

func TestRender_Services(t *testing.T) {
	s := newTestSite(t, &stubQuerier{responses: fixtures()})

	page, err := s.Render(context.Background(), "/services")
	require.NoError(t, err)
	doc := parse(t, page)

	links := doc.Find("#service-list > a")
	assert.Equal(t, 4, links.Length())
	href, _ := links.First().Attr("href")
	assert.Equal(t, "/services/residential", href)
	assert.Equal(t, 6, doc.Find("ol li").Length())
}

func TestRender_EmptyServices(t *testing.T) {
	s := newTestSite(t, &stubQuerier{responses: map[string]string{}})

	page, err := s.Render(context.Background(), "/services")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.Status)
	assert.Contains(t, parse(t, page).Find("#service-list").Text(), "No services published yet.")
}

func TestRender_Service(t *testing.T) {
	s := newTestSite(t, &stubQuerier{responses: fixtures()})

	page, err := s.Render(context.Background(), "/services/residential")
	require.NoError(t, err)
	assert.Equal(t, PageService, page.Name)
	assert.Equal(t, "Residential Construction", page.Title)

	doc := parse(t, page)
	assert.Equal(t, "Residential Construction", doc.Find("h1").Text())
	assert.Equal(t, "Our Services", doc.Find("#body h2").Text())
	assert.Equal(t, "We build homes", doc.Find("#body p").Text())
	assert.Equal(t, 2, doc.Find("#features li").Length())
	assert.Equal(t, "Homes built to last", metaDescription(doc))
}

func TestRender_ServiceDescriptionFallsBackToBody(t *testing.T) {
	s := newTestSite(t, &stubQuerier{responses: fixtures()})

	page, err := s.Render(context.Background(), "/services/commercial")
	require.NoError(t, err)
	doc := parse(t, page)
	assert.Equal(t, "Offices, shops and warehouses.", metaDescription(doc))
	assert.Equal(t, 0, doc.Find("#features").Length())
	assert.Contains(t, doc.Text(), "No image available")
}

func TestRender_Projects(t *testing.T) {
	s := newTestSite(t, &stubQuerier{responses: fixtures()})

	page, err := s.Render(context.Background(), "/projects")
	require.NoError(t, err)
	doc := parse(t, page)
	assert.Equal(t, 1, doc.Find("#project-list > div").Length())

	var categories []string
	doc.Find("span.rounded-full").Each(func(_ int, sel *goquery.Selection) {
		categories = append(categories, sel.Text())
	})
	assert.Equal(t, projectCategories, categories)
}

func TestRender_Project(t *testing.T) {
	s := newTestSite(t, &stubQuerier{responses: fixtures()})

	page, err := s.Render(context.Background(), "/projects/villa")
	require.NoError(t, err)
	doc := parse(t, page)

	assert.Equal(t, "March 5, 2024", doc.Find("#meta .completed").Text())
	assert.Equal(t, "The Shresthas", doc.Find("#meta .client").Text())
	assert.Equal(t, 2, doc.Find("#technologies span").Length())
	assert.Equal(t, 0, doc.Find("#body").Length())

	gallery := doc.Find("#gallery img")
	require.Equal(t, 2, gallery.Length())
	alt, _ := gallery.Eq(1).Attr("alt")
	assert.Equal(t, "Villa - Image 2", alt)
	src, _ := gallery.Eq(1).Attr("src")
	assert.Equal(t, "https://cdn.sanity.io/images/z1g1o05i/production/def456-800x600.png?fit=crop&h=600&w=800", src)
}

func TestRender_NotFound(t *testing.T) {
	s := newTestSite(t, &stubQuerier{responses: fixtures()})

	for _, path := range []string{"/services/missing", "/services/untitled", "/projects/Bad_Slug", "/about", "/services/a/b"} {
		t.Run(path, func(t *testing.T) {
			page, err := s.Render(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, http.StatusNotFound, page.Status)
			assert.Equal(t, PageNotFound, page.Name)
			assert.Equal(t, "Page Not Found", parse(t, page).Find("h1").Text())
		})
	}
}

func TestRender_NormalizesPath(t *testing.T) {
	s := newTestSite(t, &stubQuerier{responses: fixtures()})

	page, err := s.Render(context.Background(), "services/residential/?ref=home#top")
	require.NoError(t, err)
	assert.Equal(t, "/services/residential", page.Path)
	assert.Equal(t, http.StatusOK, page.Status)
}

func TestRender_UpstreamError(t *testing.T) {
	boom := errors.New("upstream down")
	m := metrics.New(nil)
	s := newTestSite(t, &stubQuerier{err: boom}, WithMetrics(m))

	_, err := s.Render(context.Background(), "/services/residential")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PagesRendered.WithLabelValues("service", "error")))
}

func TestRender_CountsPages(t *testing.T) {
	m := metrics.New(nil)
	s := newTestSite(t, &stubQuerier{responses: fixtures()}, WithMetrics(m))

	_, err := s.Render(context.Background(), "/projects/villa")
	require.NoError(t, err)
	_, err = s.Render(context.Background(), "/nope")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PagesRendered.WithLabelValues(PageProject, "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PagesRendered.WithLabelValues(PageNotFound, "404")))
}

func TestRender_CustomInfo(t *testing.T) {
	info := DefaultInfo()
	info.Name = "Acme Builders"
	info.Facebook = ""
	s := newTestSite(t, &stubQuerier{responses: fixtures()}, WithInfo(info))

	page, err := s.Render(context.Background(), "/projects")
	require.NoError(t, err)
	doc := parse(t, page)
	assert.Equal(t, "Our Projects | Acme Builders", doc.Find("title").Text())
	assert.NotContains(t, doc.Find("footer").Text(), "Facebook")
}

func TestPaths(t *testing.T) {
	s := newTestSite(t, &stubQuerier{responses: fixtures()})

	paths, err := s.Paths(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/", "/services", "/projects",
		"/services/residential", "/services/commercial",
		"/projects/villa",
	}, paths)
}

func TestPaths_Error(t *testing.T) {
	s := newTestSite(t, &stubQuerier{err: errors.New("down")})
	_, err := s.Paths(context.Background())
	assert.Error(t, err)
}

func TestRouteName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/", PageHome},
		{"/services", "services"},
		{"/services/x", "service"},
		{"/projects/x", "project"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, routeName(strings.Split(strings.Trim(tt.path, "/"), "/")))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("  short ", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
	assert.Equal(t, "héllo", truncate("héllo", 0))
}

func TestStatic(t *testing.T) {
	data, err := fs.ReadFile(Static(), strings.TrimPrefix(PlaceholderImage, "/"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")
}
