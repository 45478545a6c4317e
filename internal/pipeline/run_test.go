package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jonathan/nirman-site/internal/site"
	"github.com/jonathan/nirman-site/internal/types"
)

type fakePages struct {
	paths    []string
	html     map[string]string
	failOn   string
	status   map[string]int
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakePages) Paths(context.Context) ([]string, error) {
	return f.paths, nil
}

func (f *fakePages) Render(ctx context.Context, path string) (*site.Page, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	if path == f.failOn {
		return nil, errors.New("render failed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	status := http.StatusOK
	if s, ok := f.status[path]; ok {
		status = s
	}
	return &site.Page{Path: path, Status: status, HTML: []byte(f.html[path])}, nil
}

func (f *fakePages) NotFound(context.Context) (*site.Page, error) {
	return &site.Page{Status: http.StatusNotFound, HTML: []byte("<h1>Page Not Found</h1>")}, nil
}

func newFakePages() *fakePages {
	return &fakePages{
		paths: []string{"/", "/services", "/projects", "/services/residential", "/projects/villa"},
		html: map[string]string{
			"/":                     `<a href="/services">s</a><a href="/projects">p</a><a href="/about">missing</a>`,
			"/services":             `<a href="/services/residential">r</a><img src="/placeholder.svg">`,
			"/projects":             `<a href="/projects/villa">v</a><a href="https://facebook.com/x">fb</a>`,
			"/services/residential": `<a href="/services">back</a><a href="/placeholder.svg">img</a>`,
			"/projects/villa":       `<a href="/projects/">back</a><a href="mailto:a@b.c">mail</a>`,
		},
	}
}

func TestRunExport(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	pages := newFakePages()
	var (
		mu     sync.Mutex
		events []ProgressEvent
	)
	opts := RunOptions{
		OutputDir:   dir,
		Concurrency: 2,
		BaseURL:     "https://example.com",
		Now:         func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
		OnProgress: func(e ProgressEvent) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		},
	}

	manifest, err := RunExport(context.Background(), pages, opts)
	require.NoError(t, err)

	require.Len(t, manifest.Pages, 6)
	assert.Equal(t, "/", manifest.Pages[0].Path)
	assert.Equal(t, "index.html", manifest.Pages[0].File)
	assert.Equal(t, "services/residential/index.html", manifest.Pages[3].File)
	assert.Equal(t, NotFoundFile, manifest.Pages[5].File)
	assert.Equal(t, http.StatusNotFound, manifest.Pages[5].Status)
	assert.LessOrEqual(t, pages.maxSeen.Load(), int32(2))

	assert.Equal(t, []types.BrokenLink{{Page: "/", Target: "/about"}}, manifest.BrokenLinks)

	body, err := os.ReadFile(filepath.Join(dir, "projects", "villa", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, pages.html["/projects/villa"], string(body))
	sum := sha256.Sum256(body)
	assert.Equal(t, hex.EncodeToString(sum[:]), manifest.Pages[4].SHA256)
	assert.Equal(t, len(body), manifest.Pages[4].Bytes)

	_, err = os.Stat(filepath.Join(dir, NotFoundFile))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	require.NoError(t, err)
	var written types.ExportManifest
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, manifest.GeneratedAt, written.GeneratedAt)
	assert.Len(t, written.Pages, 6)

	steps := make(map[string]int)
	for _, e := range events {
		steps[e.Step]++
	}
	assert.Equal(t, 5, steps[StepPage])
	assert.Equal(t, 1, steps[StepManifest])
	assert.Equal(t, 1, steps[StepLinks])
}

func TestRunExport_SkipsLinkCheckWithoutBaseURL(t *testing.T) {
	manifest, err := RunExport(context.Background(), newFakePages(), RunOptions{OutputDir: t.TempDir()})
	require.NoError(t, err)
	assert.Empty(t, manifest.BrokenLinks)
}

func TestRunExport_RenderFailureStopsExport(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	pages := newFakePages()
	pages.failOn = "/projects"

	_, err := RunExport(context.Background(), pages, RunOptions{OutputDir: dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to render /projects")

	_, statErr := os.Stat(filepath.Join(dir, ManifestFile))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunExport_UnexpectedStatus(t *testing.T) {
	pages := newFakePages()
	pages.status = map[string]int{"/projects/villa": http.StatusNotFound}

	_, err := RunExport(context.Background(), pages, RunOptions{OutputDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestRunExport_CopiesAssets(t *testing.T) {
	dir := t.TempDir()
	assets := fstest.MapFS{
		"placeholder.svg": {Data: []byte("<svg/>")},
		"img/logo.svg":    {Data: []byte("<svg>logo</svg>")},
	}

	manifest, err := RunExport(context.Background(), newFakePages(), RunOptions{OutputDir: dir, Assets: assets})
	require.NoError(t, err)

	require.Len(t, manifest.Pages, 8)
	assert.Equal(t, "/img/logo.svg", manifest.Pages[6].Path)
	assert.Equal(t, "img/logo.svg", manifest.Pages[6].File)
	assert.Equal(t, "/placeholder.svg", manifest.Pages[7].Path)

	body, err := os.ReadFile(filepath.Join(dir, "placeholder.svg"))
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(body))
}

func TestRunExport_RequiresOutputDir(t *testing.T) {
	_, err := RunExport(context.Background(), newFakePages(), RunOptions{})
	assert.Error(t, err)
}

func TestFileFor(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"/", "index.html", false},
		{"/services", filepath.Join("services", "index.html"), false},
		{"/projects/villa", filepath.Join("projects", "villa", "index.html"), false},
		{"/services/../../etc", "", true},
		{"/services//x", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := fileFor(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckLinks_InvalidBase(t *testing.T) {
	_, err := CheckLinks(map[string]string{"/": `<a href="/x">x</a>`}, "nope")
	assert.Error(t, err)
}
