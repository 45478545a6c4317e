// Package pipeline renders every page of the site to static files.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/nirman-site/internal/logger"
	"github.com/jonathan/nirman-site/internal/site"
	"github.com/jonathan/nirman-site/internal/types"
)

// DefaultConcurrency is the number of pages rendered at once.
const DefaultConcurrency = 4

// Output file names.
const (
	IndexFile    = "index.html"
	NotFoundFile = "404.html"
	ManifestFile = "manifest.json"
)

// Progress steps.
const (
	StepPaths    = "paths"
	StepPage     = "page"
	StepNotFound = "not_found"
	StepAssets   = "assets"
	StepLinks    = "links"
	StepManifest = "manifest"
)

// ProgressEvent represents a progress update during an export
type ProgressEvent struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// ProgressCallback is called when export progress occurs
type ProgressCallback func(event ProgressEvent)

// Pages is what an export renders.
type Pages interface {
	Paths(ctx context.Context) ([]string, error)
	Render(ctx context.Context, path string) (*site.Page, error)
	NotFound(ctx context.Context) (*site.Page, error)
}

// RunOptions holds configuration for an export
type RunOptions struct {
	OutputDir   string
	Concurrency int
	// BaseURL resolves absolute links when checking for broken links.
	// Link checking is skipped when it is empty.
	BaseURL    string
	Logger     logger.Logger
	OnProgress ProgressCallback
	Now        func() time.Time
	// Assets are copied into the output directory as they are.
	Assets fs.FS
}

// emitProgress calls the progress callback if configured
func emitProgress(opts *RunOptions, step, pagePath, message string) {
	if opts.OnProgress != nil {
		opts.OnProgress(ProgressEvent{Step: step, Path: pagePath, Message: message})
	}
}

// RunExport renders every page into opts.OutputDir and writes a manifest.
// Pages are written as <path>/index.html; the not-found page as 404.html.
// The first render or write failure cancels the remaining pages.
func RunExport(ctx context.Context, pages Pages, opts RunOptions) (*types.ExportManifest, error) {
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger

	paths, err := pages.Paths(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	emitProgress(&opts, StepPaths, "", fmt.Sprintf("Found %d pages", len(paths)))

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	exported := make([]types.ExportedPage, len(paths))
	var (
		htmlMu sync.Mutex
		html   = make(map[string]string, len(paths))
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, p := range paths {
		g.Go(func() error {
			page, err := pages.Render(gCtx, p)
			if err != nil {
				return fmt.Errorf("failed to render %s: %w", p, err)
			}
			if page.Status != http.StatusOK {
				return fmt.Errorf("page %s rendered with status %d", p, page.Status)
			}

			file, err := fileFor(p)
			if err != nil {
				return err
			}
			entry, err := writePage(opts.OutputDir, file, page)
			if err != nil {
				return err
			}
			exported[i] = entry

			htmlMu.Lock()
			html[page.Path] = string(page.HTML)
			htmlMu.Unlock()

			log.Debug("exported page", logger.String("path", p), logger.Int("bytes", entry.Bytes))
			emitProgress(&opts, StepPage, p, fmt.Sprintf("Wrote %s", file))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	notFound, err := pages.NotFound(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to render not-found page: %w", err)
	}
	entry, err := writePage(opts.OutputDir, NotFoundFile, notFound)
	if err != nil {
		return nil, err
	}
	entry.Path = "/" + NotFoundFile
	exported = append(exported, entry)
	emitProgress(&opts, StepNotFound, "", "Wrote "+NotFoundFile)

	if opts.Assets != nil {
		assets, err := copyAssets(opts.Assets, opts.OutputDir)
		if err != nil {
			return nil, err
		}
		exported = append(exported, assets...)
		emitProgress(&opts, StepAssets, "", fmt.Sprintf("Copied %d assets", len(assets)))
	}

	manifest := &types.ExportManifest{
		GeneratedAt: opts.Now().UTC(),
		Pages:       exported,
	}

	if opts.BaseURL != "" {
		broken, err := CheckLinks(html, opts.BaseURL)
		if err != nil {
			return nil, err
		}
		manifest.BrokenLinks = broken
		for _, b := range broken {
			log.Warn("broken internal link", logger.String("page", b.Page), logger.String("target", b.Target))
		}
		emitProgress(&opts, StepLinks, "", fmt.Sprintf("Found %d broken links", len(broken)))
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(opts.OutputDir, ManifestFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	emitProgress(&opts, StepManifest, "", "Wrote "+ManifestFile)

	log.Info("export finished",
		logger.String("dir", opts.OutputDir),
		logger.Int("pages", len(manifest.Pages)),
		logger.Int("broken_links", len(manifest.BrokenLinks)),
	)
	return manifest, nil
}

// CheckLinks reports links between pages that point at a path no page was
// rendered for. Links to files (paths with an extension) are not checked.
func CheckLinks(html map[string]string, baseURL string) ([]types.BrokenLink, error) {
	pagePaths := make([]string, 0, len(html))
	for p := range html {
		pagePaths = append(pagePaths, p)
	}
	sort.Strings(pagePaths)

	var broken []types.BrokenLink
	for _, p := range pagePaths {
		links, err := site.InternalLinks(html[p], baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to check links on %s: %w", p, err)
		}
		for _, target := range links {
			if path.Ext(target) != "" {
				continue
			}
			if _, ok := html[target]; !ok {
				broken = append(broken, types.BrokenLink{Page: p, Target: target})
			}
		}
	}
	return broken, nil
}

// fileFor maps a page path to its file below the output directory.
func fileFor(pagePath string) (string, error) {
	clean := path.Clean("/" + pagePath)
	if clean != "/"+strings.Trim(pagePath, "/") || strings.Contains(clean, "..") {
		return "", fmt.Errorf("refusing to export unsafe path %q", pagePath)
	}
	if clean == "/" {
		return IndexFile, nil
	}
	return filepath.Join(filepath.FromSlash(strings.TrimPrefix(clean, "/")), IndexFile), nil
}

func writePage(dir, file string, page *site.Page) (types.ExportedPage, error) {
	return writeFile(dir, file, page.Path, page.Status, page.HTML)
}

func writeFile(dir, file, urlPath string, status int, data []byte) (types.ExportedPage, error) {
	full := filepath.Join(dir, file)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return types.ExportedPage{}, fmt.Errorf("failed to create directory for %s: %w", file, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return types.ExportedPage{}, fmt.Errorf("failed to write %s: %w", file, err)
	}

	sum := sha256.Sum256(data)
	return types.ExportedPage{
		Path:   urlPath,
		File:   filepath.ToSlash(file),
		Status: status,
		Bytes:  len(data),
		SHA256: hex.EncodeToString(sum[:]),
	}, nil
}

// copyAssets copies every regular file in assets, in lexical order.
func copyAssets(assets fs.FS, dir string) ([]types.ExportedPage, error) {
	var out []types.ExportedPage
	err := fs.WalkDir(assets, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(assets, name)
		if err != nil {
			return fmt.Errorf("failed to read asset %s: %w", name, err)
		}
		entry, err := writeFile(dir, filepath.FromSlash(name), "/"+name, http.StatusOK, data)
		if err != nil {
			return err
		}
		out = append(out, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
