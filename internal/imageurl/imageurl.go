// Package imageurl builds CDN URLs for CMS image assets.
package imageurl

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/jonathan/nirman-site/internal/portabletext"
)

// DefaultBaseURL is the Sanity image CDN.
const DefaultBaseURL = "https://cdn.sanity.io"

// Common target sizes used by the site.
const (
	BodyWidth, BodyHeight = 1200, 800
	HeroWidth, HeroHeight = 1920, 1080
	CardWidth, CardHeight = 800, 600
	SideWidth, SideHeight = 800, 1000
)

// refPattern matches asset references like image-<id>-<w>x<h>-<ext>.
var refPattern = regexp.MustCompile(`^image-([A-Za-z0-9]+)-(\d+x\d+)-([a-z0-9]+)$`)

// Builder derives image URLs from asset references. It is a pure function
// of its configuration and arguments.
type Builder struct {
	ProjectID string
	Dataset   string
	BaseURL   string
}

// New returns a Builder for the given project and dataset.
func New(projectID, dataset string) *Builder {
	return &Builder{ProjectID: projectID, Dataset: dataset, BaseURL: DefaultBaseURL}
}

// URL returns the display URL for ref cropped to width x height. Zero
// dimensions are omitted from the query. A malformed reference falls back
// to the asset's own URL, and yields "" when there is none.
func (b *Builder) URL(ref *portabletext.AssetRef, width, height int) string {
	if ref == nil {
		return ""
	}

	base := ref.URL
	if m := refPattern.FindStringSubmatch(ref.Ref); m != nil {
		root := b.BaseURL
		if root == "" {
			root = DefaultBaseURL
		}
		base = root + "/images/" + b.ProjectID + "/" + b.Dataset + "/" + m[1] + "-" + m[2] + "." + m[3]
	}
	if base == "" {
		return ""
	}

	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	q := u.Query()
	if width > 0 {
		q.Set("w", strconv.Itoa(width))
	}
	if height > 0 {
		q.Set("h", strconv.Itoa(height))
	}
	if width > 0 && height > 0 {
		q.Set("fit", "crop")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Dimensions parses the original pixel size encoded in an asset reference.
func Dimensions(ref string) (width, height int, ok bool) {
	m := refPattern.FindStringSubmatch(ref)
	if m == nil {
		return 0, 0, false
	}
	ws, hs, _ := strings.Cut(m[2], "x")
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, false
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, false
	}
	return w, h, true
}
