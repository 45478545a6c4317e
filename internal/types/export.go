package types

import "time"

// ExportedPage is one file written by a static export.
type ExportedPage struct {
	Path   string `json:"path"`
	File   string `json:"file"`
	Status int    `json:"status"`
	Bytes  int    `json:"bytes"`
	SHA256 string `json:"sha256"`
}

// BrokenLink is an internal link that points at no exported page.
type BrokenLink struct {
	Page   string `json:"page"`
	Target string `json:"target"`
}

// ExportManifest describes a finished static export. It is written next to
// the pages as manifest.json.
type ExportManifest struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Pages       []ExportedPage `json:"pages"`
	BrokenLinks []BrokenLink   `json:"broken_links,omitempty"`
}

// TotalBytes sums the size of every exported page.
func (m *ExportManifest) TotalBytes() int {
	if m == nil {
		return 0
	}
	total := 0
	for _, p := range m.Pages {
		total += p.Bytes
	}
	return total
}
