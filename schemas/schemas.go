// Package schemas embeds the JSON Schemas for CMS content accepted by the site.
package schemas

import "embed"

// Schema file names.
const (
	PortableText = "portable_text.schema.json"
	Document     = "document.schema.json"
)

//go:embed *.schema.json
var files embed.FS

// Read returns the raw bytes of an embedded schema.
func Read(name string) ([]byte, error) {
	return files.ReadFile(name)
}

// Names lists the embedded schema files.
func Names() []string {
	return []string{PortableText, Document}
}
