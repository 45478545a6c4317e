package site

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummary(t *testing.T) {
	tests := []struct {
		name string
		html string
		n    int
		want string
	}{
		{"first non-empty paragraph", `<p> </p><p>Hello   <b>world</b></p><p>second</p>`, 0, "Hello world"},
		{"figures ignored", `<figure><figcaption>Caption</figcaption></figure><p>Text</p>`, 0, "Text"},
		{"falls back to body text", `<h2>Heading only</h2>`, 0, "Heading only"},
		{"cut with ellipsis", `<p>abcdefgh</p>`, 4, "abcd..."},
		{"empty", ``, 10, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summary(tt.html, tt.n))
		})
	}
}

func TestInternalLinks(t *testing.T) {
	page := `
		<a href="/services">Services</a>
		<a href="/services/">Services again</a>
		<a href="projects/villa">Relative</a>
		<a href="https://example.com/projects">Absolute same host</a>
		<a href="https://facebook.com/x">External</a>
		<a href="mailto:info@example.com">Mail</a>
		<a href="tel:01-4993108">Phone</a>
		<a href="#top">Anchor</a>
		<a href="/">Home</a>`

	links, err := InternalLinks(page, "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/projects", "/projects/villa", "/services"}, links)
}

func TestInternalLinks_InvalidBase(t *testing.T) {
	_, err := InternalLinks("<a href='/'>x</a>", "not-a-url")
	require.Error(t, err)

	var linkErr *LinkExtractionError
	assert.True(t, errors.As(err, &linkErr))
}

func TestTemplateError(t *testing.T) {
	cause := errors.New("bad")
	err := &TemplateError{Page: "home", Message: "failed", Cause: cause}
	assert.Equal(t, "template error in home: failed: bad", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "template error in home: unknown page", (&TemplateError{Page: "home", Message: "unknown page"}).Error())
}
