package site

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Summary returns the first paragraph text of an HTML fragment, cut to n
// runes. It is used for meta descriptions when a document has none.
func Summary(htmlContent string, n int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}
	doc.Find("script, style, figure").Remove()

	var text string
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text = cleanWhitespace(s.Text())
		return text == ""
	})
	if text == "" {
		text = cleanWhitespace(doc.Find("body").Text())
	}

	r := []rune(text)
	if n > 0 && len(r) > n {
		return strings.TrimSpace(string(r[:n])) + "..."
	}
	return text
}

// InternalLinks returns the sorted, de-duplicated paths of every
// same-site link in a page. External, mailto and tel links are ignored.
func InternalLinks(htmlContent string, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, &LinkExtractionError{Message: "failed to parse base URL", Cause: err}
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, &LinkExtractionError{
			Message: fmt.Sprintf("invalid base URL: %s (must have scheme and host)", baseURL),
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, &LinkExtractionError{Message: "failed to parse HTML", Cause: err}
	}

	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		linkURL, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(linkURL)
		if abs.Host != base.Host || (abs.Scheme != "http" && abs.Scheme != "https") {
			return
		}
		path := abs.Path
		if path == "" {
			path = "/"
		}
		if len(path) > 1 {
			path = strings.TrimRight(path, "/")
		}
		seen[path] = true
	})

	links := make([]string, 0, len(seen))
	for p := range seen {
		links = append(links, p)
	}
	sort.Strings(links)
	return links, nil
}

// cleanWhitespace collapses runs of whitespace to single spaces.
func cleanWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
