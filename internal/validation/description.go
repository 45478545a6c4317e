package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/nirman-site/internal/types"
)

// MaxDescriptionLength is the longest description that is shown in full
// in search results.
const MaxDescriptionLength = 160

// CheckDescription warns about missing descriptions and descriptions that
// will be cut in meta tags.
func CheckDescription(document, description string, maxChars int) []types.Violation {
	description = strings.TrimSpace(description)
	if description == "" {
		return []types.Violation{{
			Type:     "missing_description",
			Severity: types.SeverityWarning,
			Details:  "no description; the first paragraph of the body is used instead",
			Document: document,
			Field:    "description",
		}}
	}

	if n := utf8.RuneCountInString(description); maxChars > 0 && n > maxChars {
		return []types.Violation{{
			Type:     "description_too_long",
			Severity: types.SeverityWarning,
			Details:  fmt.Sprintf("description has %d characters, maximum is %d", n, maxChars),
			Document: document,
			Field:    "description",
		}}
	}
	return nil
}
