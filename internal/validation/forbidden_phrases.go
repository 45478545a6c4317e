package validation

import (
	"fmt"
	"strings"

	"github.com/jonathan/nirman-site/internal/types"
)

// CheckForbiddenPhrases reports each forbidden phrase found in text. The
// match is case-insensitive and reports each phrase at most once.
func CheckForbiddenPhrases(document, field, text string, phrases []string) []types.Violation {
	if len(phrases) == 0 || text == "" {
		return nil
	}

	normalized := normalizeForMatching(text)
	var violations []types.Violation
	for _, phrase := range phrases {
		normalizedPhrase := normalizeForMatching(phrase)
		if normalizedPhrase == "" {
			continue
		}
		if strings.Contains(normalized, normalizedPhrase) {
			violations = append(violations, types.Violation{
				Type:     "forbidden_phrase",
				Severity: types.SeverityError,
				Details:  fmt.Sprintf("contains forbidden phrase: %s", strings.TrimSpace(phrase)),
				Document: document,
				Field:    field,
			})
		}
	}
	return violations
}

// normalizeForMatching lowercases text and collapses whitespace, so a phrase
// split across a line break in the CMS still matches.
func normalizeForMatching(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
