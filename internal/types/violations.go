package types

// Violation severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Violation is a single problem found while checking CMS content.
type Violation struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Details  string `json:"details"`

	// Document identifies the offending document (its _id, or its index in
	// the input when it has none). Field is the JSON path inside it.
	Document string `json:"document,omitempty"`
	Field    string `json:"field,omitempty"`
}

// Violations is the result of a content check.
type Violations struct {
	Source     string      `json:"source,omitempty"`
	Documents  int         `json:"documents"`
	Violations []Violation `json:"violations"`
}

// Add appends a violation.
func (v *Violations) Add(violation Violation) {
	v.Violations = append(v.Violations, violation)
}

// Errors counts violations with error severity.
func (v *Violations) Errors() int {
	if v == nil {
		return 0
	}
	n := 0
	for _, violation := range v.Violations {
		if violation.Severity == SeverityError {
			n++
		}
	}
	return n
}

// HasErrors reports whether any violation has error severity.
func (v *Violations) HasErrors() bool {
	return v.Errors() > 0
}
