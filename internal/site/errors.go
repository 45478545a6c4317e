package site

import "fmt"

// TemplateError represents an error parsing or executing a page template
type TemplateError struct {
	Page    string
	Message string
	Cause   error
}

func (e *TemplateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("template error in %s: %s: %v", e.Page, e.Message, e.Cause)
	}
	return fmt.Sprintf("template error in %s: %s", e.Page, e.Message)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// LinkExtractionError represents an error while extracting links from a page
type LinkExtractionError struct {
	Message string
	Cause   error
}

func (e *LinkExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("link extraction error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("link extraction error: %s", e.Message)
}

func (e *LinkExtractionError) Unwrap() error {
	return e.Cause
}
