package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViolation_JSON(t *testing.T) {
	violation := Violation{
		Type:     "schema",
		Severity: SeverityError,
		Details:  "title is required",
		Document: "service-1",
		Field:    "title",
	}

	jsonBytes, err := json.MarshalIndent(violation, "", "  ")
	require.NoError(t, err)
	assert.Contains(t, string(jsonBytes), `"type": "schema"`)
	assert.Contains(t, string(jsonBytes), `"document": "service-1"`)
	assert.Contains(t, string(jsonBytes), `"field": "title"`)
}

func TestViolation_OptionalFields(t *testing.T) {
	jsonBytes, err := json.Marshal(Violation{Type: "duplicate_slug", Severity: SeverityError, Details: "x"})
	require.NoError(t, err)
	assert.NotContains(t, string(jsonBytes), "document")
	assert.NotContains(t, string(jsonBytes), "field")
}

func TestViolations_Errors(t *testing.T) {
	var nilViolations *Violations
	assert.Equal(t, 0, nilViolations.Errors())
	assert.False(t, nilViolations.HasErrors())

	v := &Violations{}
	v.Add(Violation{Severity: SeverityWarning})
	assert.False(t, v.HasErrors())

	v.Add(Violation{Severity: SeverityError})
	v.Add(Violation{Severity: SeverityError})
	assert.Equal(t, 2, v.Errors())
	assert.True(t, v.HasErrors())
}
