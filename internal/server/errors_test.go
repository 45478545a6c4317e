package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/nirman-site/internal/content"
	"github.com/jonathan/nirman-site/internal/sanity"
)

func TestErrValidation(t *testing.T) {
	err := &ErrValidation{Field: "type", Message: "unknown document type"}
	assert.Equal(t, "validation error: type - unknown document type", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", &content.NotFoundError{Type: "service", Slug: "x"}, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", &content.NotFoundError{Type: "project", Slug: "y"}), http.StatusNotFound},
		{"validation", fmt.Errorf("decode: %w", &ErrValidation{Field: "type"}), http.StatusBadRequest},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"content store", &sanity.Error{URL: "https://x", StatusCode: http.StatusServiceUnavailable, Message: "down"}, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
