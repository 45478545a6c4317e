package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/nirman-site/internal/content"
	"github.com/jonathan/nirman-site/internal/sanity"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validationErr *ErrValidation
		sanityErr     *sanity.Error
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &sanityErr):
		// The content store failed, not this server.
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
