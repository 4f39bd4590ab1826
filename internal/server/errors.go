package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/legalease/internal/jobs"
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
	var notFound jobs.ErrJobNotFound
	var validation *ErrValidation
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// skipStatus maps a skipped submission to its HTTP status code. Dedupe
// skips are not errors; a missing or unusable source is the client's.
func skipStatus(reason jobs.SkipReason) int {
	switch reason {
	case jobs.SkipReasonSourceMissing:
		return http.StatusNotFound
	case jobs.SkipReasonUnsupportedType:
		return http.StatusBadRequest
	default:
		return http.StatusOK
	}
}
