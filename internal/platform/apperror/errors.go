// Package apperror defines the error taxonomy shared by every domain
// package. Services wrap failures with one of the sentinels below; handlers
// translate them to HTTP statuses at the edge.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	// ErrValidation marks malformed or out-of-range input, cross-tenant
	// references, and status transitions against frozen claims.
	ErrValidation = errors.New("validation failed")

	// ErrForbidden marks operations the caller's role is barred from
	// entirely, regardless of object ownership.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound marks rows excluded by the tenant or ownership filter.
	// Deliberately indistinguishable from a row that does not exist, so
	// existence never leaks across tenant boundaries.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks unique-constraint violations.
	ErrConflict = errors.New("conflict")

	// ErrTransient marks infrastructure failures (lock timeout, lost
	// connectivity) that the job runner retries with backoff.
	ErrTransient = errors.New("transient infrastructure failure")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

// Forbiddenf wraps ErrForbidden with a formatted message.
func Forbiddenf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrForbidden}, args...)...)
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

// IsTransient reports whether err should be retried rather than surfaced.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// ToHTTP maps a domain error to an echo HTTP error. Unknown errors become
// 500 with the message suppressed.
func ToHTTP(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
