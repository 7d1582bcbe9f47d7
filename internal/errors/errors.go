package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy of the access layer, mapped to HTTP statuses by StatusCode
var (
	// Authentication absent
	ErrNoSession    = errors.New("no active session")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Authorization denied
	ErrForbidden = errors.New("forbidden")

	// OAuth flow errors
	ErrInvalidState   = errors.New("invalid oauth state")
	ErrInvalidRequest = errors.New("invalid request")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnavailable = errors.New("backend unavailable")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// StatusCode maps an error to the HTTP status returned to API callers.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case Is(err, ErrNoSession), Is(err, ErrInvalidToken), Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case Is(err, ErrForbidden):
		return http.StatusForbidden
	case Is(err, ErrInvalidState), Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case Is(err, ErrNotFound):
		return http.StatusNotFound
	case Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
