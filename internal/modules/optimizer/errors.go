package optimizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnsupportedMode is returned for a mode id that no solver serves.
	ErrUnsupportedMode = errors.New("unsupported mode")
	// ErrProblemTooLarge is returned when a solve would exceed the configured size limits.
	ErrProblemTooLarge = errors.New("problem too large")
)

// ValidationError reports a malformed or out-of-range request field.
// Message is user facing and ends up verbatim in the response notes.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// UnsupportedModeError names the rejected mode. It matches ErrUnsupportedMode with errors.Is.
type UnsupportedModeError struct {
	Mode    string
	Message string
}

func (e *UnsupportedModeError) Error() string {
	return e.Message
}

func (e *UnsupportedModeError) Unwrap() error {
	return ErrUnsupportedMode
}

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Notes turns a request error into the notes of an error response.
func Notes(err error) []string {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return []string{vErr.Message}
	}
	var mErr *UnsupportedModeError
	if errors.As(err, &mErr) {
		return []string{mErr.Message}
	}
	return []string{err.Error()}
}

// StatusCode maps a service error to the HTTP status used to report it.
func StatusCode(err error) int {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr), errors.Is(err, ErrUnsupportedMode), errors.Is(err, ErrProblemTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
