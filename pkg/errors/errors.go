// Package errors defines the failure kinds surfaced by the search core and
// maps them onto HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInternal      = errors.New("internal error")
	ErrIndexSearcher = errors.New("index searcher error")
	ErrEngine        = errors.New("engine error")
	ErrInvalidInput  = errors.New("invalid input")
	ErrIndexNotFound = errors.New("index not found")
	ErrTimeout       = errors.New("operation timed out")
)

// kinds orders the sentinels from most to least specific for Kind.
var kinds = []struct {
	sentinel error
	kind     string
	status   int
}{
	{ErrIndexSearcher, "index_searcher", http.StatusUnprocessableEntity},
	{ErrEngine, "engine", http.StatusInternalServerError},
	{ErrInvalidInput, "invalid_input", http.StatusBadRequest},
	{ErrIndexNotFound, "index_not_found", http.StatusNotFound},
	{ErrTimeout, "timeout", http.StatusGatewayTimeout},
	{ErrInternal, "internal", http.StatusInternalServerError},
}

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Internal wraps cause as an ErrInternal AppError.
func Internal(cause error) *AppError {
	return Newf(ErrInternal, http.StatusInternalServerError, "%v", cause)
}

// IndexSearcher wraps cause as an ErrIndexSearcher AppError.
func IndexSearcher(cause error) *AppError {
	return Newf(ErrIndexSearcher, http.StatusUnprocessableEntity, "%v", cause)
}

// Engine wraps cause as an ErrEngine AppError.
func Engine(cause error) *AppError {
	return Newf(ErrEngine, http.StatusInternalServerError, "%v", cause)
}

// HTTPStatusCode returns the status carried by an AppError, or the status of
// the first sentinel err wraps. Anything else is a 500.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// Kind names the failure class of err for API clients. Errors outside the
// known sentinels are "internal".
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return "internal"
}
