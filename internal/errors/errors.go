// Package errors defines the error taxonomy shared by the loyalty services and
// the HTTP layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a ServiceError.
type Code string

const (
	CodeValidation  Code = "VALIDATION_ERROR"
	CodeNotFound    Code = "NOT_FOUND"
	CodeInternal    Code = "INTERNAL_ERROR"
	CodeRateLimited Code = "RATE_LIMIT_EXCEEDED"
)

// ServiceError is returned by services when a request cannot be completed.
// HTTPStatus is the status the API layer responds with.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *ServiceError) Error() string {
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetail returns the error with an extra detail attached.
func (e *ServiceError) WithDetail(key string, value any) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Validation reports missing or invalid caller input.
func Validation(format string, args ...any) *ServiceError {
	return &ServiceError{
		Code:       CodeValidation,
		Message:    fmt.Sprintf(format, args...),
		HTTPStatus: http.StatusBadRequest,
	}
}

// NotFound reports a lookup miss.
func NotFound(message string) *ServiceError {
	return &ServiceError{
		Code:       CodeNotFound,
		Message:    message,
		HTTPStatus: http.StatusNotFound,
	}
}

// Internal wraps a persistence or unexpected failure. The underlying message
// is surfaced to the caller.
func Internal(err error) *ServiceError {
	msg := "internal server error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &ServiceError{
		Code:       CodeInternal,
		Message:    msg,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// RateLimitExceeded reports that a client exceeded its request budget.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return &ServiceError{
		Code:       CodeRateLimited,
		Message:    fmt.Sprintf("rate limit exceeded: %d requests per %s", limit, window),
		HTTPStatus: http.StatusTooManyRequests,
		Details:    map[string]any{"limit": limit, "window": window},
	}
}

// As extracts a ServiceError from the chain.
func As(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// Is reports whether err carries a ServiceError with the given code.
func Is(err error, code Code) bool {
	svcErr, ok := As(err)
	return ok && svcErr.Code == code
}

// HTTPStatusOf maps any error to a response status. Errors outside the
// taxonomy are treated as internal.
func HTTPStatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if svcErr, ok := As(err); ok && svcErr.HTTPStatus != 0 {
		return svcErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
