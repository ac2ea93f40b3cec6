package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes used across the integration backend.
const (
	CodeNotFound        = "not_found"
	CodeUnauthorized    = "unauthorized"
	CodeBadRequest      = "bad_request"
	CodeUpstreamFailure = "upstream_failure"
)

// Error is the standardized error shape returned by services. Code is one of
// the Code* constants; Description is safe to show to API callers.
type Error struct {
	Code        string `json:"code"`
	Description string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// HTTPStatus maps the error code to an HTTP status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Common error constructors

func NewNotFound(description string) *Error {
	return &Error{Code: CodeNotFound, Description: description}
}

func NewUnauthorized(description string) *Error {
	return &Error{Code: CodeUnauthorized, Description: description}
}

func NewBadRequest(description string) *Error {
	return &Error{Code: CodeBadRequest, Description: description}
}

func NewUpstreamFailure(description string) *Error {
	return &Error{Code: CodeUpstreamFailure, Description: description}
}

func is(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func IsNotFound(err error) bool        { return is(err, CodeNotFound) }
func IsUnauthorized(err error) bool    { return is(err, CodeUnauthorized) }
func IsBadRequest(err error) bool      { return is(err, CodeBadRequest) }
func IsUpstreamFailure(err error) bool { return is(err, CodeUpstreamFailure) }

// StatusOf returns the HTTP status for any error, defaulting to 500 for
// errors outside the taxonomy.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}
