package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-readable error codes carried by AppError.
const (
	CodeBadRequest      = "bad_request"
	CodeUnauthorized    = "unauthorized"
	CodeForbidden       = "forbidden"
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodePayloadTooLarge = "payload_too_large"
	CodeUnprocessable   = "unprocessable_entity"
	CodeInternal        = "internal"
)

// AppError is the structured failure type shared by every pipeline component.
// It is created where a validation or lookup fails and travels unchanged up to
// the error translation stage, which serializes it exactly once.
//
//nolint:revive // Name mirrors the wire-level contract used by API clients
type AppError struct {
	Status  int
	Code    string
	Message string
	Details any
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%d %s): %v", e.Message, e.Status, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause returns a copy of the error wrapping cause.
func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

var recognizedStatus = map[int]string{
	http.StatusBadRequest:            CodeBadRequest,
	http.StatusUnauthorized:          CodeUnauthorized,
	http.StatusForbidden:             CodeForbidden,
	http.StatusNotFound:              CodeNotFound,
	http.StatusConflict:              CodeConflict,
	http.StatusRequestEntityTooLarge: CodePayloadTooLarge,
	http.StatusUnprocessableEntity:   CodeUnprocessable,
	http.StatusInternalServerError:   CodeInternal,
}

// NewAppError builds an AppError for status. A status outside the recognized
// classes is recorded as 500 so clients never observe an unexpected code.
// An empty code defaults to the canonical code of the status class.
func NewAppError(status int, code, message string, details any) *AppError {
	canonical, ok := recognizedStatus[status]
	if !ok {
		status = http.StatusInternalServerError
		canonical = CodeInternal
	}
	if code == "" {
		code = canonical
	}
	return &AppError{Status: status, Code: code, Message: message, Details: details}
}

// BadRequest reports a malformed or invalid request (400).
func BadRequest(message string, details any) *AppError {
	return NewAppError(http.StatusBadRequest, CodeBadRequest, orDefault(message, "Bad Request"), details)
}

// Unauthorized reports missing or invalid credentials (401).
func Unauthorized(message string, details any) *AppError {
	return NewAppError(http.StatusUnauthorized, CodeUnauthorized, orDefault(message, "Unauthorized"), details)
}

// Forbidden reports an authenticated caller lacking permission (403).
func Forbidden(message string, details any) *AppError {
	return NewAppError(http.StatusForbidden, CodeForbidden, orDefault(message, "Forbidden"), details)
}

// NotFound reports a missing resource (404).
func NotFound(message string, details any) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, orDefault(message, "Not Found"), details)
}

// Conflict reports a state conflict such as a duplicate key (409).
func Conflict(message string, details any) *AppError {
	return NewAppError(http.StatusConflict, CodeConflict, orDefault(message, "Conflict"), details)
}

// PayloadTooLarge reports a request body above the configured ceiling (413).
func PayloadTooLarge(message string, details any) *AppError {
	return NewAppError(http.StatusRequestEntityTooLarge, CodePayloadTooLarge, orDefault(message, "Request payload too large"), details)
}

// Unprocessable reports a well-formed but semantically invalid request (422).
func Unprocessable(message string, details any) *AppError {
	return NewAppError(http.StatusUnprocessableEntity, CodeUnprocessable, orDefault(message, "Unprocessable Entity"), details)
}

// AsAppError extracts an AppError from err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr, true
	}
	return nil, false
}

func orDefault(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}
