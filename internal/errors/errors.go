// Package errors defines coded domain errors. Services return them, and the
// API layer turns the code into an HTTP status and an envelope error code.
//
// Match a class of failure with the standard library:
//
//	if errors.Is(err, domainerrors.ErrValidation) { ... }
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the machine-readable error code sent to clients.
type Code string

const (
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeTokenExpired  Code = "TOKEN_EXPIRED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeValidation    Code = "VALIDATION"
	CodeConflict      Code = "CONFLICT"
	CodeRateLimited   Code = "RATE_LIMITED"
	CodeInternal      Code = "INTERNAL"
)

var statusByCode = map[Code]int{
	CodeNotFound:      http.StatusNotFound,
	CodeAlreadyExists: http.StatusConflict,
	CodeConflict:      http.StatusConflict,
	CodeUnauthorized:  http.StatusUnauthorized,
	CodeTokenExpired:  http.StatusUnauthorized,
	CodeForbidden:     http.StatusForbidden,
	CodeValidation:    http.StatusBadRequest,
	CodeRateLimited:   http.StatusTooManyRequests,
}

// HTTPStatus maps c to a response status. Unknown codes are 500.
func (c Code) HTTPStatus() int {
	if s, ok := statusByCode[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error is a domain error. Two errors match under errors.Is when their
// codes are equal, so the Err* values below work as class sentinels.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool {
	var t *Error
	return errors.As(target, &t) && t.Code == e.Code
}

// HTTPStatus is shorthand for e.Code.HTTPStatus().
func (e *Error) HTTPStatus() int { return e.Code.HTTPStatus() }

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details any) *Error {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy of e wrapping err.
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.cause = err
	return &c
}

// Class sentinels.
var (
	ErrNotFound     = New(CodeNotFound, "not found")
	ErrUnauthorized = New(CodeUnauthorized, "unauthorized")
	ErrTokenExpired = New(CodeTokenExpired, "token expired")
	ErrValidation   = New(CodeValidation, "validation error")
	ErrConflict     = New(CodeConflict, "conflict")
)

// New returns an error with the given code.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func NotFound(msg string) *Error { return New(CodeNotFound, msg) }

func NotFoundf(format string, args ...any) *Error {
	return New(CodeNotFound, fmt.Sprintf(format, args...))
}

func AlreadyExists(msg string) *Error { return New(CodeAlreadyExists, msg) }

func Unauthorized(msg string) *Error { return New(CodeUnauthorized, msg) }

func TokenExpired(msg string) *Error { return New(CodeTokenExpired, msg) }

func Forbiddenf(format string, args ...any) *Error {
	return New(CodeForbidden, fmt.Sprintf(format, args...))
}

func Validation(msg string) *Error { return New(CodeValidation, msg) }

func Validationf(format string, args ...any) *Error {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

// ValidationWithDetails is Validation with per-field details attached.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

func Conflict(msg string) *Error { return New(CodeConflict, msg) }

func Internal(msg string) *Error { return New(CodeInternal, msg) }
