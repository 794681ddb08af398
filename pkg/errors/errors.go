// SPDX-License-Identifier: Apache-2.0
// Package errors provides the failure taxonomy shared by tools, the
// dispatcher and the transports.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies failures for callers, logs and metrics.
type ErrorCode string

const (
	// CodeAuthorizationDenied indicates the caller's role may not perform the operation.
	CodeAuthorizationDenied ErrorCode = "AUTHORIZATION_DENIED"

	// CodeEntityNotFound indicates a name or id did not resolve to a record.
	CodeEntityNotFound ErrorCode = "ENTITY_NOT_FOUND"

	// CodeValidationFailed indicates malformed or missing arguments.
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// CodeDomainConflict indicates a uniqueness or referential constraint was violated.
	CodeDomainConflict ErrorCode = "DOMAIN_CONFLICT"

	// CodeNotPermittedTool indicates the oracle asked for a tool outside the role's subset.
	CodeNotPermittedTool ErrorCode = "NOT_PERMITTED_TOOL"

	// CodeOracleUnavailable indicates the reasoning backend failed or timed out.
	CodeOracleUnavailable ErrorCode = "ORACLE_UNAVAILABLE"

	// CodeUnauthenticated indicates missing or invalid credentials at a transport.
	CodeUnauthenticated ErrorCode = "UNAUTHENTICATED"

	// CodeRateLimit indicates rate limiting was triggered.
	CodeRateLimit ErrorCode = "RATE_LIMITED"

	// CodeMaxRounds indicates a turn hit the oracle round-trip limit.
	CodeMaxRounds ErrorCode = "MAX_ROUNDS_EXCEEDED"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Error is a typed error with context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type Error struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]any
	Recoverable bool
	StatusCode  int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *Error) MarshalJSON() ([]byte, error) {
	out := struct {
		Code        string         `json:"code"`
		Message     string         `json:"message"`
		Err         string         `json:"error,omitempty"`
		Context     map[string]any `json:"context,omitempty"`
		Recoverable bool           `json:"recoverable"`
		StatusCode  int            `json:"status_code"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Context:     e.Context,
		Recoverable: e.Recoverable,
		StatusCode:  e.StatusCode,
	}
	if e.Err != nil {
		out.Err = e.Err.Error()
	}
	return json.Marshal(out)
}

// New creates a new Error with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]any),
		StatusCode: HTTPStatus(code),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be retried.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// As returns err as *Error when it is one anywhere in the chain,
// or wraps it as an internal error otherwise.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return New(CodeInternal, "internal error", err)
}

// CodeOf returns the code carried by err, or CodeInternal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps error codes to HTTP status codes.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case CodeAuthorizationDenied, CodeNotPermittedTool:
		return http.StatusForbidden
	case CodeEntityNotFound:
		return http.StatusNotFound
	case CodeValidationFailed:
		return http.StatusBadRequest
	case CodeMaxRounds:
		return http.StatusUnprocessableEntity
	case CodeDomainConflict:
		return http.StatusConflict
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeRateLimit:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeOracleUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
