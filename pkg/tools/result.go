package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	kerrors "github.com/jllopis/campusdesk/pkg/errors"
	"github.com/jllopis/campusdesk/pkg/resolver"
	"github.com/jllopis/campusdesk/pkg/store"
)

// Status is the outcome of a tool call as the oracle sees it.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Result is the single value every tool call produces. Failures are
// ordinary values; handlers never return Go errors to the dispatcher.
type Result struct {
	Status  Status
	Code    kerrors.ErrorCode
	Message string
	Data    any

	cause error
}

// OK is a successful result carrying data.
func OK(data any) Result {
	return Result{Status: StatusSuccess, Data: data}
}

// Done is a successful result carrying a message and optional data.
func Done(message string, data any) Result {
	return Result{Status: StatusSuccess, Message: message, Data: data}
}

// Failed is a failed result with a code and user-facing message.
func Failed(code kerrors.ErrorCode, message string) Result {
	return Result{Status: StatusFailed, Code: code, Message: message}
}

// IsFailed reports whether the call failed.
func (r Result) IsFailed() bool { return r.Status == StatusFailed }

// Cause returns the underlying error for logging, if any. It is never
// rendered to the oracle.
func (r Result) Cause() error { return r.cause }

// MarshalJSON renders the result as the oracle sees it:
// {"message": ..., "status": ...} with "data" on success.
func (r Result) MarshalJSON() ([]byte, error) {
	out := struct {
		Message string `json:"message,omitempty"`
		Status  Status `json:"status"`
		Data    any    `json:"data,omitempty"`
	}{Message: r.Message, Status: r.Status}
	if r.Status == StatusSuccess {
		out.Data = r.Data
	}
	if r.Status == "" {
		out.Status = StatusFailed
	}
	return json.Marshal(out)
}

// Render returns the JSON text handed back to the oracle.
func (r Result) Render() string {
	b, err := json.Marshal(r)
	if err != nil {
		return `{"message":"result could not be rendered","status":"failed"}`
	}
	return string(b)
}

// FromError converts a resolver, store or typed error into a failed
// result. kind labels messages for store sentinels.
func FromError(kind store.Kind, err error) Result {
	if err == nil {
		return Result{Status: StatusSuccess}
	}
	var typed *kerrors.Error
	if errors.As(err, &typed) {
		r := Failed(typed.Code, typed.Message)
		r.cause = err
		return r
	}

	var r Result
	label := resolver.EntityLabel(kind)
	var ce *store.ConstraintError
	switch {
	case errors.Is(err, store.ErrNotFound):
		r = Failed(kerrors.CodeEntityNotFound, label+" not found")
	case errors.As(err, &ce) && errors.Is(err, store.ErrConflict):
		if ce.Rule == "reference" {
			r = Failed(kerrors.CodeDomainConflict, label+" references a record that does not exist or is still in use")
		} else {
			r = Failed(kerrors.CodeDomainConflict, fmt.Sprintf("%s with this %s already exists",
				resolver.EntityLabel(ce.Kind), strings.ReplaceAll(ce.Column, "_", " ")))
		}
	case errors.Is(err, store.ErrConflict):
		r = Failed(kerrors.CodeDomainConflict, label+" conflicts with an existing record")
	case errors.As(err, &ce) && errors.Is(err, store.ErrInvalid):
		if ce.Column != "" {
			r = Failed(kerrors.CodeValidationFailed, fmt.Sprintf("Invalid value for %s", strings.ReplaceAll(ce.Column, "_", " ")))
		} else {
			r = Failed(kerrors.CodeValidationFailed, "Invalid "+string(kind)+" values")
		}
	case errors.Is(err, store.ErrInvalid):
		r = Failed(kerrors.CodeValidationFailed, invalidMessage(err))
	default:
		r = Failed(kerrors.CodeInternal, "The request could not be completed")
	}
	r.cause = err
	return r
}

// invalidMessage strips the sentinel prefix from store validation errors.
func invalidMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, store.ErrInvalid.Error()+": "); i >= 0 {
		msg = msg[i+len(store.ErrInvalid.Error())+2:]
	}
	if msg == "" {
		return "Invalid input"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
