package main

import (
	"errors"
	"fmt"
	"io"

	kerrors "github.com/jllopis/campusdesk/pkg/errors"
)

// cliError pairs a coded error with a hint for the operator.
type cliError struct {
	err  *kerrors.Error
	Hint string
}

func (e *cliError) Error() string {
	msg := e.err.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

func (e *cliError) Unwrap() error { return e.err }

// Code returns the error code.
func (e *cliError) Code() kerrors.ErrorCode { return e.err.Code }

func configError(err error, hint string) *cliError {
	return &cliError{err: kerrors.New(kerrors.CodeValidationFailed, "invalid configuration", err), Hint: hint}
}

func startupError(component string, err error, hint string) *cliError {
	ke := kerrors.New(kerrors.CodeInternal, component+" failed to start", err).
		WithContext("component", component)
	return &cliError{err: ke, Hint: hint}
}

func usageError(msg, hint string) *cliError {
	return &cliError{err: kerrors.New(kerrors.CodeValidationFailed, msg, nil), Hint: hint}
}

func turnError(code kerrors.ErrorCode, msg string) *cliError {
	return &cliError{err: kerrors.New(code, msg, nil)}
}

func printError(w io.Writer, err error) {
	var ce *cliError
	if !errors.As(err, &ce) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Error [%s]: %s\n", ce.err.Code, ce.err.Message)
	if ce.err.Err != nil {
		fmt.Fprintf(w, "  Cause: %v\n", ce.err.Err)
	}
	if ce.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", ce.Hint)
	}
}
