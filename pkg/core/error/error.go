// File: error.go
// Title: Core Error Implementation
// Description: Implements the structured Error type carrying a code, a
//              severity and details. It stays compatible with errors.Is/As
//              and the standard error interface.
// Author: msto63 with Claude
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2025-12-08
//
// Change History:
// - 2025-01-24 v0.1.0: Initial implementation with contextual errors
// - 2025-12-08 v0.2.0: Code sentinels and errors.As based helpers

package error

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error represents a structured error with a code and details
type Error struct {
	message   string
	cause     error
	code      Code
	severity  Severity
	operation string
	details   map[string]interface{}
}

// New creates a new Error with the given message
func New(message string) *Error {
	return &Error{
		message:  message,
		code:     CodeUnknown,
		severity: SeverityMedium,
	}
}

// Newf creates a new Error with a code and a formatted message
func Newf(code Code, format string, args ...interface{}) *Error {
	return New(fmt.Sprintf(format, args...)).WithCode(code)
}

// Wrap wraps an existing error with additional context. The code and
// details of a wrapped *Error are preserved.
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}

	var inner *Error
	if errors.As(err, &inner) {
		wrapped := &Error{
			message:  message,
			cause:    err,
			code:     inner.code,
			severity: inner.severity,
		}
		for k, v := range inner.details {
			wrapped.setDetail(k, v)
		}
		return wrapped
	}

	return &Error{
		message:  message,
		cause:    err,
		code:     CodeUnknown,
		severity: SeverityMedium,
	}
}

// Error implements the standard error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.message, e.cause.Error())
	}
	return e.message
}

// Unwrap returns the underlying cause for error unwrapping
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error sentinel with the same code.
// Sentinels are created with Sentinel and carry no message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.message == "" && t.cause == nil && t.code == e.code
}

// WithCode sets the error code and derives the severity from it
func (e *Error) WithCode(code Code) *Error {
	e.code = code
	e.severity = GetSeverityFromCode(code)
	return e
}

// WithSeverity sets the error severity
func (e *Error) WithSeverity(severity Severity) *Error {
	e.severity = severity
	return e
}

// WithOperation records the operation that failed
func (e *Error) WithOperation(operation string) *Error {
	e.operation = operation
	return e
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	e.setDetail(key, value)
	return e
}

func (e *Error) setDetail(key string, value interface{}) {
	if e.details == nil {
		e.details = make(map[string]interface{})
	}
	e.details[key] = value
}

// Code returns the error code
func (e *Error) Code() Code {
	return e.code
}

// Severity returns the error severity
func (e *Error) Severity() Severity {
	return e.severity
}

// Operation returns the failed operation, if recorded
func (e *Error) Operation() string {
	return e.operation
}

// Details returns a copy of the error details
func (e *Error) Details() map[string]interface{} {
	out := make(map[string]interface{}, len(e.details))
	for k, v := range e.details {
		out[k] = v
	}
	return out
}

// String returns a log-friendly representation including code and details
func (e *Error) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.code, e.Error())
	if e.operation != "" {
		fmt.Fprintf(&b, " (op=%s)", e.operation)
	}
	if len(e.details) > 0 {
		keys := make([]string, 0, len(e.details))
		for k := range e.details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, e.details[k])
		}
	}
	return b.String()
}

// Sentinel returns a message-less error that matches any *Error with the
// same code under errors.Is
func Sentinel(code Code) *Error {
	return &Error{code: code, severity: GetSeverityFromCode(code)}
}

// HasCode checks if an error or any error it wraps has a specific code
func HasCode(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.code == code {
			return true
		}
		err = e.cause
	}
	return false
}

// GetCode returns the code of the outermost *Error, or CodeUnknown
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return CodeUnknown
}

// GetSeverity returns the severity of the outermost *Error, or SeverityMedium
func GetSeverity(err error) Severity {
	var e *Error
	if errors.As(err, &e) {
		return e.severity
	}
	return SeverityMedium
}
