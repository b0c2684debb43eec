// Copyright 2025 SGNL.ai, Inc.

package ldapresult

import (
	"errors"
	"fmt"
)

// Error is an error carrying a result Code, so failure policy can branch on
// the code without losing the underlying cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// NewError creates an Error with the given code and message.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError creates an Error wrapping an underlying cause.
func WrapError(code Code, err error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// AsResult converts the error into a locally-generated Result.
func (e *Error) AsResult() *Result {
	return New(e.Code, WithDiagnosticMessage(e.Error()))
}

// CodeOf extracts the result code from an error, defaulting to LocalError for
// errors with no code attached.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}

	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}

	return LocalError
}
