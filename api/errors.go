// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for coreparker.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the module.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotSupported    = errors.New("operation not supported on this platform")
	ErrTargetNotFound  = errors.New("target process not found")
	ErrTargetExited    = errors.New("target process has exited")
)

// ErrorCode represents specific error conditions reported by platform calls.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeNotSupported
	ErrCodeNotFound
	ErrCodeAccessDenied
	ErrCodeInternal
)

// String returns the short name of the code.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeNotSupported:
		return "not_supported"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeAccessDenied:
		return "access_denied"
	default:
		return "internal"
	}
}

// Error represents a structured error with code, context and an optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if len(e.Context) > 0 {
		msg = fmt.Sprintf("%s (context: %+v)", msg, e.Context)
	}
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithCause attaches the underlying OS error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// CodeOf extracts the ErrorCode carried by err, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	switch {
	case errors.Is(err, ErrTargetNotFound), errors.Is(err, ErrTargetExited):
		return ErrCodeNotFound
	case errors.Is(err, ErrNotSupported):
		return ErrCodeNotSupported
	case errors.Is(err, ErrInvalidArgument):
		return ErrCodeInvalidArgument
	}
	return ErrCodeInternal
}
