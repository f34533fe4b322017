// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for pingpong-ws.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrTransportClosed = errors.New("transport is closed")
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrorCode classifies a failure the way the connection owner observes it.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeHandshakeRejected
	ErrCodeDecodeFailure
	ErrCodeTransport
	ErrCodeEncodeFailure
	ErrCodeInvalidArgument
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeHandshakeRejected:
		return "handshake-rejected"
	case ErrCodeDecodeFailure:
		return "decode-failure"
	case ErrCodeTransport:
		return "transport"
	case ErrCodeEncodeFailure:
		return "encode-failure"
	case ErrCodeInvalidArgument:
		return "invalid-argument"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the wrapped cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// Wrap creates a structured error around err.
func Wrap(code ErrorCode, err error) *Error {
	return &Error{
		Code:    code,
		Context: make(map[string]any),
		Err:     err,
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

// CodeOf returns the ErrorCode carried by err, or ErrCodeOK when err is nil
// and ErrCodeTransport when err carries no code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeTransport
}
