// Package errors provides structured error types for the busweaver engine.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the library, CLI and API
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Topology mutations fail with one of the engine codes:
//   - ALREADY_EXISTS: an entity with the same identity already exists
//     (second channel on a CAN cluster, duplicate VLAN, duplicate connector)
//   - OVERLAP: a bit-layout collision, including out-of-bounds placements
//   - INVALID_PARAMETER: a structurally invalid request (byte-order mismatch,
//     ungrouped signal mapped before its group, ill-formed transformation chain)
//   - NOT_CONNECTED: a port was requested for an ECU with no connector on the channel
//   - CONVERSION_ERROR: an entity was expected to be one kind but is another
//
// The remaining codes cover the tooling around the engine (manifests,
// rendering, storage, transport).
//
// # Usage
//
//	err := errors.New(errors.ErrCodeOverlap, "signal %s overlaps existing mapping", name)
//	if errors.Is(err, errors.ErrCodeOverlap) {
//	    // Handle layout collision
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInvalidManifest, origErr, "decode %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Engine errors
	ErrCodeAlreadyExists    Code = "ALREADY_EXISTS"
	ErrCodeOverlap          Code = "OVERLAP"
	ErrCodeInvalidParameter Code = "INVALID_PARAMETER"
	ErrCodeNotConnected     Code = "NOT_CONNECTED"
	ErrCodeConversion       Code = "CONVERSION_ERROR"

	// Input validation errors
	ErrCodeInvalidName     Code = "INVALID_NAME"
	ErrCodeInvalidManifest Code = "INVALID_MANIFEST"
	ErrCodeInvalidFormat   Code = "INVALID_FORMAT"

	// Resource not found errors
	ErrCodeNotFound         Code = "NOT_FOUND"
	ErrCodeTopologyNotFound Code = "TOPOLOGY_NOT_FOUND"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
