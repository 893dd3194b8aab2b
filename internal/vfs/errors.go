// Package vfs provides the virtual store and the resource loaders built on it.
//
// This file contains error types and error handling utilities.
package vfs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMode indicates an open mode other than read-only text or binary
	ErrInvalidMode = errors.New("invalid open mode")

	// ErrReadOnly indicates attempt to modify the read-only store
	ErrReadOnly = errors.New("filesystem is read-only")
)

// Error wraps loader errors with context about the operation and affected
// path.
type Error struct {
	Op   string // Operation that failed (e.g., "open", "stat")
	Path string // Affected path
	Err  error  // Underlying error
}

// Error implements the error interface, providing a formatted error message
func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("operation %s on %s failed: %v", e.Op, e.Path, e.Err)
}

// Unwrap implements error unwrapping for the errors.Is/As functions
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given operation, path, and underlying error
func NewError(op string, path string, err error) *Error {
	return &Error{
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// Common operation names for consistent logging and error reporting
const (
	OpOpen     = "open"     // Opening a file
	OpRead     = "read"     // Reading a whole file
	OpStat     = "stat"     // Getting file attributes
	OpLookup   = "lookup"   // Looking up a path
	OpReadDir  = "readdir"  // Reading directory contents
	OpMutation = "mutation" // Any write to the read-only tree
)
