// Package errs provides the unified error type used across all of bucketfs.
//
// Every subsystem (path resolution, filestore drivers, the tree engine, the
// HTTP facade) wraps its native errors into *errs.Error before returning them
// to callers. Callers use the Is* predicates to handle errors without
// importing driver-specific packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindNotFound, "failed to stat object", minioErr)
//
//	// In a caller, check error kind:
//	if errs.IsNotEmpty(err) {
//	    fmt.Println("directory not empty, use -r")
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing store-specific codes.
// All backends (MinIO, in-memory, …) map their native errors to one of these
// kinds, giving callers a single consistent API.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindInvalidPath              // path string does not fit /bucket/prefix/filename
	ErrKindInvalidOperand           // operation called on the wrong kind of path
	ErrKindNotADirectory            // directory-only operation given a file path
	ErrKindNotEmpty                 // non-recursive delete of a non-empty directory
	ErrKindNotFound                 // no object, no bucket
	ErrKindConnectionFailed         // cannot reach the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindStoreFailed              // storage operation error
	ErrKindPermissionDenied         // access denied / auth failure
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindInvalidPath:
		return "invalid_path"
	case ErrKindInvalidOperand:
		return "invalid_operand"
	case ErrKindNotADirectory:
		return "not_a_directory"
	case ErrKindNotEmpty:
		return "not_empty"
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindStoreFailed:
		return "store_failed"
	case ErrKindPermissionDenied:
		return "permission_denied"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all bucketfs subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a formatted message.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsInvalidPath reports whether err was caused by a malformed path string.
func IsInvalidPath(err error) bool {
	return KindOf(err) == ErrKindInvalidPath
}

// IsInvalidOperand reports whether an operation was called on a path of the
// wrong kind. A NotADirectory error is a more specific invalid operand and
// also satisfies this predicate.
func IsInvalidOperand(err error) bool {
	k := KindOf(err)
	return k == ErrKindInvalidOperand || k == ErrKindNotADirectory
}

// IsNotADirectory reports whether a directory-only operation got a file path.
func IsNotADirectory(err error) bool {
	return KindOf(err) == ErrKindNotADirectory
}

// IsNotEmpty reports whether err is a refused delete of a non-empty directory
// or bucket.
func IsNotEmpty(err error) bool {
	return KindOf(err) == ErrKindNotEmpty
}

// IsNotFound reports whether err represents a missing object or bucket.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsStoreFailed reports whether err is a backend operation failure.
func IsStoreFailed(err error) bool {
	return KindOf(err) == ErrKindStoreFailed
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
