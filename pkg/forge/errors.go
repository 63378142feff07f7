package forge

import (
	"errors"
	"fmt"
)

// ErrorKind represents categories of forge errors for handling and retry logic.
type ErrorKind int8

const (
	// KindInvalidReference represents a pull request reference that could not be parsed.
	KindInvalidReference ErrorKind = iota
	// KindNotFound represents a missing repository or pull request (404).
	KindNotFound
	// KindAuth represents authentication or authorization failures (401/403, bad token).
	KindAuth
	// KindTransient represents transient transport errors (5xx, EOF, connection reset, timeout).
	KindTransient
	// KindConflict represents a merge the host refused (405/409, conflicts, branch protection).
	KindConflict
	// KindUnknown represents default for unclassified errors.
	KindUnknown
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidReference:
		return "invalid_reference"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindTransient:
		return "transient"
	case KindConflict:
		return "conflict"
	case KindUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Error represents a classified forge error with HTTP metadata.
type Error struct {
	Err        error     // Wrapped underlying error
	Message    string    // Human-readable error message
	BodyStub   string    // First portion of response body (keeps logs bounded)
	Kind       ErrorKind // Classified error kind
	StatusCode int       // HTTP status code if applicable
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("forge error (%s): %s", e.Kind.String(), e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("forge error (%s): %v", e.Kind.String(), e.Err)
	}
	return fmt.Sprintf("forge error (%s): status %d", e.Kind.String(), e.StatusCode)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns whether this error is worth retrying.
// Only transient transport failures qualify; every other kind is
// deterministic until a human changes something.
func (e *Error) IsRetryable() bool {
	return e.Kind == KindTransient
}

// Helper functions for error classification and checking

// Is checks if an error is of a specific kind.
func Is(err error, kind ErrorKind) bool {
	var forgeErr *Error
	if errors.As(err, &forgeErr) {
		return forgeErr.Kind == kind
	}
	return false
}

// KindOf returns the error kind of an error, or KindUnknown if not classified.
func KindOf(err error) ErrorKind {
	var forgeErr *Error
	if errors.As(err, &forgeErr) {
		return forgeErr.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is a classified transient error.
func IsRetryable(err error) bool {
	var forgeErr *Error
	if errors.As(err, &forgeErr) {
		return forgeErr.IsRetryable()
	}
	return false
}

// NewError creates a new classified forge error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// NewErrorf creates a new classified forge error with a formatted message.
func NewErrorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewErrorWithStatus creates a new classified forge error with HTTP status.
func NewErrorWithStatus(kind ErrorKind, statusCode int, message string) *Error {
	return &Error{
		Kind:       kind,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewErrorWithCause creates a new classified forge error wrapping another error.
func NewErrorWithCause(kind ErrorKind, cause error, message string) *Error {
	return &Error{
		Kind:    kind,
		Err:     cause,
		Message: message,
	}
}
