// Package apperr defines the errors the library services return to callers.
// Flat conditions are sentinels; conditions that carry data are struct types.
// Match them with errors.Is and errors.As.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned by login when the user is unknown or the password is wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrAuthRequired is returned by guarded operations when no session is active.
	ErrAuthRequired = errors.New("login required")
	// ErrNotFound is returned when a requested artifact does not exist.
	ErrNotFound = errors.New("not found")
)

// ConflictError reports a uniqueness violation on a single field.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already taken", e.Field)
}

// ValidationError reports malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Invalid is shorthand for a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// UnsupportedFileTypeError reports an upload whose extension is not allowed.
type UnsupportedFileTypeError struct {
	Ext string
}

func (e *UnsupportedFileTypeError) Error() string {
	if e.Ext == "" {
		return "file has no extension"
	}
	return fmt.Sprintf("file type %q not allowed", e.Ext)
}

// IsConflict reports whether err is a *ConflictError and returns the field.
func IsConflict(err error) (string, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Field, true
	}
	return "", false
}
