package apperrors

import "fmt"

// ValidationError is a caller-fixable bad input. Reported verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidation(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// AuthorizationError means the caller lacks the required role for the action.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

func NewAuthorization(format string, args ...any) *AuthorizationError {
	return &AuthorizationError{Message: fmt.Sprintf(format, args...)}
}

// AuthenticationError means the credential is missing or invalid.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string { return e.Message }

// NotFoundError marks a missing resource. "Nothing to finalize" is NOT one of
// these: that path is a normal nil result, not an error.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// MediaUploadError wraps a failure of the external media storage dependency.
type MediaUploadError struct {
	Err error
}

func (e *MediaUploadError) Error() string { return "media upload failed: " + e.Err.Error() }

func (e *MediaUploadError) Unwrap() error { return e.Err }

// PersistenceError wraps a data-store write failure. Op names the operation
// for logs; the cause is kept for unwrapping, never shown to end users.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
