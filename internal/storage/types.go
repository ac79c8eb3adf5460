package storage

import "time"

// Common storage errors
var (
	ErrObjectNotFound = NewError("ObjectNotFound", "The specified object does not exist")
	ErrInvalidPath    = NewError("InvalidPath", "The specified path is invalid")
)

// ObjectInfo represents information about a cached file
type ObjectInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// Version returns the cache-busting token for the file: its
// modification time in Unix seconds.
func (o ObjectInfo) Version() int64 {
	return o.LastModified.Unix()
}

// StorageError represents a storage-specific error
type StorageError struct {
	Code    string
	Message string
	Cause   error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause to errors.Is and errors.As
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewError creates a new storage error
func NewError(code, message string) *StorageError {
	return &StorageError{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new storage error with underlying cause
func NewErrorWithCause(code, message string, cause error) *StorageError {
	return &StorageError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
