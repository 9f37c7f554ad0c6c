package fs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code is the taxonomy of errors the VFS core surfaces to callers. Provider
// errors are normalized into one of these at the boundary of each pipeline;
// everything else propagates as-is (see FileOperationError.Unwrap).
type Code string

// The error taxonomy from the service contract.
const (
	CodeFileNotFound           Code = "FILE_NOT_FOUND"
	CodeFileIsDirectory        Code = "FILE_IS_DIRECTORY"
	CodeFileNotDirectory       Code = "FILE_NOT_DIRECTORY"
	CodeFileModifiedSince      Code = "FILE_MODIFIED_SINCE"
	CodeFileMoveConflict       Code = "FILE_MOVE_CONFLICT"
	CodeFileTooLarge           Code = "FILE_TOO_LARGE"
	CodeFileExceedsMemoryLimit Code = "FILE_EXCEEDS_MEMORY_LIMIT"
	CodeFilePermissionDenied   Code = "FILE_PERMISSION_DENIED"
	CodeFileNotModifiedSince   Code = "FILE_NOT_MODIFIED_SINCE"
	CodeFileInvalidPath        Code = "FILE_INVALID_PATH"
	CodeNoProvider             Code = "NoProvider"
	CodeUnknown                Code = "Unknown"
)

// FileOperationError is the tagged error surfaced by every public
// operation. It carries the taxonomy code, the resource the operation
// targeted, a human-readable message, and (optionally) the provider error
// that caused it.
type FileOperationError struct {
	Code     Code
	Resource Resource
	Message  string
	Cause    error
}

// Error implements the error interface. The message always includes the
// human-readable resource form, matching the service contract's stated
// user-visible behavior.
func (e *FileOperationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Code, e.Message, e.Resource.String(), e.Cause)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Resource.String())
}

// Unwrap exposes the provider cause for errors.Is/errors.As.
func (e *FileOperationError) Unwrap() error { return e.Cause }

// NewError builds a FileOperationError.
func NewError(code Code, resource Resource, message string, cause error) *FileOperationError {
	return &FileOperationError{Code: code, Resource: resource, Message: message, Cause: cause}
}

// IsCode reports whether err is a *FileOperationError carrying code.
func IsCode(err error, code Code) bool {
	var foe *FileOperationError
	if errors.As(err, &foe) {
		return foe.Code == code
	}
	return false
}

// ErrFileNotFound is the sentinel cause a Provider implementation should
// wrap (or return directly) to signal that a resource does not exist.
// Pipelines that climb a tree looking for "does this exist" (mkdirp, the
// write pipeline's auto-create) test for this with errors.Is.
var ErrFileNotFound = errors.New("file not found")

// FromProviderError maps a raw provider error into the taxonomy. Providers
// are expected to return ErrFileNotFound (or wrap it) for missing
// resources; a *FileOperationError is returned unchanged; everything else
// is surfaced as CodeUnknown with the original error retained as Cause so
// callers can still inspect it.
func FromProviderError(resource Resource, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrFileNotFound) {
		return NewError(CodeFileNotFound, resource, "file not found", err)
	}
	if foe, ok := err.(*FileOperationError); ok {
		return foe
	}
	return NewError(CodeUnknown, resource, "provider error", err)
}
