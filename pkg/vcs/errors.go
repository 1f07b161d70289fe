package vcs

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors shared by the engines.
var (
	// ErrChecksumMismatch means content read back did not hash to the expected checksum.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrCorruptMetadata means the working-copy metadata points at content that is missing.
	ErrCorruptMetadata = errors.New("corrupt working copy metadata")
	// ErrCancelled is returned when the caller cancelled the operation.
	ErrCancelled = errors.New("operation cancelled")
	// ErrPathNotFound means the node does not exist where it was looked up.
	ErrPathNotFound = errors.New("path not found")
	// ErrInvalidDepth is returned for unknown depth spellings.
	ErrInvalidDepth = errors.New("invalid depth")
	// ErrChecksumLength is returned when a hex checksum has the wrong size.
	ErrChecksumLength = errors.New("checksum has wrong length")
	// ErrInvalidLocation is returned for malformed path@rev text.
	ErrInvalidLocation = errors.New("invalid location")
)

// ChecksumMismatchError reports content that did not match its checksum.
type ChecksumMismatchError struct {
	Path     string
	Expected Checksum
	Actual   Checksum
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for '%s': expected %s, actual %s", e.Path, e.Expected, e.Actual)
}

// Is matches ErrChecksumMismatch.
func (e *ChecksumMismatchError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

// NewChecksumMismatchError creates a ChecksumMismatchError.
func NewChecksumMismatchError(path string, expected, actual Checksum) *ChecksumMismatchError {
	return &ChecksumMismatchError{Path: path, Expected: expected, Actual: actual}
}

// CheckCancelled returns an ErrCancelled wrapper when ctx is done.
func CheckCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	return nil
}
