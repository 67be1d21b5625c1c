// kotatsu/models/errors.go
package models

import (
	"fmt"
	"time"
)

// ValidationError marks malformed or missing input. It is detected before any
// durable write, so a submission rejected with it has no side effects.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// BannedError rejects a submission from an IP with an ACTIVE ban. Distinct
// from ValidationError so callers can render a ban-specific message.
type BannedError struct {
	Reason string
	Until  *time.Time // nil for indefinite bans
}

func (e *BannedError) Error() string {
	if e.Until == nil {
		return fmt.Sprintf("banned: %s", e.Reason)
	}
	return fmt.Sprintf("banned until %s: %s", e.Until.Format(time.RFC3339), e.Reason)
}

// NotFoundError marks a board/thread/post/ban reference that does not resolve.
type NotFoundError struct {
	Kind string
	Ref  string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.Ref) }

// ConflictError marks an operation whose precondition no longer holds, such
// as unbanning a non-active ban or double-banning an IP.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// StorageError marks a failed local write or delete of attachment data.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// RemoteStorageError marks a failed upload or delete against the remote
// object store.
type RemoteStorageError struct {
	Op  string
	Err error
}

func (e *RemoteStorageError) Error() string { return fmt.Sprintf("remote storage: %s: %v", e.Op, e.Err) }
func (e *RemoteStorageError) Unwrap() error { return e.Err }

// UnsupportedFormatError marks an attachment whose source cannot be decoded
// for thumbnailing.
type UnsupportedFormatError struct {
	ContentType string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format: %s", e.ContentType)
}
