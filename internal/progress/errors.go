package progress

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when a required identifier is missing
	// or empty. Nothing is read or written when it is returned.
	ErrInvalidArgument = errors.New("progress: invalid argument")

	// ErrNotFound is returned when an operation requires an existing record
	// and none is stored for the (userID, moduleID) key.
	ErrNotFound = errors.New("progress: record not found")

	// ErrStorageUnavailable is returned when the store's load or save
	// failed. The engine does not retry; that is the caller's call.
	ErrStorageUnavailable = errors.New("progress: storage unavailable")
)

// MalformedRecordError is returned when a stored document could not be
// normalized into a usable record. The raw document is carried along so a
// learner's data is surfaced rather than discarded.
type MalformedRecordError struct {
	UserID   string
	ModuleID string
	Raw      []byte
	Reason   string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("progress: malformed record for user=%s module=%s: %s", e.UserID, e.ModuleID, e.Reason)
}

// storageErr wraps a store failure with the ErrStorageUnavailable sentinel
// while preserving the underlying error for errors.Is/As.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

// invalidArg builds an ErrInvalidArgument naming the offending field.
func invalidArg(field string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidArgument, field)
}
