package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStorageWrite marks a failed persistence write. Prior state is left intact.
	ErrStorageWrite = errors.New("storage write failed")
)

// InputError reports malformed pipeline input. Index is -1 when the problem
// is not tied to a single element.
type InputError struct {
	Field  string
	Index  int
	Reason string
}

func NewInputError(field string, index int, format string, args ...any) *InputError {
	return &InputError{Field: field, Index: index, Reason: fmt.Sprintf(format, args...)}
}

func (e *InputError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Index >= 0 {
		return fmt.Sprintf("invalid %s[%d]: %s", e.Field, e.Index, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InputError) Is(target error) bool { return target == ErrInvalidArgument }

// StorageError wraps a backend failure raised while writing a meeting.
type StorageError struct {
	Op    string
	ID    string
	Cause error
}

func (e *StorageError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s meeting %s: %v", e.Op, e.ID, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

func (e *StorageError) Is(target error) bool { return target == ErrStorageWrite }

// IsInput reports whether err is (or wraps) an InputError.
func IsInput(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
