package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestInputErrorMatchesInvalidArgument(t *testing.T) {
	err := fmt.Errorf("align: %w", NewInputError("asr", 3, "start %.1f > end %.1f", 5.0, 2.0))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if !IsInput(err) {
		t.Fatalf("expected IsInput")
	}
	if got, want := NewInputError("asr", 3, "bad").Error(), "invalid asr[3]: bad"; got != want {
		t.Fatalf("Error()=%q want %q", got, want)
	}
	if got, want := NewInputError("title", -1, "empty").Error(), "invalid title: empty"; got != want {
		t.Fatalf("Error()=%q want %q", got, want)
	}
}

func TestStorageErrorUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := &StorageError{Op: "save", ID: "m1", Cause: cause}
	if !errors.Is(err, ErrStorageWrite) {
		t.Fatalf("expected ErrStorageWrite")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to unwrap")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("storage error must not match ErrNotFound")
	}
}
