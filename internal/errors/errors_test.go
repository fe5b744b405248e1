package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestAppErrorMessage(t *testing.T) {
	err := New(ErrNotFound, "poi missing")
	want := "[NOT_FOUND] poi missing"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	wrapped := Wrap(ErrTransport, "push failed", stderrors.New("connection refused"))
	want = "[TRANSPORT_ERROR] push failed: connection refused"
	if wrapped.Error() != want {
		t.Errorf("Error() = %q, want %q", wrapped.Error(), want)
	}
}

func TestIsMatchesThroughWrapping(t *testing.T) {
	inner := Wrap(ErrTransport, "timeout", stderrors.New("deadline exceeded"))
	outer := fmt.Errorf("sync run: %w", inner)

	if !Is(outer, ErrTransport) {
		t.Error("Is should match a wrapped AppError code")
	}
	if Is(outer, ErrNotFound) {
		t.Error("Is matched the wrong code")
	}
	if Is(stderrors.New("plain"), ErrTransport) {
		t.Error("Is matched a non-AppError")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(ErrOffline, "no network")); got != ErrOffline {
		t.Errorf("CodeOf = %s", got)
	}
	if got := CodeOf(stderrors.New("plain")); got != ErrInternal {
		t.Errorf("CodeOf fallback = %s", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(ErrDatabase, "write failed", cause)
	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
}
