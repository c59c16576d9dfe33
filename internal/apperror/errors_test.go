package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestSafeCode_UnwrapsWrappedAppError(t *testing.T) {
	err := fmt.Errorf("storing file: %w", NewTooLarge("file too large"))
	if got := SafeCode(err); got != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", got)
	}
	if got := SafeMessage(err); got != "file too large" {
		t.Errorf("expected message to survive wrapping, got %q", got)
	}
}

func TestSafeCode_PlainErrorIsInternal(t *testing.T) {
	err := errors.New("dial tcp: connection refused")
	if got := SafeCode(err); got != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", got)
	}
	if got := SafeMessage(err); got == err.Error() {
		t.Error("raw error text must not be exposed")
	}
}

func TestNewInternal_KeepsCauseForLogging(t *testing.T) {
	cause := errors.New("deadlock")
	err := NewInternal(cause)
	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
	if err.Message == cause.Error() {
		t.Error("client message must be generic")
	}
}
