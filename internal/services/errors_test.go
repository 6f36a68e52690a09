package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gallery/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "backend", "ingest", "request failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"backend", "ingest", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestClassifyAndRetryable(t *testing.T) {
	deadline := fmt.Errorf("post: %w", context.DeadlineExceeded)
	if marker := services.Classify(deadline); marker != services.ErrTimeout {
		t.Fatalf("expected timeout marker, got %v", marker)
	}
	if marker := services.Classify(errors.New("connection refused")); marker != services.ErrTransient {
		t.Fatalf("expected transient marker, got %v", marker)
	}

	unauthorized := services.Wrap(services.ErrUnauthorized, "backend", "ingest", "bad credentials", nil)
	if services.Retryable(unauthorized) {
		t.Fatal("expected unauthorized failures to be final")
	}
	if !services.Retryable(services.Wrap(services.ErrTimeout, "backend", "ingest", "", nil)) {
		t.Fatal("expected timeout to be retryable")
	}
	if services.Retryable(nil) {
		t.Fatal("nil error is not retryable")
	}
}
