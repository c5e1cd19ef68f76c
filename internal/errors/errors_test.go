package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	e := New(CategoryDispatch, SeverityError, "workflow trigger rejected")
	if !strings.Contains(e.Error(), "dispatch") {
		t.Fatalf("expected category in message, got %q", e.Error())
	}
	if !strings.Contains(e.Error(), "workflow trigger rejected") {
		t.Fatalf("expected message text, got %q", e.Error())
	}

	wrapped := Wrap(fmt.Errorf("connection refused"), CategoryNetwork, SeverityError, "poll failed")
	if !strings.Contains(wrapped.Error(), "connection refused") {
		t.Fatalf("expected cause in message, got %q", wrapped.Error())
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	e := Wrap(cause, CategoryInternal, SeverityError, "wrapped")
	if !stderrors.Is(e, cause) {
		t.Fatal("expected errors.Is to find cause through Unwrap")
	}
}

func TestCategoryDetection(t *testing.T) {
	e := ToolchainUnavailable("tinygo not on PATH")
	if !IsCategory(e, CategoryToolchain) {
		t.Fatal("expected toolchain category")
	}
	if IsCategory(e, CategoryDispatch) {
		t.Fatal("did not expect dispatch category")
	}

	// Detection must work through wrapping with %w.
	outer := fmt.Errorf("local build: %w", e)
	if !IsCategory(outer, CategoryToolchain) {
		t.Fatal("expected category detection through wrapped error")
	}
	if GetCategory(outer) != CategoryToolchain {
		t.Fatalf("expected toolchain, got %s", GetCategory(outer))
	}
}

func TestGetCategoryFallback(t *testing.T) {
	if got := GetCategory(fmt.Errorf("plain")); got != CategoryInternal {
		t.Fatalf("expected internal fallback, got %s", got)
	}
}

func TestRetryable(t *testing.T) {
	transient := WrapRetryable(fmt.Errorf("i/o timeout"), CategoryNetwork, SeverityWarning, "status fetch failed")
	if !IsRetryable(transient) {
		t.Fatal("expected retryable")
	}
	if IsRetryable(DispatchError("missing credentials")) {
		t.Fatal("dispatch errors are terminal, not retryable")
	}
}

func TestWithContext(t *testing.T) {
	e := NotFound("job").WithContext("job_id", "compile-1-ab")
	if e.Context["job_id"] != "compile-1-ab" {
		t.Fatalf("expected context value, got %v", e.Context)
	}
	if e.Context["resource"] != "job" {
		t.Fatalf("expected resource context from constructor, got %v", e.Context)
	}
}
