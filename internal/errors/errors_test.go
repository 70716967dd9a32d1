package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := New(ErrCategoryStore, CodeStoreUnavailable, "open failed")
	expected := "[STORE:STORE_UNAVAILABLE] open failed"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewSinkError("insert failed", cause)
	expected := "[SINK:SINK_REJECTED] insert failed: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := NewStoreError(CodeStoreUnavailable, "reopen", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestError_Is(t *testing.T) {
	err1 := NewProjectionError(CodeMalformedFacet, "doc 1", nil)
	err2 := NewProjectionError(CodeMalformedFacet, "doc 2", nil)
	err3 := NewProjectionError(CodeMalformedTimestamp, "doc 3", nil)

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
	if !errors.Is(err1, ErrMalformedFacet) {
		t.Error("expected match against sentinel")
	}
}

func TestError_IsThroughWrapping(t *testing.T) {
	inner := NewStoreError(CodeStoreUnavailable, "open", errors.New("no such file"))
	wrapped := fmt.Errorf("retrieval: %w", inner)

	if !errors.Is(wrapped, ErrStoreUnavailable) {
		t.Error("expected wrapped error to match sentinel")
	}
	if GetCategory(wrapped) != ErrCategoryStore {
		t.Errorf("expected STORE category, got %s", GetCategory(wrapped))
	}
	if GetCode(wrapped) != CodeStoreUnavailable {
		t.Errorf("expected STORE_UNAVAILABLE, got %s", GetCode(wrapped))
	}
}

func TestGetCategory_NonStructured(t *testing.T) {
	err := fmt.Errorf("plain error")
	if GetCategory(err) != "" {
		t.Error("expected empty category for plain error")
	}
	if GetCode(err) != "" {
		t.Error("expected empty code for plain error")
	}
}

func TestIsRecordLevel(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrMalformedFacet, true},
		{ErrMalformedTimestamp, true},
		{fmt.Errorf("row 3: %w", ErrSinkRejected), true},
		{ErrStoreUnavailable, false},
		{ErrInvalidCriteria, false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := IsRecordLevel(tt.err); got != tt.want {
			t.Errorf("IsRecordLevel(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestWithDetails(t *testing.T) {
	original := NewProjectionError(CodeMalformedFacet, "bad facet", nil)
	detailed := original.WithDetails(map[string]interface{}{"doc_id": 42})

	if original.Details != nil {
		t.Error("WithDetails should not modify the original")
	}
	if detailed.Details["doc_id"] != 42 {
		t.Error("expected details on copy")
	}
	if !errors.Is(detailed, original) {
		t.Error("detailed copy should still match original")
	}
}
