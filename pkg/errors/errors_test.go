package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
	}{
		{CodeValidation, http.StatusBadRequest, false},
		{CodeCorruptMessage, http.StatusUnprocessableEntity, false},
		{CodeMalformedMessage, http.StatusBadRequest, false},
		{CodeUnresolvedRef, http.StatusNotFound, true},
		{CodeStateConflict, http.StatusUnprocessableEntity, false},
		{CodeDependency, http.StatusServiceUnavailable, true},
		{CodeInternal, http.StatusInternalServerError, true},
	}

	for _, tc := range tests {
		meta := MetadataFor(tc.code)
		if meta.HTTPStatus != tc.status {
			t.Fatalf("%s: expected status %d, got %d", tc.code, tc.status, meta.HTTPStatus)
		}
		if meta.Retryable != tc.retryable {
			t.Fatalf("%s: expected retryable=%v", tc.code, tc.retryable)
		}
	}
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("SOMETHING_ELSE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	err := Wrap(CodeDependency, cause, "save order item")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be found via errors.Is")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("expected %s, got %s", CodeDependency, err.Code())
	}
}

func TestAsFindsTypedErrorInChain(t *testing.T) {
	inner := New(CodeStateConflict, "lock after shipping")
	wrapped := Wrap(CodeDependency, inner, "apply transition")

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	// outermost code wins
	if typed.Code() != CodeDependency {
		t.Fatalf("expected %s, got %s", CodeDependency, typed.Code())
	}
}

func TestIs(t *testing.T) {
	err := New(CodeCorruptMessage, "hash mismatch")
	if !Is(err, CodeCorruptMessage) {
		t.Fatal("expected Is to match code")
	}
	if Is(err, CodeStateConflict) {
		t.Fatal("did not expect Is to match other code")
	}
	if Is(nil, CodeCorruptMessage) {
		t.Fatal("nil error should never match")
	}
}

func TestDumpIncludesChain(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := Wrap(CodeDependency, cause, "ledger lookup")

	dump := Dump(err)
	if dump.Code != CodeDependency {
		t.Fatalf("expected code %s, got %s", CodeDependency, dump.Code)
	}
	if len(dump.Chain) < 2 {
		t.Fatalf("expected chain with cause, got %v", dump.Chain)
	}
}
