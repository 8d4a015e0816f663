package session

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsValidation(t *testing.T) {
	t.Parallel()

	ve := &ValidationError{Field: "role", Reason: "must be user or assistant"}
	if !IsValidation(ve) {
		t.Error("expected true for ValidationError")
	}
	if !IsValidation(fmt.Errorf("wrapped: %w", ve)) {
		t.Error("expected true for wrapped ValidationError")
	}
	if IsValidation(errors.New("plain")) {
		t.Error("expected false for plain error")
	}
	if IsValidation(nil) {
		t.Error("expected false for nil")
	}
}

func TestIsTransient_TypedError(t *testing.T) {
	t.Parallel()

	te := &TransientError{Op: "Get", Err: errors.New("boom")}
	if !IsTransient(te) {
		t.Error("expected true for TransientError")
	}
	if !IsTransient(fmt.Errorf("wrapped: %w", te)) {
		t.Error("expected true for wrapped TransientError")
	}
}

func TestIsTransient_MessageSignatures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("store process reset while handling request"), true},
		{errors.New("the deployed code was updated, restart the call"), true},
		{errors.New("read tcp: connection reset by peer"), true},
		{errors.New("FATAL: terminating connection due to administrator command"), true},
		{errors.New("invalid sessionId"), false},
		{errors.New("context deadline exceeded"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("socket closed")
	te := &TransientError{Op: "AppendMessage", Err: cause}
	if !errors.Is(te, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
}
