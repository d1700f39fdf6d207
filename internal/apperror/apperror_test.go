package apperror

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("execution", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("code", "No code provided"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "PathEscape wraps ErrPathEscape",
			err:       PathEscape("../etc/passwd"),
			target:    ErrPathEscape,
			wantMatch: true,
		},
		{
			name:      "wrapped PathEscape still matches",
			err:       fmt.Errorf("staging: %w", PathEscape("../x")),
			target:    ErrPathEscape,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("execution", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "PathEscape does NOT match ErrValidation",
			err:       PathEscape("../x"),
			target:    ErrValidation,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("execution", "abc123"),
			wantMessage: "execution not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("code", "No code provided"),
			wantMessage: "No code provided",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("execution", "abc123")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestPathEscapeDoesNotLeakRoot(t *testing.T) {
	err := PathEscape("../../secret")
	if err.Field != "filename" {
		t.Errorf("Field = %q, want %q", err.Field, "filename")
	}
	if strings.Contains(err.Message, "/tmp") {
		t.Errorf("Message leaks a host path: %q", err.Message)
	}
}
