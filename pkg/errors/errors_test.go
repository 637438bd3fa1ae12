package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"validation", Validation("title", "required for group conversations"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"wrapped validation", fmt.Errorf("create: %w", Validation("partner", "cannot DM yourself")), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", NotFound("conversation"), http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"conflict", ErrAlreadyExists, http.StatusConflict, "CONFLICT"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Fatalf("HTTPStatus() = %d, want %d", got, tt.want)
			}
			if got := Code(tt.err); got != tt.code {
				t.Fatalf("Code() = %s, want %s", got, tt.code)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := Validation("conversation", "a DM holds at most 2 members")
	if err.Error() != "conversation: a DM holds at most 2 members" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "conversation" {
		t.Fatalf("expected ValidationError with field, got %#v", err)
	}
	if !IsValidation(err) {
		t.Fatal("expected IsValidation to be true")
	}
}
