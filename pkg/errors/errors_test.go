package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without cause",
			err:  NotFound("Booking"),
			want: "NOT_FOUND: Booking not found",
		},
		{
			name: "with cause",
			err:  Internal("Failed to save booking", fmt.Errorf("connection reset")),
			want: "INTERNAL_ERROR: Failed to save booking (caused by: connection reset)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConstructorsSetCodeAndStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"not found", NotFoundWithID("Classroom", "abc"), CodeNotFound, http.StatusNotFound},
		{"validation", Validation("bad booking", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"invalid input", InvalidInput("empty id"), CodeInvalidInput, http.StatusBadRequest},
		{"forbidden", Forbidden("not yours"), CodeForbidden, http.StatusForbidden},
		{"conflict", Conflict("slot taken"), CodeConflict, http.StatusConflict},
		{"invalid configuration", InvalidConfiguration("total below booked"), CodeInvalidConfiguration, http.StatusUnprocessableEntity},
		{"consistency", Consistency("ledger drift", nil), CodeConsistency, http.StatusInternalServerError},
		{"unauthorized", Unauthorized("no token"), CodeUnauthorized, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.wantCode)
			}
			if tt.err.StatusCode() != tt.wantStatus {
				t.Errorf("StatusCode() = %d, want %d", tt.err.StatusCode(), tt.wantStatus)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Internal("wrapped", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestAsAppError(t *testing.T) {
	appErr := Conflict("taken")
	if got := AsAppError(appErr); got != appErr {
		t.Error("AsAppError should return the same *AppError unchanged")
	}

	plain := fmt.Errorf("plain")
	got := AsAppError(plain)
	if got.Code != CodeInternal {
		t.Errorf("plain errors should map to %s, got %s", CodeInternal, got.Code)
	}
	if !errors.Is(got, plain) {
		t.Error("converted error should wrap the original")
	}
}

func TestNotFoundWithIDDetails(t *testing.T) {
	err := NotFoundWithID("Booking", "64f0")
	if err.Details["resource"] != "Booking" || err.Details["id"] != "64f0" {
		t.Errorf("unexpected details: %v", err.Details)
	}
}
