package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNew_Operational(t *testing.T) {
	err := New(http.StatusBadRequest, "bad input")
	if !err.Operational {
		t.Error("New should produce operational errors")
	}
	if err.Status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", err.Status)
	}
	if err.Error() != "bad input" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(http.StatusInternalServerError, "email failed", cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped error should match its cause via errors.Is")
	}
	// 对外消息不含底层原因，但 Error() 含（只进日志）
	if err.Message != "email failed" {
		t.Errorf("unexpected client message: %q", err.Message)
	}
	if err.Error() == err.Message {
		t.Error("Error() should include the cause for logging")
	}
}

func TestAsError(t *testing.T) {
	base := New(http.StatusNotFound, "missing")
	wrapped := fmt.Errorf("handler: %w", base)

	appErr, ok := AsError(wrapped)
	if !ok {
		t.Fatal("expected AsError to find *Error through wrapping")
	}
	if appErr.Status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", appErr.Status)
	}

	if _, ok := AsError(errors.New("plain")); ok {
		t.Error("plain errors must not be treated as operational")
	}
}

func TestSentinels(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
	}{
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrWrongPassword, http.StatusUnauthorized},
		{ErrUnauthenticated, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrResetTokenInvalid, http.StatusBadRequest},
		{ErrEmailNotFound, http.StatusNotFound},
		{ErrEmailDelivery, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if tc.err.Status != tc.status {
			t.Errorf("%q: expected status %d, got %d", tc.err.Message, tc.status, tc.err.Status)
		}
		if !tc.err.Operational {
			t.Errorf("%q: sentinel errors must be operational", tc.err.Message)
		}
	}
}
