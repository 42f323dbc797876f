package testutil

import (
	"errors"
	"testing"

	apperrors "pocketbook/internal/errors"
)

// appError unwraps err into an *AppError or fails the test.
func appError(t *testing.T, err error) *apperrors.AppError {
	t.Helper()

	if err == nil {
		t.Fatal("expected an AppError, got nil")
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}
	return appErr
}

// AssertAppError checks that err is an *AppError with the expected error code.
func AssertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()

	if got := appError(t, err); got.Code != expectedCode {
		t.Errorf("error code = %q, want %q (message: %s)", got.Code, expectedCode, got.Message)
	}
}

// AssertSentinel checks that err renders like want: same code and same HTTP
// status. The message may differ, since WithMessage narrows it.
func AssertSentinel(t *testing.T, err error, want *apperrors.AppError) {
	t.Helper()

	got := appError(t, err)
	if got.Code != want.Code || got.StatusCode != want.StatusCode {
		t.Errorf("error = %s/%d, want %s/%d", got.Code, got.StatusCode, want.Code, want.StatusCode)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
