package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromKeepsAppErrors(t *testing.T) {
	v := Validation("missing fields", map[string]string{"doctor": "required"})
	wrapped := fmt.Errorf("book: %w", v)
	got := From(wrapped)
	if got != v {
		t.Fatalf("expected the original AppError, got %+v", got)
	}
	if got.HTTPStatus != http.StatusBadRequest || !errors.Is(got, ErrValidation) {
		t.Fatalf("unexpected error %+v", got)
	}
}

func TestFromHidesPlainErrors(t *testing.T) {
	cause := errors.New("disk full")
	got := From(cause)
	if got.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("status = %d", got.HTTPStatus)
	}
	if got.Message != "could not complete this action" {
		t.Fatalf("internal detail leaked into message: %q", got.Message)
	}
	if !errors.Is(got, cause) || !errors.Is(got, ErrInternal) {
		t.Fatalf("cause not preserved: %v", got)
	}
}

func TestConstructors(t *testing.T) {
	for _, tc := range []struct {
		err    *AppError
		status int
		code   string
	}{
		{BadRequest("bad json"), http.StatusBadRequest, "BAD_REQUEST"},
		{NotFound("option list", "x"), http.StatusNotFound, "NOT_FOUND"},
		{Unavailable("no alerts"), http.StatusServiceUnavailable, "UNAVAILABLE"},
	} {
		if tc.err.HTTPStatus != tc.status || tc.err.Code != tc.code {
			t.Errorf("%s: got %d %s", tc.err.Message, tc.err.HTTPStatus, tc.err.Code)
		}
	}
}
