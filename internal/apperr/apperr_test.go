package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	if KindOf(New(NotFound, "gone")) != NotFound {
		t.Fatal("direct kind not extracted")
	}
	wrapped := fmt.Errorf("outer: %w", New(Forbidden, "nope"))
	if KindOf(wrapped) != Forbidden {
		t.Fatal("kind not extracted through wrapping")
	}
	if KindOf(errors.New("plain")) != Internal {
		t.Fatal("plain errors default to internal")
	}
	if KindOf(nil) != Internal {
		t.Fatal("nil defaults to internal")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(Internal, "write part", cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause not reachable via errors.Is")
	}
	if err.Error() != "write part: disk full" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{Validation, http.StatusBadRequest},
		{Unauthorized, http.StatusUnauthorized},
		{Forbidden, http.StatusForbidden},
		{NotFound, http.StatusNotFound},
		{Expired, http.StatusGone},
		{Conflict, http.StatusConflict},
		{PolicyRejected, http.StatusTooManyRequests},
		{Internal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(New(tc.kind, "x")); got != tc.want {
			t.Fatalf("kind %d: expected %d, got %d", tc.kind, tc.want, got)
		}
	}
	if HTTPStatus(errors.New("plain")) != http.StatusInternalServerError {
		t.Fatal("unclassified errors map to 500")
	}
}
