package chaterr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := PermissionDenied("nope")
	if KindOf(err) != KindPermissionDenied {
		t.Fatalf("unexpected kind: %s", KindOf(err))
	}
	// survives wrapping
	wrapped := fmt.Errorf("handler: %w", err)
	if KindOf(wrapped) != KindPermissionDenied {
		t.Fatalf("kind lost through wrapping")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("plain errors must have no kind")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{PermissionDenied("x"), http.StatusForbidden},
		{InvalidArgument("x"), http.StatusBadRequest},
		{NotFound("x"), http.StatusNotFound},
		{Conflict("x"), http.StatusConflict},
		{NotSupported("x"), http.StatusMethodNotAllowed},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.err); got != c.want {
			t.Fatalf("status for %v: got %d want %d", c.err, got, c.want)
		}
	}
}

func TestWithInfo(t *testing.T) {
	err := Conflict("exists").WithInfo("conversation_id", "c1")
	if err.Info["conversation_id"] != "c1" {
		t.Fatalf("info not recorded: %+v", err.Info)
	}
	if err.Error() != "exists" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
