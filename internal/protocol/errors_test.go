package protocol

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrBadRequest,
		ErrNoPermission,
		ErrConflict,
		ErrLimit,
		ErrCooldown,
		ErrNotFound,
		ErrNoFunds,
		ErrTimeout,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestCodeOfWrapped(t *testing.T) {
	sentinel := New(ErrConflict, "already_claimed")
	wrapped := fmt.Errorf("claim world:0,0: %w", sentinel)
	if got := CodeOf(wrapped); got != ErrConflict {
		t.Fatalf("code: got %q", got)
	}
	if got := KeyOf(wrapped); got != "already_claimed" {
		t.Fatalf("key: got %q", got)
	}
	if !errors.Is(wrapped, sentinel) {
		t.Fatalf("expected errors.Is to match sentinel")
	}
	if got := CodeOf(errors.New("disk full")); got != ErrInternal {
		t.Fatalf("plain error code: got %q", got)
	}
	if got := CodeOf(nil); got != "" {
		t.Fatalf("nil code: got %q", got)
	}
}
