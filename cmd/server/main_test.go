package main

import (
	"testing"

	"peaceclaims.dev/internal/persistence/store"
)

func TestOpenBackend(t *testing.T) {
	b, err := openBackend("memory", t.TempDir())
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := b.(*store.Memory); !ok {
		t.Fatalf("memory backend has type %T", b)
	}

	b, err = openBackend("", t.TempDir())
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	_ = b.Close()

	if _, err := openBackend("postgres", t.TempDir()); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("PEACECLAIMS_TEST_BOOL", "yes-ish")
	if !envBool("PEACECLAIMS_TEST_BOOL", true) {
		t.Fatalf("unparsable bool should fall back to the default")
	}
	t.Setenv("PEACECLAIMS_TEST_BOOL", "false")
	if envBool("PEACECLAIMS_TEST_BOOL", true) {
		t.Fatalf("explicit false ignored")
	}
	t.Setenv("PEACECLAIMS_TEST_STR", "  :9000 ")
	if got := envString("PEACECLAIMS_TEST_STR", ":8080"); got != ":9000" {
		t.Fatalf("envString = %q", got)
	}
	if got := envString("PEACECLAIMS_TEST_UNSET", "dflt"); got != "dflt" {
		t.Fatalf("envString default = %q", got)
	}
}
