package services_test

import (
	"errors"
	"strings"
	"testing"

	"modelforge/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrModuleFetch, "sandbox", "fetch", "status 404", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrModuleFetch) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"sandbox", "fetch", "status 404"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestKindMapping(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{services.Wrap(services.ErrValidation, "queue", "enqueue", "prompt required", nil), services.KindValidation},
		{services.Wrap(services.ErrNotFound, "queue", "complete", "", nil), services.KindNotFound},
		{services.Wrap(services.ErrCircularModule, "", "", "a.js", nil), services.KindCircularModule},
		{services.Wrap(services.ErrTimeout, "sandbox", "", "", nil), services.KindTimeout},
		{errors.New("plain"), services.KindInternal},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.kind {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.kind)
		}
	}
}

func TestMarkerForKindRoundTrip(t *testing.T) {
	err := services.Wrap(services.MarkerForKind(services.KindEvaluation), "sandbox", "", "boom", nil)
	if !errors.Is(err, services.ErrEvaluation) {
		t.Fatalf("expected evaluation marker, got %v", err)
	}
	if !errors.Is(services.MarkerForKind("bogus"), services.ErrTransient) {
		t.Fatal("expected unknown kinds to map to transient")
	}
}
