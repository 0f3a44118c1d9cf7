package main

import (
	"path/filepath"
	"testing"

	"grindstone/internal/harness"
)

// TestResolve_JoinsRelativePathsToRepo verifies state-path resolution.
func TestResolve_JoinsRelativePathsToRepo(t *testing.T) {
	if got := resolve("/repo", "manifest.yaml"); got != filepath.Join("/repo", "manifest.yaml") {
		t.Errorf("Unexpected resolved path: %s", got)
	}
	if got := resolve("/repo", "/elsewhere/manifest.yaml"); got != "/elsewhere/manifest.yaml" {
		t.Errorf("Absolute path must pass through: %s", got)
	}
}

// TestJoinMax_ElidesLongLists verifies the remaining-task formatting in the
// final report.
func TestJoinMax_ElidesLongLists(t *testing.T) {
	if got := joinMax([]string{"a", "b"}, 3); got != "a, b" {
		t.Errorf("Short list mangled: %q", got)
	}
	if got := joinMax([]string{"a", "b", "c", "d"}, 2); got != "a, b, ... 2 more" {
		t.Errorf("Long list not elided: %q", got)
	}
}

// TestExitCodeFor verifies each terminal reason maps to its documented exit
// code: 0 exhausted, 2 cap reached, 3 stalled.
func TestExitCodeFor(t *testing.T) {
	cases := map[string]int{
		harness.ReasonExhausted:  0,
		harness.ReasonCapReached: 2,
		harness.ReasonStalled:    3,
	}

	for reason, want := range cases {
		got, ok := exitCodeFor(reason)
		if !ok {
			t.Errorf("Reason %q not recognized", reason)
			continue
		}
		if got != want {
			t.Errorf("Reason %q mapped to %d, want %d", reason, got, want)
		}
	}

	if _, ok := exitCodeFor("confused"); ok {
		t.Error("Unknown reason must not map to a code")
	}
}
