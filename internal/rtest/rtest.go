// Package rtest provides the small first-party assertion helpers used
// throughout this repository's tests, in place of a testify dependency
// the teacher codebase itself never carries.
package rtest

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Assert fails the test with msg (formatted with args) if cond is false.
func Assert(t testing.TB, cond bool, msg string, args ...interface{}) {
	t.Helper()
	if !cond {
		t.Fatalf(msg, args...)
	}
}

// Equals fails the test if want and got are not deeply equal, reporting
// a cmp.Diff rather than a bare %v pair so a mismatch in a long
// []chunkid.ID/[]IdxSize slice points at the differing elements instead
// of dumping both slices in full.
func Equals(t testing.TB, want, got interface{}) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

// OK fails the test if err is non-nil.
func OK(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
