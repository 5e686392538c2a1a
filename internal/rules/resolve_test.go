package rules

import (
	"testing"
)

func TestResolveBindsLockTargetsByID(t *testing.T) {
	a := NewRule("A", 0, false, Fixed{Bounds: Unbounded}, nil)
	b := NewRule("B", 0, false, Fixed{Bounds: Unbounded}, nil)

	pending := []UnresolvedLock{
		{Owner: a, Outcome: Higher, TargetID: "B", Lock: true},
	}
	if err := Resolve([]*Rule{a, b}, pending); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(a.locks[int(Higher)]) != 1 || a.locks[int(Higher)][0].Target != b {
		t.Errorf("a.locks[Higher] = %v, want one lock targeting b", a.locks[int(Higher)])
	}
}

func TestResolveUnknownIDErrors(t *testing.T) {
	a := NewRule("A", 0, false, Fixed{Bounds: Unbounded}, nil)
	pending := []UnresolvedLock{{Owner: a, Outcome: Higher, TargetID: "missing", Lock: true}}
	if err := Resolve([]*Rule{a}, pending); err == nil {
		t.Fatalf("Resolve: want error for unresolved rule id")
	}
}

func TestResolveAllowsCycles(t *testing.T) {
	a := NewRule("A", 0, false, Fixed{Bounds: Unbounded}, nil)
	b := NewRule("B", 0, false, Fixed{Bounds: Unbounded}, nil)
	pending := []UnresolvedLock{
		{Owner: a, Outcome: Higher, TargetID: "B", Lock: true},
		{Owner: b, Outcome: Higher, TargetID: "A", Lock: true},
	}
	if err := Resolve([]*Rule{a, b}, pending); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
}
