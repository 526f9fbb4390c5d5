package dispatch

import "testing"

func TestAccessSet_Disjoint(t *testing.T) {
	a := AccessSet{Reads: []ResourceID{idFor[int](0)}, Writes: []ResourceID{idFor[string](0)}}
	if !a.disjoint() {
		t.Fatalf("expected disjoint access set to report disjoint")
	}
}

func TestAccessSet_NotDisjoint(t *testing.T) {
	id := idFor[int](0)
	a := AccessSet{Reads: []ResourceID{id}, Writes: []ResourceID{id}}
	if a.disjoint() {
		t.Fatalf("expected overlapping access set to report not disjoint")
	}
}

func TestAccessSet_EmptyIsDisjoint(t *testing.T) {
	if !(AccessSet{}).disjoint() {
		t.Fatalf("expected empty access set to be disjoint")
	}
}
