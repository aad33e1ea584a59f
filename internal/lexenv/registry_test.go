package lexenv

import (
	"slices"
	"testing"
)

func TestRegistryMultipleRegistrants(t *testing.T) {
	r := NewRegistry()
	if r.Register("", 1, 1) {
		t.Fatal("empty name must not register")
	}
	r.Register("Foo", 1, 1)
	r.Register("Foo", 2, 2)
	if r.Register("Foo", 2, 2) {
		t.Fatal("re-registering the same env must be a no-op")
	}
	if got := r.Lookup("Foo"); !slices.Equal(got, []EnvID{1, 2}) {
		t.Fatalf("Lookup = %v", got)
	}
}

func TestRegistryUnregisterUnitIsExact(t *testing.T) {
	r := NewRegistry()
	r.Register("Foo", 1, 1)
	r.Register("Foo", 2, 2)
	r.Register("Bar", 3, 2)
	r.AddForeign("Foo", Association{Symbol: 7, Node: nid(9), Unit: 2})
	r.AddForeign("Foo", Association{Symbol: 7, Node: nid(8), Unit: 1})

	if n := r.UnregisterUnit(2); n != 3 {
		t.Fatalf("UnregisterUnit = %d, want 3", n)
	}
	if got := r.Lookup("Foo"); !slices.Equal(got, []EnvID{1}) {
		t.Fatalf("Foo = %v", got)
	}
	if r.Has("Bar") {
		t.Fatal("Bar must be gone")
	}
	if got := r.Foreign("Foo", 7); len(got) != 1 || got[0].Node != nid(8) {
		t.Fatalf("foreign = %+v", got)
	}

	// a re-registration after removal is tracked again
	r.Register("Foo", 4, 2)
	r.UnregisterUnit(2)
	if got := r.Lookup("Foo"); !slices.Equal(got, []EnvID{1}) {
		t.Fatalf("Foo after second removal = %v", got)
	}
	if names := r.Names(); !slices.Equal(names, []string{"Foo"}) {
		t.Fatalf("Names = %v", names)
	}
}

func TestRegistryPublish(t *testing.T) {
	r := NewRegistry()
	r.Publish(3,
		[]Registration{{Name: "P", Env: 5}, {Name: "", Env: 6}},
		[]ForeignAssoc{{Name: "P", Assoc: Association{Symbol: 1, Node: nid(1), Unit: 3}}},
	)
	if !r.Has("P") || len(r.Foreign("P", 1)) != 1 {
		t.Fatal("publish must apply registrations and foreign entries")
	}
	r.UnregisterUnit(3)
	if r.Has("P") || len(r.Foreign("P", 1)) != 0 {
		t.Fatal("unregister must undo publish")
	}
}
