package lexenv

import (
	"testing"
)

func TestStoreRootExists(t *testing.T) {
	s := NewStore()
	root, ok := s.Env(s.Root())
	if !ok || root.Dead {
		t.Fatal("root env must exist")
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
}

func TestStoreDropUnit(t *testing.T) {
	s := NewStore()
	env := s.Create(EnvSpec{Owner: nid(1), Unit: 1, Parent: s.Root(), Transitive: true})
	other := s.Create(EnvSpec{Owner: nid(2), Unit: 2, Parent: s.Root(), Transitive: true})

	s.Add(env, 10, nid(3), 1, nil)
	// unit 1 contributes to an env of unit 2 and to the root
	s.Add(other, 10, nid(4), 1, nil)
	s.Add(s.Root(), 11, nid(5), 1, nil)
	s.Add(other, 10, nid(6), 2, nil)
	s.BindChildrenEnv(1, nid(1), env)

	envs, assocs := s.DropUnit(1)
	if envs != 1 || assocs != 2 {
		t.Fatalf("DropUnit = (%d, %d), want (1, 2)", envs, assocs)
	}
	if e, _ := s.Env(env); !e.Dead {
		t.Fatal("env of dropped unit must be tombstoned")
	}
	if got := s.Matches(other, 10); len(got) != 1 || got[0].Node != nid(6) {
		t.Fatalf("other env contents = %+v", got)
	}
	if got := s.Matches(s.Root(), 11); len(got) != 0 {
		t.Fatalf("root still holds %+v", got)
	}
	if _, ok := s.ChildrenEnvOf(nid(1)); ok {
		t.Fatal("children env binding must be forgotten")
	}
	if s.Add(env, 12, nid(7), 1, nil) {
		t.Fatal("adding into a dead env must fail")
	}
	for _, id := range s.Live() {
		if id == env {
			t.Fatal("dead env listed as live")
		}
	}
}

func TestStoreEnvSnapshotIsDetached(t *testing.T) {
	s := NewStore()
	env := s.Create(EnvSpec{Unit: 1})
	s.AddRefName(env, "P")
	snap, _ := s.Env(env)
	snap.RefNames[0] = "Q"
	again, _ := s.Env(env)
	if again.RefNames[0] != "P" {
		t.Fatal("snapshot must not alias store state")
	}
	s.AddRefName(env, "P")
	if again, _ = s.Env(env); len(again.RefNames) != 1 {
		t.Fatal("AddRefName must dedupe")
	}
}
