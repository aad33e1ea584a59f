package source

import (
	"fmt"
	"sync"
	"testing"
)

func TestInternerBasic(t *testing.T) {
	interner := NewInterner()

	// NoStringID зарезервирован для пустой строки
	if s, ok := interner.Lookup(NoStringID); !ok || s != "" {
		t.Fatalf("NoStringID must map to the empty string, got %q, ok=%v", s, ok)
	}
	id1 := interner.Intern("hello")
	if id1 == NoStringID {
		t.Fatal("Intern returned NoStringID for a non-empty string")
	}
	if id2 := interner.Intern("hello"); id1 != id2 {
		t.Fatalf("same string interned twice: %d != %d", id1, id2)
	}
	if id3 := interner.Intern("Hello"); id3 == id1 {
		t.Fatal("case-sensitive interner merged Hello and hello")
	}
	if s := interner.MustLookup(id1); s != "hello" {
		t.Fatalf("MustLookup = %q", s)
	}
	if _, ok := interner.Lookup(StringID(1000)); ok {
		t.Fatal("Lookup of an unknown ID succeeded")
	}
}

func TestInternerCaseFolding(t *testing.T) {
	interner := NewInterner(WithCaseFolding())
	foo := interner.Intern("Foo")
	if got := interner.Intern("FOO"); got != foo {
		t.Fatalf("FOO and Foo got different IDs: %d vs %d", got, foo)
	}
	if s := interner.MustLookup(foo); s != "Foo" {
		t.Fatalf("first spelling must win, got %q", s)
	}
	if id, ok := interner.Find("foo"); !ok || id != foo {
		t.Fatalf("Find(foo) = %d, %v", id, ok)
	}
}

func TestInternerConcurrent(t *testing.T) {
	interner := NewInterner()
	const workers, words = 8, 200
	ids := make([][]StringID, workers)
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range words {
				ids[w] = append(ids[w], interner.Intern(fmt.Sprintf("w%d", i)))
			}
		}()
	}
	wg.Wait()
	for w := 1; w < workers; w++ {
		for i := range words {
			if ids[w][i] != ids[0][i] {
				t.Fatalf("worker %d word %d: id %d, worker 0 got %d", w, i, ids[w][i], ids[0][i])
			}
		}
	}
	if got := interner.Len(); got != words+1 {
		t.Fatalf("Len = %d, want %d", got, words+1)
	}
}
