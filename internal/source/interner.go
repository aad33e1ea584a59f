package source

import (
	"fmt"
	"slices"
	"sync"

	"fortio.org/safecast"
	"golang.org/x/text/cases"
)

// StringID identifies an interned symbol.
type StringID uint32

// NoStringID is reserved for the empty string.
const NoStringID StringID = 0

// Interner maps identifier text to compact IDs. It is safe for concurrent use:
// units may be populated in parallel and all of them intern into one table.
type Interner struct {
	mu    sync.RWMutex
	byID  []string            // индекс -> строка (byID[0] = "" для NoStringID)
	index map[string]StringID // строка -> ID
	fold  *cases.Caser
}

// InternerOption tweaks interner construction.
type InternerOption func(*Interner)

// WithCaseFolding makes the interner case-insensitive: "Foo" and "FOO" share
// one ID, and Lookup returns the spelling seen first.
func WithCaseFolding() InternerOption {
	return func(i *Interner) {
		c := cases.Fold()
		i.fold = &c
	}
}

func NewInterner(opts ...InternerOption) *Interner {
	i := &Interner{
		byID:  []string{""},
		index: map[string]StringID{"": NoStringID},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Interner) key(s string) string {
	if i.fold == nil {
		return s
	}
	// cases.Caser is not safe for concurrent use; callers hold i.mu.
	return i.fold.String(s)
}

// Intern returns the ID of s, adding it if needed.
func (i *Interner) Intern(s string) StringID {
	i.mu.RLock()
	if i.fold == nil {
		if id, ok := i.index[s]; ok {
			i.mu.RUnlock()
			return id
		}
	}
	i.mu.RUnlock()

	i.mu.Lock()
	defer i.mu.Unlock()
	k := i.key(s)
	if id, ok := i.index[k]; ok {
		return id
	}
	n, err := safecast.Conv[uint32](len(i.byID))
	if err != nil {
		panic(fmt.Errorf("interner overflow: %w", err))
	}
	id := StringID(n)
	// собственная копия, чтобы не держать исходный буфер
	i.byID = append(i.byID, string([]byte(s)))
	i.index[k] = id
	return id
}

// Find returns the ID of s without interning it.
func (i *Interner) Find(s string) (StringID, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	id, ok := i.index[i.key(s)]
	return id, ok
}

// Lookup returns the text of id.
func (i *Interner) Lookup(id StringID) (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if int(id) >= len(i.byID) {
		return "", false
	}
	return i.byID[id], true
}

// MustLookup is Lookup that panics on unknown IDs.
func (i *Interner) MustLookup(id StringID) string {
	s, ok := i.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("invalid string ID %d", id))
	}
	return s
}

// Len counts interned strings, NoStringID included.
func (i *Interner) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.byID)
}

// Snapshot returns a copy of every interned string ordered by ID.
func (i *Interner) Snapshot() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return slices.Clone(i.byID)
}
