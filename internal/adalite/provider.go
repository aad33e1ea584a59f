package adalite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"envkit/internal/engine"
	"envkit/internal/source"
	"envkit/internal/tree"
)

// ErrNoSource is returned when a provider has no file for a unit.
var ErrNoSource = errors.New("no source for unit")

// File extensions of specifications and bodies.
const (
	SpecExt = ".ads"
	BodyExt = ".adb"
)

// FileNames lists the files that may contribute to qualifiedName, most
// specific first: for a.b.c that is a-b-c.ads, a-b-c.adb, a-b.ads, a-b.adb,
// a.ads and a.adb. Nested entities live in the files of an enclosing unit.
func FileNames(qualifiedName string) []string {
	parts := strings.Split(strings.ToLower(qualifiedName), ".")
	out := make([]string, 0, 2*len(parts))
	for i := len(parts); i >= 1; i-- {
		base := strings.Join(parts[:i], "-")
		if base == "" {
			continue
		}
		out = append(out, base+SpecExt, base+BodyExt)
	}
	return out
}

// IsSourceFile reports whether name has an adalite extension.
func IsSourceFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == SpecExt || ext == BodyExt
}

func (l *Language) parseUnit(req engine.ParseRequest, fid source.FileID) (*tree.Unit, error) {
	f := req.Files.Get(fid)
	if f == nil {
		return nil, fmt.Errorf("%s: %w", req.Name, ErrNoSource)
	}
	res := Parse(l.Kinds, req.Files, f, req.Tree, req.Unit, req.Reporter)
	return &tree.Unit{
		ID:         req.Unit,
		Name:       req.Name,
		File:       fid,
		Tree:       res.Tree,
		Generation: req.Generation,
	}, nil
}

// MemProvider serves units from memory. Sources can be replaced between
// reparses.
type MemProvider struct {
	lang    *Language
	mu      sync.RWMutex
	sources map[string]string
}

// NewMemProvider creates a provider over name -> source text.
func NewMemProvider(lang *Language, sources map[string]string) *MemProvider {
	p := &MemProvider{lang: lang, sources: make(map[string]string, len(sources))}
	for name, src := range sources {
		p.sources[name] = src
	}
	return p
}

// Set adds or replaces the source of name.
func (p *MemProvider) Set(name, src string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources[name] = src
}

// Remove forgets the source of name.
func (p *MemProvider) Remove(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sources, name)
}

func (p *MemProvider) Parse(_ context.Context, req engine.ParseRequest) (*tree.Unit, error) {
	p.mu.RLock()
	src, ok := p.sources[req.Name]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", req.Name, ErrNoSource)
	}
	return p.lang.parseUnit(req, req.Files.AddVirtual(req.Name, []byte(src)))
}

func (p *MemProvider) UnitsFor(qualifiedName string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []string
	for _, name := range FileNames(qualifiedName) {
		if _, ok := p.sources[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Names lists every unit in sorted order.
func (p *MemProvider) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.sources))
	for name := range p.sources {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DirProvider serves the .ads and .adb files of source directories. Unit
// names are file names relative to their directory.
type DirProvider struct {
	lang *Language
	dirs []string
}

// NewDirProvider creates a provider over dirs, searched in order.
func NewDirProvider(lang *Language, dirs ...string) *DirProvider {
	return &DirProvider{lang: lang, dirs: dirs}
}

func (p *DirProvider) locate(name string) (string, bool) {
	for _, dir := range p.dirs {
		path := filepath.Join(dir, name)
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return path, true
		}
	}
	return "", false
}

func (p *DirProvider) Parse(_ context.Context, req engine.ParseRequest) (*tree.Unit, error) {
	path, ok := p.locate(req.Name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", req.Name, ErrNoSource)
	}
	fid, err := req.Files.Load(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.lang.parseUnit(req, fid)
}

func (p *DirProvider) UnitsFor(qualifiedName string) []string {
	var out []string
	for _, name := range FileNames(qualifiedName) {
		if _, ok := p.locate(name); ok {
			out = append(out, name)
		}
	}
	return out
}

// Names lists the source files of every directory, first directory wins on
// duplicates.
func (p *DirProvider) Names() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, dir := range p.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, ent := range entries {
			if ent.IsDir() || !IsSourceFile(ent.Name()) {
				continue
			}
			if _, dup := seen[ent.Name()]; dup {
				continue
			}
			seen[ent.Name()] = struct{}{}
			names = append(names, ent.Name())
		}
	}
	slices.Sort(names)
	return names
}
