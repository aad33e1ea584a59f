package engine

import (
	"context"

	"envkit/internal/diag"
	"envkit/internal/source"
	"envkit/internal/tree"
)

// ParseRequest carries what a provider needs to build a unit. IDs are
// allocated by the engine: Unit is stable across reparses, Tree is fresh for
// every parse.
type ParseRequest struct {
	Name       string
	Unit       tree.UnitID
	Tree       tree.TreeID
	Generation uint32
	Files      *source.FileSet
	Reporter   diag.Reporter
}

// Provider supplies analysis units to the engine.
type Provider interface {
	// Parse reads and parses the unit called name.
	Parse(ctx context.Context, req ParseRequest) (*tree.Unit, error)
	// UnitsFor lists the units that may contribute to the named environment
	// qualifiedName. Unknown names yield nothing.
	UnitsFor(qualifiedName string) []string
}

// Lister is implemented by providers that can enumerate their units.
type Lister interface {
	Names() []string
}
