package engine

import (
	"context"
	"fmt"

	"envkit/internal/lexenv"
	"envkit/internal/memo"
	"envkit/internal/ple"
	"envkit/internal/tree"
)

// Resolver computes the associations of a dynamic environment owned by node.
// It must be a pure function of the node's subtree and of lookups it performs
// through e.
type Resolver func(ctx context.Context, e *Engine, node tree.NodeID) ([]lexenv.Association, error)

// FieldFunc computes a derived field of node.
type FieldFunc func(ctx context.Context, e *Engine, node tree.NodeID) (any, error)

// FieldDef declares a derived field.
type FieldDef struct {
	Name string
	// Kinds restricts the field to nodes of these kinds (or derived ones);
	// empty means every kind.
	Kinds    []tree.Kind
	Memoized bool
	// Args is the number of arguments the field takes.
	Args int
	// External fields are implemented by the host rather than generated.
	External bool
	Compute  FieldFunc
}

// Grammar bundles what the engine needs from a front-end.
type Grammar struct {
	Name      string
	Kinds     *tree.KindSet
	Env       *ple.Spec
	Resolvers map[tree.Kind]Resolver
	Fields    []FieldDef
}

type field struct {
	id  memo.FieldID
	def FieldDef
}

const (
	fieldQualifiedName = "fqn"
	fieldDynamicEnv    = "dynamic-env"
)

func validateField(def FieldDef) error {
	switch {
	case def.Name == "":
		return fmt.Errorf("%w: field without a name", ErrInvalidField)
	case def.Compute == nil:
		return fmt.Errorf("%w: field %q has no compute function", ErrInvalidField, def.Name)
	case def.Args < 0:
		return fmt.Errorf("%w: field %q has a negative arity", ErrInvalidField, def.Name)
	case def.Memoized && def.Args > 0:
		return fmt.Errorf("%w: memoized field %q cannot take arguments", ErrInvalidField, def.Name)
	case def.Memoized && def.External:
		return fmt.Errorf("%w: memoized field %q cannot be external", ErrInvalidField, def.Name)
	}
	return nil
}

// RegisterField declares a field and returns its cache identity.
func (e *Engine) RegisterField(def FieldDef) (memo.FieldID, error) {
	if err := validateField(def); err != nil {
		return 0, err
	}
	e.fieldsMu.Lock()
	defer e.fieldsMu.Unlock()
	if _, dup := e.fields[def.Name]; dup {
		return 0, fmt.Errorf("%w: field %q registered twice", ErrInvalidField, def.Name)
	}
	id := memo.FieldID(len(e.fieldList))
	f := &field{id: id, def: def}
	e.fields[def.Name] = f
	e.fieldList = append(e.fieldList, f)
	return id, nil
}

func (e *Engine) field(name string) (*field, bool) {
	e.fieldsMu.RLock()
	defer e.fieldsMu.RUnlock()
	f, ok := e.fields[name]
	return f, ok
}

func (e *Engine) appliesTo(def FieldDef, kind tree.Kind) bool {
	if len(def.Kinds) == 0 {
		return true
	}
	for _, k := range def.Kinds {
		if e.grammar.Kinds.IsA(kind, k) {
			return true
		}
	}
	return false
}

func (e *Engine) resolverFor(kind tree.Kind) Resolver {
	for k := kind; k != tree.KindInvalid; k = e.grammar.Kinds.Info(k).Base {
		if r, ok := e.grammar.Resolvers[k]; ok {
			return r
		}
	}
	return nil
}
