package engine

import (
	"errors"
	"fmt"

	"envkit/internal/tree"
)

var (
	// ErrStaleNode is returned for nodes of a tree that was reparsed or
	// disposed.
	ErrStaleNode = errors.New("stale node")
	// ErrUnknownField is returned by Eval for unregistered fields.
	ErrUnknownField = errors.New("unknown field")
	// ErrFieldKind is returned when a field does not apply to a node kind.
	ErrFieldKind = errors.New("field does not apply to node kind")
	// ErrInvalidField is wrapped by RegisterField errors.
	ErrInvalidField = errors.New("invalid field definition")
	// ErrNoProvider is returned by loads on an engine without a provider.
	ErrNoProvider = errors.New("engine has no unit provider")
)

// ResolverError reports a failed dynamic environment resolver or field.
type ResolverError struct {
	Node  tree.NodeID
	Field string
	Err   error
}

func (e *ResolverError) Error() string {
	return fmt.Sprintf("%s of %s: %v", e.Field, e.Node, e.Err)
}

func (e *ResolverError) Unwrap() error { return e.Err }
