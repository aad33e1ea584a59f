package memo

import "context"

type frame struct {
	key    Key
	flight *flight
	chain  *chain
	parent *frame
	depth  int
}

type stackKey struct{}

func topFrame(ctx context.Context) *frame {
	f, _ := ctx.Value(stackKey{}).(*frame)
	return f
}

func push(ctx context.Context, fl *flight) context.Context {
	parent := topFrame(ctx)
	depth := 1
	if parent != nil {
		depth = parent.depth + 1
	}
	return context.WithValue(ctx, stackKey{}, &frame{
		key:    fl.key,
		flight: fl,
		chain:  fl.owner,
		parent: parent,
		depth:  depth,
	})
}

func (f *frame) chainOf() *chain {
	if f == nil {
		return nil
	}
	return f.chain
}

// find returns the frame evaluating key, nil when key is not on the stack.
func (f *frame) find(key Key) *frame {
	for ; f != nil; f = f.parent {
		if f.key == key {
			return f
		}
	}
	return nil
}

// Stack returns the keys under evaluation on ctx's logical call stack,
// outermost first.
func Stack(ctx context.Context) []Key {
	if ctx == nil {
		return nil
	}
	f := topFrame(ctx)
	if f == nil {
		return nil
	}
	out := make([]Key, f.depth)
	for ; f != nil; f = f.parent {
		out[f.depth-1] = f.key
	}
	return out
}

// Depth returns the number of evaluations on ctx's stack.
func Depth(ctx context.Context) int {
	if ctx == nil {
		return 0
	}
	if f := topFrame(ctx); f != nil {
		return f.depth
	}
	return 0
}
