package source

import "fmt"

// Point is a human-readable position in a source file.
type Point struct {
	Line   uint32 // 1-based
	Column uint32 // 1-based
}

// NoPoint is the zero point; it sorts before every real position.
var NoPoint = Point{}

func (p Point) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// IsValid reports whether p refers to a real position.
func (p Point) IsValid() bool { return p.Line > 0 }

// Range is a (start, end) pair of points. End is exclusive: it designates the
// column right after the last character of the range.
type Range struct {
	Start Point
	End   Point
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// Empty reports whether the range covers no character.
func (r Range) Empty() bool { return r.Start == r.End }

// Contains reports whether p is inside r.
func (r Range) Contains(p Point) bool {
	return CompareRange(r, p) == Inside
}

// Relation is the relative position of a point with respect to a reference.
type Relation uint8

const (
	// Before means the compared point comes first.
	Before Relation = iota + 1
	// Inside means equality for points and containment for ranges.
	Inside
	// After means the compared point comes last.
	After
)

func (r Relation) String() string {
	switch r {
	case Before:
		return "before"
	case Inside:
		return "inside"
	case After:
		return "after"
	default:
		return "invalid"
	}
}

// ComparePoints returns the position of p relative to ref. Lines are compared
// before columns.
func ComparePoints(ref, p Point) Relation {
	return compareLineCol(int64(ref.Line), int64(ref.Column), p)
}

// CompareRange returns the position of p relative to r. The end column of r is
// exclusive, so containment is checked against (end.Line, end.Column-1).
// An empty range contains no point.
func CompareRange(r Range, p Point) Relation {
	if ComparePoints(r.Start, p) == Before {
		return Before
	}
	// column 0 - 1 would wrap on uint32
	if compareLineCol(int64(r.End.Line), int64(r.End.Column)-1, p) == After {
		return After
	}
	return Inside
}

func compareLineCol(line, col int64, p Point) Relation {
	pl, pc := int64(p.Line), int64(p.Column)
	switch {
	case pl < line:
		return Before
	case pl > line:
		return After
	case pc < col:
		return Before
	case pc > col:
		return After
	default:
		return Inside
	}
}

// PointLess is a strict lexicographic order on points, usable with slices.SortFunc.
func PointLess(a, b Point) bool {
	return ComparePoints(b, a) == Before
}
