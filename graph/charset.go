package graph

import (
	"slices"
	"sort"
)

// Charset is the ordered list of class boundaries. Class i holds the code units in
// [cs[i], cs[i+1]).
type Charset []uint32

// BuildCharset compacts the alphabet [0, ceiling) into the classes induced by every range of
// the expression tree.
func BuildCharset(a *Arena, root ExprID, ceiling uint32) Charset {
	bounds := []uint32{0, ceiling}
	a.CollectRanges(root, func(rs Ranges) {
		for _, r := range rs {
			bounds = append(bounds, min(r.Lb, ceiling), min(r.Ub, ceiling))
		}
	})
	slices.Sort(bounds)
	return slices.Compact(bounds)
}

// Classes returns the number of equivalence classes.
func (cs Charset) Classes() int {
	return len(cs) - 1
}

func (cs Charset) Ceiling() uint32 {
	return cs[len(cs)-1]
}

// ClassOf returns the class of c, or -1 when c is above the alphabet.
func (cs Charset) ClassOf(c uint32) int {
	if c >= cs.Ceiling() {
		return -1
	}
	return sort.Search(len(cs), func(i int) bool { return cs[i] > c }) - 1
}

// Bounds returns the code units covered by class c.
func (cs Charset) Bounds(c int) Range {
	return Range{Lb: cs[c], Ub: cs[c+1]}
}

// classSpan returns the classes [from, to) covered by r. Range bounds are always charset
// boundaries.
func (cs Charset) classSpan(r Range) (from, to int) {
	from, _ = slices.BinarySearch(cs, r.Lb)
	to, _ = slices.BinarySearch(cs, min(r.Ub, cs.Ceiling()))
	return from, to
}
