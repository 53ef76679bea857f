package graph

import (
	"fmt"
	"strings"
)

// Range is the half-open interval [Lb, Ub) of code units.
type Range struct {
	Lb, Ub uint32
}

// Ranges is a sorted list of disjoint, non-adjacent ranges.
type Ranges []Range

// NewRange returns [lb, ub]. Swapped bounds are corrected and reported with swapped=true.
func NewRange(lb, ub uint32) (r Ranges, swapped bool) {
	if lb > ub {
		lb, ub = ub, lb
		swapped = true
	}
	return Ranges{{Lb: lb, Ub: ub + 1}}, swapped
}

// Sym returns the range holding exactly c.
func Sym(c uint32) Ranges {
	return Ranges{{Lb: c, Ub: c + 1}}
}

// Union merges two sorted lists.
func Union(a, b Ranges) Ranges {
	res := make(Ranges, 0, len(a)+len(b))
	push := func(r Range) {
		if n := len(res); n > 0 && res[n-1].Ub >= r.Lb {
			res[n-1].Ub = max(res[n-1].Ub, r.Ub)
			return
		}
		res = append(res, r)
	}
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Lb <= b[j].Lb {
			push(a[i])
			i++
		} else {
			push(b[j])
			j++
		}
	}
	for ; i < len(a); i++ {
		push(a[i])
	}
	for ; j < len(b); j++ {
		push(b[j])
	}
	if len(res) == 0 {
		return nil
	}
	return res
}

// Diff returns the code units of a that are not in b.
func Diff(a, b Ranges) Ranges {
	var res Ranges
	j := 0
	for _, r := range a {
		lb := r.Lb
		for j < len(b) && b[j].Ub <= lb {
			j++
		}
		for k := j; k < len(b) && b[k].Lb < r.Ub; k++ {
			if b[k].Lb > lb {
				res = append(res, Range{Lb: lb, Ub: b[k].Lb})
			}
			lb = max(lb, b[k].Ub)
		}
		if lb < r.Ub {
			res = append(res, Range{Lb: lb, Ub: r.Ub})
		}
	}
	return res
}

// Intersect returns the code units present in both lists.
func Intersect(a, b Ranges) Ranges {
	var res Ranges
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		lb, ub := max(a[i].Lb, b[j].Lb), min(a[i].Ub, b[j].Ub)
		if lb < ub {
			res = append(res, Range{Lb: lb, Ub: ub})
		}
		if a[i].Ub < b[j].Ub {
			i++
		} else {
			j++
		}
	}
	return res
}

// Clip drops everything at or above ceiling.
func (rs Ranges) Clip(ceiling uint32) Ranges {
	return Intersect(rs, Ranges{{Lb: 0, Ub: ceiling}})
}

func (rs Ranges) Contains(c uint32) bool {
	for _, r := range rs {
		if c < r.Lb {
			return false
		}
		if c < r.Ub {
			return true
		}
	}
	return false
}

func (rs Ranges) Empty() bool {
	return len(rs) == 0
}

func (rs Ranges) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for _, r := range rs {
		sb.WriteString(unitString(r.Lb))
		if r.Ub-r.Lb > 1 {
			sb.WriteByte('-')
			sb.WriteString(unitString(r.Ub - 1))
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

func unitString(c uint32) string {
	if c >= 0x21 && c < 0x7F && c != '[' && c != ']' && c != '-' && c != '\\' && c != '"' {
		return string(rune(c))
	}
	if c <= 0xFF {
		return fmt.Sprintf("\\x%02X", c)
	}
	return fmt.Sprintf("\\x{%X}", c)
}
