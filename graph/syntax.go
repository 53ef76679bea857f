package graph

import (
	"errors"
	"fmt"
	"regexp/syntax"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/liran-funaro/re2go/diag"
)

var ErrAssertion = errors.New("assertions are not supported")

type EmptyClassPolicy uint8

const (
	// EmptyClassMatchNone compiles an empty class to a node without transitions.
	EmptyClassMatchNone EmptyClassPolicy = iota
	// EmptyClassMatchEmpty compiles an empty class to the empty string.
	EmptyClassMatchEmpty
	// EmptyClassError rejects empty classes.
	EmptyClassError
)

// SyntaxOptions drives the translation of regexp/syntax trees.
type SyntaxOptions struct {
	Ceiling    uint32
	EmptyClass EmptyClassPolicy
	Flags      syntax.Flags
	Line       int
	Reporter   *diag.Reporter
	Cond       string
}

// Parse compiles a pattern in Go regexp syntax into the arena. Runes are taken as code units;
// anything at or above the ceiling is dropped.
func (a *Arena) Parse(pattern string, opts SyntaxOptions) (ExprID, error) {
	if opts.Flags == 0 {
		opts.Flags = syntax.Perl
	}
	pattern, swapped := swapRanges(pattern)
	if opts.Reporter != nil {
		for _, s := range swapped {
			opts.Reporter.Warn(diag.SwappedRange, opts.Line, opts.Cond, "range '%s' is swapped, reordered", s)
		}
	}
	r, err := syntax.Parse(pattern, opts.Flags)
	if err != nil {
		return 0, diag.Fatalf(opts.Line, "%v", err)
	}
	b := syntaxBuilder{arena: a, opts: opts}
	return b.build(r)
}

// swapRanges reorders the bounds of a-b class ranges with a > b, which regexp/syntax
// rejects. Escaped bounds are compared by the code unit they stand for.
func swapRanges(pattern string) (string, []string) {
	rs := []rune(pattern)
	out := make([]rune, 0, len(rs))
	var swapped []string
	inClass := false
	for i := 0; i < len(rs); {
		switch {
		case !inClass && rs[i] == '\\':
			n := min(2, len(rs)-i)
			out = append(out, rs[i:i+n]...)
			i += n
		case !inClass && rs[i] == '[':
			inClass = true
			j := i + 1
			if j < len(rs) && rs[j] == '^' {
				j++
			}
			if j < len(rs) && rs[j] == ']' {
				j++
			}
			out = append(out, rs[i:j]...)
			i = j
		case !inClass:
			out = append(out, rs[i])
			i++
		case rs[i] == '[' && i+1 < len(rs) && rs[i+1] == ':':
			end := strings.Index(string(rs[i+2:]), ":]")
			if end < 0 {
				out = append(out, rs[i])
				i++
				break
			}
			j := i + 2 + len([]rune(string(rs[i+2:])[:end])) + 2
			out = append(out, rs[i:j]...)
			i = j
		case rs[i] == ']':
			inClass = false
			out = append(out, rs[i])
			i++
		default:
			lo, n, ok := classBound(rs[i:])
			j := i + n
			if ok && j+1 < len(rs) && rs[j] == '-' && rs[j+1] != ']' {
				if hi, m, ok := classBound(rs[j+1:]); ok {
					k := j + 1 + m
					if lo > hi {
						swapped = append(swapped, string(rs[i:k]))
						out = append(out, rs[j+1:k]...)
						out = append(out, '-')
						out = append(out, rs[i:j]...)
					} else {
						out = append(out, rs[i:k]...)
					}
					i = k
					break
				}
			}
			out = append(out, rs[i:j]...)
			i = j
		}
	}
	if len(swapped) == 0 {
		return pattern, nil
	}
	return string(out), swapped
}

// classBound decodes the class item at the start of rs and returns the rune it stands for
// and its length in runes. ok is false for items that are not a single rune, like \d or \pL.
func classBound(rs []rune) (r rune, n int, ok bool) {
	if rs[0] != '\\' {
		return rs[0], 1, true
	}
	if len(rs) < 2 {
		return 0, 1, false
	}
	switch c := rs[1]; {
	case c == 'x':
		if len(rs) > 2 && rs[2] == '{' {
			end := slices.Index(rs[3:], '}')
			if end < 0 {
				return 0, 2, false
			}
			v, err := strconv.ParseUint(string(rs[3:3+end]), 16, 32)
			return rune(v), 4 + end, err == nil && v <= unicode.MaxRune
		}
		if len(rs) < 4 {
			return 0, 2, false
		}
		v, err := strconv.ParseUint(string(rs[2:4]), 16, 8)
		return rune(v), 4, err == nil
	case c >= '0' && c <= '7':
		k := 1
		for k < len(rs) && k < 4 && rs[k] >= '0' && rs[k] <= '7' {
			k++
		}
		if c != '0' && k == 2 {
			// A single non-zero digit is a backreference.
			return 0, 2, false
		}
		v, _ := strconv.ParseUint(string(rs[1:k]), 8, 32)
		return rune(v), k, true
	case c == 'p' || c == 'P':
		if len(rs) > 2 && rs[2] == '{' {
			if end := slices.Index(rs[3:], '}'); end >= 0 {
				return 0, 4 + end, false
			}
		}
		return 0, min(3, len(rs)), false
	case c < unicode.MaxASCII && !unicode.IsLetter(c) && !unicode.IsDigit(c):
		return c, 2, true
	}
	if v, ok := classEscapes[rs[1]]; ok {
		return v, 2, true
	}
	return 0, 2, false
}

var classEscapes = map[rune]rune{'a': '\a', 'f': '\f', 't': '\t', 'n': '\n', 'r': '\r', 'v': '\v'}

type syntaxBuilder struct {
	arena *Arena
	opts  SyntaxOptions
}

func (b *syntaxBuilder) match(rs Ranges, what string) (ExprID, error) {
	rs = rs.Clip(b.opts.Ceiling)
	if !rs.Empty() {
		return b.arena.Match(rs), nil
	}
	switch b.opts.EmptyClass {
	case EmptyClassError:
		return 0, diag.Fatalf(b.opts.Line, "empty character class %s", what)
	case EmptyClassMatchEmpty:
		b.warn("empty character class %s matches the empty string", what)
		return b.arena.Null(), nil
	}
	b.warn("empty character class %s matches nothing", what)
	return b.arena.Match(nil), nil
}

func (b *syntaxBuilder) warn(format string, args ...any) {
	if b.opts.Reporter != nil {
		b.opts.Reporter.Warn(diag.EmptyClass, b.opts.Line, b.opts.Cond, format, args...)
	}
}

func (b *syntaxBuilder) literal(r rune, fold bool) (ExprID, error) {
	rs := Sym(uint32(r))
	if fold {
		for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
			rs = Union(rs, Sym(uint32(f)))
		}
	}
	return b.match(rs, fmt.Sprintf("%q", r))
}

func (b *syntaxBuilder) buildAll(subs []*syntax.Regexp, join func(x, y ExprID) ExprID) (ExprID, error) {
	var res ExprID
	for i, s := range subs {
		x, err := b.build(s)
		if err != nil {
			return 0, err
		}
		if i == 0 {
			res = x
		} else {
			res = join(res, x)
		}
	}
	return res, nil
}

func (b *syntaxBuilder) build(r *syntax.Regexp) (ExprID, error) {
	a := b.arena
	switch r.Op {
	case syntax.OpNoMatch: // matches no strings
		return b.match(nil, "[]")
	case syntax.OpEmptyMatch: // matches empty string
		return a.Null(), nil
	case syntax.OpLiteral: // matches Runes sequence
		if len(r.Rune) == 0 {
			return a.Null(), nil
		}
		var res ExprID
		for i, c := range r.Rune {
			x, err := b.literal(c, r.Flags&syntax.FoldCase != 0)
			if err != nil {
				return 0, err
			}
			if i == 0 {
				res = x
			} else {
				res = a.Cat(res, x)
			}
		}
		return res, nil
	case syntax.OpCharClass: // matches Runes interpreted as range pair list
		var rs Ranges
		for i := 0; i+1 < len(r.Rune); i += 2 {
			lo, hi := uint32(r.Rune[i]), uint32(r.Rune[i+1])
			rs = Union(rs, Ranges{{Lb: lo, Ub: hi + 1}})
		}
		return b.match(rs, r.String())
	case syntax.OpAnyCharNotNL: // matches any character except newline
		return b.match(Diff(Ranges{{Lb: 0, Ub: b.opts.Ceiling}}, Sym('\n')), ".")
	case syntax.OpAnyChar: // matches any character
		return b.match(Ranges{{Lb: 0, Ub: b.opts.Ceiling}}, "(?s:.)")
	case syntax.OpBeginLine, syntax.OpEndLine, syntax.OpBeginText, syntax.OpEndText,
		syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return 0, diag.Fatalf(b.opts.Line, "%v: %s", ErrAssertion, r)
	case syntax.OpCapture: // capturing subexpression with index Cap, optional name Name
		return b.build(r.Sub[0])
	case syntax.OpStar: // matches Sub[0] zero or more times
		x, err := b.build(r.Sub[0])
		if err != nil {
			return 0, err
		}
		return a.Close(x), nil
	case syntax.OpPlus: // matches Sub[0] one or more times
		x, err := b.build(r.Sub[0])
		if err != nil {
			return 0, err
		}
		return a.Cat(x, a.Close(x)), nil
	case syntax.OpQuest: // matches Sub[0] zero or one times
		x, err := b.build(r.Sub[0])
		if err != nil {
			return 0, err
		}
		return a.Alt(x, a.Null()), nil
	case syntax.OpRepeat: // matches Sub[0] at least Min times, at most Max (Max == -1 is no limit)
		x, err := b.build(r.Sub[0])
		if err != nil {
			return 0, err
		}
		return b.repeat(x, r.Min, r.Max), nil
	case syntax.OpConcat: // matches concatenation of Subs
		return b.buildAll(r.Sub, a.Cat)
	case syntax.OpAlternate: // matches alternation of Subs
		return b.buildAll(r.Sub, a.Alt)
	}
	return 0, diag.Fatalf(b.opts.Line, "unrecognized op: '%d'", r.Op)
}

// repeat expands x{min,max}. The optional tail is nested, (x(x)?)?, so the NFA does not
// duplicate exits.
func (b *syntaxBuilder) repeat(x ExprID, lo, hi int) ExprID {
	a := b.arena
	res := a.Null()
	for i := 0; i < lo; i++ {
		res = a.Cat(res, x)
	}
	if hi < 0 {
		return a.Cat(res, a.Close(x))
	}
	tail := a.Null()
	for i := lo; i < hi; i++ {
		tail = a.Alt(a.Cat(x, tail), a.Null())
	}
	return a.Cat(res, tail)
}
