package graph

import (
	"fmt"
	"math"
)

// Rank orders rules by declaration. Lower ranks win.
type Rank uint32

const (
	RankNone    Rank = 0
	RankDefault Rank = math.MaxUint32
)

func (r Rank) String() string {
	switch r {
	case RankNone:
		return "none"
	case RankDefault:
		return "default"
	}
	return fmt.Sprintf("%d", uint32(r))
}

// Rule is one entry of the rule table.
type Rule struct {
	Rank   Rank
	Line   int
	Cond   string
	Action string
	// ContextLen is the fixed length of the trailing context, 0 when there is none and -1
	// when it varies.
	ContextLen int
}

// HasContext reports whether matching this rule has to restore the cursor to the context
// marker.
func (r *Rule) HasContext() bool {
	return r.ContextLen != 0
}

func (r *Rule) String() string {
	if r == nil {
		return "<none>"
	}
	if r.Rank == RankDefault {
		return fmt.Sprintf("default rule at line %d", r.Line)
	}
	return fmt.Sprintf("rule %d at line %d", r.Rank, r.Line)
}

type ExprKind uint8

const (
	NullExpr ExprKind = iota
	MatchExpr
	CatExpr
	AltExpr
	CloseExpr
	RuleExpr
)

// ExprID indexes an expression inside its Arena.
type ExprID int32

// Expr is one node of the regular expression tree. Cat and Alt use both X and Y, Close
// uses X, and Rule uses X for the pattern and Y for the trailing context.
type Expr struct {
	Kind   ExprKind
	Ranges Ranges
	X, Y   ExprID
	Rule   *Rule
}

// Arena owns the expressions and rules of one compilation unit. Nothing allocated from it
// outlives the unit.
type Arena struct {
	exprs    []Expr
	rules    []*Rule
	nextRank Rank
}

func NewArena() *Arena {
	return &Arena{nextRank: RankNone + 1}
}

func (a *Arena) Expr(id ExprID) *Expr {
	return &a.exprs[id]
}

func (a *Arena) Rules() []*Rule {
	return a.rules
}

func (a *Arena) add(e Expr) ExprID {
	a.exprs = append(a.exprs, e)
	return ExprID(len(a.exprs) - 1)
}

func (a *Arena) Null() ExprID {
	return a.add(Expr{Kind: NullExpr})
}

func (a *Arena) Match(rs Ranges) ExprID {
	return a.add(Expr{Kind: MatchExpr, Ranges: rs})
}

func (a *Arena) Cat(x, y ExprID) ExprID {
	return a.add(Expr{Kind: CatExpr, X: x, Y: y})
}

func (a *Arena) Alt(x, y ExprID) ExprID {
	return a.add(Expr{Kind: AltExpr, X: x, Y: y})
}

func (a *Arena) Close(x ExprID) ExprID {
	return a.add(Expr{Kind: CloseExpr, X: x})
}

// Rule declares a new rule with the next rank.
func (a *Arena) Rule(x, ctx ExprID, line int, cond, action string) ExprID {
	r := &Rule{Rank: a.nextRank, Line: line, Cond: cond, Action: action, ContextLen: a.FixedLength(ctx)}
	a.nextRank++
	return a.addRule(x, ctx, r)
}

// DefaultRule declares the catch-all rule, matching any single code unit below ceiling.
func (a *Arena) DefaultRule(ceiling uint32, line int, cond, action string) ExprID {
	r := &Rule{Rank: RankDefault, Line: line, Cond: cond, Action: action}
	return a.addRule(a.Match(Ranges{{Lb: 0, Ub: ceiling}}), a.Null(), r)
}

func (a *Arena) addRule(x, ctx ExprID, r *Rule) ExprID {
	a.rules = append(a.rules, r)
	return a.add(Expr{Kind: RuleExpr, X: x, Y: ctx, Rule: r})
}

// AltAll joins expressions into one alternation, left to right.
func (a *Arena) AltAll(ids ...ExprID) ExprID {
	if len(ids) == 0 {
		return a.Null()
	}
	res := ids[0]
	for _, id := range ids[1:] {
		res = a.Alt(res, id)
	}
	return res
}

// Nullable reports whether the expression matches the empty string.
func (a *Arena) Nullable(id ExprID) bool {
	e := a.Expr(id)
	switch e.Kind {
	case NullExpr, CloseExpr:
		return true
	case MatchExpr:
		return false
	case CatExpr:
		return a.Nullable(e.X) && a.Nullable(e.Y)
	case AltExpr:
		return a.Nullable(e.X) || a.Nullable(e.Y)
	case RuleExpr:
		return a.Nullable(e.X)
	}
	panic(fmt.Sprintf("unknown expression kind %d", e.Kind))
}

// FixedLength returns the length of every string matched by the expression, or -1 when
// the length varies.
func (a *Arena) FixedLength(id ExprID) int {
	e := a.Expr(id)
	switch e.Kind {
	case NullExpr:
		return 0
	case MatchExpr:
		return 1
	case CatExpr:
		x, y := a.FixedLength(e.X), a.FixedLength(e.Y)
		if x < 0 || y < 0 {
			return -1
		}
		return x + y
	case AltExpr:
		x, y := a.FixedLength(e.X), a.FixedLength(e.Y)
		if x != y {
			return -1
		}
		return x
	case CloseExpr:
		return -1
	case RuleExpr:
		return a.FixedLength(e.X)
	}
	panic(fmt.Sprintf("unknown expression kind %d", e.Kind))
}

// Size returns the number of NFA nodes the expression compiles to.
func (a *Arena) Size(id ExprID) int {
	e := a.Expr(id)
	switch e.Kind {
	case NullExpr:
		return 0
	case MatchExpr:
		return 1
	case CatExpr:
		return a.Size(e.X) + a.Size(e.Y)
	case AltExpr:
		return 1 + a.Size(e.X) + a.Size(e.Y)
	case CloseExpr:
		return 1 + a.Size(e.X)
	case RuleExpr:
		n := 1 + a.Size(e.X) + a.Size(e.Y)
		if !a.emptyContext(e) {
			n++
		}
		return n
	}
	panic(fmt.Sprintf("unknown expression kind %d", e.Kind))
}

func (a *Arena) emptyContext(e *Expr) bool {
	return a.Expr(e.Y).Kind == NullExpr
}

// CollectRanges calls f for every range list of the expression tree.
func (a *Arena) CollectRanges(id ExprID, f func(Ranges)) {
	e := a.Expr(id)
	switch e.Kind {
	case MatchExpr:
		f(e.Ranges)
	case CatExpr, AltExpr, RuleExpr:
		a.CollectRanges(e.X, f)
		a.CollectRanges(e.Y, f)
	case CloseExpr:
		a.CollectRanges(e.X, f)
	}
}
