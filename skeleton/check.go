package skeleton

import (
	"slices"
	"strings"

	"github.com/liran-funaro/re2go/diag"
	"github.com/liran-funaro/re2go/graph"
)

// maxReportedPaths bounds the example strings of one undefined control flow warning.
const maxReportedPaths = 8

// Path is a sequence of steps, each step a set of code units.
type Path []graph.Ranges

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, rs := range p {
		parts[i] = rs.String()
	}
	return strings.Join(parts, " ")
}

func (sk *Skeleton) checkEmpty() {
	r := sk.nodes[0].rule
	if r == nil || r.Rank == graph.RankDefault {
		return
	}
	sk.opts.Reporter.Warn(diag.MatchEmpty, r.Line, sk.opts.Cond,
		"rule %s matches empty string", r.Rank)
}

// Reachable returns the ranks matched on some path from the start state, in rank order.
func (sk *Skeleton) Reachable() []graph.Rank {
	return slices.Clone(sk.nodes[0].reachable)
}

func (sk *Skeleton) checkRules() {
	reachable := sk.Reachable()
	for _, r := range sk.dfa.Rules {
		winners := sk.dfa.Shadows[r.Rank]
		lines := make([]string, 0, len(winners))
		for _, w := range winners {
			if wr := sk.dfa.Rule(w); wr != nil {
				lines = append(lines, wr.String())
			}
		}
		if _, found := slices.BinarySearch(reachable, r.Rank); !found {
			msg := "unreachable rule"
			if len(lines) > 0 {
				msg += " (shadowed by " + strings.Join(lines, ", ") + ")"
			}
			sk.opts.Reporter.Warn(diag.UnreachableRule, r.Line, sk.opts.Cond, "%s", msg)
			continue
		}
		if len(lines) > 0 {
			sk.opts.Reporter.Warn(diag.ShadowedRule, r.Line, sk.opts.Cond,
				"rule %s is partially shadowed by %s", r.Rank, strings.Join(lines, ", "))
		}
	}
}

// Undefined returns paths from the start state that leave the automaton before any rule
// matched, and whether the search hit its edge limit. A state is entered at most twice on the
// current path.
func (sk *Skeleton) Undefined() (paths []Path, overflow bool) {
	var path Path
	edges := 0
	var walk func(id graph.StateID)
	walk = func(id graph.StateID) {
		n := &sk.nodes[id]
		if n.rule != nil || n.loop >= 2 || overflow {
			return
		}
		n.loop++
		for _, a := range n.arcs {
			if edges++; sk.opts.MaxEdges > 0 && edges > sk.opts.MaxEdges {
				overflow = true
				break
			}
			path = append(path, a.ranges)
			if a.to == graph.Nil {
				paths = append(paths, slices.Clone(path))
			} else {
				walk(a.to)
			}
			path = path[:len(path)-1]
		}
		n.loop--
	}
	walk(0)
	return paths, overflow
}

func (sk *Skeleton) checkUndefined() {
	paths, overflow := sk.Undefined()
	if overflow {
		sk.opts.Reporter.Warn(diag.TooLargeToCheck, sk.opts.Line, sk.opts.Cond,
			"DFA is too large to check undefined control flow")
	}
	if len(paths) == 0 {
		return
	}
	slices.SortStableFunc(paths, func(a, b Path) int { return len(a) - len(b) })
	shown := paths[:min(len(paths), maxReportedPaths)]
	examples := make([]string, len(shown))
	for i, p := range shown {
		examples[i] = "'" + p.String() + "'"
	}
	more := ""
	if len(paths) > len(shown) {
		more = " and more"
	}
	sk.opts.Reporter.Warn(diag.UndefinedControlFlow, sk.opts.Line, sk.opts.Cond,
		"control flow is undefined for strings that match %s%s, use the default '*' rule",
		strings.Join(examples, ", "), more)
}
