package adfa

import (
	"github.com/liran-funaro/re2go/diag"
	"github.com/liran-funaro/re2go/graph"
)

// Exec runs the automaton over input the way the generated code does and returns the match
// length and rule, or (0, nil) when nothing matched. The end of input, and any code unit at or
// above the ceiling, takes the state's fallback. Restoring a cursor that was never backed up
// counts as no match.
func (a *ADFA) Exec(input []uint32) (int, *graph.Rule) {
	var cur, marker, ctx, accept int
	first, saved := true, false
	s := a.Head
	for steps := 0; ; steps++ {
		if steps > len(a.States)*(len(input)+2) {
			panic(diag.Internalf("automaton does not terminate"))
		}
		act := &s.Action
		switch act.Kind {
		case InitialAction:
			if !first {
				cur++
			}
			if act.SetMarker {
				accept, marker, saved = act.Selector, cur, true
			}
		case MatchAction:
			cur++
		case SaveAction:
			accept = act.Selector
			cur++
			marker, saved = cur, true
		case MoveAction:
		case AcceptAction:
			if !saved || len(act.Accepts) == 0 {
				return 0, nil
			}
			cur = marker
			s = act.Accepts[accept].State
			continue
		case NoMatchAction:
			return 0, nil
		case RuleAction:
			if act.Rule.HasContext() {
				cur = ctx
			}
			return cur, act.Rule
		}
		first = false
		if s.IsContext {
			ctx = cur
		}

		var next *State
		if cur < len(input) {
			next = s.Target(input[cur])
		}
		if next == nil {
			if s.Fallback == nil {
				if !saved || len(a.Accepts) == 0 {
					return 0, nil
				}
				cur = marker
				next = a.Accepts[accept].State
			} else {
				next = s.Fallback
			}
		}
		s = next
	}
}
