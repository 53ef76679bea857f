// Package skeleton checks a rule set on its unminimized DFA and derives test vectors from it.
// The checks find inputs that no rule handles, rules that can never win, and rules matching
// the empty string. The path cover produces inputs with the match each one must give.
package skeleton

import (
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/liran-funaro/re2go/diag"
	"github.com/liran-funaro/re2go/graph"
)

type arc struct {
	to     graph.StateID
	ranges graph.Ranges
}

type node struct {
	arcs []arc
	rule *graph.Rule
	// loop counts the visits of the node on the current search path.
	loop uint8
	// reachable lists, in rank order, the rules matched by this node or a node after it.
	reachable []graph.Rank
}

// Skeleton is a copy of the DFA with the transitions of every state grouped by target.
type Skeleton struct {
	nodes []node
	dfa   *graph.DFA
	opts  Options
}

type Options struct {
	Cond string
	// Line is where undefined control flow and size warnings are reported.
	Line int
	// MaxEdges bounds the search for undefined control flow.
	MaxEdges int
	// MaxSize bounds the code units of the path cover.
	MaxSize  int
	Reporter *diag.Reporter
	Log      *logrus.Entry
}

func New(d *graph.DFA, opts Options) *Skeleton {
	if opts.Reporter == nil {
		opts.Reporter = diag.Discard()
	}
	sk := &Skeleton{nodes: make([]node, len(d.States)), dfa: d, opts: opts}
	for i, st := range d.States {
		n := &sk.nodes[i]
		n.rule = st.Rule
		index := make(map[graph.StateID]int)
		for c, to := range st.Arcs {
			k, ok := index[to]
			if !ok {
				k = len(n.arcs)
				index[to] = k
				n.arcs = append(n.arcs, arc{to: to})
			}
			n.arcs[k].ranges = graph.Union(n.arcs[k].ranges, graph.Ranges{d.Charset.Bounds(c)})
		}
	}
	sk.calcReachable()
	return sk
}

func (sk *Skeleton) calcReachable() {
	for i := range sk.nodes {
		if r := sk.nodes[i].rule; r != nil {
			sk.nodes[i].reachable = []graph.Rank{r.Rank}
		}
	}
	for changed := true; changed; {
		changed = false
		for i := range sk.nodes {
			n := &sk.nodes[i]
			for _, a := range n.arcs {
				if a.to == graph.Nil {
					continue
				}
				for _, r := range sk.nodes[a.to].reachable {
					if k, found := slices.BinarySearch(n.reachable, r); !found {
						n.reachable = slices.Insert(n.reachable, k, r)
						changed = true
					}
				}
			}
		}
	}
}

// Check runs every check and reports through the reporter.
func (sk *Skeleton) Check() {
	sk.checkEmpty()
	sk.checkRules()
	sk.checkUndefined()
}
