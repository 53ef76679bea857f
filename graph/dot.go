package graph

import (
	"fmt"
	"io"
	"slices"
)

// WriteNFADot Print the NFA in DOT format.
//
//	$ dot -Tps input.dot -o output.ps
func WriteNFADot(out io.Writer, nfa *NFA, id string) error {
	b := dotGraphBuilder{out: out}
	b.printf("digraph %v {\n  rankdir=LR;\n", id)
	if nfa.Root >= 0 {
		b.printf("  n%d[shape=box];\n", nfa.Root)
	}
	for i, n := range nfa.Nodes {
		switch n.Kind {
		case AltNode:
			b.printf("  n%d[label=\"\",shape=point];\n", i)
			b.edge(fmt.Sprintf("n%d", i), fmt.Sprintf("n%d", n.Out1), "")
			b.edge(fmt.Sprintf("n%d", i), fmt.Sprintf("n%d", n.Out2), "")
		case RanNode:
			b.edge(fmt.Sprintf("n%d", i), fmt.Sprintf("n%d", n.Out1), n.Ranges.String())
		case CtxNode:
			b.printf("  n%d[label=\"ctx\"];\n", i)
			b.edge(fmt.Sprintf("n%d", i), fmt.Sprintf("n%d", n.Out1), "")
		case FinNode:
			b.printf("  n%d[style=filled,color=green,label=%q];\n", i, "rule "+n.Rule.Rank.String())
		}
	}
	b.printf("}\n")
	return b.err
}

// WriteDFADot Print the DFA in DOT format. Arcs to the same state are merged into one edge
// labelled with the union of their classes.
func WriteDFADot(out io.Writer, d *DFA, id string) error {
	b := dotGraphBuilder{out: out}
	b.printf("digraph %v {\n  rankdir=LR;\n  0[shape=box];\n", id)
	for i, st := range d.States {
		if st.Rule != nil {
			b.printf("  %d[style=filled,color=green,label=%q];\n", i, fmt.Sprintf("%d: rule %s", i, st.Rule.Rank))
		}
		var targets []StateID
		labels := make(map[StateID]Ranges)
		for c, to := range st.Arcs {
			// Nil is the dead end; it is not drawn.
			if to == Nil {
				continue
			}
			if _, ok := labels[to]; !ok {
				targets = append(targets, to)
			}
			labels[to] = Union(labels[to], Ranges{d.Charset.Bounds(c)})
		}
		slices.Sort(targets)
		for _, to := range targets {
			b.edge(fmt.Sprint(i), fmt.Sprint(to), labels[to].String())
		}
	}
	b.printf("}\n")
	return b.err
}

type dotGraphBuilder struct {
	out io.Writer
	err error
}

func (b *dotGraphBuilder) printf(format string, a ...any) {
	if b.err != nil {
		return
	}
	_, b.err = fmt.Fprintf(b.out, format, a...)
}

func (b *dotGraphBuilder) edge(from, to, label string) {
	if to == "n-1" {
		return
	}
	if label == "" {
		b.printf("  %v -> %v;\n", from, to)
		return
	}
	b.printf("  %v -> %v[label=%q];\n", from, to, label)
}
