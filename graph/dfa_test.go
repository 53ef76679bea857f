package graph

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildDFA compiles one rule per pattern. A pattern may carry a trailing context after a
// " / " separator.
func buildDFA(t *testing.T, patterns ...string) *DFA {
	t.Helper()
	a := NewArena()
	var rules []ExprID
	for i, p := range patterns {
		opts := SyntaxOptions{Ceiling: 256, Line: i + 1}
		main, ctx, _ := strings.Cut(p, " / ")
		x, err := a.Parse(main, opts)
		require.NoError(t, err)
		y := a.Null()
		if ctx != "" {
			y, err = a.Parse(ctx, opts)
			require.NoError(t, err)
		}
		rules = append(rules, a.Rule(x, y, i+1, "", ""))
	}
	root := a.AltAll(rules...)
	return BuildDfa(BuildNfa(a, root), BuildCharset(a, root, 256), a.Rules())
}

func requireMatch(t *testing.T, d *DFA, input string, length int, rank Rank) {
	t.Helper()
	n, rule := d.Match(Units(input))
	if rank == RankNone {
		require.Nil(t, rule, "input %q", input)
		return
	}
	require.NotNil(t, rule, "input %q", input)
	require.Equal(t, rank, rule.Rank, "input %q", input)
	require.Equal(t, length, n, "input %q", input)
}

func TestNfaSize(t *testing.T) {
	a := NewArena()
	x, err := a.Parse(`(a|bc)*d?`, SyntaxOptions{Ceiling: 256})
	require.NoError(t, err)
	ctx, err := a.Parse(`e`, SyntaxOptions{Ceiling: 256})
	require.NoError(t, err)
	root := a.Rule(x, ctx, 1, "", "")
	nfa := BuildNfa(a, root)
	require.Len(t, nfa.Nodes, a.Size(root))

	var kinds []NodeKind
	for _, n := range nfa.Nodes {
		kinds = append(kinds, n.Kind)
	}
	require.Contains(t, kinds, CtxNode)
	require.Contains(t, kinds, FinNode)
}

func TestClosureUnmarks(t *testing.T) {
	a := NewArena()
	x, err := a.Parse(`(a*)*b`, SyntaxOptions{Ceiling: 256})
	require.NoError(t, err)
	root := a.Rule(x, a.Null(), 1, "", "")
	nfa := BuildNfa(a, root)
	kernel := nfa.closure(nil, nfa.Root)
	require.Len(t, kernel, 2, "the two Ran nodes")
	nfa.unmark(kernel)
	for _, n := range nfa.Nodes {
		require.False(t, n.mark)
	}
}

func TestLongestMatch(t *testing.T) {
	d := buildDFA(t, `a`, `ab`)
	requireMatch(t, d, "ab", 2, 2)
	requireMatch(t, d, "a", 1, 1)
	requireMatch(t, d, "ac", 1, 1)
	requireMatch(t, d, "b", 0, RankNone)
}

func TestNullableMatch(t *testing.T) {
	d := buildDFA(t, `a*`)
	require.NotNil(t, d.States[0].Rule)
	requireMatch(t, d, "", 0, 1)
	requireMatch(t, d, "aaab", 3, 1)
}

func TestPriorityAndShadows(t *testing.T) {
	d := buildDFA(t, `[a-c]`, `[b-d]`)
	requireMatch(t, d, "b", 1, 1)
	requireMatch(t, d, "d", 1, 2)
	require.Equal(t, map[Rank][]Rank{2: {1}}, d.Shadows)
}

func TestTrailingContext(t *testing.T) {
	d := buildDFA(t, `ab / c+`, `[a-z]+`)
	requireMatch(t, d, "abcc", 2, 1)
	requireMatch(t, d, "abd", 3, 2)
	requireMatch(t, d, "ab", 2, 2)
}

func TestKernelsAreUnique(t *testing.T) {
	d := buildDFA(t, `if`, `[a-z]+`, `[0-9]+(\.[0-9]*)?`, `.`)
	seen := make(map[string]bool)
	for _, st := range d.States {
		key := fmt.Sprint(st.Kernel)
		require.False(t, seen[key], "duplicate kernel %v", st.Kernel)
		seen[key] = true
		require.Len(t, st.Arcs, d.Charset.Classes())
	}
}

func TestDeterministic(t *testing.T) {
	patterns := []string{`if`, `[a-z_][a-z0-9_]*`, `[0-9]+`, `"([^"\\]|\\.)*"`, `[ \t\n]+`}
	d1 := buildDFA(t, patterns...)
	d2 := buildDFA(t, patterns...)
	require.Equal(t, len(d1.States), len(d2.States))
	for i := range d1.States {
		require.Equal(t, d1.States[i].Arcs, d2.States[i].Arcs)
		require.Equal(t, d1.States[i].Kernel, d2.States[i].Kernel)
	}
}
