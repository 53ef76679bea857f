package graph

import (
	"regexp/syntax"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liran-funaro/re2go/diag"
)

func TestRangeIdempotence(t *testing.T) {
	for _, r := range []Ranges{
		nil,
		{{Lb: 'a', Ub: 'z' + 1}},
		{{Lb: 0, Ub: 10}, {Lb: 20, Ub: 30}, {Lb: 200, Ub: 256}},
	} {
		require.Equal(t, r, Union(r, r))
		require.Empty(t, Diff(r, r))
	}
}

func TestRangeOps(t *testing.T) {
	a := Ranges{{Lb: 0, Ub: 10}, {Lb: 20, Ub: 30}}
	b := Ranges{{Lb: 5, Ub: 25}}

	require.Equal(t, Ranges{{Lb: 0, Ub: 30}}, Union(a, b))
	require.Equal(t, Ranges{{Lb: 0, Ub: 5}, {Lb: 25, Ub: 30}}, Diff(a, b))
	require.Equal(t, Ranges{{Lb: 10, Ub: 20}}, Diff(b, a))
	require.Equal(t, Ranges{{Lb: 5, Ub: 10}, {Lb: 20, Ub: 25}}, Intersect(a, b))

	// Adjacent ranges collapse.
	require.Equal(t, Ranges{{Lb: 0, Ub: 20}}, Union(Ranges{{Lb: 0, Ub: 10}}, Ranges{{Lb: 10, Ub: 20}}))

	require.True(t, a.Contains(0))
	require.True(t, a.Contains(29))
	require.False(t, a.Contains(10))
	require.False(t, a.Contains(30))

	require.Equal(t, Ranges{{Lb: 0, Ub: 10}, {Lb: 20, Ub: 25}}, a.Clip(25))
	require.Equal(t, `[\x0Aa-c]`, Union(Ranges{{Lb: 'a', Ub: 'd'}}, Sym('\n')).String())
}

func TestNewRangeSwapped(t *testing.T) {
	r, swapped := NewRange('z', 'a')
	require.True(t, swapped)
	require.Equal(t, Ranges{{Lb: 'a', Ub: 'z' + 1}}, r)

	r, swapped = NewRange('a', 'a')
	require.False(t, swapped)
	require.Equal(t, Sym('a'), r)
}

func TestCharset(t *testing.T) {
	a := NewArena()
	root := a.AltAll(
		a.Rule(a.Match(Ranges{{Lb: 'a', Ub: 'd'}}), a.Null(), 1, "", ""),
		a.Rule(a.Match(Ranges{{Lb: 'b', Ub: 'e'}}), a.Null(), 2, "", ""),
	)
	cs := BuildCharset(a, root, 256)
	require.Equal(t, Charset{0, 'a', 'b', 'd', 'e', 256}, cs)
	require.Equal(t, 5, cs.Classes())
	require.Equal(t, 0, cs.ClassOf(0))
	require.Equal(t, 1, cs.ClassOf('a'))
	require.Equal(t, 2, cs.ClassOf('b'))
	require.Equal(t, 2, cs.ClassOf('c'))
	require.Equal(t, 4, cs.ClassOf(255))
	require.Equal(t, -1, cs.ClassOf(256))

	empty := NewArena()
	require.Equal(t, 1, BuildCharset(empty, empty.Null(), 256).Classes())
}

func TestSwapRanges(t *testing.T) {
	tests := []struct {
		in, out string
		swapped []string
	}{
		{`[a-z]`, `[a-z]`, nil},
		{`[z-a]+`, `[a-z]+`, []string{"z-a"}},
		{`[^9-0_]`, `[^0-9_]`, []string{"9-0"}},
		{`\[z-a]`, `\[z-a]`, nil},
		{`[[:alpha:]z-a]`, `[[:alpha:]a-z]`, []string{"z-a"}},
		{`[a-]`, `[a-]`, nil},
		{`[]z-a]`, `[]a-z]`, []string{"z-a"}},
		{`[\x7a-a]`, `[a-\x7a]`, []string{`\x7a-a`}},
		{`[z-\x61]`, `[\x61-z]`, []string{`z-\x61`}},
		{`[\x61-\x7a]`, `[\x61-\x7a]`, nil},
		{`[\x{7a}-\x{61}]`, `[\x{61}-\x{7a}]`, []string{`\x{7a}-\x{61}`}},
		{`[\172-\141]`, `[\141-\172]`, []string{`\172-\141`}},
		{`[\]-\-]`, `[\--\]]`, []string{`\]-\-`}},
		{`[\n-\t]`, `[\t-\n]`, []string{`\n-\t`}},
		{`[\d-a]`, `[\d-a]`, nil},
		{`[\x7a-a]|[a-\x7a]`, `[a-\x7a]|[a-\x7a]`, []string{`\x7a-a`}},
	}
	for _, tt := range tests {
		out, swapped := swapRanges(tt.in)
		require.Equal(t, tt.out, out, tt.in)
		require.Equal(t, tt.swapped, swapped, tt.in)
		_, err := syntax.Parse(out, syntax.Perl)
		require.NoError(t, err, tt.in)
	}

	rep := diag.Discard()
	_, err := NewArena().Parse(`[\x7a-a]+`, SyntaxOptions{Ceiling: 256, Reporter: rep})
	require.NoError(t, err)
	require.Equal(t, 1, rep.Count(diag.SwappedRange))
}
