package compiler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/liran-funaro/re2go/config"
	"github.com/liran-funaro/re2go/diag"
	"github.com/liran-funaro/re2go/parser"
)

type textSink struct {
	sb strings.Builder
}

func (s *textSink) WriteText(t string)               { s.sb.WriteString(t) }
func (s *textSink) WriteLineInfo(file string, n int) {}
func (s *textSink) WriteBlock(depth int, t string)   { s.sb.WriteString(t + "\n") }

func compile(t *testing.T, cfg config.Config, src string) (string, *Result, *diag.Reporter, error) {
	t.Helper()
	f, err := parser.ParseFile("lex.re", strings.NewReader(src))
	require.NoError(t, err)
	rep := diag.Discard()
	var out textSink
	res, err := Compile(f, cfg, &out, Options{Reporter: rep})
	return out.sb.String(), res, rep, err
}

const numbers = `package lex

func lex(in *Input) int {
	/*!re2go
	digit = "[0-9]";
	"{digit}+" { return 1 }
	"{digit}+\.{digit}*" { return 2 }
	* { return 0 }
	*/
}
`

func TestCompileSplices(t *testing.T) {
	out, res, rep, err := compile(t, config.Default(), numbers)
	require.NoError(t, err)
	require.Empty(t, rep.Diagnostics())
	require.True(t, strings.HasPrefix(out, "package lex\n\nfunc lex(in *Input) int {\n\t"))
	require.True(t, strings.HasSuffix(out, "}\n"))
	require.Contains(t, out, "in.Peek()")
	require.Contains(t, out, "{ return 2 }")
	require.NotContains(t, out, "/*!re2go")

	require.Len(t, res.Stats, 1)
	st := res.Stats[0]
	require.Equal(t, 4, st.Line)
	require.Equal(t, 3, st.Rules)
	require.Positive(t, st.NFA)
	require.LessOrEqual(t, st.Minimized, st.DFA)
	require.Positive(t, st.ADFA)
	require.Positive(t, st.Code.Switch+st.Code.Linear+st.Code.Binary)
}

func TestSettingsPersist(t *testing.T) {
	src := "/*!re2go\nre2go:flags:nested-ifs = 1;\nre2go:define:YYPEEK = \"in.Cur()\";\n*/\n" +
		"/*!re2go\n\"[a-c]\" { return 1 }\n\"[g-i]\" { return 2 }\n\"[m-o]\" { return 3 }\n*/\n"
	out, res, _, err := compile(t, config.Default(), src)
	require.NoError(t, err)
	require.Contains(t, out, "in.Cur()")
	require.NotContains(t, out, "in.Peek()")
	require.Len(t, res.Units, 1)
	require.True(t, res.Units[0].Config.NestedIfs)
	require.Equal(t, 1, res.Stats[0].Code.Binary)
}

func TestConditionsShareLabels(t *testing.T) {
	src := "/*!types:re2go*/\n" +
		"/*!re2go\n<INIT> \"[a-z]+\" { return 1 }\n<INIT,STR> \"\\\"\" { return 2 }\n<STR> \"[^\\\"]+\" { return 3 }\n<*> * { return 0 }\n*/\n" +
		"/*!re2go\n<NUM> \"[0-9]+\" { return 4 }\n*/\n"
	out, res, rep, err := compile(t, config.Default().WithBitmaps(true), src)
	require.NoError(t, err)
	require.Zero(t, rep.Count(diag.ConditionOrder))
	require.Equal(t, []string{"INIT", "STR", "NUM"}, res.Conds)
	require.True(t, strings.HasPrefix(out, "const (\n\tyycINIT = iota\n\tyycSTR\n\tyycNUM\n)\n"))
	require.Contains(t, out, "goto yyc_INIT")
	require.Contains(t, out, "yyc_NUM:")

	require.Len(t, res.Units, 3)
	for i := 1; i < len(res.Units); i++ {
		require.Equal(t, res.Units[i-1].ADFA.NextLabel, res.Units[i].ADFA.StartLabel)
	}
	require.Same(t, res.Bitmaps[res.Units[0].ADFA], res.Bitmaps[res.Units[1].ADFA])
	require.NotSame(t, res.Bitmaps[res.Units[0].ADFA], res.Bitmaps[res.Units[2].ADFA])
}

func TestConditionOrderWarning(t *testing.T) {
	_, _, rep, err := compile(t, config.Default(), "/*!re2go\n<A> \"a\" { return 1 }\n*/\n")
	require.NoError(t, err)
	require.Equal(t, 1, rep.Count(diag.ConditionOrder))
}

func TestWarnings(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		warn  diag.Warning
		line  int
		count int
	}{
		{"unreachable", "/*!re2go\n\"[a-z]+\" { return 1 }\n\"if\" { return 2 }\n* { return 0 }\n*/", diag.UnreachableRule, 3, 1},
		{"match empty", "/*!re2go\n\"a*\" { return 1 }\n* { return 0 }\n*/", diag.MatchEmpty, 2, 1},
		{"undefined control flow", "/*!re2go\n\"a\" { return 1 }\n*/", diag.UndefinedControlFlow, 1, 1},
		{"swapped range", "/*!re2go\n\"[z-a]\" { return 1 }\n* { return 0 }\n*/", diag.SwappedRange, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, rep, err := compile(t, config.Default(), tt.src)
			require.NoError(t, err)
			require.Equal(t, tt.count, rep.Count(tt.warn), "%v", rep.Diagnostics())
			for _, d := range rep.Diagnostics() {
				if d.Warning == tt.warn {
					require.Equal(t, tt.line, d.Line)
				}
			}
		})
	}
}

func TestWarningsAsErrors(t *testing.T) {
	f, err := parser.ParseFile("lex.re", strings.NewReader("/*!re2go\n\"a\" { return 1 }\n*/"))
	require.NoError(t, err)
	cfg := config.Default()
	cfg.WarningsAreErrors = true
	_, err = Compile(f, cfg, &textSink{}, Options{Reporter: diag.NewReporter(diag.Component("test"), true)})
	require.True(t, errors.Is(err, diag.ErrFatalConfig), "%v", err)
}

func TestFatalErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		src  string
		line int
	}{
		{"ambiguous context", config.Default(), "/*!re2go\n\"a+\" { return 1 }\n\"b+\" / \"c+\" { return 2 }\n*/", 3},
		{"empty class", func() config.Config { c := config.Default(); c.EmptyClass = config.EmptyClassError; return c }(),
			"/*!re2go\n\"a\" { return 1 }\n\"[^\\x00-\\xff]\" { return 2 }\n*/", 3},
		{"bad regexp", config.Default(), "/*!re2go\n\"a(\" { return 1 }\n*/", 2},
		{"bad setting", config.Default(), "/*!re2go\nre2go:unknown = 1;\n*/", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := compile(t, tt.cfg, tt.src)
			require.Error(t, err)
			require.True(t, errors.Is(err, diag.ErrFatalConfig), "%v", err)
			var de *diag.Error
			require.True(t, errors.As(err, &de))
			require.Equal(t, tt.line, de.Line)
		})
	}
}

func TestSkeletonMode(t *testing.T) {
	f, err := parser.ParseFile("lex.re", strings.NewReader(numbers))
	require.NoError(t, err)
	var out textSink
	res, err := Compile(f, config.Default().WithSkeleton(true), &out, Options{})
	require.NoError(t, err)
	require.Empty(t, out.sb.String())
	require.Len(t, res.Units, 1)
	data := res.Units[0].Data
	require.NotNil(t, data)
	require.NotEmpty(t, data.Keys)
	require.False(t, data.Partial)
}

func TestSkeletonReplay(t *testing.T) {
	for _, tt := range []struct {
		name string
		src  string
	}{
		{"default", numbers},
		{"keywords", "/*!re2go\n\"a\" { return 1 }\n\"abc\" { return 2 }\n\"xyz\" { return 3 }\n*/\n"},
		{"mixed", "/*!re2go\n\"a\" { return 1 }\n\"(a|b)cd\" { return 2 }\n*/\n"},
		{"nested", "/*!re2go\n\"a\" { return 1 }\n\"abc\" { return 2 }\n\"abcde\" { return 3 }\n\"(x|ab)cdef\" { return 4 }\n*/\n"},
		{"context", "/*!re2go\n\"[0-9]+\" / \"[a-z]\" { return 1 }\n\"[0-9]+\\.[0-9]*\" { return 2 }\n*/\n"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			for _, cfg := range []config.Config{
				config.Default().WithSkeleton(true),
				config.Default().WithSkeleton(true).WithMinimize(config.MinimizeTable),
			} {
				f, err := parser.ParseFile("lex.re", strings.NewReader(tt.src))
				require.NoError(t, err)
				res, err := Compile(f, cfg, &textSink{}, Options{Reporter: diag.Discard()})
				require.NoError(t, err)
				for _, u := range res.Units {
					require.NotNil(t, u.Data)
					mismatch := u.Data.Replay(func(input []uint32) (int, uint32) {
						n, r := u.ADFA.Exec(input)
						if r == nil {
							return n, 0
						}
						return n, uint32(r.Rank)
					})
					require.Equal(t, -1, mismatch)
				}
			}
		})
	}
}

func TestDotDumps(t *testing.T) {
	f, err := parser.ParseFile("lex.re", strings.NewReader(numbers))
	require.NoError(t, err)
	var nfa, dfa bytes.Buffer
	_, err = Compile(f, config.Default(), &textSink{}, Options{NFADot: &nfa, DFADot: &dfa})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(nfa.String(), "digraph block4 {"))
	require.True(t, strings.HasPrefix(dfa.String(), "digraph block4 {"))
}

func TestMinimizationAgrees(t *testing.T) {
	_, moore, _, err := compile(t, config.Default(), numbers)
	require.NoError(t, err)
	_, table, _, err := compile(t, config.Default().WithMinimize(config.MinimizeTable), numbers)
	require.NoError(t, err)
	require.Equal(t, moore.Stats[0].Minimized, table.Stats[0].Minimized)
	require.Equal(t, moore.Stats[0].ADFA, table.Stats[0].ADFA)
}
