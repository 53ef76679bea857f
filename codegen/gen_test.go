package codegen

import (
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liran-funaro/re2go/adfa"
	"github.com/liran-funaro/re2go/config"
	"github.com/liran-funaro/re2go/graph"
)

type recorder struct {
	sb    strings.Builder
	lines []int
}

func (r *recorder) WriteText(s string) { r.sb.WriteString(s) }

func (r *recorder) WriteLineInfo(file string, line int) {
	r.lines = append(r.lines, line)
}

func (r *recorder) WriteBlock(depth int, text string) {
	r.sb.WriteString(text + "\n")
}

func buildADFA(t *testing.T, opts adfa.Options, patterns ...string) *adfa.ADFA {
	t.Helper()
	a := graph.NewArena()
	var rules []graph.ExprID
	for i, p := range patterns {
		x, err := a.Parse(p, graph.SyntaxOptions{Ceiling: 256, Line: i + 1})
		require.NoError(t, err)
		rules = append(rules, a.Rule(x, a.Null(), i+1, "", fmt.Sprintf("{ return %d }", i+1)))
	}
	root := a.AltAll(rules...)
	d := graph.BuildDfa(graph.BuildNfa(a, root), graph.BuildCharset(a, root, 256), a.Rules())
	d.Minimize(graph.MinimizeMoore)
	if opts.MaxFill == 0 {
		opts.MaxFill = 1 << 10
	}
	res, err := adfa.Build(d, opts)
	require.NoError(t, err)
	return res
}

func generate(t *testing.T, cfg config.Config, patterns ...string) (string, Stats) {
	t.Helper()
	opts := adfa.Options{}
	if cfg.Bitmaps {
		opts.Bitmaps = adfa.NewBitmaps(cfg.Ceiling)
	}
	a := buildADFA(t, opts, patterns...)
	var out recorder
	stats, err := Generate(&out, cfg, Block{File: "lex.re", Units: []Unit{{ADFA: a}}, Bitmaps: opts.Bitmaps}, nil)
	require.NoError(t, err)
	return out.sb.String(), stats
}

const prelude = `package p

type input struct{ Cond int }

func (*input) Peek() byte          { return 0 }
func (*input) Skip()               {}
func (*input) Backup()             {}
func (*input) Restore()            {}
func (*input) BackupCtx()          {}
func (*input) RestoreCtx()         {}
func (*input) LessThan(n int) bool { return false }
func (*input) Fill(n int)          {}
`

// typeCheck compiles the block as the body of a function, so unused labels and variables
// and missing returns are errors.
func typeCheck(t *testing.T, decls, body string) {
	t.Helper()
	src := prelude + decls + "\nfunc scan(in *input) int " + body
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "scan.go", src, 0)
	require.NoError(t, err, src)
	var errs []string
	conf := types.Config{Error: func(err error) { errs = append(errs, err.Error()) }}
	_, _ = conf.Check("p", fset, []*ast.File{f}, nil)
	require.Empty(t, errs, src)
}

var ruleSets = [][]string{
	{`a`, `ab`},
	{`a*`},
	{`abc`},
	{`a`, `abc`, `xyz`},
	{`a`, `abc`, `b`, `bcd`},
	{`a`, `(a|b)cd`},
	{`a`, `(ab|b)+c`, `bx`},
	{`if`, `[a-z]+`, `[0-9]+`, `[ \t]+`, `[^a-z0-9 \t]`},
	{`(a|b)*abb`, `b`},
	{`[0-9]+(\.[0-9]+)?([eE][-+]?[0-9]+)?`, `\.\.\.`, `\.`},
	{`"([^"\\]|\\.)*"`, `[^"]`},
	{`[a-c]`, `[g-i]`, `[m-o]`},
}

func configs() map[string]config.Config {
	base := config.Default()
	return map[string]config.Config{
		"switch":         base,
		"nested-ifs":     base.WithNestedIfs(true),
		"bitmaps":        base.WithBitmaps(true),
		"nested-bitmaps": base.WithNestedIfs(true).WithBitmaps(true),
		"no-fill":        func() config.Config { c := base; c.Fill = false; return c }(),
	}
}

func TestGoOutputTypeChecks(t *testing.T) {
	for name, cfg := range configs() {
		for _, rs := range ruleSets {
			out, _ := generate(t, cfg, rs...)
			t.Run(name+"/"+strings.Join(rs, ","), func(t *testing.T) {
				typeCheck(t, "", out)
			})
		}
	}
}

func TestDeterministic(t *testing.T) {
	for _, rs := range ruleSets {
		cfg := config.Default().WithBitmaps(true)
		out1, _ := generate(t, cfg, rs...)
		out2, _ := generate(t, cfg, rs...)
		require.Equal(t, out1, out2)
	}
}

func TestStrategies(t *testing.T) {
	nested := config.Default().WithNestedIfs(true)
	tests := []struct {
		name     string
		cfg      config.Config
		patterns []string
		check    func(t *testing.T, s Stats)
	}{
		{"switch by default", config.Default(), []string{`[a-z]+`, `[0-9]+`}, func(t *testing.T, s Stats) {
			require.Positive(t, s.Switch)
			require.Zero(t, s.Binary)
		}},
		{"linear", nested, []string{`abc`}, func(t *testing.T, s Stats) {
			require.Positive(t, s.Linear)
			require.Zero(t, s.Switch+s.Binary+s.Bitmap)
		}},
		{"binary", nested, []string{`[a-c]`, `[g-i]`, `[m-o]`}, func(t *testing.T, s Stats) {
			require.Equal(t, 1, s.Binary)
		}},
		{"sparse switch", nested, []string{`a`, `c`, `e`, `g`, `i`}, func(t *testing.T, s Stats) {
			require.Equal(t, 1, s.Switch)
		}},
		{"bitmap", nested.WithBitmaps(true), []string{`[a-z]+`, `[0-9]+`}, func(t *testing.T, s Stats) {
			require.Positive(t, s.Bitmap)
		}},
		{"no computed goto in go", config.Default().WithComputedGotos(true),
			[]string{`a`, `b`, `c`, `d`, `e`, `f`, `g`, `h`, `i`, `j`}, func(t *testing.T, s Stats) {
				require.Zero(t, s.ComputedGoto)
			}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stats := generate(t, tt.cfg, tt.patterns...)
			tt.check(t, stats)
		})
	}
}

func TestComputedGotoC(t *testing.T) {
	cfg := config.Default().WithTarget(config.TargetC).WithComputedGotos(true)
	out, stats := generate(t, cfg, `a`, `b`, `c`, `d`, `e`, `f`, `g`, `h`, `i`, `j`)
	require.Equal(t, 1, stats.ComputedGoto)
	require.Contains(t, out, "static void *yytarget[256] = {")
	require.Contains(t, out, "goto *yytarget[yych];")
	require.Contains(t, out, "unsigned char yych;")
	require.Contains(t, out, "yych = YYPEEK();")
}

func TestBitmapTable(t *testing.T) {
	cfg := config.Default().WithNestedIfs(true).WithBitmaps(true)
	out, _ := generate(t, cfg, `[a-z]+`, `[0-9]+`)
	require.Contains(t, out, "yybm := [...]byte{")
	require.Contains(t, out, "yybm[0+int(yych)]&")

	cfg.BitmapHex = true
	out, _ = generate(t, cfg, `[a-z]+`, `[0-9]+`)
	require.Contains(t, out, "0x00, 0x00")
}

func TestFill(t *testing.T) {
	out, _ := generate(t, config.Default(), `abc`)
	require.Contains(t, out, "if in.LessThan(3) {\n\t\tin.Fill(3)\n\t}")
	require.Equal(t, 1, strings.Count(out, "in.Fill("))

	cfg := config.Default()
	cfg.FillParam = false
	out, _ = generate(t, cfg, `abc`)
	require.Contains(t, out, "in.Fill()")

	cfg.Fill = false
	out, _ = generate(t, cfg, `abc`)
	require.NotContains(t, out, "Fill")
}

func TestAcceptDispatch(t *testing.T) {
	out, _ := generate(t, config.Default(), `a`, `abc`, `b`, `bcd`)
	require.Contains(t, out, "var yyaccept int")
	require.Contains(t, out, "switch yyaccept {")
	require.Contains(t, out, "in.Restore()")

	out, _ = generate(t, config.Default().WithNestedIfs(true), `a`, `abc`, `b`, `bcd`)
	require.Contains(t, out, "if yyaccept <= 0 {")

	out, _ = generate(t, config.Default(), `a`, `abc`)
	require.NotContains(t, out, "yyaccept")
	require.Contains(t, out, "in.Backup()")
}

func TestNoMatchDispatch(t *testing.T) {
	for _, tt := range []struct {
		name     string
		cfg      config.Config
		patterns []string
		contains []string
		excludes []string
	}{
		{"unsaved", config.Default(), []string{`a`, `abc`, `xyz`},
			[]string{`panic("re2go: no rule matched")`, "in.Restore()"}, []string{"yyaccept"}},
		{"mixed", config.Default(), []string{`a`, `(a|b)cd`},
			[]string{"var yyaccept int", "yyaccept = 1\n", "if yyaccept == 1 {", `panic("re2go: no rule matched")`}, nil},
		{"mixed nested", config.Default().WithNestedIfs(true), []string{`a`, `(a|b)cd`},
			[]string{"if yyaccept == 1 {"}, nil},
		{"skeleton", config.Default().WithSkeleton(true), []string{`a`, `(a|b)cd`},
			[]string{"if yyaccept == 1 {", "return 0"}, []string{"panic"}},
		{"c", config.Default().WithTarget(config.TargetC), []string{`a`, `(a|b)cd`},
			[]string{"unsigned int yyaccept = 0;", "yyaccept = 1;", "if (yyaccept == 1) {", "abort();"}, []string{"panic"}},
		{"default rule", config.Default(), []string{`a`, `(a|b)cd`, `[^a]`},
			nil, []string{"panic", "yyaccept == "}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := generate(t, tt.cfg, tt.patterns...)
			for _, c := range tt.contains {
				require.Contains(t, out, c)
			}
			for _, c := range tt.excludes {
				require.NotContains(t, out, c)
			}
		})
	}

	out, _ := generate(t, config.Default(), `a`, `(a|b)cd`)
	require.Less(t, strings.Index(out, "yyaccept = 1"), strings.Index(out, "in.Skip()"))
	require.Less(t, strings.Index(out, "if yyaccept == 1 {"), strings.Index(out, "in.Restore()"))
}

func TestLineDirectives(t *testing.T) {
	a := buildADFA(t, adfa.Options{}, `a`, `b`)
	var out recorder
	_, err := Generate(&out, config.Default(), Block{File: "lex.re", Units: []Unit{{ADFA: a}}}, nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []int{1, 0, 2, 0}, out.lines)

	cfg := config.Default()
	cfg.LineDirectives = false
	out = recorder{}
	_, err = Generate(&out, cfg, Block{File: "lex.re", Units: []Unit{{ADFA: a}}}, nil)
	require.NoError(t, err)
	require.Empty(t, out.lines)
}

func TestSkeletonActions(t *testing.T) {
	out, _ := generate(t, config.Default().WithSkeleton(true), `a`, `b`)
	require.Contains(t, out, "return 1")
	require.Contains(t, out, "return 2")
	require.Contains(t, out, "return 0")
	require.Contains(t, out, "in.skip()")
	require.NotContains(t, out, "panic")
}

func TestConditions(t *testing.T) {
	cfg := config.Default().WithBitmaps(true)
	bm := adfa.NewBitmaps(256)
	first := buildADFA(t, adfa.Options{Bitmaps: bm, Cond: "INIT"}, `[a-z]+`, `"`)
	second := buildADFA(t, adfa.Options{Bitmaps: bm, Cond: "STR", FirstLabel: first.NextLabel}, `[^"]+`, `"`)
	var out recorder
	_, err := Generate(&out, cfg, Block{
		Units:   []Unit{{Cond: "INIT", ADFA: first}, {Cond: "STR", ADFA: second}},
		Bitmaps: bm,
	}, nil)
	require.NoError(t, err)
	body := out.sb.String()
	require.Contains(t, body, "switch in.Cond {")
	require.Contains(t, body, "case yycINIT:\n\t\tgoto yyc_INIT")
	require.Contains(t, body, "yyc_STR:\n")

	var consts recorder
	require.NoError(t, GenerateTypes(&consts, cfg, []string{"INIT", "STR"}))
	require.Equal(t, "const (\n\tyycINIT = iota\n\tyycSTR\n)\n", consts.sb.String())
	typeCheck(t, consts.sb.String(), body)
}

func TestUnitLiteral(t *testing.T) {
	tests := map[uint32]string{
		'a':    "'a'",
		' ':    "' '",
		'\'':   "0x27",
		'\\':   "0x5C",
		0:      "0x00",
		0x7F:   "0x7F",
		0xFF:   "0xFF",
		0x100:  "0x0100",
		0x1F60: "0x1F60",
	}
	for c, want := range tests {
		require.Equal(t, want, unitLiteral(c))
	}
}

func TestInputRuntime(t *testing.T) {
	var out recorder
	require.NoError(t, GenerateInput(&out, config.Default()))
	require.Contains(t, out.sb.String(), "type Input struct")
	require.NotContains(t, out.sb.String(), "PLACEHOLDER")

	body, _ := generate(t, config.Default(), `[a-z]+`, `[0-9]+`, `\x00`)
	src := "package p\n\nimport \"io\"\n\n" + out.sb.String() + "\nfunc scan(in *Input) int " + body
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "scan.go", src, 0)
	require.NoError(t, err, src)
	conf := types.Config{Importer: importer.ForCompiler(fset, "source", nil)}
	_, err = conf.Check("p", fset, []*ast.File{f}, nil)
	require.NoError(t, err, src)

	require.Error(t, GenerateInput(&out, config.Default().WithTarget(config.TargetC)))
}
