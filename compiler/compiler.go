// Package compiler runs the rule blocks of an input file through the whole pipeline: regexps
// to NFA, DFA, checks, minimization, action automaton and code.
package compiler

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/liran-funaro/re2go/adfa"
	"github.com/liran-funaro/re2go/codegen"
	"github.com/liran-funaro/re2go/config"
	"github.com/liran-funaro/re2go/diag"
	"github.com/liran-funaro/re2go/graph"
	"github.com/liran-funaro/re2go/parser"
	"github.com/liran-funaro/re2go/skeleton"
)

type Options struct {
	Reporter *diag.Reporter
	// NFADot and DFADot receive graphviz dumps of every condition when set. The DFA is
	// dumped after minimization.
	NFADot io.Writer
	DFADot io.Writer
}

// Stats describes the automata of one condition.
type Stats struct {
	Line      int
	Cond      string
	Rules     int
	NFA       int
	DFA       int
	Minimized int
	ADFA      int
	Code      codegen.Stats
}

// Unit is one compiled condition of a block.
type Unit struct {
	Line   int
	Cond   string
	Config config.Config
	ADFA   *adfa.ADFA
	// Data is the path cover, only built in skeleton mode.
	Data *skeleton.Data
}

type Result struct {
	Conds []string
	Stats []Stats
	Units []Unit
	// Bitmaps maps every unit to the bitmap table of its block.
	Bitmaps map[*adfa.ADFA]*adfa.Bitmaps
}

// Compile writes the file to out with every block replaced by its scanner. In skeleton mode
// the host code is dropped and out may be nil: the caller assembles the units.
func Compile(f *parser.File, cfg config.Config, out codegen.Sink, opts Options) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rep := opts.Reporter
	if rep == nil {
		rep = diag.NewReporter(diag.Component("compiler"), cfg.WarningsAreErrors)
	}
	c := &compiler{
		file: f,
		cfg:  cfg,
		out:  out,
		opts: opts,
		rep:  cfg.Reporter(rep),
		res:  &Result{Conds: f.Conditions(), Bitmaps: make(map[*adfa.ADFA]*adfa.Bitmaps)},
	}
	if cfg.Skeleton || out == nil {
		c.out = nil
	}
	if len(c.res.Conds) > 0 && !f.HasTypes() {
		c.rep.Warn(diag.ConditionOrder, firstCondLine(f), "",
			"conditions are used without /*!types:re2go*/, the constants %s... must follow the order of first use",
			cfg.CondPrefix+c.res.Conds[0])
	}

	for _, ch := range f.Chunks {
		var err error
		switch ch.Kind {
		case parser.TextChunk:
			c.text(ch.Text)
		case parser.TypesChunk:
			if c.out != nil {
				err = codegen.GenerateTypes(c.out, c.cfg, c.res.Conds)
			}
		case parser.InputChunk:
			if c.out != nil {
				err = codegen.GenerateInput(c.out, c.cfg)
			}
		case parser.BlockChunk:
			err = c.block(ch.Block)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := c.rep.Err(); err != nil {
		return nil, err
	}
	return c.res, nil
}

func firstCondLine(f *parser.File) int {
	for _, b := range f.Blocks() {
		if len(b.Conds) > 0 {
			return b.Line
		}
	}
	return 0
}

type compiler struct {
	file  *parser.File
	cfg   config.Config
	out   codegen.Sink
	opts  Options
	rep   *diag.Reporter
	res   *Result
	label int
}

func (c *compiler) text(s string) {
	if c.out != nil {
		c.out.WriteText(s)
	}
}

// block compiles every condition of one block. Settings of the block stay in effect for
// the rest of the file.
func (c *compiler) block(b *parser.Block) error {
	for _, s := range b.Settings {
		cfg, err := c.cfg.Set(s.Line, s.Key, s.Value)
		if err != nil {
			return err
		}
		c.cfg = cfg
	}
	if len(b.Rules) == 0 {
		return nil
	}

	conds := b.Conds
	if len(conds) == 0 {
		conds = []string{""}
	}
	var bm *adfa.Bitmaps
	if c.cfg.Bitmaps {
		bm = adfa.NewBitmaps(c.cfg.Ceiling)
	}
	code := codegen.Block{File: c.file.Name, Bitmaps: bm}
	first := len(c.res.Stats)
	for _, cond := range conds {
		u, err := c.unit(b, cond, bm)
		if err != nil {
			return err
		}
		code.Units = append(code.Units, codegen.Unit{Cond: cond, ADFA: u.ADFA})
		c.res.Units = append(c.res.Units, *u)
		c.res.Bitmaps[u.ADFA] = bm
	}
	if c.out == nil {
		return nil
	}
	stats, err := codegen.Generate(c.out, c.cfg, code, diag.Component("codegen"))
	if err != nil {
		return errors.Wrapf(err, "generate block at line %d", b.Line)
	}
	// Dispatch counts are per block, they go with its first condition.
	c.res.Stats[first].Code = stats
	return nil
}

func (c *compiler) syntax(line int, cond string) graph.SyntaxOptions {
	policy := graph.EmptyClassMatchNone
	switch c.cfg.EmptyClass {
	case config.EmptyClassMatchEmpty:
		policy = graph.EmptyClassMatchEmpty
	case config.EmptyClassError:
		policy = graph.EmptyClassError
	}
	return graph.SyntaxOptions{
		Ceiling:    c.cfg.Ceiling,
		EmptyClass: policy,
		Line:       line,
		Reporter:   c.rep,
		Cond:       cond,
	}
}

// rules builds the rule alternation of one condition.
func (c *compiler) rules(a *graph.Arena, rules []parser.Rule, cond string) (graph.ExprID, error) {
	var ids []graph.ExprID
	for _, r := range rules {
		if r.Default {
			ids = append(ids, a.DefaultRule(c.cfg.Ceiling, r.Line, cond, r.Action))
			continue
		}
		x, err := a.Parse(r.Regex, c.syntax(r.Line, cond))
		if err != nil {
			return 0, err
		}
		ctx := a.Null()
		if r.HasContext {
			if ctx, err = a.Parse(r.Context, c.syntax(r.Line, cond)); err != nil {
				return 0, err
			}
			if a.FixedLength(x) < 0 && a.FixedLength(ctx) < 0 {
				return 0, diag.Fatalf(r.Line, "ambiguous trailing context: both the rule and its context have variable length")
			}
		}
		ids = append(ids, a.Rule(x, ctx, r.Line, cond, r.Action))
	}
	return a.AltAll(ids...), nil
}

func (c *compiler) unit(b *parser.Block, cond string, bm *adfa.Bitmaps) (*Unit, error) {
	rules := b.RulesFor(cond)
	a := graph.NewArena()
	root, err := c.rules(a, rules, cond)
	if err != nil {
		return nil, err
	}

	cs := graph.BuildCharset(a, root, c.cfg.Ceiling)
	nfa := graph.BuildNfa(a, root)
	id := dotID(b, cond)
	if c.opts.NFADot != nil {
		if err := graph.WriteNFADot(c.opts.NFADot, nfa, id); err != nil {
			return nil, errors.Wrap(err, "write nfa dot")
		}
	}
	d := graph.BuildDfa(nfa, cs, a.Rules())
	st := Stats{Line: b.Line, Cond: cond, Rules: len(rules), NFA: len(nfa.Nodes), DFA: len(d.States)}

	sk := skeleton.New(d, skeleton.Options{
		Cond:     cond,
		Line:     b.Line,
		MaxEdges: c.cfg.UndefinedMaxEdges,
		MaxSize:  c.cfg.SkeletonMaxSize,
		Reporter: c.rep,
		Log:      diag.Component("skeleton"),
	})
	sk.Check()
	u := &Unit{Line: b.Line, Cond: cond}
	if c.cfg.Skeleton {
		u.Data = sk.Cover()
	}

	alg := graph.MinimizeMoore
	if c.cfg.Minimize == config.MinimizeTable {
		alg = graph.MinimizeTable
	}
	d.Minimize(alg)
	st.Minimized = len(d.States)
	if c.opts.DFADot != nil {
		if err := graph.WriteDFADot(c.opts.DFADot, d, id); err != nil {
			return nil, errors.Wrap(err, "write dfa dot")
		}
	}

	u.ADFA, err = adfa.Build(d, adfa.Options{
		Bitmaps:    bm,
		MaxFill:    c.cfg.MaxFill,
		FirstLabel: c.label,
		Cond:       cond,
		Line:       b.Line,
		Log:        diag.Component("adfa"),
	})
	if err != nil {
		return nil, err
	}
	c.label = u.ADFA.NextLabel
	u.Config = c.cfg
	st.ADFA = len(u.ADFA.States)
	c.res.Stats = append(c.res.Stats, st)

	diag.Component("compiler").WithFields(logrus.Fields{
		"line":      st.Line,
		"cond":      cond,
		"rules":     st.Rules,
		"nfa":       st.NFA,
		"dfa":       st.DFA,
		"minimized": st.Minimized,
		"adfa":      st.ADFA,
	}).Debug("condition compiled")
	return u, nil
}

func dotID(b *parser.Block, cond string) string {
	if cond == "" {
		return fmt.Sprintf("block%d", b.Line)
	}
	return fmt.Sprintf("block%d_%s", b.Line, cond)
}
