// Package codegen emits the scanner code of ADFAs through a Sink. Every block is generated
// twice: the first pass goes to a null sink and records which labels and variables the code
// uses, the second writes the code declaring only those.
package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/liran-funaro/re2go/adfa"
	"github.com/liran-funaro/re2go/config"
)

// Unit is the automaton of one condition, or of the whole block without conditions.
type Unit struct {
	Cond string
	ADFA *adfa.ADFA
}

// Block is one output block. Its units share the variables, the bitmap table and the labels.
type Block struct {
	File    string
	Units   []Unit
	Bitmaps *adfa.Bitmaps
}

// Stats counts the dispatch strategy picked for each state.
type Stats struct {
	Linear       int
	Binary       int
	Switch       int
	Bitmap       int
	ComputedGoto int
}

type uses struct {
	yych   bool
	bitmap bool
}

type emitter struct {
	cfg   config.Config
	tgt   Target
	block Block
	out   Sink

	used  map[string]bool
	refs  map[string]bool
	seen  uses
	decl  uses
	stats Stats
}

// Generate writes the code of one block.
func Generate(out Sink, cfg config.Config, b Block, log *logrus.Entry) (Stats, error) {
	tgt, err := NewTarget(cfg.Target)
	if err != nil {
		return Stats{}, err
	}
	e := &emitter{cfg: cfg, tgt: tgt, block: b, used: map[string]bool{}}
	e.run(nullSink{})
	e.used, e.decl, e.stats = e.refs, e.seen, Stats{}
	e.run(out)
	if log != nil {
		log.WithFields(logrus.Fields{
			"linear": e.stats.Linear,
			"binary": e.stats.Binary,
			"switch": e.stats.Switch,
			"bitmap": e.stats.Bitmap,
			"cgoto":  e.stats.ComputedGoto,
		}).Debug("block generated")
	}
	return e.stats, nil
}

// GenerateTypes writes the condition constants.
func GenerateTypes(out Sink, cfg config.Config, conds []string) error {
	tgt, err := NewTarget(cfg.Target)
	if err != nil {
		return err
	}
	for _, l := range tgt.CondTypes(cfg.CondPrefix, conds) {
		out.WriteText(l + "\n")
	}
	return nil
}

func (e *emitter) run(out Sink) {
	e.out = out
	e.refs = make(map[string]bool)
	e.seen = uses{}

	e.line(0, "{")
	e.declare()
	if len(e.block.Units) > 0 && e.block.Units[0].Cond != "" {
		e.condSwitch()
	}
	for _, u := range e.block.Units {
		if u.Cond != "" {
			e.out.WriteText(e.cfg.CondLabel + u.Cond + ":\n")
		}
		e.unit(u.ADFA)
	}
	e.line(0, "}")
}

func (e *emitter) line(depth int, s string) {
	e.out.WriteText(strings.Repeat("\t", depth) + s + "\n")
}

func (e *emitter) lines(depth int, ls []string) {
	for _, l := range ls {
		e.line(depth, l)
	}
}

func (e *emitter) stmt(depth int, s string) {
	e.line(depth, e.tgt.Stmt(s))
}

func (e *emitter) labelName(n int) string {
	return e.cfg.LabelPrefix + strconv.Itoa(n)
}

func (e *emitter) label(n int) {
	if name := e.labelName(n); e.used[name] {
		e.out.WriteText(name + ":\n")
	}
}

func (e *emitter) gotoLabel(depth int, name string) {
	e.refs[name] = true
	e.lines(depth, e.tgt.Goto(name))
}

func (e *emitter) gotoState(depth int, to *adfa.State) {
	e.gotoLabel(depth, e.labelName(to.Label))
}

func (e *emitter) declare() {
	if e.decl.yych {
		e.line(1, e.tgt.Var("yych", e.tgt.CharType(e.cfg.CharType), ""))
	}
	for _, u := range e.block.Units {
		if !u.ADFA.UsesAccept() {
			continue
		}
		if e.tgt.Name() == config.TargetC {
			e.line(1, e.tgt.Var("yyaccept", "unsigned int", "0"))
		} else {
			e.line(1, e.tgt.Var("yyaccept", "int", ""))
		}
		break
	}
	if e.decl.bitmap {
		e.lines(1, e.tgt.ByteTable("yybm", e.bitmapRows()))
	}
}

func (e *emitter) bitmapRows() [][]string {
	tab := e.block.Bitmaps.Table()
	var rows [][]string
	for i := 0; i < len(tab); i += 8 {
		row := make([]string, 0, 8)
		for _, v := range tab[i:min(i+8, len(tab))] {
			row = append(row, e.byteLiteral(v))
		}
		rows = append(rows, row)
	}
	return rows
}

func (e *emitter) byteLiteral(v byte) string {
	if e.cfg.BitmapHex {
		return fmt.Sprintf("0x%02X", v)
	}
	return strconv.Itoa(int(v))
}

func (e *emitter) condSwitch() {
	e.line(1, e.tgt.Switch(e.cfg.API.Cond))
	for _, u := range e.block.Units {
		e.lines(1, e.tgt.Case([]string{e.cfg.CondPrefix + u.Cond}))
		e.gotoLabel(2, e.cfg.CondLabel+u.Cond)
	}
	e.line(1, e.tgt.End())
}

func (e *emitter) unit(a *adfa.ADFA) {
	if sel, ok := a.NoneSelector(); ok {
		e.setAccept(a, sel)
	}
	if e.used[e.labelName(a.Head.Label)] {
		e.gotoLabel(1, e.labelName(a.StartLabel))
	}
	for i, s := range a.States {
		var next *adfa.State
		if i+1 < len(a.States) {
			next = a.States[i+1]
		}
		e.state(a, s, next)
	}
}

func (e *emitter) state(a *adfa.ADFA, s, next *adfa.State) {
	act := &s.Action
	switch act.Kind {
	case adfa.InitialAction:
		e.initial(a, s)
	case adfa.MatchAction:
		e.label(s.Label)
		e.stmt(1, e.cfg.API.Skip)
		e.enter(s)
	case adfa.SaveAction:
		e.label(s.Label)
		e.setAccept(a, act.Selector)
		e.stmt(1, e.cfg.API.Skip)
		if a.UsesMarker() {
			e.stmt(1, e.cfg.API.Backup)
		}
		e.enter(s)
	case adfa.MoveAction:
		e.label(s.Label)
	case adfa.AcceptAction:
		e.label(s.Label)
		e.accept(s)
		return
	case adfa.RuleAction:
		e.label(s.Label)
		e.rule(act)
		return
	case adfa.NoMatchAction:
		e.label(s.Label)
		e.noMatch()
		return
	}
	e.genGoto(a, s, next)
}

func (e *emitter) initial(a *adfa.ADFA, s *adfa.State) {
	e.label(s.Label)
	if e.used[e.labelName(s.Label)] {
		e.stmt(1, e.cfg.API.Skip)
		e.out.WriteText(e.labelName(s.Action.Label) + ":\n")
	}
	e.need(s)
	if s.Action.SetMarker && a.UsesMarker() {
		e.setAccept(a, s.Action.Selector)
		e.stmt(1, e.cfg.API.Backup)
	}
	if s.IsContext {
		e.stmt(1, e.cfg.API.BackupCtx)
	}
	e.peek(s)
}

// enter finishes the entry of a state after the skip.
func (e *emitter) enter(s *adfa.State) {
	if s.IsContext {
		e.stmt(1, e.cfg.API.BackupCtx)
	}
	e.need(s)
	e.peek(s)
}

func (e *emitter) need(s *adfa.State) {
	if !e.cfg.Fill || !s.Key || s.Depth == 0 {
		return
	}
	fill := config.Placeholder(e.cfg.API.Fill, s.Depth)
	if !e.cfg.FillParam {
		fill = strings.ReplaceAll(e.cfg.API.Fill, config.FillPlaceholder, "")
	}
	e.line(1, e.tgt.If(config.Placeholder(e.cfg.API.LessThan, s.Depth)))
	e.stmt(2, fill)
	e.line(1, e.tgt.End())
}

// peek loads yych when the state, or the move state it falls into, compares it.
func (e *emitter) peek(s *adfa.State) {
	compares := len(s.Spans) > 1
	if len(s.Spans) == 1 {
		to := s.Spans[0].To
		compares = to.Action.Kind == adfa.MoveAction && len(to.Spans) > 1
	}
	if compares {
		e.seen.yych = true
		e.stmt(1, "yych = "+e.cfg.API.Peek)
	}
}

func (e *emitter) setAccept(a *adfa.ADFA, sel int) {
	if a.UsesAccept() {
		e.stmt(1, "yyaccept = "+strconv.Itoa(sel))
	}
}

func (e *emitter) accept(s *adfa.State) {
	accs := s.Action.Accepts
	if len(accs) == 0 {
		e.noMatch()
		return
	}
	if s.Action.NoMatch != nil {
		e.line(1, e.tgt.If("yyaccept == "+strconv.Itoa(len(accs))))
		e.gotoState(2, s.Action.NoMatch)
		e.line(1, e.tgt.End())
	}
	e.stmt(1, e.cfg.API.Restore)
	if len(accs) == 1 {
		e.gotoState(1, accs[0].State)
		return
	}
	switch {
	case e.cfg.ComputedGotos && e.tgt.ComputedGoto() && len(accs) >= e.cfg.Thresholds.ComputedGoto:
		labels := make([]string, len(accs))
		for i, acc := range accs {
			labels[i] = e.labelName(acc.State.Label)
			e.refs[labels[i]] = true
		}
		e.lines(1, e.tgt.JumpTable("yyaccept", labels))
	case e.cfg.NestedIfs:
		e.acceptBinary(1, accs)
	default:
		e.line(1, e.tgt.Switch("yyaccept"))
		for _, acc := range accs[:len(accs)-1] {
			e.lines(1, e.tgt.Case([]string{strconv.Itoa(acc.Selector)}))
			e.gotoState(2, acc.State)
		}
		e.line(1, e.tgt.Default())
		e.gotoState(2, accs[len(accs)-1].State)
		e.line(1, e.tgt.End())
	}
}

func (e *emitter) noMatch() {
	code := e.cfg.NoMatch
	if e.cfg.Skeleton {
		code = "return 0"
	}
	e.out.WriteBlock(1, "{\n"+code+"\n}")
}

func (e *emitter) acceptBinary(depth int, accs []adfa.Accept) {
	if len(accs) == 1 {
		e.gotoState(depth, accs[0].State)
		return
	}
	m := (len(accs) - 1) / 2
	e.line(depth, e.tgt.If("yyaccept <= "+strconv.Itoa(accs[m].Selector)))
	e.acceptBinary(depth+1, accs[:m+1])
	e.line(depth, e.tgt.Else())
	e.acceptBinary(depth+1, accs[m+1:])
	e.line(depth, e.tgt.End())
}

func (e *emitter) rule(act *adfa.Action) {
	r := act.Rule
	if r.HasContext() {
		e.stmt(1, e.cfg.API.RestoreCtx)
	}
	code := strings.TrimSpace(r.Action)
	if e.cfg.Skeleton {
		code = fmt.Sprintf("return %d", uint32(r.Rank))
	}
	if !strings.HasPrefix(code, "{") {
		code = "{\n" + code + "\n}"
	}
	lineInfo := e.cfg.LineDirectives && e.block.File != "" && r.Line > 0
	if lineInfo {
		e.out.WriteLineInfo(e.block.File, r.Line)
	}
	e.out.WriteBlock(1, code)
	if lineInfo {
		e.out.WriteLineInfo("", 0)
	}
}
