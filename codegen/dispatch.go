package codegen

import (
	"fmt"
	"strconv"

	"github.com/liran-funaro/re2go/adfa"
)

// maxSwitchCases bounds the case values of one switch. Wider dispatches use comparisons.
const maxSwitchCases = 256

type strategy uint8

const (
	linearStrategy strategy = iota
	binaryStrategy
	switchStrategy
)

func (st *Stats) add(s strategy) {
	switch s {
	case linearStrategy:
		st.Linear++
	case binaryStrategy:
		st.Binary++
	case switchStrategy:
		st.Switch++
	}
}

// genGoto emits the dispatch of from on yych. Falling through to next is allowed.
func (e *emitter) genGoto(a *adfa.ADFA, from, next *adfa.State) {
	spans := from.Spans
	wide := a.Ceiling > 0x100
	if e.cfg.ComputedGotos && e.tgt.ComputedGoto() && e.jumpTableWorthy(a, spans, wide) {
		e.stats.ComputedGoto++
		e.computedGoto(a, from, next, spans, wide)
		return
	}
	if a.Bitmaps != nil && len(spans) > 1 {
		for _, sp := range spans {
			if bm := e.bitmapOf(a, spans, sp.To); bm != nil {
				e.stats.Bitmap++
				e.bitmap(from, next, spans, sp.To, bm, wide)
				return
			}
		}
	}
	e.stats.add(e.strategy(spans))
	e.genBase(1, from, next, spans, true)
}

func (e *emitter) bitmapOf(a *adfa.ADFA, spans []adfa.Span, to *adfa.State) *adfa.Bitmap {
	if !to.IsBase {
		return nil
	}
	bm := a.Bitmaps.Lookup(to)
	if bm == nil || !adfa.Matches(bm.Spans, bm.On, spans, to) {
		return nil
	}
	return bm
}

func (e *emitter) jumpTableWorthy(a *adfa.ADFA, spans []adfa.Span, wide bool) bool {
	nBitmaps, dSpans := 0, 0
	targets := make(map[*adfa.State]bool)
	for _, sp := range spans {
		if wide && sp.Ub >= 0x100 {
			continue
		}
		if a.Bitmaps != nil && e.bitmapOf(a, spans, sp.To) != nil {
			nBitmaps++
			continue
		}
		dSpans++
		targets[sp.To] = true
	}
	lTargets := len(targets) >> nBitmaps
	return lTargets >= e.cfg.Thresholds.ComputedGoto || dSpans >= e.cfg.Thresholds.ComputedGoto
}

// highSpans keeps the spans reaching above the single-byte range.
func highSpans(spans []adfa.Span) []adfa.Span {
	var res []adfa.Span
	for _, sp := range spans {
		if sp.Ub > 0x100 {
			res = append(res, sp)
		}
	}
	return res
}

func (e *emitter) computedGoto(a *adfa.ADFA, from, next *adfa.State, spans []adfa.Span, wide bool) {
	e.seen.yych = true
	depth := 1
	if wide {
		e.line(1, e.tgt.If(e.tgt.Wide("yych")))
		e.genBase(2, from, next, highSpans(spans), false)
		e.line(1, e.tgt.Else())
		depth = 2
	}
	width := min(a.Ceiling, 0x100)
	labels := make([]string, 0, width)
	k := 0
	for c := uint32(0); c < width; c++ {
		for c >= spans[k].Ub {
			k++
		}
		name := e.labelName(spans[k].To.Label)
		e.refs[name] = true
		labels = append(labels, name)
	}
	e.lines(depth, e.tgt.JumpTable("yych", labels))
	if wide {
		e.line(1, e.tgt.End())
	}
}

func (e *emitter) bitmap(from, next *adfa.State, spans []adfa.Span, to *adfa.State, bm *adfa.Bitmap, wide bool) {
	e.seen.yych, e.seen.bitmap = true, true
	mask := strconv.Itoa(int(bm.Mask))
	if e.cfg.BitmapHex {
		mask = fmt.Sprintf("0x%02X", bm.Mask)
	}
	test := e.tgt.BitTest(bm.Index, "yych", mask)
	if wide {
		e.line(1, e.tgt.If(e.tgt.Wide("yych")))
		e.genBase(2, from, next, highSpans(spans), false)
		e.line(1, e.tgt.ElseIf(test))
		e.gotoState(2, to)
		e.line(1, e.tgt.End())
	} else {
		e.refs[e.labelName(to.Label)] = true
		e.lines(1, e.tgt.IfGoto(test, e.labelName(to.Label)))
	}
	e.genBase(1, from, next, adfa.Unmap(spans, to), true)
}

// utilization is the average width of the inner spans.
func utilization(spans []adfa.Span) uint32 {
	n := uint32(len(spans))
	bot, top := spans[0], spans[n-1]
	switch {
	case bot.To == top.To:
		return (spans[n-2].Ub - bot.Ub) / (n - 2)
	case bot.Ub > top.Ub-spans[n-2].Ub:
		return (top.Ub - bot.Ub) / (n - 1)
	}
	return spans[n-2].Ub / (n - 1)
}

func switchCases(spans []adfa.Span) int {
	def := spans[len(spans)-1].To
	n := 0
	var lb uint32
	for _, sp := range spans {
		if sp.To != def {
			n += int(sp.Ub - lb)
		}
		lb = sp.Ub
	}
	return n
}

func (e *emitter) strategy(spans []adfa.Span) strategy {
	n := len(spans)
	th := e.cfg.Thresholds
	if !e.cfg.NestedIfs || (n > th.Switch && utilization(spans) <= uint32(th.Utilization)) {
		switch {
		case n <= 2:
			return linearStrategy
		case switchCases(spans) <= maxSwitchCases:
			return switchStrategy
		}
	}
	if n > th.Binary {
		return binaryStrategy
	}
	return linearStrategy
}

func (e *emitter) genBase(depth int, from, next *adfa.State, spans []adfa.Span, tail bool) {
	if len(spans) == 0 {
		return
	}
	switch e.strategy(spans) {
	case switchStrategy:
		e.genSwitch(depth, spans)
	case binaryStrategy:
		e.doBinary(depth, next, spans, tail)
	default:
		e.doLinear(depth, next, spans, tail)
	}
}

func (e *emitter) ifGoto(depth int, op string, v uint32, to *adfa.State) {
	e.seen.yych = true
	name := e.labelName(to.Label)
	e.refs[name] = true
	e.lines(depth, e.tgt.IfGoto("yych "+op+" "+e.tgt.Unit(v), name))
}

// doLinear compares the span bounds in order. Two spans around a single code unit that lead
// back to the same state collapse into an equality test.
func (e *emitter) doLinear(depth int, next *adfa.State, s []adfa.Span, tail bool) {
	falls := func(to *adfa.State) bool { return tail && to == next }
	for {
		bg := s[0].To
		for len(s) >= 3 && s[2].To == bg && s[1].Ub-s[0].Ub == 1 {
			if s[1].To == next && len(s) == 3 {
				e.ifGoto(depth, "!=", s[0].Ub, bg)
				if !falls(next) {
					e.gotoState(depth, next)
				}
				return
			}
			e.ifGoto(depth, "==", s[0].Ub, s[1].To)
			s = s[2:]
		}
		switch {
		case len(s) == 1:
			if !falls(s[0].To) {
				e.gotoState(depth, s[0].To)
			}
			return
		case len(s) == 2 && bg == next:
			e.ifGoto(depth, ">=", s[0].Ub, s[1].To)
			if !falls(next) {
				e.gotoState(depth, next)
			}
			return
		}
		e.ifGoto(depth, "<=", s[0].Ub-1, bg)
		s = s[1:]
	}
}

func (e *emitter) doBinary(depth int, next *adfa.State, s []adfa.Span, tail bool) {
	if len(s) <= e.cfg.Thresholds.Linear {
		e.doLinear(depth, next, s, tail)
		return
	}
	e.seen.yych = true
	h := len(s) / 2
	e.line(depth, e.tgt.If("yych <= "+e.tgt.Unit(s[h-1].Ub-1)))
	e.doBinary(depth+1, next, s[:h], tail)
	e.line(depth, e.tgt.Else())
	e.doBinary(depth+1, next, s[h:], tail)
	e.line(depth, e.tgt.End())
}

// genSwitch groups the case values by target. The last span's target is the default.
func (e *emitter) genSwitch(depth int, spans []adfa.Span) {
	e.seen.yych = true
	def := spans[len(spans)-1].To
	var order []*adfa.State
	values := make(map[*adfa.State][]string)
	var lb uint32
	for _, sp := range spans {
		if sp.To != def {
			if _, ok := values[sp.To]; !ok {
				order = append(order, sp.To)
			}
			for c := lb; c < sp.Ub; c++ {
				values[sp.To] = append(values[sp.To], e.tgt.Unit(c))
			}
		}
		lb = sp.Ub
	}
	e.line(depth, e.tgt.Switch("yych"))
	for _, to := range order {
		e.lines(depth, e.tgt.Case(values[to]))
		e.gotoState(depth+1, to)
	}
	e.line(depth, e.tgt.Default())
	e.gotoState(depth+1, def)
	e.line(depth, e.tgt.End())
}
