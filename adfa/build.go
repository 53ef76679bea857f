package adfa

import (
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/liran-funaro/re2go/diag"
	"github.com/liran-funaro/re2go/graph"
)

type Options struct {
	// Bitmaps collects the shared self-loop tables, nil disables them.
	Bitmaps *Bitmaps
	// MaxFill bounds the fill distance of any state.
	MaxFill int
	// FirstLabel is the next free label of the enclosing block.
	FirstLabel int
	Cond       string
	// Line is reported with errors about the whole rule set.
	Line int
	Log  *logrus.Entry
}

// Build decorates a minimized DFA with actions, resolves every missing transition and lays
// the states out in emission order.
func Build(d *graph.DFA, opts Options) (*ADFA, error) {
	b := &builder{opts: opts}
	if err := b.convert(d); err != nil {
		return nil, err
	}
	b.findSCCs()
	if err := b.calcDepth(); err != nil {
		return nil, err
	}
	b.markSaves()
	b.resolveNil()
	b.splitBases()
	b.findBaseStates()
	b.assignLabels()
	b.check()

	a := &ADFA{
		Head:       b.order[0],
		States:     b.order,
		Ceiling:    d.Charset.Ceiling(),
		StartLabel: b.startLabel,
		NextLabel:  b.nextLabel,
		MaxFill:    b.maxFill,
		Accepts:    b.accepts,
		Bitmaps:    opts.Bitmaps,
		Cond:       opts.Cond,
	}
	if opts.Log != nil {
		opts.Log.WithFields(logrus.Fields{
			"cond":    opts.Cond,
			"states":  len(a.States),
			"maxFill": a.MaxFill,
			"accepts": len(a.Accepts),
		}).Debug("adfa built")
	}
	return a, nil
}

type builder struct {
	opts Options
	// order is the emission order.
	order []*State
	link  []int
	depth []int

	ceiling    uint32
	selectors  map[graph.Rank]int
	saveOnHead bool
	headSel    int
	accepts    []Accept
	maxFill    int
	startLabel int
	nextLabel  int
}

func (b *builder) convert(d *graph.DFA) error {
	b.ceiling = d.Charset.Ceiling()
	b.order = make([]*State, len(d.States))
	for i, st := range d.States {
		b.order[i] = &State{Rule: st.Rule, IsContext: st.IsContext}
	}
	for i, st := range d.States {
		s := b.order[i]
		for c, to := range st.Arcs {
			var t *State
			if to != graph.Nil {
				t = b.order[to]
			}
			ub := d.Charset.Bounds(c).Ub
			if n := len(s.Spans); n > 0 && s.Spans[n-1].To == t {
				s.Spans[n-1].Ub = ub
				continue
			}
			s.Spans = append(s.Spans, Span{Ub: ub, To: t})
		}
		if s.Rule == nil && !slices.ContainsFunc(s.Spans, func(sp Span) bool { return sp.To != nil }) {
			return diag.Fatalf(b.opts.Line, "state %d has neither a rule nor a transition", i)
		}
	}
	return nil
}

// findSCCs marks the key states: the head and every state on a cycle.
func (b *builder) findSCCs() {
	n := len(b.order)
	b.link = make([]int, n)
	b.depth = make([]int, n)
	for i := range b.link {
		b.link[i] = -1
	}
	idx := make(map[*State]int, n)
	for i, s := range b.order {
		idx[s] = i
	}
	var stk []int
	const infinity = int(^uint(0) >> 1)
	var traverse func(x int)
	traverse = func(x int) {
		stk = append(stk, x)
		k := len(stk)
		b.depth[x] = k
		for _, sp := range b.order[x].Spans {
			if sp.To == nil {
				continue
			}
			y := idx[sp.To]
			if b.depth[y] == 0 {
				traverse(y)
			}
			b.depth[x] = min(b.depth[x], b.depth[y])
		}
		if b.depth[x] == k {
			for {
				top := stk[len(stk)-1]
				stk = stk[:len(stk)-1]
				b.depth[top] = infinity
				b.link[top] = x
				if top == x {
					break
				}
			}
		}
	}
	for i := range b.order {
		if b.depth[i] == 0 {
			traverse(i)
		}
	}

	for i, s := range b.order {
		s.Key = i == 0 || b.nonTrivial(i, idx)
	}
}

func (b *builder) nonTrivial(i int, idx map[*State]int) bool {
	if b.link[i] != i {
		return true
	}
	for _, sp := range b.order[i].Spans {
		if sp.To != nil && b.link[idx[sp.To]] == i {
			return true
		}
	}
	return false
}

// calcDepth computes, for every state, the longest run of transitions before a key state
// is reached. Non-key states form a DAG, so the recursion ends.
func (b *builder) calcDepth() error {
	const unknown = -1
	idx := make(map[*State]int, len(b.order))
	for i, s := range b.order {
		idx[s] = i
		b.depth[i] = unknown
	}
	visits := make([]uint8, len(b.order))
	var maxDist func(i int) int
	maxDist = func(i int) int {
		if b.depth[i] != unknown {
			return b.depth[i]
		}
		if visits[i]++; visits[i] > 1 {
			panic(diag.Internalf("cycle through non-key state %d", i))
		}
		mm := 0
		for _, sp := range b.order[i].Spans {
			if sp.To == nil {
				continue
			}
			m := 1
			if !sp.To.Key {
				m += maxDist(idx[sp.To])
			}
			mm = max(mm, m)
		}
		b.depth[i] = mm
		return mm
	}
	for i, s := range b.order {
		s.Depth = maxDist(i)
		if s.Depth > b.opts.MaxFill {
			return diag.Overflowf(b.opts.Line, "fill distance %d exceeds the maximum of %d", s.Depth, b.opts.MaxFill)
		}
		b.maxFill = max(b.maxFill, s.Depth)
	}
	return nil
}

// markSaves turns every rule state that can move on into a rule-less state into a
// backtracking point. Selectors follow rule rank.
func (b *builder) markSaves() {
	var ranks []graph.Rank
	var saved []*State
	for _, s := range b.order {
		if s.Rule == nil {
			continue
		}
		if slices.ContainsFunc(s.Spans, func(sp Span) bool { return sp.To != nil && sp.To.Rule == nil }) {
			saved = append(saved, s)
			if !slices.Contains(ranks, s.Rule.Rank) {
				ranks = append(ranks, s.Rule.Rank)
			}
		}
	}
	slices.Sort(ranks)
	b.selectors = make(map[graph.Rank]int, len(ranks))
	for i, r := range ranks {
		b.selectors[r] = i
	}
	for _, s := range saved {
		s.Action = Action{Kind: SaveAction, Selector: b.selectors[s.Rule.Rank]}
		if s == b.order[0] {
			b.saveOnHead, b.headSel = true, s.Action.Selector
		}
	}
}

func (b *builder) insertAfter(s, n *State) {
	i := slices.Index(b.order, s)
	b.order = slices.Insert(b.order, i+1, n)
}

// pending computes which selectors may be saved on entry to every state. Index
// len(selectors) stands for a path on which no rule was saved.
func (b *builder) pending() map[*State][]bool {
	none := len(b.selectors)
	in := make(map[*State][]bool, len(b.order))
	for _, s := range b.order {
		in[s] = make([]bool, none+1)
	}
	head := b.order[0]
	in[head][none] = true
	work := []*State{head}
	for len(work) > 0 {
		s := work[len(work)-1]
		work = work[:len(work)-1]
		out := in[s]
		if s.Action.Kind == SaveAction {
			out = make([]bool, none+1)
			out[s.Action.Selector] = true
		}
		for _, sp := range s.Spans {
			if sp.To == nil {
				continue
			}
			changed := false
			for i, on := range out {
				if on && !in[sp.To][i] {
					in[sp.To][i] = true
					changed = true
				}
			}
			if changed {
				work = append(work, sp.To)
			}
		}
	}
	return in
}

// resolveNil sends every missing transition to the rule state of its source. A source
// without a rule goes to the no-match state when no rule can be saved before it, and to
// the shared accept state otherwise.
func (b *builder) resolveNil() {
	none := len(b.selectors)
	pend := b.pending()
	rules := make(map[graph.Rank]*State)
	var accept, noMatch *State
	mixed := false
	for i := 0; i < len(b.order); i++ {
		s := b.order[i]
		switch s.Action.Kind {
		case RuleAction, AcceptAction, NoMatchAction:
			continue
		}
		var ow *State
		var create func() *State
		unsaved := false
		switch {
		case s.Rule != nil:
			if rules[s.Rule.Rank] == nil {
				n := &State{Action: Action{Kind: RuleAction, Rule: s.Rule}}
				rules[s.Rule.Rank] = n
				b.insertAfter(s, n)
			}
			ow = rules[s.Rule.Rank]
		case !slices.Contains(pend[s][:none], true):
			ow = noMatch
			create = func() *State {
				noMatch = &State{Action: Action{Kind: NoMatchAction}}
				b.insertAfter(s, noMatch)
				return noMatch
			}
		default:
			unsaved = pend[s][none]
			ow = accept
			create = func() *State {
				accept = &State{Action: Action{Kind: AcceptAction}}
				b.insertAfter(s, accept)
				return accept
			}
		}
		for k := range s.Spans {
			if s.Spans[k].To != nil {
				continue
			}
			if ow == nil {
				ow = create()
			}
			s.Spans[k].To = ow
			mixed = mixed || unsaved
		}
		s.Fallback = ow
	}

	b.accepts = make([]Accept, len(b.selectors))
	for rank, sel := range b.selectors {
		b.accepts[sel] = Accept{Selector: sel, Rule: rules[rank].Action.Rule, State: rules[rank]}
	}
	if accept == nil {
		return
	}
	accept.Action.Accepts = b.accepts
	if mixed {
		if noMatch == nil {
			noMatch = &State{Action: Action{Kind: NoMatchAction}}
			b.insertAfter(accept, noMatch)
		}
		accept.Action.NoMatch = noMatch
	}
}

// splitBases moves the dispatch of every self-looping key state into a new state that
// follows it, leaving the base with a single span.
func (b *builder) splitBases() {
	for i := 0; i < len(b.order); i++ {
		s := b.order[i]
		s.IsBase = false
		if !s.Key || !slices.ContainsFunc(s.Spans, func(sp Span) bool { return sp.To == s }) {
			continue
		}
		s.IsBase = true
		move := &State{
			Key:      true,
			Rule:     s.Rule,
			Action:   Action{Kind: MoveAction},
			Spans:    s.Spans,
			Fallback: s.Fallback,
		}
		s.Rule = nil
		s.Spans = []Span{{Ub: b.ceiling, To: move}}
		b.insertAfter(s, move)
		if b.opts.Bitmaps != nil {
			b.opts.Bitmaps.find(move.Spans, s)
		}
		i++
	}
}

// findBaseStates lets a non-key state share the dispatch of a base state it jumps to when
// that shortens its own span list.
func (b *builder) findBaseStates() {
	for _, s := range b.order {
		if s.Key || s.Action.Kind == RuleAction || s.Action.Kind == AcceptAction || s.Action.Kind == NoMatchAction {
			continue
		}
		for _, sp := range s.Spans {
			if !sp.To.IsBase {
				continue
			}
			mv := sp.To.Spans[0].To
			if merged := merge(s.Spans, mv.Spans, mv); len(merged) < len(s.Spans) {
				s.Spans = merged
			}
			break
		}
	}
}

// merge overlays fg on bg: wherever both go to the same state the result goes to bgState.
// Both span lists cover the same alphabet.
func merge(fg, bg []Span, bgState *State) []Span {
	var res []Span
	var prev *State
	put := func(to *State, ub uint32) {
		if to == prev && len(res) > 0 {
			res[len(res)-1].Ub = ub
			return
		}
		prev = to
		res = append(res, Span{Ub: ub, To: to})
	}
	f, g := 0, 0
	for f < len(fg) && g < len(bg) {
		to := fg[f].To
		if fg[f].To == bg[g].To {
			to = bgState
		}
		switch {
		case fg[f].Ub == bg[g].Ub:
			put(to, fg[f].Ub)
			f++
			g++
		case fg[f].Ub < bg[g].Ub:
			put(to, fg[f].Ub)
			f++
		default:
			put(to, bg[g].Ub)
			g++
		}
	}
	return res
}

func (b *builder) assignLabels() {
	head := b.order[0]
	b.nextLabel = b.opts.FirstLabel
	b.startLabel = b.nextLabel
	b.nextLabel++
	head.Action = Action{Kind: InitialAction, Label: b.startLabel, SetMarker: b.saveOnHead, Selector: b.headSel}
	for _, s := range b.order {
		s.Label = b.nextLabel
		b.nextLabel++
	}
}

func (b *builder) check() {
	for _, s := range b.order {
		for _, sp := range s.Spans {
			if sp.To == nil {
				panic(diag.Internalf("unresolved transition in state %d", s.Label))
			}
		}
		if n := len(s.Spans); n > 0 && s.Spans[n-1].Ub != b.ceiling {
			panic(diag.Internalf("spans of state %d end at %#x", s.Label, s.Spans[n-1].Ub))
		}
	}
}
