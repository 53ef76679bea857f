package graph

import (
	"encoding/binary"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// StateID indexes a DFA state. Nil means no transition.
type StateID int32

const Nil StateID = -1

type State struct {
	Arcs      []StateID // One per character class.
	Rule      *Rule     // Lowest-rank rule finishing in this state.
	IsContext bool      // The kernel holds a trailing-context marker.
	Kernel    []NodeID  // Sorted NFA nodes represented by this state.
}

// DFA is a deterministic automaton over the classes of Charset. State 0 is the start state.
type DFA struct {
	States  []*State
	Charset Charset
	Rules   []*Rule
	// Shadows lists, per rule rank, the ranks that won over it in some state.
	Shadows map[Rank][]Rank
}

// BuildDfa NFA -> DFA
// DFA: Deterministic Finite Automaton
func BuildDfa(nfa *NFA, cs Charset, rules []*Rule) *DFA {
	b := dfaBuilder{
		nfa: nfa,
		cs:  cs,
		tab: make(map[uint64][]StateID),
		dfa: &DFA{Charset: cs, Rules: rules, Shadows: make(map[Rank][]Rank)},
	}

	// The DFA start state is the closure of the NFA root. It exists even when the
	// closure is empty.
	kernel := b.canonical(nfa.closure(nil, nfa.Root))
	if len(kernel) > 0 {
		b.get(kernel)
	} else {
		b.newState(kernel)
	}

	for len(b.todo) > 0 {
		b.expand(b.nextTodo())
	}
	return b.dfa
}

type dfaBuilder struct {
	nfa  *NFA
	cs   Charset
	tab  map[uint64][]StateID
	todo []StateID
	dfa  *DFA
	buf  []byte
}

// expand fills the arcs of one state.
func (b *dfaBuilder) expand(id StateID) {
	st := b.dfa.States[id]
	reach := make([][]NodeID, b.cs.Classes())
	for _, n := range st.Kernel {
		node := &b.nfa.Nodes[n]
		if node.Kind != RanNode {
			continue
		}
		for _, r := range node.Ranges {
			from, to := b.cs.classSpan(r)
			for c := from; c < to; c++ {
				reach[c] = append(reach[c], node.Out1)
			}
		}
	}
	for c, outs := range reach {
		var kernel []NodeID
		for _, out := range outs {
			kernel = b.nfa.closure(kernel, out)
		}
		st.Arcs[c] = b.get(b.canonical(kernel))
	}
}

// canonical clears the closure marks and sorts the kernel.
func (b *dfaBuilder) canonical(kernel []NodeID) []NodeID {
	b.nfa.unmark(kernel)
	slices.Sort(kernel)
	return kernel
}

func (b *dfaBuilder) makeStKey(kernel []NodeID) uint64 {
	b.buf = b.buf[:0]
	for _, n := range kernel {
		b.buf = binary.LittleEndian.AppendUint32(b.buf, uint32(n))
	}
	return xxhash.Sum64(b.buf)
}

// get returns the state of a canonical kernel, creating it on first sight.
func (b *dfaBuilder) get(kernel []NodeID) StateID {
	if len(kernel) == 0 {
		return Nil
	}
	key := b.makeStKey(kernel)
	for _, id := range b.tab[key] {
		if slices.Equal(b.dfa.States[id].Kernel, kernel) {
			return id
		}
	}
	id := b.newState(kernel)
	b.tab[key] = append(b.tab[key], id)
	return id
}

func (b *dfaBuilder) newState(kernel []NodeID) StateID {
	st := &State{
		Arcs:   make([]StateID, b.cs.Classes()),
		Kernel: kernel,
	}
	for _, n := range kernel {
		node := &b.nfa.Nodes[n]
		switch node.Kind {
		case CtxNode:
			st.IsContext = true
		case FinNode:
			switch {
			case st.Rule == nil:
				st.Rule = node.Rule
			case node.Rule.Rank < st.Rule.Rank:
				b.shadow(st.Rule, node.Rule)
				st.Rule = node.Rule
			default:
				b.shadow(node.Rule, st.Rule)
			}
		}
	}
	id := StateID(len(b.dfa.States))
	b.dfa.States = append(b.dfa.States, st)
	b.todo = append(b.todo, id)
	return id
}

func (b *dfaBuilder) shadow(loser, winner *Rule) {
	if loser.Rank == winner.Rank || slices.Contains(b.dfa.Shadows[loser.Rank], winner.Rank) {
		return
	}
	b.dfa.Shadows[loser.Rank] = append(b.dfa.Shadows[loser.Rank], winner.Rank)
}

func (b *dfaBuilder) nextTodo() StateID {
	v := b.todo[len(b.todo)-1]
	b.todo = b.todo[:len(b.todo)-1]
	return v
}

// Rule returns the rule of the given rank.
func (d *DFA) Rule(rank Rank) *Rule {
	for _, r := range d.Rules {
		if r.Rank == rank {
			return r
		}
	}
	return nil
}
