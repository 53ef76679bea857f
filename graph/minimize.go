package graph

import (
	"encoding/binary"
	"fmt"
)

type Minimization uint8

const (
	// MinimizeMoore refines a partition of the states until no group splits.
	MinimizeMoore Minimization = iota
	// MinimizeTable fills the pairwise distinguishability table. It is quadratic and kept
	// as a reference for Moore.
	MinimizeTable
)

func (m Minimization) String() string {
	switch m {
	case MinimizeMoore:
		return "moore"
	case MinimizeTable:
		return "table"
	}
	return fmt.Sprintf("Minimization(%d)", uint8(m))
}

// Minimize merges equivalent states in place and renumbers the survivors. The start state
// stays state 0.
func (d *DFA) Minimize(alg Minimization) {
	d.pruneDead()
	var part []int
	switch alg {
	case MinimizeTable:
		part = d.tablePartition()
	default:
		part = d.moorePartition()
	}
	d.compact(part)
}

func seedEqual(a, b *State) bool {
	return a.Rule.rank() == b.Rule.rank() && a.IsContext == b.IsContext
}

func (r *Rule) rank() Rank {
	if r == nil {
		return RankNone
	}
	return r.Rank
}

// tablePartition maps each state to the smallest state it cannot be told apart from.
func (d *DFA) tablePartition() []int {
	n := len(d.States)
	mark := make([][]bool, n)
	for i := 0; i < n; i++ {
		mark[i] = make([]bool, i)
		for j := 0; j < i; j++ {
			mark[i][j] = !seedEqual(d.States[i], d.States[j])
		}
	}
	distinct := func(a, b StateID) bool {
		switch {
		case a == b:
			return false
		case a == Nil || b == Nil:
			return true
		case a < b:
			a, b = b, a
		}
		return mark[a][b]
	}

	for changed := true; changed; {
		changed = false
		for i := 0; i < n; i++ {
			for j := 0; j < i; j++ {
				if mark[i][j] {
					continue
				}
				ai, aj := d.States[i].Arcs, d.States[j].Arcs
				for c := range ai {
					if distinct(ai[c], aj[c]) {
						mark[i][j] = true
						changed = true
						break
					}
				}
			}
		}
	}

	part := make([]int, n)
	for i := 0; i < n; i++ {
		part[i] = i
		for j := 0; j < i; j++ {
			if !mark[i][j] {
				part[i] = j
				break
			}
		}
	}
	return part
}

// moorePartition refines groups of states by the groups their arcs lead to. Groups keep
// their members in ascending order, so the first member is the representative.
func (d *DFA) moorePartition() []int {
	n := len(d.States)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	var key []byte
	groups := refine(all, func(i int) string {
		st := d.States[i]
		key = binary.LittleEndian.AppendUint32(key[:0], uint32(st.Rule.rank()))
		if st.IsContext {
			key = append(key, 1)
		}
		return string(key)
	})

	part := make([]int, n)
	for {
		for _, g := range groups {
			for _, i := range g {
				part[i] = g[0]
			}
		}
		var next [][]int
		for _, g := range groups {
			if len(g) == 1 {
				next = append(next, g)
				continue
			}
			next = append(next, refine(g, func(i int) string {
				key = key[:0]
				for _, to := range d.States[i].Arcs {
					v := ^uint32(0)
					if to != Nil {
						v = uint32(part[to])
					}
					key = binary.LittleEndian.AppendUint32(key, v)
				}
				return string(key)
			})...)
		}
		if len(next) == len(groups) {
			return part
		}
		groups = next
	}
}

// refine splits states by signature. Groups come out ordered by their first member.
func refine(states []int, sig func(int) string) [][]int {
	index := make(map[string]int)
	var groups [][]int
	for _, s := range states {
		k := sig(s)
		g, ok := index[k]
		if !ok {
			g = len(groups)
			index[k] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], s)
	}
	return groups
}

// pruneDead redirects to Nil every arc leading to a state that cannot reach a rule.
func (d *DFA) pruneDead() {
	live := make([]bool, len(d.States))
	for changed := true; changed; {
		changed = false
		for i, st := range d.States {
			if live[i] {
				continue
			}
			if st.Rule != nil {
				live[i] = true
				changed = true
				continue
			}
			for _, to := range st.Arcs {
				if to != Nil && live[to] {
					live[i] = true
					changed = true
					break
				}
			}
		}
	}
	for _, st := range d.States {
		for c, to := range st.Arcs {
			if to != Nil && !live[to] {
				st.Arcs[c] = Nil
			}
		}
	}
}

// compact keeps the representatives reachable from the start state and rewrites their arcs
// to the new numbering.
func (d *DFA) compact(part []int) {
	index := make([]StateID, len(d.States))
	for i := range index {
		index[i] = Nil
	}
	order := []int{part[0]}
	index[part[0]] = 0
	for pos := 0; pos < len(order); pos++ {
		for _, to := range d.States[order[pos]].Arcs {
			if to == Nil {
				continue
			}
			if rep := part[to]; index[rep] == Nil {
				index[rep] = StateID(len(order))
				order = append(order, rep)
			}
		}
	}

	states := make([]*State, len(order))
	for k, i := range order {
		st := d.States[i]
		arcs := make([]StateID, len(st.Arcs))
		for c, to := range st.Arcs {
			arcs[c] = Nil
			if to != Nil {
				arcs[c] = index[part[to]]
			}
		}
		st.Arcs = arcs
		states[k] = st
	}
	d.States = states
}
