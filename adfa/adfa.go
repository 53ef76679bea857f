// Package adfa turns a minimized DFA into the action-annotated automaton the code
// generator walks: every state knows what to do on entry (skip, save, restore, run a rule),
// how much input it needs, and where each span of code units leads.
package adfa

import (
	"fmt"

	"github.com/liran-funaro/re2go/graph"
)

type ActionKind uint8

const (
	MatchAction ActionKind = iota
	InitialAction
	SaveAction
	MoveAction
	AcceptAction
	RuleAction
	NoMatchAction
)

func (k ActionKind) String() string {
	switch k {
	case MatchAction:
		return "match"
	case InitialAction:
		return "initial"
	case SaveAction:
		return "save"
	case MoveAction:
		return "move"
	case AcceptAction:
		return "accept"
	case RuleAction:
		return "rule"
	case NoMatchAction:
		return "no-match"
	}
	return fmt.Sprintf("ActionKind(%d)", uint8(k))
}

// Accept routes one saved selector to the state running its rule.
type Accept struct {
	Selector int
	Rule     *graph.Rule
	State    *State
}

// Action is what a state does when entered, before it dispatches on the next code unit.
type Action struct {
	Kind ActionKind
	// Label is the entry label of an initial action.
	Label int
	// SetMarker asks an initial action to back the cursor up, Selector is then stored as
	// for a save action.
	SetMarker bool
	Selector  int
	// Accepts lists the saved rules in selector order.
	Accepts []Accept
	// NoMatch is taken by an accept action when no rule was saved on the way, which the
	// selector len(Accepts) stands for.
	NoMatch *State
	Rule    *graph.Rule
}

// Span routes the code units below Ub, and at or above the previous span's Ub, to To.
type Span struct {
	Ub uint32
	To *State
}

type State struct {
	Label int
	// Depth is the number of code units that must be available on entry. It is only
	// checked in key states.
	Depth     int
	Key       bool
	IsBase    bool
	IsContext bool
	// Rule is the rule recorded by the DFA state, carried by the moved half after a split.
	Rule   *graph.Rule
	Action Action
	Spans  []Span
	// Fallback is where the state goes when the input ends. Nil means the accept logic.
	Fallback *State
}

// ADFA is the emission-ordered state list of one rule set.
type ADFA struct {
	Head       *State
	States     []*State
	Ceiling    uint32
	StartLabel int
	NextLabel  int
	MaxFill    int
	// Accepts maps every selector to its rule state.
	Accepts []Accept
	Bitmaps *Bitmaps
	Cond    string
}

// Target returns the state reached from s on code unit c.
func (s *State) Target(c uint32) *State {
	for _, sp := range s.Spans {
		if c < sp.Ub {
			return sp.To
		}
	}
	return nil
}

func (a *ADFA) acceptState() *State {
	for _, s := range a.States {
		if s.Action.Kind == AcceptAction {
			return s
		}
	}
	return nil
}

// UsesMarker reports whether some path restores the backed up cursor.
func (a *ADFA) UsesMarker() bool {
	acc := a.acceptState()
	return acc != nil && len(acc.Action.Accepts) > 0
}

// UsesAccept reports whether the accept logic has to tell several outcomes apart.
func (a *ADFA) UsesAccept() bool {
	acc := a.acceptState()
	return acc != nil && (len(acc.Action.Accepts) > 1 || acc.Action.NoMatch != nil)
}

// NoneSelector returns the selector meaning that nothing was saved yet, when the accept
// logic can be reached without a saved rule.
func (a *ADFA) NoneSelector() (int, bool) {
	acc := a.acceptState()
	if acc == nil || acc.Action.NoMatch == nil {
		return 0, false
	}
	return len(acc.Action.Accepts), true
}

// UsesContext reports whether some rule restores the cursor to its context marker.
func (a *ADFA) UsesContext() bool {
	for _, s := range a.States {
		if s.Action.Kind == RuleAction && s.Action.Rule.HasContext() {
			return true
		}
	}
	return false
}
