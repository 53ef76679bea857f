package graph

import (
	"fmt"

	"github.com/liran-funaro/re2go/diag"
)

type NodeKind uint8

const (
	AltNode NodeKind = iota
	RanNode
	CtxNode
	FinNode
)

func (k NodeKind) String() string {
	switch k {
	case AltNode:
		return "alt"
	case RanNode:
		return "ran"
	case CtxNode:
		return "ctx"
	case FinNode:
		return "fin"
	}
	return fmt.Sprintf("NodeKind(%d)", uint8(k))
}

// NodeID indexes a node of the NFA.
type NodeID int32

// Node is one NFA node. Alt nodes use both outputs, Ran and Ctx nodes use Out1 and Fin
// nodes use none.
type Node struct {
	Kind       NodeKind
	Out1, Out2 NodeID
	Ranges     Ranges
	Rule       *Rule
	mark       bool
}

// NFA is the Thompson automaton of a rule set, stored in an array sized before construction.
type NFA struct {
	Nodes []Node
	Root  NodeID
}

// BuildNfa Regex -> NFA (Nondeterministic Finite Automaton)
// Expressions are compiled right to left: every node is created knowing its successor.
func BuildNfa(a *Arena, root ExprID) *NFA {
	size := a.Size(root)
	b := nfaBuilder{arena: a, nfa: &NFA{Nodes: make([]Node, 0, size)}}
	b.nfa.Root = b.compile(root, -1)
	if len(b.nfa.Nodes) != size {
		panic(diag.Internalf("NFA has %d nodes, expected %d", len(b.nfa.Nodes), size))
	}
	return b.nfa
}

type nfaBuilder struct {
	arena *Arena
	nfa   *NFA
}

func (b *nfaBuilder) newNode(n Node) NodeID {
	if len(b.nfa.Nodes) == cap(b.nfa.Nodes) {
		panic(diag.Internalf("NFA overflows its precomputed size %d", cap(b.nfa.Nodes)))
	}
	b.nfa.Nodes = append(b.nfa.Nodes, n)
	return NodeID(len(b.nfa.Nodes) - 1)
}

// compile returns the node to enter to match e and then continue with t.
func (b *nfaBuilder) compile(id ExprID, t NodeID) NodeID {
	e := b.arena.Expr(id)
	switch e.Kind {
	case NullExpr:
		return t
	case MatchExpr:
		return b.newNode(Node{Kind: RanNode, Ranges: e.Ranges, Out1: t})
	case CatExpr:
		return b.compile(e.X, b.compile(e.Y, t))
	case AltExpr:
		x := b.compile(e.X, t)
		y := b.compile(e.Y, t)
		return b.newNode(Node{Kind: AltNode, Out1: x, Out2: y})
	case CloseExpr:
		// The loop node is needed as the successor of its own body.
		loop := b.newNode(Node{Kind: AltNode, Out2: t})
		body := b.compile(e.X, loop)
		b.nfa.Nodes[loop].Out1 = body
		return loop
	case RuleExpr:
		t = b.newNode(Node{Kind: FinNode, Rule: e.Rule})
		t = b.compile(e.Y, t)
		if !b.arena.emptyContext(e) {
			t = b.newNode(Node{Kind: CtxNode, Out1: t})
		}
		return b.compile(e.X, t)
	}
	panic(diag.Internalf("unknown expression kind %d", e.Kind))
}

// closure appends to kernel every Ran, Ctx and Fin node reachable from id without consuming
// input. Alt nodes are marked only while they are on the stack; kernel nodes stay marked
// until the caller clears them.
func (n *NFA) closure(kernel []NodeID, id NodeID) []NodeID {
	if id < 0 {
		return kernel
	}
	node := &n.Nodes[id]
	if node.mark {
		return kernel
	}
	node.mark = true
	switch node.Kind {
	case AltNode:
		kernel = n.closure(kernel, node.Out1)
		kernel = n.closure(kernel, node.Out2)
		node.mark = false
	case CtxNode:
		kernel = append(kernel, id)
		kernel = n.closure(kernel, node.Out1)
	default:
		kernel = append(kernel, id)
	}
	return kernel
}

func (n *NFA) unmark(kernel []NodeID) {
	for _, id := range kernel {
		n.Nodes[id].mark = false
	}
}
