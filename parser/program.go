package parser

import (
	"slices"
)

type ChunkKind uint8

const (
	// TextChunk is host code copied to the output unchanged.
	TextChunk ChunkKind = iota
	// BlockChunk is a /*!re2go ... */ rule block.
	BlockChunk
	// TypesChunk is a /*!types:re2go*/ marker replaced with the condition constants.
	TypesChunk
	// InputChunk is a /*!input:re2go*/ marker replaced with the Input runtime.
	InputChunk
)

type Chunk struct {
	Kind  ChunkKind
	Line  int
	Text  string
	Block *Block
}

// File is a parsed input file: host code interleaved with rule blocks.
type File struct {
	Name   string
	Chunks []Chunk
}

// Blocks returns the rule blocks in file order.
func (f *File) Blocks() []*Block {
	var res []*Block
	for _, c := range f.Chunks {
		if c.Kind == BlockChunk {
			res = append(res, c.Block)
		}
	}
	return res
}

// Conditions returns every condition of the file in order of first use.
func (f *File) Conditions() []string {
	var res []string
	for _, b := range f.Blocks() {
		for _, c := range b.Conds {
			if !slices.Contains(res, c) {
				res = append(res, c)
			}
		}
	}
	return res
}

// HasTypes reports whether the file asks for the condition constants.
func (f *File) HasTypes() bool {
	return slices.ContainsFunc(f.Chunks, func(c Chunk) bool { return c.Kind == TypesChunk })
}

// Setting is one re2go:key = value; line of a block.
type Setting struct {
	Line  int
	Key   string
	Value string
}

type Rule struct {
	Line int
	// Conds is nil outside condition mode. AllConds marks a <*> rule.
	Conds    []string
	AllConds bool
	Regex    string
	Context  string
	// HasContext is set when a trailing context follows a /, even an empty one.
	HasContext bool
	Default    bool
	Action     string
}

type Block struct {
	Line     int
	Settings []Setting
	Rules    []Rule
	// Conds lists the conditions of the block in order of first use. Empty without
	// conditions.
	Conds []string
}

// RulesFor returns the rules of one condition, the <*> rules last. The empty condition
// returns every rule of a block without conditions.
func (b *Block) RulesFor(cond string) []Rule {
	var own, shared []Rule
	var ownDefault bool
	for _, r := range b.Rules {
		switch {
		case cond == "":
			own = append(own, r)
		case slices.Contains(r.Conds, cond):
			own = append(own, r)
			ownDefault = ownDefault || r.Default
		case r.AllConds:
			shared = append(shared, r)
		}
	}
	for _, r := range shared {
		if r.Default && ownDefault {
			continue
		}
		own = append(own, r)
	}
	return own
}
