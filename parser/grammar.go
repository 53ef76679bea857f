package parser

import (
	"errors"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/liran-funaro/re2go/diag"
)

var blockLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Comment", Pattern: `//[^\n]*`},
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
		{Name: "ConfigKey", Pattern: `re2go:[A-Za-z_][A-Za-z0-9_:\-]*`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
		{Name: "Int", Pattern: `-?[0-9]+`},
		{Name: "String", Pattern: `"(\\.|[^"\\\n])*"`},
		{Name: "Raw", Pattern: "`[^`]*`"},
		{Name: "ActionOpen", Pattern: `\{`, Action: lexer.Push("Action")},
		{Name: "Punct", Pattern: `[=;<>,*/]`},
	},
	"Action": {
		{Name: "ActionOpen", Pattern: `\{`, Action: lexer.Push("Action")},
		{Name: "ActionClose", Pattern: `\}`, Action: lexer.Pop()},
		{Name: "ActionString", Pattern: `"(\\.|[^"\\\n])*"|'(\\.|[^'\\\n])*'|` + "`[^`]*`"},
		{Name: "ActionText", Pattern: `[^{}"'` + "`" + `]+`},
	},
})

type blockAST struct {
	Items []*itemAST `parser:"@@*"`
}

type itemAST struct {
	Config *configAST `parser:"  @@"`
	Def    *defAST    `parser:"| @@"`
	Rule   *ruleAST   `parser:"| @@"`
}

type configAST struct {
	Pos   lexer.Position
	Key   string `parser:"@ConfigKey '='"`
	Value string `parser:"@(String | Raw | Int | Ident) ';'"`
}

type defAST struct {
	Pos   lexer.Position
	Name  string `parser:"@Ident '='"`
	Regex string `parser:"@(String | Raw) ';'"`
}

type ruleAST struct {
	Pos     lexer.Position
	Conds   *condsAST `parser:"@@?"`
	Default bool      `parser:"( @'*'"`
	Regex   string    `parser:"| @(String | Raw)"`
	Context *string   `parser:"  ( '/' @(String | Raw) )? )"`
	Action  string    `parser:"@ActionOpen @(ActionOpen | ActionClose | ActionString | ActionText)*"`
}

type condsAST struct {
	All   bool     `parser:"'<' ( @'*'"`
	Names []string `parser:"    | @Ident ( ',' @Ident )* ) '>'"`
}

var blockParser = participle.MustBuild[blockAST](
	participle.Lexer(blockLexer),
	participle.Elide("Comment", "Whitespace"),
)

var defRef = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// regexText strips the quotes of a regexp token. Only \" is an escape of the quoting,
// everything else is left for the regexp syntax.
func regexText(tok string) string {
	if strings.HasPrefix(tok, "`") {
		return tok[1 : len(tok)-1]
	}
	return strings.ReplaceAll(tok[1:len(tok)-1], `\"`, `"`)
}

func valueText(tok string) (string, error) {
	if strings.HasPrefix(tok, `"`) || strings.HasPrefix(tok, "`") {
		return strconv.Unquote(tok)
	}
	return tok, nil
}

type blockBuilder struct {
	block *Block
	line  int
	defs  map[string]string
}

// parseBlock parses the content of one block. line is the line of its opening marker.
func parseBlock(file, src string, line int) (*Block, error) {
	ast, err := blockParser.ParseString(file, src)
	if err != nil {
		var perr participle.Error
		if errors.As(err, &perr) {
			return nil, diag.Fatalf(line+perr.Position().Line-1, "%s", perr.Message())
		}
		return nil, diag.Fatalf(line, "%v", err)
	}
	b := &blockBuilder{block: &Block{Line: line}, line: line, defs: make(map[string]string)}
	for _, it := range ast.Items {
		switch {
		case it.Config != nil:
			err = b.config(it.Config)
		case it.Def != nil:
			err = b.def(it.Def)
		case it.Rule != nil:
			err = b.rule(it.Rule)
		}
		if err != nil {
			return nil, err
		}
	}
	return b.block, b.check()
}

func (b *blockBuilder) at(pos lexer.Position) int {
	return b.line + pos.Line - 1
}

func (b *blockBuilder) config(c *configAST) error {
	v, err := valueText(c.Value)
	if err != nil {
		return diag.Fatalf(b.at(c.Pos), "bad value for %s: %v", c.Key, err)
	}
	b.block.Settings = append(b.block.Settings, Setting{
		Line:  b.at(c.Pos),
		Key:   strings.TrimPrefix(c.Key, "re2go:"),
		Value: v,
	})
	return nil
}

func (b *blockBuilder) def(d *defAST) error {
	if _, ok := b.defs[d.Name]; ok {
		return diag.Fatalf(b.at(d.Pos), "definition '%s' is already defined", d.Name)
	}
	re, err := b.expand(regexText(d.Regex), b.at(d.Pos))
	if err != nil {
		return err
	}
	b.defs[d.Name] = re
	return nil
}

// expand replaces {name} with the named definition.
func (b *blockBuilder) expand(re string, line int) (string, error) {
	var err error
	res := defRef.ReplaceAllStringFunc(re, func(m string) string {
		name := m[1 : len(m)-1]
		def, ok := b.defs[name]
		if !ok {
			if err == nil {
				err = diag.Fatalf(line, "undefined definition '%s'", name)
			}
			return m
		}
		return "(?:" + def + ")"
	})
	return res, err
}

func (b *blockBuilder) rule(r *ruleAST) error {
	line := b.at(r.Pos)
	rule := Rule{Line: line, Default: r.Default, Action: r.Action}
	if r.Conds != nil {
		rule.AllConds = r.Conds.All
		rule.Conds = r.Conds.Names
		if rule.AllConds {
			rule.Conds = []string{}
		}
		for _, c := range r.Conds.Names {
			if !slices.Contains(b.block.Conds, c) {
				b.block.Conds = append(b.block.Conds, c)
			}
		}
	}
	if !r.Default {
		var err error
		if rule.Regex, err = b.expand(regexText(r.Regex), line); err != nil {
			return err
		}
		if r.Context != nil {
			rule.HasContext = true
			if rule.Context, err = b.expand(regexText(*r.Context), line); err != nil {
				return err
			}
		}
	}
	b.block.Rules = append(b.block.Rules, rule)
	return nil
}

// check enforces the block-wide rules: conditions are all or nothing, and every condition
// has at most one default rule.
func (b *blockBuilder) check() error {
	conds := len(b.block.Conds) > 0
	defaults := make(map[string]int)
	for _, r := range b.block.Rules {
		switch {
		case r.Conds == nil && conds:
			return diag.Fatalf(r.Line, "conditions are used in this block, the rule needs one")
		case r.AllConds && !conds:
			return diag.Fatalf(r.Line, "<*> rule in a block without conditions")
		}
		if !r.Default {
			continue
		}
		keys := r.Conds
		switch {
		case r.AllConds:
			keys = []string{"*"}
		case !conds:
			keys = []string{""}
		}
		for _, k := range keys {
			if prev, ok := defaults[k]; ok {
				return diag.Fatalf(r.Line, "code to default rule is already defined at line %d", prev)
			}
			defaults[k] = r.Line
		}
	}
	return nil
}
