// Package parser splits an input file into host code and rule blocks, and parses the rule
// blocks.
package parser

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/liran-funaro/re2go/diag"
)

var (
	ErrUnterminatedBlock  = errors.New("unterminated re2go block")
	ErrUnmatchedRBrace    = errors.New("unmatched '}'")
	ErrUnexpectedNewline  = errors.New("unexpected newline in string")
	ErrUnterminatedString = errors.New("unterminated string")
)

const (
	blockStart = "/*!re2go"
	blockEnd   = "*/"
	typesMark  = "/*!types:re2go*/"
	inputMark  = "/*!input:re2go*/"
)

// ParseFile reads a whole input file.
func ParseFile(name string, in io.Reader) (*File, error) {
	p := parser{
		in:   bufio.NewReader(in),
		line: 1,
	}
	f := &File{Name: name}
	p.parseRoot(f)
	if p.err != nil {
		return nil, p.err
	}
	return f, nil
}

type parser struct {
	in   *bufio.Reader
	line int
	r    rune
	err  error
	eof  bool
}

func (p *parser) reportError(line int, err error) {
	if err == nil {
		return
	}

	// We only report the first error.
	if p.err != nil {
		return
	}
	var de *diag.Error
	if errors.As(err, &de) {
		p.err = err
		return
	}
	p.err = diag.Fatalf(line, "%v", err)
}

// read returns true if successful.
func (p *parser) read() bool {
	if p.err != nil || p.eof {
		return false
	}

	var err error
	p.r, _, err = p.in.ReadRune()
	if err != nil {
		if errors.Is(err, io.EOF) {
			p.eof = true
		} else {
			p.reportError(p.line, err)
		}
		return false
	}

	if p.r == '\n' {
		p.line++
	}
	return true
}

// at reports whether the input continues with s.
func (p *parser) at(s string) bool {
	b, _ := p.in.Peek(len(s))
	return string(b) == s
}

// skip consumes the ASCII string s the input is at.
func (p *parser) skip(s string) {
	for range s {
		p.read()
	}
}

func (p *parser) parseRoot(f *File) {
	for p.err == nil {
		line := p.line
		text, more := p.readText()
		if text != "" {
			f.Chunks = append(f.Chunks, Chunk{Kind: TextChunk, Line: line, Text: text})
		}
		if !more {
			return
		}

		line = p.line
		if p.at(typesMark) {
			p.skip(typesMark)
			f.Chunks = append(f.Chunks, Chunk{Kind: TypesChunk, Line: line})
			continue
		}
		if p.at(inputMark) {
			p.skip(inputMark)
			f.Chunks = append(f.Chunks, Chunk{Kind: InputChunk, Line: line})
			continue
		}
		p.skip(blockStart)
		src := p.readBlock(line)
		if p.err != nil {
			return
		}
		b, err := parseBlock(f.Name, src, line)
		if err != nil {
			p.reportError(line, err)
			return
		}
		f.Chunks = append(f.Chunks, Chunk{Kind: BlockChunk, Line: line, Block: b})
	}
}

// readText copies host code up to the next block. more is false at the end of the input.
func (p *parser) readText() (text string, more bool) {
	var buf strings.Builder
	for {
		if p.at(typesMark) || p.at(inputMark) || p.at(blockStart) {
			return buf.String(), true
		}
		if !p.read() {
			return buf.String(), false
		}
		buf.WriteRune(p.r)
	}
}

// readBlock returns the block content up to its closing */. Strings, comments and braced
// actions may contain the terminator.
func (p *parser) readBlock(start int) string {
	var buf strings.Builder
	var quote rune
	depth := 0
	for {
		if quote == 0 && depth == 0 && p.at(blockEnd) {
			p.skip(blockEnd)
			return buf.String()
		}
		if quote == 0 && p.at("//") {
			for p.read() && p.r != '\n' {
			}
			buf.WriteByte('\n')
			continue
		}
		if !p.read() {
			if quote != 0 {
				p.reportError(p.line, ErrUnterminatedString)
			}
			p.reportError(start, ErrUnterminatedBlock)
			return ""
		}
		buf.WriteRune(p.r)

		switch {
		case quote != 0:
			switch {
			case p.r == '\\' && quote != '`':
				if p.read() {
					buf.WriteRune(p.r)
				}
			case p.r == '\n' && quote != '`':
				p.reportError(p.line-1, ErrUnexpectedNewline)
				return ""
			case p.r == quote:
				quote = 0
			}
		case p.r == '"' || p.r == '`' || (p.r == '\'' && depth > 0):
			quote = p.r
		case p.r == '{':
			depth++
		case p.r == '}':
			if depth--; depth < 0 {
				p.reportError(p.line, ErrUnmatchedRBrace)
				return ""
			}
		}
	}
}
