//go:build ignore

package codegen

import (
	"io"
)

// [INPUT PLACEHOLDER]

// Input feeds a generated scanner from a reader. The buffer holds the current token and
// everything read ahead of it. Past the end of the input the scanner reads zero bytes,
// EOF tells them apart from a real zero.
type Input struct {
	// Cond is the current condition.
	Cond int

	r   io.Reader
	buf []byte
	// tok starts the current token, cur is the cursor, mar and ctx are the rule and
	// trailing context markers and lim ends the real data.
	tok, cur, mar, ctx, lim int
	eof                     bool
	err                     error

	// Position of the current token. The first line and column are 0.
	line, column int
}

const inputChunk = 4096

// NewInput creates an Input reading r as the scanner asks for more.
func NewInput(r io.Reader) *Input {
	return &Input{r: r}
}

// NewInputBytes creates an Input over a complete buffer.
func NewInputBytes(b []byte) *Input {
	return &Input{buf: b, lim: len(b), eof: true}
}

// Start begins a new token at the cursor.
func (in *Input) Start() {
	for _, c := range in.buf[in.tok:min(in.cur, in.lim)] {
		if c == '\n' {
			in.line++
			in.column = 0
		} else {
			in.column++
		}
	}
	in.tok = in.cur
}

// Text returns the current token.
func (in *Input) Text() string {
	return string(in.buf[in.tok:min(in.cur, in.lim)])
}

func (in *Input) Line() int {
	return in.line
}

func (in *Input) Column() int {
	return in.column
}

// EOF reports whether the scanner went past the end of the input.
func (in *Input) EOF() bool {
	return in.eof && in.cur > in.lim
}

// Err returns the first read error other than io.EOF.
func (in *Input) Err() error {
	return in.err
}

func (in *Input) Peek() byte {
	if in.cur < len(in.buf) {
		return in.buf[in.cur]
	}
	return 0
}

func (in *Input) Skip()       { in.cur++ }
func (in *Input) Backup()     { in.mar = in.cur }
func (in *Input) Restore()    { in.cur = in.mar }
func (in *Input) BackupCtx()  { in.ctx = in.cur }
func (in *Input) RestoreCtx() { in.cur = in.ctx }

// LessThan reports whether fewer than n bytes are buffered after the cursor.
func (in *Input) LessThan(n int) bool {
	return len(in.buf)-in.cur < n
}

// Fill makes at least n bytes available after the cursor. The text before the current token
// is dropped first. At the end of the input the buffer is padded with zeros.
func (in *Input) Fill(n int) {
	if !in.eof && in.tok > 0 {
		k := copy(in.buf, in.buf[in.tok:])
		in.buf = in.buf[:k]
		in.cur -= in.tok
		in.mar -= in.tok
		in.ctx -= in.tok
		in.lim -= in.tok
		in.tok = 0
	}
	chunk := make([]byte, inputChunk)
	for !in.eof && len(in.buf)-in.cur < n {
		k, err := in.r.Read(chunk)
		in.buf = append(in.buf, chunk[:k]...)
		in.lim = len(in.buf)
		switch {
		case err == io.EOF:
			in.eof = true
		case err != nil:
			in.err = err
			in.eof = true
		}
	}
	for len(in.buf)-in.cur < n {
		in.buf = append(in.buf, 0)
	}
}
