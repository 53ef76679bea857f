// Package writer assembles output files: host code with generated scanners spliced in,
// line directives pointing back at the rules, and the skeleton driver program.
package writer

import (
	"bytes"
	"fmt"
	"go/format"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/tools/imports"

	"github.com/liran-funaro/re2go/config"
)

// restoreMark stands for a directive returning to the output file. Its line number is only
// known once the output is formatted.
const restoreMark = "re2go:restore"

// Writer collects the output of one file. It implements codegen.Sink.
type Writer struct {
	// Name is the output file name, used by the directives that return to it.
	Name           string
	target         string
	lineDirectives bool
	buf            bytes.Buffer
	bol            bool
}

func New(name string, cfg config.Config) *Writer {
	return &Writer{
		Name:           name,
		target:         cfg.Target,
		lineDirectives: cfg.LineDirectives,
		bol:            true,
	}
}

func (w *Writer) writeString(s string) {
	if s == "" {
		return
	}
	w.buf.WriteString(s)
	w.bol = strings.HasSuffix(s, "\n")
}

func (w *Writer) writef(format string, a ...any) {
	w.writeString(fmt.Sprintf(format, a...))
}

// newline ends the current line unless it is empty.
func (w *Writer) newline() {
	if !w.bol {
		w.writeString("\n")
	}
}

func (w *Writer) WriteText(s string) {
	w.writeString(s)
}

func (w *Writer) WriteLineInfo(file string, line int) {
	if !w.lineDirectives {
		return
	}
	w.newline()
	if line == 0 {
		w.writeString(w.directive(restoreMark, 0))
		return
	}
	w.writeString(w.directive(file, line))
}

func (w *Writer) directive(file string, line int) string {
	if file == restoreMark {
		if w.target == config.TargetC {
			return "#line " + restoreMark + "\n"
		}
		return "//line " + restoreMark + "\n"
	}
	if w.target == config.TargetC {
		return fmt.Sprintf("#line %d %q\n", line, file)
	}
	return fmt.Sprintf("//line %s:%d\n", file, line)
}

// WriteBlock writes user code at depth tabs. The first line is trimmed and the following
// lines keep their indentation relative to each other.
func (w *Writer) WriteBlock(depth int, text string) {
	lines := strings.Split(strings.TrimRight(text, " \t\n"), "\n")
	indent := commonIndent(lines[1:])
	tabs := strings.Repeat("\t", depth)
	w.newline()
	for i, l := range lines {
		if i == 0 {
			l = strings.TrimLeft(l, " \t")
		} else {
			l = strings.TrimPrefix(l, indent)
		}
		if strings.TrimSpace(l) == "" {
			w.writeString("\n")
			continue
		}
		w.writef("%s%s\n", tabs, l)
	}
}

func commonIndent(lines []string) string {
	var res string
	first := true
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		ind := l[:len(l)-len(strings.TrimLeft(l, " \t"))]
		switch {
		case first:
			res, first = ind, false
		default:
			for !strings.HasPrefix(ind, res) {
				res = res[:len(res)-1]
			}
		}
	}
	return res
}

// Bytes returns the finished file. Go output is formatted and gets its imports fixed. The
// directives returning to the output are numbered last, on the final text.
func (w *Writer) Bytes() ([]byte, error) {
	src := w.buf.Bytes()
	if w.target == config.TargetGo {
		var err error
		if src, err = formatCode(src); err != nil {
			return w.buf.Bytes(), errors.Wrapf(err, "format %s", w.Name)
		}
	}
	return w.restoreLines(src), nil
}

func (w *Writer) restoreLines(src []byte) []byte {
	mark := []byte(strings.TrimSuffix(w.directive(restoreMark, 0), "\n"))
	if !bytes.Contains(src, mark) {
		return src
	}
	lines := bytes.Split(src, []byte("\n"))
	for i, l := range lines {
		if bytes.Equal(bytes.TrimSpace(l), mark) {
			// The directive is line i+1 and describes the line after it.
			lines[i] = []byte(strings.TrimSuffix(w.directive(w.Name, i+2), "\n"))
		}
	}
	return bytes.Join(lines, []byte("\n"))
}

func formatCode(src []byte) ([]byte, error) {
	src, err := format.Source(src)
	if err != nil {
		return src, err
	}
	return imports.Process("main.go", src, &imports.Options{
		TabWidth:  8,
		TabIndent: true,
		Comments:  true,
		Fragment:  true,
	})
}
