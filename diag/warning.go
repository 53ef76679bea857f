package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

type Warning uint8

const (
	UnreachableRule Warning = iota
	ShadowedRule
	MatchEmpty
	UndefinedControlFlow
	SwappedRange
	EmptyClass
	ConditionOrder
	TooLargeToCheck
	numWarnings
)

var warningNames = [numWarnings]string{
	UnreachableRule:      "unreachable-rules",
	ShadowedRule:         "shadowed-rules",
	MatchEmpty:           "match-empty-string",
	UndefinedControlFlow: "undefined-control-flow",
	SwappedRange:         "swapped-range",
	EmptyClass:           "empty-character-class",
	ConditionOrder:       "condition-order",
	TooLargeToCheck:      "too-large-to-check",
}

func (w Warning) String() string {
	if w < numWarnings {
		return warningNames[w]
	}
	return fmt.Sprintf("Warning(%d)", uint8(w))
}

// ParseWarning looks a warning up by its flag name.
func ParseWarning(name string) (Warning, bool) {
	for w, n := range warningNames {
		if n == strings.TrimPrefix(name, "no-") {
			return Warning(w), true
		}
	}
	return 0, false
}

type Diagnostic struct {
	Warning Warning
	Line    int
	Cond    string
	Message string
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("line %d: warning: %s [-W%s]", d.Line, d.Message, d.Warning)
	if d.Cond != "" {
		s = fmt.Sprintf("line %d: warning: in condition '%s': %s [-W%s]", d.Line, d.Cond, d.Message, d.Warning)
	}
	return s
}

// Reporter collects the warnings of one input file.
type Reporter struct {
	log      *logrus.Entry
	disabled [numWarnings]bool
	werror   bool
	diags    []Diagnostic
}

func NewReporter(log *logrus.Entry, werror bool) *Reporter {
	r := &Reporter{log: log, werror: werror}
	r.disabled[ShadowedRule] = true
	return r
}

// Discard returns a reporter that keeps diagnostics without logging them.
func Discard() *Reporter {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewReporter(logrus.NewEntry(l), false)
}

func (r *Reporter) Enable(w Warning, on bool) {
	r.disabled[w] = !on
}

func (r *Reporter) Enabled(w Warning) bool {
	return !r.disabled[w]
}

func (r *Reporter) Warn(w Warning, line int, cond string, format string, args ...any) {
	if r.disabled[w] {
		return
	}
	d := Diagnostic{Warning: w, Line: line, Cond: cond, Message: fmt.Sprintf(format, args...)}
	r.diags = append(r.diags, d)
	entry := r.log.WithFields(logrus.Fields{"line": line, "warning": w.String()})
	if cond != "" {
		entry = entry.WithField("cond", cond)
	}
	entry.Warn(d.Message)
}

func (r *Reporter) Diagnostics() []Diagnostic {
	return r.diags
}

// Count returns how many warnings of kind w were reported.
func (r *Reporter) Count(w Warning) int {
	n := 0
	for _, d := range r.diags {
		if d.Warning == w {
			n++
		}
	}
	return n
}

// Err turns the collected warnings into an error when warnings are treated as errors.
func (r *Reporter) Err() error {
	if !r.werror || len(r.diags) == 0 {
		return nil
	}
	first := r.diags[0]
	return Fatalf(first.Line, "%d warning(s) treated as errors, first: %s", len(r.diags), first.Message)
}
