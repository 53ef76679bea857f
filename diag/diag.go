// Package diag holds the error kinds and warnings reported while compiling rules.
package diag

import (
	"fmt"
)

type Kind uint8

const (
	// FatalConfig aborts the compilation unit: bad rules or bad options.
	FatalConfig Kind = iota + 1
	// SizeOverflow means an automaton outgrew a representable limit.
	SizeOverflow
	// Internal is a broken invariant of the compiler itself.
	Internal
)

func (k Kind) String() string {
	switch k {
	case FatalConfig:
		return "FatalConfig"
	case SizeOverflow:
		return "SizeOverflow"
	case Internal:
		return "Internal"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Error is a user-facing compile error. Line is the source line of the rule or block that
// caused it, 0 when unknown.
type Error struct {
	Kind    Kind
	Line    int
	Message string
}

var (
	ErrFatalConfig  = &Error{Kind: FatalConfig}
	ErrSizeOverflow = &Error{Kind: SizeOverflow}
	ErrInternal     = &Error{Kind: Internal}
)

func (e *Error) Error() string {
	switch {
	case e.Line > 0:
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	case e.Message == "":
		return e.Kind.String()
	}
	return e.Message
}

// Is matches any error of the same kind when target is one of the Err* sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Line == 0
}

func Fatalf(line int, format string, args ...any) *Error {
	return &Error{Kind: FatalConfig, Line: line, Message: fmt.Sprintf(format, args...)}
}

func Overflowf(line int, format string, args ...any) *Error {
	return &Error{Kind: SizeOverflow, Line: line, Message: fmt.Sprintf(format, args...)}
}

// Internalf builds the value panicked with when an invariant breaks.
func Internalf(format string, args ...any) *Error {
	return &Error{Kind: Internal, Message: "internal error: " + fmt.Sprintf(format, args...)}
}
