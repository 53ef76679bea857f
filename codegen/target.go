package codegen

import (
	"fmt"
	"strings"

	"github.com/liran-funaro/re2go/config"
	"github.com/liran-funaro/re2go/diag"
)

// Target knows the syntax of the output language.
type Target interface {
	Name() string
	// ComputedGoto reports whether the language has indirect jumps.
	ComputedGoto() bool
	Stmt(s string) string
	Goto(label string) []string
	IfGoto(cond, label string) []string
	If(cond string) string
	ElseIf(cond string) string
	Else() string
	End() string
	Switch(expr string) string
	Case(values []string) []string
	Default() string
	Var(name, typ, init string) string
	ByteTable(name string, rows [][]string) []string
	JumpTable(index string, labels []string) []string
	Unit(c uint32) string
	Wide(yych string) string
	BitTest(index int, yych string, mask string) string
	CondTypes(prefix string, names []string) []string
	CharType(t string) string
}

func NewTarget(name string) (Target, error) {
	switch name {
	case config.TargetGo:
		return goTarget{}, nil
	case config.TargetC:
		return cTarget{}, nil
	}
	return nil, diag.Fatalf(0, "unknown target %q", name)
}

// unitLiteral prints printable ASCII as a character literal, anything else in hex.
func unitLiteral(c uint32) string {
	switch {
	case c == '\'' || c == '\\':
		return fmt.Sprintf("0x%02X", c)
	case c >= 0x20 && c < 0x7F:
		return fmt.Sprintf("'%c'", rune(c))
	case c <= 0xFF:
		return fmt.Sprintf("0x%02X", c)
	}
	return fmt.Sprintf("0x%04X", c)
}

type goTarget struct{}

func (goTarget) Name() string { return config.TargetGo }
func (goTarget) ComputedGoto() bool { return false }
func (goTarget) Stmt(s string) string { return s }

func (goTarget) Goto(label string) []string {
	return []string{"goto " + label}
}

func (t goTarget) IfGoto(cond, label string) []string {
	return []string{t.If(cond), "\tgoto " + label, "}"}
}

func (goTarget) If(cond string) string { return "if " + cond + " {" }
func (goTarget) ElseIf(cond string) string { return "} else if " + cond + " {" }
func (goTarget) Else() string { return "} else {" }
func (goTarget) End() string { return "}" }
func (goTarget) Switch(expr string) string { return "switch " + expr + " {" }
func (goTarget) Default() string { return "default:" }

func (goTarget) Case(values []string) []string {
	return []string{"case " + strings.Join(values, ", ") + ":"}
}

func (goTarget) Var(name, typ, init string) string {
	if init != "" {
		return fmt.Sprintf("var %s %s = %s", name, typ, init)
	}
	return fmt.Sprintf("var %s %s", name, typ)
}

func (goTarget) ByteTable(name string, rows [][]string) []string {
	res := []string{name + " := [...]byte{"}
	for _, r := range rows {
		res = append(res, "\t"+strings.Join(r, ", ")+",")
	}
	return append(res, "}")
}

func (goTarget) JumpTable(string, []string) []string {
	panic(diag.Internalf("computed goto on the go target"))
}

func (goTarget) Unit(c uint32) string { return unitLiteral(c) }

func (goTarget) Wide(yych string) string { return yych + "&^0xFF != 0" }

func (goTarget) BitTest(index int, yych string, mask string) string {
	return fmt.Sprintf("yybm[%d+int(%s)]&%s != 0", index, yych, mask)
}

func (goTarget) CondTypes(prefix string, names []string) []string {
	res := []string{"const ("}
	for i, n := range names {
		if i == 0 {
			res = append(res, "\t"+prefix+n+" = iota")
			continue
		}
		res = append(res, "\t"+prefix+n)
	}
	return append(res, ")")
}

func (goTarget) CharType(t string) string { return t }

type cTarget struct{}

func (cTarget) Name() string { return config.TargetC }
func (cTarget) ComputedGoto() bool { return true }
func (cTarget) Stmt(s string) string { return s + ";" }

func (cTarget) Goto(label string) []string {
	return []string{"goto " + label + ";"}
}

func (cTarget) IfGoto(cond, label string) []string {
	return []string{"if (" + cond + ") goto " + label + ";"}
}

func (cTarget) If(cond string) string { return "if (" + cond + ") {" }
func (cTarget) ElseIf(cond string) string { return "} else if (" + cond + ") {" }
func (cTarget) Else() string { return "} else {" }
func (cTarget) End() string { return "}" }
func (cTarget) Switch(expr string) string { return "switch (" + expr + ") {" }
func (cTarget) Default() string { return "default:" }

func (cTarget) Case(values []string) []string {
	res := make([]string, len(values))
	for i, v := range values {
		res[i] = "case " + v + ":"
	}
	return res
}

func (cTarget) Var(name, typ, init string) string {
	if init != "" {
		return fmt.Sprintf("%s %s = %s;", typ, name, init)
	}
	return fmt.Sprintf("%s %s;", typ, name)
}

func (cTarget) ByteTable(name string, rows [][]string) []string {
	res := []string{"static const unsigned char " + name + "[] = {"}
	for _, r := range rows {
		res = append(res, "\t"+strings.Join(r, ", ")+",")
	}
	return append(res, "};")
}

func (cTarget) JumpTable(index string, labels []string) []string {
	res := []string{"{", fmt.Sprintf("\tstatic void *yytarget[%d] = {", len(labels))}
	for i := 0; i < len(labels); i += 8 {
		row := make([]string, 0, 8)
		for _, l := range labels[i:min(i+8, len(labels))] {
			row = append(row, "&&"+l)
		}
		res = append(res, "\t\t"+strings.Join(row, ", ")+",")
	}
	return append(res, "\t};", "\tgoto *yytarget["+index+"];", "}")
}

func (cTarget) Unit(c uint32) string { return unitLiteral(c) }

func (cTarget) Wide(yych string) string { return yych + " & ~0xFF" }

func (cTarget) BitTest(index int, yych string, mask string) string {
	return fmt.Sprintf("yybm[%d+%s] & %s", index, yych, mask)
}

func (cTarget) CondTypes(prefix string, names []string) []string {
	res := []string{"enum YYCONDTYPE {"}
	for _, n := range names {
		res = append(res, "\t"+prefix+n+",")
	}
	return append(res, "};")
}

func (cTarget) CharType(t string) string {
	switch t {
	case "byte", "uint8":
		return "unsigned char"
	case "rune", "int32":
		return "unsigned int"
	case "uint16":
		return "unsigned short"
	}
	return t
}
