// Package config holds the options of one compilation. A Config is a value: it is built
// once and passed by value to every phase.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/liran-funaro/re2go/diag"
)

const (
	TargetGo = "go"
	TargetC  = "c"

	MinimizeMoore = "moore"
	MinimizeTable = "table"

	EmptyClassMatchNone  = "match-none"
	EmptyClassMatchEmpty = "match-empty"
	EmptyClassError      = "error"

	// FillPlaceholder is replaced with the fill distance in the LessThan and Fill
	// expressions.
	FillPlaceholder = "@@"
)

// Thresholds tune the choice of dispatch strategy.
type Thresholds struct {
	// Switch is the span count above which a sparse state still gets a switch.
	Switch int `json:"switch"`
	// Utilization is the highest average span width that counts as sparse.
	Utilization int `json:"utilization"`
	// Binary is the span count above which comparisons become a binary search.
	Binary int `json:"binary"`
	// Linear is the span count at which a binary search ends in a linear chain.
	Linear int `json:"linear"`
	// ComputedGoto is the number of targets or spans that selects a jump table.
	ComputedGoto int `json:"computedGoto"`
}

// API holds the expressions the scanner uses to reach its input.
type API struct {
	Peek       string `json:"peek"`
	Skip       string `json:"skip"`
	Backup     string `json:"backup"`
	Restore    string `json:"restore"`
	BackupCtx  string `json:"backupCtx"`
	RestoreCtx string `json:"restoreCtx"`
	LessThan   string `json:"lessThan"`
	Fill       string `json:"fill"`
	Cond       string `json:"cond"`
}

type Config struct {
	Target   string `json:"target"`
	Ceiling  uint32 `json:"ceiling"`
	CharType string `json:"charType"`
	Minimize string `json:"minimize"`

	NestedIfs     bool       `json:"nestedIfs"`
	Bitmaps       bool       `json:"bitmaps"`
	BitmapHex     bool       `json:"bitmapHex"`
	ComputedGotos bool       `json:"computedGotos"`
	Thresholds    Thresholds `json:"thresholds"`

	Fill           bool   `json:"fill"`
	FillParam      bool   `json:"fillParam"`
	MaxFill        int    `json:"maxFill"`
	LineDirectives bool   `json:"lineDirectives"`
	LabelPrefix    string `json:"labelPrefix"`
	CondPrefix     string `json:"condPrefix"`
	CondLabel      string `json:"condLabel"`
	API            API    `json:"api"`
	NoMatch        string `json:"noMatch"`

	EmptyClass        string   `json:"emptyClass"`
	WarningsAreErrors bool     `json:"werror"`
	Warnings          []string `json:"warnings"`

	Skeleton          bool `json:"skeleton"`
	SkeletonMaxSize   int  `json:"skeletonMaxSize"`
	UndefinedMaxEdges int  `json:"undefinedMaxEdges"`
}

var goAPI = API{
	Peek:       "in.Peek()",
	Skip:       "in.Skip()",
	Backup:     "in.Backup()",
	Restore:    "in.Restore()",
	BackupCtx:  "in.BackupCtx()",
	RestoreCtx: "in.RestoreCtx()",
	LessThan:   "in.LessThan(" + FillPlaceholder + ")",
	Fill:       "in.Fill(" + FillPlaceholder + ")",
	Cond:       "in.Cond",
}

var cAPI = API{
	Peek:       "YYPEEK()",
	Skip:       "YYSKIP()",
	Backup:     "YYBACKUP()",
	Restore:    "YYRESTORE()",
	BackupCtx:  "YYBACKUPCTX()",
	RestoreCtx: "YYRESTORECTX()",
	LessThan:   "YYLESSTHAN(" + FillPlaceholder + ")",
	Fill:       "YYFILL(" + FillPlaceholder + ")",
	Cond:       "YYGETCONDITION()",
}

// Code run when no rule matches and the rule set has no default rule.
const (
	goNoMatch = `panic("re2go: no rule matched")`
	cNoMatch  = "abort();"
)

// SkeletonAPI is the input API of the generated skeleton driver.
var SkeletonAPI = API{
	Peek:       "in.peek()",
	Skip:       "in.skip()",
	Backup:     "in.backup()",
	Restore:    "in.restore()",
	BackupCtx:  "in.backupCtx()",
	RestoreCtx: "in.restoreCtx()",
	LessThan:   "in.lessThan(" + FillPlaceholder + ")",
	Fill:       "in.fill(" + FillPlaceholder + ")",
	Cond:       "in.cond",
}

func Default() Config {
	return Config{
		Target:   TargetGo,
		Ceiling:  256,
		CharType: "byte",
		Minimize: MinimizeMoore,
		Thresholds: Thresholds{
			Switch:       8,
			Utilization:  2,
			Binary:       5,
			Linear:       4,
			ComputedGoto: 9,
		},
		Fill:              true,
		FillParam:         true,
		MaxFill:           1<<16 - 1,
		LineDirectives:    true,
		LabelPrefix:       "yy",
		CondPrefix:        "yyc",
		CondLabel:         "yyc_",
		API:               goAPI,
		NoMatch:           goNoMatch,
		EmptyClass:        EmptyClassMatchNone,
		SkeletonMaxSize:   64 << 10,
		UndefinedMaxEdges: 1 << 16,
	}
}

// Validate checks the combination of options.
func (c Config) Validate() error {
	switch {
	case c.Target != TargetGo && c.Target != TargetC:
		return c.invalid("unknown target %q", c.Target)
	case c.Minimize != MinimizeMoore && c.Minimize != MinimizeTable:
		return c.invalid("unknown minimization %q", c.Minimize)
	case c.Ceiling < 2 || c.Ceiling > 0x110000:
		return c.invalid("code unit ceiling %#x out of range", c.Ceiling)
	case c.Target == TargetGo && c.Ceiling > 256 && (c.CharType == "byte" || c.CharType == "uint8"):
		return c.invalid("character type %s cannot hold code units up to %#x", c.CharType, c.Ceiling-1)
	case c.Thresholds.Switch < 1 || c.Thresholds.Binary < 1 || c.Thresholds.Linear < 1 ||
		c.Thresholds.ComputedGoto < 1 || c.Thresholds.Utilization < 0:
		return c.invalid("thresholds must be positive: %+v", c.Thresholds)
	case c.Thresholds.Linear > c.Thresholds.Binary:
		return c.invalid("linear threshold %d above binary threshold %d", c.Thresholds.Linear, c.Thresholds.Binary)
	case c.MaxFill < 1:
		return c.invalid("maximum fill distance must be positive")
	case c.EmptyClass != EmptyClassMatchNone && c.EmptyClass != EmptyClassMatchEmpty && c.EmptyClass != EmptyClassError:
		return c.invalid("unknown empty class policy %q", c.EmptyClass)
	case c.LabelPrefix == "":
		return c.invalid("empty label prefix")
	case c.SkeletonMaxSize < 1 || c.UndefinedMaxEdges < 1:
		return c.invalid("skeleton ceilings must be positive")
	}
	for _, w := range c.Warnings {
		if _, ok := diag.ParseWarning(w); !ok {
			return c.invalid("unknown warning %q", w)
		}
	}
	return nil
}

func (c Config) invalid(format string, args ...any) error {
	return diag.Fatalf(0, "invalid configuration: "+format, args...)
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(err, "read config")
	}
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return c, errors.Wrapf(err, "parse config %s", path)
	}
	return c.WithTarget(c.Target), nil
}

// WithTarget switches the target language. The input API and the no-match code follow when
// they still hold the defaults of the previous target.
func (c Config) WithTarget(target string) Config {
	switch {
	case target == TargetC && c.API == goAPI:
		c.API = cAPI
	case target == TargetGo && c.API == cAPI:
		c.API = goAPI
	}
	switch {
	case target == TargetC && c.NoMatch == goNoMatch:
		c.NoMatch = cNoMatch
	case target == TargetGo && c.NoMatch == cNoMatch:
		c.NoMatch = goNoMatch
	}
	c.Target = target
	return c
}

func (c Config) WithMinimize(alg string) Config {
	c.Minimize = alg
	return c
}

func (c Config) WithBitmaps(on bool) Config {
	c.Bitmaps = on
	return c
}

func (c Config) WithNestedIfs(on bool) Config {
	c.NestedIfs = on
	return c
}

func (c Config) WithComputedGotos(on bool) Config {
	c.ComputedGotos = on
	return c
}

func (c Config) WithCeiling(ceiling uint32, charType string) Config {
	c.Ceiling = ceiling
	c.CharType = charType
	return c
}

// WithSkeleton turns on skeleton mode, which drives the scanner through the skeleton API.
func (c Config) WithSkeleton(on bool) Config {
	c.Skeleton = on
	if on {
		c.API = SkeletonAPI
		c.Target = TargetGo
		c.LineDirectives = false
	}
	return c
}

// Reporter builds the warning reporter matching the options.
func (c Config) Reporter(r *diag.Reporter) *diag.Reporter {
	for _, name := range c.Warnings {
		if w, ok := diag.ParseWarning(name); ok {
			r.Enable(w, !strings.HasPrefix(name, "no-"))
		}
	}
	return r
}

// Placeholder substitutes the fill distance into an API expression.
func Placeholder(expr string, n int) string {
	return strings.ReplaceAll(expr, FillPlaceholder, fmt.Sprint(n))
}

// SupportsComputedGoto reports whether the target has indirect jumps.
func (c Config) SupportsComputedGoto() bool {
	return c.Target == TargetC
}
