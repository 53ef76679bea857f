package exec

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/markbates/safe"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/liran-funaro/re2go/compiler"
	"github.com/liran-funaro/re2go/config"
	"github.com/liran-funaro/re2go/diag"
	"github.com/liran-funaro/re2go/parser"
	"github.com/liran-funaro/re2go/writer"
)

type Params struct {
	Inputs         []string `arg:"" optional:"" help:"Input files. Standard input is read when none is given."`
	OutputFilename string   `name:"output" short:"o" help:"Output file. Defaults to the input name with the extension of the target."`
	Target         string   `help:"Output language (go or c)."`
	Minimize       string   `help:"DFA minimization (moore or table)."`
	NestedIfs      bool     `short:"s" help:"Dispatch with nested ifs, use switches only for wide states."`
	Bitmaps        bool     `short:"b" help:"Test self-loops with bitmaps. Implies -s."`
	ComputedGotos  bool     `short:"g" help:"Dispatch wide states through jump tables (C only)."`
	NoLines        bool     `name:"no-line-directives" short:"i" help:"Do not emit line directives."`
	Skeleton       bool     `short:"S" help:"Generate a self-checking program and its data files instead of the scanner."`
	ConfigFile     string   `name:"config" short:"c" help:"YAML configuration file." env:"RE2GO_CONFIG"`
	Werror         bool     `help:"Treat warnings as errors."`
	Warnings       []string `name:"warning" short:"W" help:"Enable a warning class, or disable it with a no- prefix."`
	NfaDot         string   `name:"nfa-dot" help:"Write the NFA of every condition in DOT format."`
	DfaDot         string   `name:"dfa-dot" help:"Write the minimized DFA of every condition in DOT format."`
	RunProgram     bool     `name:"run" short:"r" help:"Run the generated program with go run."`
	Verbose        bool     `short:"v" help:"Log automaton sizes." env:"RE2GO_VERBOSE"`

	Stdin  io.Reader `kong:"-"`
	Stdout io.Writer `kong:"-"`
	Stderr io.Writer `kong:"-"`
}

func ParseParams(name string, args ...string) (*Params, error) {
	p := &Params{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	k, err := kong.New(p,
		kong.Name(name),
		kong.Description("Compile the /*!re2go*/ blocks of Go or C sources into scanners."),
		kong.Writers(p.Stdout, p.Stderr),
	)
	if err != nil {
		return nil, err
	}
	if _, err := k.Parse(args); err != nil {
		return nil, err
	}
	if len(p.Inputs) > 1 {
		switch {
		case p.OutputFilename != "":
			return nil, fmt.Errorf("output file given with %d inputs", len(p.Inputs))
		case p.NfaDot != "" || p.DfaDot != "":
			return nil, fmt.Errorf("dot output needs a single input")
		case p.RunProgram:
			return nil, fmt.Errorf("run needs a single input")
		}
	}
	return p, nil
}

func Execute(name string, args ...string) error {
	p, err := ParseParams(name, args...)
	if err != nil {
		return fmt.Errorf("parse-params: %w", err)
	}
	return ExecuteWithParams(p)
}

func ExecuteWithParams(p *Params) error {
	if p.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	cfg, err := p.config()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if len(p.Inputs) == 0 {
		return p.compile(cfg, "")
	}
	var g errgroup.Group
	for _, input := range p.Inputs {
		input := input
		g.Go(func() error {
			return p.compile(cfg, input)
		})
	}
	return g.Wait()
}

// config layers the defaults, the configuration file, the environment and the flags.
func (p *Params) config() (config.Config, error) {
	cfg, err := config.Load(p.ConfigFile)
	if err != nil {
		return cfg, err
	}
	if cfg, err = config.FromEnv(cfg); err != nil {
		return cfg, err
	}
	if p.Target != "" {
		cfg = cfg.WithTarget(p.Target)
	}
	if p.Minimize != "" {
		cfg = cfg.WithMinimize(p.Minimize)
	}
	if p.NestedIfs {
		cfg = cfg.WithNestedIfs(true)
	}
	if p.Bitmaps {
		cfg = cfg.WithBitmaps(true).WithNestedIfs(true)
	}
	if p.ComputedGotos {
		cfg = cfg.WithComputedGotos(true)
	}
	if p.NoLines {
		cfg.LineDirectives = false
	}
	if p.Werror {
		cfg.WarningsAreErrors = true
	}
	cfg.Warnings = append(cfg.Warnings, p.Warnings...)
	if p.Skeleton {
		cfg = cfg.WithSkeleton(true)
	}
	return cfg, cfg.Validate()
}

// compile runs one input. Internal assertion failures surface as errors of that input.
func (p *Params) compile(cfg config.Config, input string) error {
	name := input
	if name == "" {
		name = "<stdin>"
	}
	err := safe.RunE(func() error {
		return p.compileInput(cfg, input)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (p *Params) compileInput(cfg config.Config, input string) error {
	log := diag.Component("exec").WithField("input", input)
	f, err := p.parseInput(input)
	if err != nil {
		return err
	}

	output := p.OutputFilename
	var tmpdir string
	if output == "" && input != "" {
		output = outputName(input, cfg)
	}
	if output == "" && p.RunProgram {
		if tmpdir, err = os.MkdirTemp("", "re2go"); err != nil {
			return fmt.Errorf("temp-dir: %w", err)
		}
		defer func() {
			_ = os.RemoveAll(tmpdir)
		}()
		output = filepath.Join(tmpdir, "lex.go")
	}

	opts := compiler.Options{
		Reporter: diag.NewReporter(log, cfg.WarningsAreErrors),
	}
	var nfaDot, dfaDot bytes.Buffer
	if p.NfaDot != "" {
		opts.NFADot = &nfaDot
	}
	if p.DfaDot != "" {
		opts.DFADot = &dfaDot
	}

	w := writer.New(directiveName(output), cfg)
	res, err := compiler.Compile(f, cfg, w, opts)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	if err := writeDot(p.NfaDot, &nfaDot); err != nil {
		return err
	}
	if err := writeDot(p.DfaDot, &dfaDot); err != nil {
		return err
	}
	for _, st := range res.Stats {
		log.WithFields(logrus.Fields{
			"line":      st.Line,
			"cond":      st.Cond,
			"dfa":       st.DFA,
			"minimized": st.Minimized,
			"adfa":      st.ADFA,
			"linear":    st.Code.Linear,
			"binary":    st.Code.Binary,
			"switch":    st.Code.Switch,
			"bitmap":    st.Code.Bitmap,
			"cgoto":     st.Code.ComputedGoto,
		}).Debug("block generated")
	}

	var code []byte
	var runArgs []string
	if cfg.Skeleton {
		dir, base := skeletonBase(output, input)
		if err := writer.WriteStreams(dir, base, res); err != nil {
			return fmt.Errorf("write skeleton data: %w", err)
		}
		if code, err = writer.Skeleton(directiveName(output), base, res); err != nil {
			return fmt.Errorf("dump skeleton: %w", err)
		}
		runArgs = append(runArgs, dir)
	} else if code, err = w.Bytes(); err != nil {
		return fmt.Errorf("dump lexer: %w", err)
	}

	if output == "" {
		_, err = p.Stdout.Write(code)
		return err
	}
	if err := os.WriteFile(output, code, 0666); err != nil {
		return fmt.Errorf("write lexer: %w", err)
	}
	log.WithField("output", output).Debug("written")

	if !p.RunProgram {
		return nil
	}
	c := exec.Command("go", append([]string{"run", output}, runArgs...)...)
	c.Stdin, c.Stdout, c.Stderr = p.Stdin, p.Stdout, p.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("run lexer: %w", err)
	}
	return nil
}

func closeFile(f *os.File) {
	_ = f.Close()
}

func (p *Params) parseInput(input string) (*parser.File, error) {
	if input == "" {
		f, err := parser.ParseFile("<stdin>", p.Stdin)
		if err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
		return f, nil
	}
	in, err := os.Open(input)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer closeFile(in)

	f, err := parser.ParseFile(input, in)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return f, nil
}

// outputName maps lex.re and lex.go.re to lex.go. Other names get a .re2go infix so the
// input is never overwritten. Skeleton programs are named lex.skeleton.go.
func outputName(input string, cfg config.Config) string {
	ext := ".go"
	if cfg.Target == config.TargetC && !cfg.Skeleton {
		ext = ".c"
	}
	base := strings.TrimSuffix(input, ".re")
	if base == input {
		base = strings.TrimSuffix(input, filepath.Ext(input)) + ".re2go"
	}
	base = strings.TrimSuffix(base, ext)
	if cfg.Skeleton {
		base += ".skeleton"
	}
	return base + ext
}

func directiveName(output string) string {
	if output == "" {
		return "<stdout>"
	}
	return output
}

// skeletonBase places the data files next to the driver, named after it.
func skeletonBase(output, input string) (dir, base string) {
	name := output
	if name == "" {
		name = input
	}
	if name == "" {
		return ".", "stdin"
	}
	base = filepath.Base(name)
	return filepath.Dir(name), strings.TrimSuffix(base, filepath.Ext(base))
}

func writeDot(name string, buf *bytes.Buffer) error {
	if name == "" {
		return nil
	}
	if err := os.WriteFile(name, buf.Bytes(), 0666); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}
	return nil
}
