package writer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dave/jennifer/jen"
	"github.com/pkg/errors"

	"github.com/liran-funaro/re2go/codegen"
	"github.com/liran-funaro/re2go/compiler"
	"github.com/liran-funaro/re2go/config"
	"github.com/liran-funaro/re2go/diag"
)

// StreamName is the path prefix of the data files of unit i.
func StreamName(dir, base string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%d", base, i))
}

// WriteStreams writes the .input and .keys files of every unit.
func WriteStreams(dir, base string, res *compiler.Result) error {
	for i, u := range res.Units {
		if u.Data == nil {
			continue
		}
		name := StreamName(dir, base, i)
		if err := writeFile(name+".input", u.Data.WriteInput); err != nil {
			return err
		}
		if err := writeFile(name+".keys", u.Data.WriteKeys); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(name string, write func(w io.Writer) error) (err error) {
	f, err := os.Create(name)
	if err != nil {
		return errors.Wrap(err, "create skeleton data")
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = errors.Wrap(cerr, "close skeleton data")
		}
	}()
	return write(f)
}

// Skeleton builds a main package replaying the data files of every unit against its scanner.
// The program reads the files of base from the directory given as first argument and exits
// with status 1 on the first mismatch.
func Skeleton(name, base string, res *compiler.Result) ([]byte, error) {
	f := jen.NewFile("main")
	f.HeaderComment("Code generated by re2go; DO NOT EDIT.")
	skeletonInput(f)
	skeletonRun(f)

	var calls []jen.Code
	for i, u := range res.Units {
		if u.Data == nil {
			continue
		}
		calls = append(calls, jen.Id("ok").Op("=").Id("run").Call(
			jen.Qual("path/filepath", "Join").Call(jen.Id("dir"), jen.Lit(fmt.Sprintf("%s.%d", base, i))),
			jen.Lit(u.Data.Width()),
			jen.Id(fmt.Sprintf("scan%d", i)),
		).Op("&&").Id("ok"))
	}
	body := []jen.Code{
		jen.Id("dir").Op(":=").Lit("."),
		jen.If(jen.Len(jen.Qual("os", "Args")).Op(">").Lit(1)).Block(
			jen.Id("dir").Op("=").Qual("os", "Args").Index(jen.Lit(1)),
		),
		jen.Id("ok").Op(":=").True(),
	}
	body = append(body, calls...)
	body = append(body, jen.If(jen.Op("!").Id("ok")).Block(
		jen.Qual("os", "Exit").Call(jen.Lit(1)),
	))
	f.Func().Id("main").Params().Block(body...)

	w := &Writer{Name: name, target: config.TargetGo, bol: true}
	if err := f.Render(&w.buf); err != nil {
		return nil, errors.Wrap(err, "render skeleton driver")
	}
	for i, u := range res.Units {
		if u.Data == nil {
			continue
		}
		cfg := u.Config
		cfg.LineDirectives = false
		// The driver stores every code unit as uint32.
		cfg.API.Peek = cfg.CharType + "(" + cfg.API.Peek + ")"
		w.writef("\n// scan%d is condition %q of the block at line %d.\nfunc scan%d(in *input) uint32 ", i, u.Cond, u.Line, i)
		block := codegen.Block{Units: []codegen.Unit{{ADFA: u.ADFA}}, Bitmaps: res.Bitmaps[u.ADFA]}
		if _, err := codegen.Generate(w, cfg, block, diag.Component("codegen")); err != nil {
			return nil, err
		}
	}
	return w.Bytes()
}

func in(field string) *jen.Statement {
	return jen.Id("in").Dot(field)
}

func method(f *jen.File, name string, params []jen.Code, result jen.Code, body ...jen.Code) {
	s := f.Func().Params(jen.Id("in").Op("*").Id("input")).Id(name).Params(params...)
	if result != nil {
		s.Add(result)
	}
	s.Block(body...)
}

// skeletonInput declares the input type implementing the skeleton API over one vector.
func skeletonInput(f *jen.File) {
	f.Type().Id("input").Struct(
		jen.Id("data").Index().Uint32(),
		jen.List(jen.Id("cur"), jen.Id("mar"), jen.Id("ctx"), jen.Id("lim")).Int(),
		jen.Id("cond").Int(),
	)
	method(f, "peek", nil, jen.Uint32(),
		jen.If(in("cur").Op("<").Add(in("lim"))).Block(
			jen.Return(in("data").Index(in("cur"))),
		),
		jen.Return(jen.Lit(0)),
	)
	method(f, "skip", nil, nil, in("cur").Op("++"))
	method(f, "backup", nil, nil, in("mar").Op("=").Add(in("cur")))
	method(f, "restore", nil, nil, in("cur").Op("=").Add(in("mar")))
	method(f, "backupCtx", nil, nil, in("ctx").Op("=").Add(in("cur")))
	method(f, "restoreCtx", nil, nil, in("cur").Op("=").Add(in("ctx")))
	method(f, "lessThan", []jen.Code{jen.Id("n").Int()}, jen.Bool(),
		jen.Return(in("lim").Op("-").Add(in("cur")).Op("<").Id("n")),
	)
	// Vectors are complete, there is nothing to fill.
	method(f, "fill", []jen.Code{jen.Id("_").Op("...").Int()}, nil)
}

// skeletonRun declares the loader and the replay loop.
func skeletonRun(f *jen.File) {
	le := func(b jen.Code) *jen.Statement {
		return jen.Qual("encoding/binary", "LittleEndian").Dot("Uint32").Call(b)
	}
	f.Type().Id("key").Struct(
		jen.List(jen.Id("length"), jen.Id("match"), jen.Id("rule")).Uint32(),
	)

	f.Func().Id("load").Params(jen.Id("prefix").String(), jen.Id("width").Int()).
		Params(jen.Index().Uint32(), jen.Index().Id("key"), jen.Error()).
		Block(
			jen.List(jen.Id("raw"), jen.Err()).Op(":=").Qual("os", "ReadFile").Call(jen.Id("prefix").Op("+").Lit(".input")),
			jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Nil(), jen.Err())),
			jen.Id("units").Op(":=").Make(jen.Index().Uint32(), jen.Len(jen.Id("raw")).Op("/").Id("width")),
			jen.For(jen.Id("i").Op(":=").Range().Id("units")).Block(
				jen.Switch(jen.Id("width")).Block(
					jen.Case(jen.Lit(1)).Block(
						jen.Id("units").Index(jen.Id("i")).Op("=").Uint32().Call(jen.Id("raw").Index(jen.Id("i"))),
					),
					jen.Case(jen.Lit(2)).Block(
						jen.Id("units").Index(jen.Id("i")).Op("=").Uint32().Call(
							jen.Qual("encoding/binary", "LittleEndian").Dot("Uint16").Call(jen.Id("raw").Index(jen.Lit(2).Op("*").Id("i").Op(":"))),
						),
					),
					jen.Default().Block(
						jen.Id("units").Index(jen.Id("i")).Op("=").Add(le(jen.Id("raw").Index(jen.Lit(4).Op("*").Id("i").Op(":")))),
					),
				),
			),
			jen.List(jen.Id("raw"), jen.Err()).Op("=").Qual("os", "ReadFile").Call(jen.Id("prefix").Op("+").Lit(".keys")),
			jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Nil(), jen.Err())),
			jen.Id("keys").Op(":=").Make(jen.Index().Id("key"), jen.Len(jen.Id("raw")).Op("/").Lit(12)),
			jen.For(jen.Id("i").Op(":=").Range().Id("keys")).Block(
				jen.Id("b").Op(":=").Id("raw").Index(jen.Lit(12).Op("*").Id("i").Op(":")),
				jen.Id("keys").Index(jen.Id("i")).Op("=").Id("key").Values(
					le(jen.Id("b")),
					le(jen.Id("b").Index(jen.Lit(4).Op(":"))),
					le(jen.Id("b").Index(jen.Lit(8).Op(":"))),
				),
			),
			jen.Return(jen.Id("units"), jen.Id("keys"), jen.Nil()),
		)

	f.Func().Id("run").Params(
		jen.Id("prefix").String(),
		jen.Id("width").Int(),
		jen.Id("scan").Func().Params(jen.Op("*").Id("input")).Uint32(),
	).Bool().Block(
		jen.List(jen.Id("units"), jen.Id("keys"), jen.Err()).Op(":=").Id("load").Call(jen.Id("prefix"), jen.Id("width")),
		jen.If(jen.Err().Op("!=").Nil()).Block(
			jen.Qual("fmt", "Fprintln").Call(jen.Qual("os", "Stderr"), jen.Err()),
			jen.Return(jen.False()),
		),
		jen.Id("off").Op(":=").Lit(0),
		jen.For(jen.List(jen.Id("i"), jen.Id("k")).Op(":=").Range().Id("keys")).Block(
			jen.Id("in").Op(":=").Op("&").Id("input").Values(jen.Dict{
				jen.Id("data"): jen.Id("units"),
				jen.Id("cur"):  jen.Id("off"),
				jen.Id("lim"):  jen.Id("off").Op("+").Int().Call(jen.Id("k").Dot("length")),
			}),
			jen.Id("rule").Op(":=").Id("scan").Call(jen.Id("in")),
			jen.Id("n").Op(":=").Uint32().Call(in("cur").Op("-").Id("off")),
			jen.If(jen.Id("rule").Op("!=").Id("k").Dot("rule").Op("||").Parens(
				jen.Id("rule").Op("!=").Lit(0).Op("&&").Id("n").Op("!=").Id("k").Dot("match"),
			)).Block(
				jen.Qual("fmt", "Fprintf").Call(jen.Qual("os", "Stderr"),
					jen.Lit("%s: vector %d: got rule %d length %d, want rule %d length %d\n"),
					jen.Id("prefix"), jen.Id("i"), jen.Id("rule"), jen.Id("n"), jen.Id("k").Dot("rule"), jen.Id("k").Dot("match")),
				jen.Return(jen.False()),
			),
			jen.Id("off").Op("+=").Int().Call(jen.Id("k").Dot("length")),
		),
		jen.Qual("fmt", "Printf").Call(jen.Lit("%s: %d vectors ok\n"), jen.Id("prefix"), jen.Len(jen.Id("keys"))),
		jen.Return(jen.True()),
	)
}
