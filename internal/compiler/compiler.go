// Copyright (c) 2024 The Falcon Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package compiler orchestrates the front end and back end into the
// "compile(source) -> scope" pipeline spec.md §2 describes: preprocessor
// -> lexer/parser -> type-checker -> per-function codegen -> scope.
// Mirrors the teacher's thin compile.CompileTheWorld orchestration layer
// (falcon/compile/compiler.go), minus the gcc-shelling backend step.
package compiler

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/hisesub022/falconjit/internal/codegen"
	"github.com/hisesub022/falconjit/internal/diag"
	"github.com/hisesub022/falconjit/internal/lang"
	"github.com/hisesub022/falconjit/internal/scope"
)

// Option configures a Compiler at construction; currently only the
// safe-buffer-access default is exposed, since the preprocessor's
// SAFE/DISABLE_SAFE_BUFFER_ACCESS macros can override it per-source
// anyway (spec.md §4.1).
type Option func(*options)

type options struct {
	safeBufferDefault bool
}

// WithSafeBufferAccess sets the default safe-mode flag used when the
// source defines neither SAFE nor DISABLE_SAFE_BUFFER_ACCESS.
func WithSafeBufferAccess(v bool) Option {
	return func(o *options) { o.safeBufferDefault = v }
}

// Compiler captures the result of compiling one source string: either a
// parsed, checked program ready for BuildScope, or a located error.
type Compiler struct {
	source string
	prog   *lang.Program
	ctx    *lang.CheckContext
	err    error
}

// Failed wraps an error encountered outside the normal compile pipeline
// (e.g. an unrecovered internal panic) into a Compiler whose OK() is
// false, so callers always deal with a single handle shape.
func Failed(err error) *Compiler {
	return &Compiler{err: err}
}

// Compile runs the preprocessor, parser and type-checker over source,
// matching spec.md §6's `compile(source)` host operation. It never
// panics: internal parser/type-checker panics are recovered into the
// returned error (SPEC_FULL.md §10).
func Compile(source string, opts ...Option) (c *Compiler, err error) {
	defer diag.Recover(&err)
	o := &options{safeBufferDefault: true}
	for _, opt := range opts {
		opt(o)
	}

	start := time.Now()
	c = &Compiler{source: source}

	seeded := source
	if !o.safeBufferDefault {
		// Preprocess defaults safe-buffer mode on; honor an explicit
		// caller override by prepending the equivalent directive. A
		// `#define SAFE` in the source still wins, being applied later.
		seeded = "#define DISABLE_SAFE_BUFFER_ACCESS\n" + source
	}

	preprocessed, flags, perr := lang.Preprocess(seeded)
	if perr != nil {
		c.err = perr
		return c, nil
	}

	prog, perr := lang.ParseProgram(preprocessed, flags)
	if perr != nil {
		c.err = perr
		return c, nil
	}
	c.prog = prog

	ctx := lang.NewCheckContext(prog, defaultNativeSignatures())
	c.ctx = ctx

	func() {
		defer func() {
			if r := recover(); r != nil {
				if de, ok := r.(*diag.Error); ok {
					c.err = de
					return
				}
				panic(r)
			}
		}()
		for _, fn := range prog.Funcs {
			lang.CheckFunc(ctx, preprocessed, fn)
		}
	}()

	log.Debug().
		Str("component", "compiler").
		Int("globals", len(prog.Globals)).
		Int("functions", len(prog.Funcs)).
		Dur("elapsed", time.Since(start)).
		Msg("compile finished")

	return c, nil
}

// OK reports whether compilation succeeded (spec.md §6 wasCompiledOK).
func (c *Compiler) OK() bool { return c.err == nil }

// ErrorMessage renders the captured error as "Line N: message", or "" if
// compilation succeeded (spec.md §6/§7).
func (c *Compiler) ErrorMessage() string {
	if c.err == nil {
		return ""
	}
	return c.err.Error()
}

// BuildScope lowers the checked program into a runtime Scope: declares
// every global, then emits and JITs every function body in declaration
// order (spec.md §2's "scope returns callable function pointers"). A call
// can only target a function emitted before it: a call to a function
// declared later, or a recursive call, fails with "Unknown identifier".
func (c *Compiler) BuildScope() (sc *scope.Scope, err error) {
	if c.err != nil {
		return nil, errors.Wrap(c.err, "compile failed")
	}
	defer diag.Recover(&err)

	sc = scope.New()
	for _, g := range c.prog.Globals {
		declareGlobal(sc, g)
	}

	for _, fn := range c.prog.Funcs {
		code, cerr := codegen.EmitFunction(c.ctx, c.source, c.prog.Flags, sc, fn)
		if cerr != nil {
			return nil, diag.Wrap(cerr, "emitting "+fn.Name)
		}
		page, perr := codegen.NewExecPage(code)
		if perr != nil {
			return nil, errors.Wrap(perr, "allocating executable page for "+fn.Name)
		}
		sc.TrackPage(page)
		sc.RegisterFunction(&scope.CompiledFunction{
			Name:   fn.Name,
			Ret:    fn.Ret,
			Params: paramKinds(fn.Params),
			Entry:  page.Entry(),
		})
	}
	return sc, nil
}

func declareGlobal(sc *scope.Scope, g *lang.GlobalDecl) {
	sg := &scope.Global{Name: g.Name, Kind: g.Kind, Const: g.Const}
	if g.Kind == lang.KBuffer {
		sg.Buffer = scope.NewBuffer(g.BufferSize)
	} else if g.Init != nil {
		applyLiteralInit(sg, g)
	}
	sc.DeclareGlobal(sg)
}

func applyLiteralInit(sg *scope.Global, g *lang.GlobalDecl) {
	switch lit := g.Init.(type) {
	case *lang.IntLit:
		sg.SetInt(lit.Value)
	case *lang.FloatLit:
		sg.SetFloat(lit.Value)
	case *lang.DoubleLit:
		sg.SetDouble(lit.Value)
	case *lang.BoolLit:
		sg.SetBool(lit.Value)
	}
}

func paramKinds(params []lang.Param) []lang.Kind {
	ks := make([]lang.Kind, len(params))
	for i, p := range params {
		ks[i] = p.Kind
	}
	return ks
}

// defaultNativeSignatures mirrors internal/scope's built-in math-shim
// table so the type-checker can validate calls to sinf/cosf/... without
// importing internal/scope (which in turn must not import internal/lang's
// check context to avoid a cycle); kept in one place here since
// internal/compiler already depends on both.
func defaultNativeSignatures() map[string]lang.FuncSig {
	f1 := []lang.Kind{lang.KFloat}
	d1 := []lang.Kind{lang.KDouble}
	return map[string]lang.FuncSig{
		"sinf":   {Ret: lang.KFloat, Params: f1},
		"sin":    {Ret: lang.KDouble, Params: d1},
		"cosf":   {Ret: lang.KFloat, Params: f1},
		"cos":    {Ret: lang.KDouble, Params: d1},
		"tanf":   {Ret: lang.KFloat, Params: f1},
		"tan":    {Ret: lang.KDouble, Params: d1},
		"atanf":  {Ret: lang.KFloat, Params: f1},
		"atan":   {Ret: lang.KDouble, Params: d1},
		"atanhf": {Ret: lang.KFloat, Params: f1},
		"atanh":  {Ret: lang.KDouble, Params: d1},
		"sqrtf":  {Ret: lang.KFloat, Params: f1},
		"sqrt":   {Ret: lang.KDouble, Params: d1},
		"tanhf":  {Ret: lang.KFloat, Params: f1},
		"tanh":   {Ret: lang.KDouble, Params: d1},
		"fabsf":  {Ret: lang.KFloat, Params: f1},
		"fabs":   {Ret: lang.KDouble, Params: d1},
		"abs":    {Ret: lang.KInt, Params: []lang.Kind{lang.KInt}},
		"expf":   {Ret: lang.KFloat, Params: f1},
		"exp":    {Ret: lang.KDouble, Params: d1},
		"powf":   {Ret: lang.KFloat, Params: []lang.Kind{lang.KFloat, lang.KFloat}},
		"pow":    {Ret: lang.KDouble, Params: []lang.Kind{lang.KDouble, lang.KDouble}},
	}
}
