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

package lang

import (
	"github.com/hisesub022/falconjit/internal/diag"
)

// symbol records one name's kind and mutability, for the single flat
// namespace spec.md §3 requires: "every named symbol lives in exactly one
// of: parameters, locals, globals, exposed natives, compiled functions.
// Shadowing is forbidden; redeclaration raises an error."
type symbol struct {
	kind  Kind
	const_ bool
}

// FuncSig is a function's resolved (return, params) signature, used both
// for forward-declared top-level functions and exposed natives.
type FuncSig struct {
	Ret    Kind
	Params []Kind
}

// CheckContext carries the name tables a function body is checked against:
// other top-level functions (by name) and the exposed native table (by
// name), plus the global table. It is built once per Program and reused
// for every function.
type CheckContext struct {
	Globals map[string]symbol
	Funcs   map[string]FuncSig
	Natives map[string]FuncSig
}

// NewCheckContext builds the shared globals/funcs tables from a parsed
// Program, validating there is no redeclaration among globals or
// functions (spec.md §3's "redeclaration raises an error" invariant).
func NewCheckContext(prog *Program, natives map[string]FuncSig) *CheckContext {
	ctx := &CheckContext{
		Globals: map[string]symbol{},
		Funcs:   map[string]FuncSig{},
		Natives: natives,
	}
	for _, g := range prog.Globals {
		if _, exists := ctx.Globals[g.Name]; exists {
			panic(diag.New(diag.NameResolution, prog.Source, g.Offset,
				"Identifier already defined: %s", g.Name))
		}
		ctx.Globals[g.Name] = symbol{kind: g.Kind, const_: g.Const}
	}
	for _, fn := range prog.Funcs {
		if _, exists := ctx.Funcs[fn.Name]; exists {
			panic(diag.New(diag.NameResolution, prog.Source, fn.Offset,
				"Identifier already defined: %s", fn.Name))
		}
		params := make([]Kind, len(fn.Params))
		for i, p := range fn.Params {
			params[i] = p.Kind
		}
		ctx.Funcs[fn.Name] = FuncSig{Ret: fn.Ret, Params: params}
	}
	return ctx
}

// funcScope is the per-function local symbol table used while
// type-checking one FuncDecl's body: parameters plus locals declared so
// far, each with its kind and const-ness.
type funcScope struct {
	ctx    *CheckContext
	source string
	vars   map[string]symbol
}

// CheckFunc type-checks one function body in place, annotating every Expr
// node's Kind via SetKind and raising a located *diag.Error on any
// violation of spec.md §3/§4.4's typing rules. It is the Go analogue of
// the teacher's ast.TypeChecker walk (falcon/ast/type.go), adapted to this
// language's much smaller expression/statement grammar.
func CheckFunc(ctx *CheckContext, source string, fn *FuncDecl) {
	fs := &funcScope{ctx: ctx, source: source, vars: map[string]symbol{}}
	for _, p := range fn.Params {
		fs.declare(fn.Offset, p.Name, p.Kind, false)
	}
	for _, stmt := range fn.Body {
		fs.checkStmt(stmt, fn.Ret)
	}
}

func (fs *funcScope) fail(offset int, format string, args ...interface{}) {
	panic(diag.New(diag.Typing, fs.source, offset, format, args...))
}

// declare registers a new name in the current function scope, rejecting
// shadowing of a parameter/local/global/function/native name, per spec.md
// §3: "Shadowing is forbidden; redeclaration raises an error."
func (fs *funcScope) declare(offset int, name string, kind Kind, isConst bool) {
	if _, exists := fs.vars[name]; exists {
		panic(diag.New(diag.NameResolution, fs.source, offset, "Identifier already defined: %s", name))
	}
	if _, exists := fs.ctx.Globals[name]; exists {
		panic(diag.New(diag.NameResolution, fs.source, offset, "Identifier already defined: %s", name))
	}
	if _, exists := fs.ctx.Funcs[name]; exists {
		panic(diag.New(diag.NameResolution, fs.source, offset, "Identifier already defined: %s", name))
	}
	if _, exists := fs.ctx.Natives[name]; exists {
		panic(diag.New(diag.NameResolution, fs.source, offset, "Identifier already defined: %s", name))
	}
	fs.vars[name] = symbol{kind: kind, const_: isConst}
}

// resolve looks a name up across parameters/locals, then globals — the
// lookup order spec.md §3 describes.
func (fs *funcScope) resolve(offset int, name string) symbol {
	if s, ok := fs.vars[name]; ok {
		return s
	}
	if s, ok := fs.ctx.Globals[name]; ok {
		return s
	}
	panic(diag.New(diag.NameResolution, fs.source, offset, "Unknown identifier: %s", name))
}

func (fs *funcScope) checkStmt(stmt Stmt, ret Kind) {
	switch s := stmt.(type) {
	case *DeclStmt:
		if s.Init != nil {
			got := fs.checkExpr(s.Init)
			if got != s.Kind {
				fs.fail(s.Offset, TypeError(got, s.Kind))
			}
		}
		fs.declare(s.Offset, s.Name, s.Kind, s.Const)

	case *IncDecStmt:
		sym := fs.resolve(s.Offset, s.Name)
		if sym.kind != KInt {
			panic(diag.New(diag.Semantic, fs.source, s.Offset, "Can't increment/decrement non-integer"))
		}
		if sym.const_ {
			panic(diag.New(diag.Semantic, fs.source, s.Offset, "Can't assign to const variable"))
		}

	case *ReturnStmt:
		if s.Expr == nil {
			if ret != KVoid {
				fs.fail(s.Offset, TypeError(KVoid, ret))
			}
			return
		}
		got := fs.checkExpr(s.Expr)
		if got != ret {
			fs.fail(s.Offset, TypeError(got, ret))
		}

	case *ExprStmt:
		fs.checkExpr(s.Expr)

	default:
		panic(diag.New(diag.Semantic, fs.source, stmt.Pos(), "Unsupported statement"))
	}
}

// checkExpr type-checks an expression tree, annotates every node's Kind,
// and returns its resolved type.
func (fs *funcScope) checkExpr(expr Expr) Kind {
	switch e := expr.(type) {
	case *IntLit:
		e.Kind = KInt
	case *FloatLit:
		e.Kind = KFloat
	case *DoubleLit:
		e.Kind = KDouble
	case *BoolLit:
		e.Kind = KBool

	case *VarExpr:
		e.Kind = fs.resolve(e.Offset, e.Name).kind

	case *IndexExpr:
		sym := fs.resolve(e.Offset, e.Buffer)
		if sym.kind != KBuffer {
			fs.fail(e.Offset, "Type mismatch: got %v, expected Buffer", sym.kind)
		}
		idx := fs.checkExpr(e.Index)
		if idx != KInt {
			fs.fail(e.Offset, TypeError(idx, KInt))
		}
		e.Kind = KFloat

	case *UnaryExpr:
		fs.checkUnary(e)

	case *BinaryExpr:
		fs.checkBinary(e)

	case *AssignExpr:
		fs.checkAssign(e)

	case *TernaryExpr:
		cond := fs.checkExpr(e.Cond)
		if cond != KBool {
			panic(diag.New(diag.Typing, fs.source, e.Offset, "Condition must be bool"))
		}
		then := fs.checkExpr(e.Then)
		els := fs.checkExpr(e.Else)
		if then != els {
			fs.fail(e.Offset, TypeError(els, then))
		}
		e.Kind = then

	case *CallExpr:
		fs.checkCall(e)

	case *MethodCallExpr:
		fs.checkMethodCall(e)

	case *CastExpr:
		inner := fs.checkExpr(e.Expr)
		if !inner.IsNumeric() || !e.Target.IsNumeric() {
			fs.fail(e.Offset, "Can't negate/compare non-numeric")
		}
		e.Kind = e.Target

	default:
		panic(diag.New(diag.Typing, fs.source, expr.Pos(), "Unsupported expression"))
	}
	return expr.GetKind()
}

func (fs *funcScope) checkUnary(e *UnaryExpr) {
	switch e.Op {
	case TK_NOT:
		inner := fs.checkExpr(e.Expr)
		if inner != KBool {
			fs.fail(e.Offset, TypeError(inner, KBool))
		}
		e.Kind = KBool
	case TK_MINUS:
		inner := fs.checkExpr(e.Expr)
		if !inner.IsNumeric() {
			panic(diag.New(diag.Typing, fs.source, e.Offset, "Can't negate/compare non-numeric"))
		}
		e.Kind = inner
	case TK_INC, TK_DEC:
		v, ok := e.Expr.(*VarExpr)
		if !ok {
			panic(diag.New(diag.Semantic, fs.source, e.Offset, "Can't increment/decrement non-integer"))
		}
		sym := fs.resolve(e.Offset, v.Name)
		if sym.kind != KInt {
			panic(diag.New(diag.Semantic, fs.source, e.Offset, "Can't increment/decrement non-integer"))
		}
		e.Kind = KInt
	}
}

func (fs *funcScope) checkBinary(e *BinaryExpr) {
	left := fs.checkExpr(e.Left)
	right := fs.checkExpr(e.Right)

	switch e.Op {
	case TK_AND_AND, TK_OR_OR:
		if left != KBool {
			fs.fail(e.Offset, TypeError(left, KBool))
		}
		if right != KBool {
			fs.fail(e.Offset, TypeError(right, KBool))
		}
		e.Kind = KBool

	case TK_LT, TK_LE, TK_GT, TK_GE, TK_EQ, TK_NE:
		if left != right {
			fs.fail(e.Offset, TypeError(right, left))
		}
		e.Kind = KBool

	case TK_PLUS, TK_MINUS, TK_STAR, TK_SLASH:
		if !left.IsNumeric() {
			panic(diag.New(diag.Typing, fs.source, e.Offset, "Can't negate/compare non-numeric"))
		}
		if left != right {
			fs.fail(e.Offset, TypeError(right, left))
		}
		e.Kind = left

	case TK_PERCENT:
		if left != KInt {
			fs.fail(e.Offset, TypeError(left, KInt))
		}
		if right != KInt {
			fs.fail(e.Offset, TypeError(right, KInt))
		}
		e.Kind = KInt

	default:
		panic(diag.New(diag.Typing, fs.source, e.Offset, "Unsupported operator"))
	}
}

func (fs *funcScope) checkAssign(e *AssignExpr) {
	var targetKind Kind
	switch t := e.Target.(type) {
	case *VarExpr:
		sym := fs.resolve(e.Offset, t.Name)
		if sym.const_ {
			panic(diag.New(diag.Semantic, fs.source, e.Offset, "Can't assign to const variable"))
		}
		targetKind = sym.kind
		t.Kind = sym.kind
	case *IndexExpr:
		sym := fs.resolve(e.Offset, t.Buffer)
		if sym.kind != KBuffer {
			fs.fail(e.Offset, "Type mismatch: got %v, expected Buffer", sym.kind)
		}
		idx := fs.checkExpr(t.Index)
		if idx != KInt {
			fs.fail(e.Offset, TypeError(idx, KInt))
		}
		targetKind = KFloat
		t.Kind = KFloat
	default:
		panic(diag.New(diag.Semantic, fs.source, e.Offset, "Invalid assignment target"))
	}

	value := fs.checkExpr(e.Value)
	if value != targetKind {
		fs.fail(e.Offset, TypeError(value, targetKind))
	}
	if e.Op != TK_ASSIGN && !targetKind.IsNumeric() {
		panic(diag.New(diag.Typing, fs.source, e.Offset, "Can't negate/compare non-numeric"))
	}
	e.Kind = targetKind
}

func (fs *funcScope) checkCall(e *CallExpr) {
	sig, ok := fs.ctx.Funcs[e.Name]
	if !ok {
		sig, ok = fs.ctx.Natives[e.Name]
	}
	if !ok {
		panic(diag.New(diag.NameResolution, fs.source, e.Offset, "Unknown identifier: %s", e.Name))
	}
	if len(e.Args) != len(sig.Params) {
		panic(diag.New(diag.Signature, fs.source, e.Offset, "Function type mismatch"))
	}
	for i, arg := range e.Args {
		got := fs.checkExpr(arg)
		if got != sig.Params[i] {
			panic(diag.New(diag.Signature, fs.source, arg.Pos(), "Parameter %d: type mismatch", i+1))
		}
	}
	e.Kind = sig.Ret
}

// checkMethodCall supports only `buf.setSize(n)`, per spec.md §9's explicit
// rejection of any other buffer method as "not supported".
func (fs *funcScope) checkMethodCall(e *MethodCallExpr) {
	sym := fs.resolve(e.Offset, e.Receiver)
	if sym.kind != KBuffer {
		fs.fail(e.Offset, "Type mismatch: got %v, expected Buffer", sym.kind)
	}
	if e.Method != "setSize" {
		panic(diag.New(diag.Semantic, fs.source, e.Offset, "not supported: buffer method %q", e.Method))
	}
	if len(e.Args) != 1 {
		panic(diag.New(diag.Signature, fs.source, e.Offset, "Function type mismatch"))
	}
	if got := fs.checkExpr(e.Args[0]); got != KInt {
		fs.fail(e.Offset, TypeError(got, KInt))
	}
	e.Kind = KVoid
}
