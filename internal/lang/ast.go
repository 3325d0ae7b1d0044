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

// AST node interfaces, modelled on the teacher compiler's
// AstNode/AstExpr/AstStmt/AstDecl split (falcon/ast/ast.go), retargeted to
// this language's smaller expression and statement grammar (SPEC_FULL.md
// §4.3/§4.4).

type Node interface {
	node()
}

type Expr interface {
	Node
	GetKind() Kind
	SetKind(Kind)
	Pos() int
}

type Stmt interface {
	Node
	Pos() int
}

type exprBase struct {
	Kind   Kind
	Offset int
}

func (e *exprBase) node()          {}
func (e *exprBase) GetKind() Kind  { return e.Kind }
func (e *exprBase) SetKind(k Kind) { e.Kind = k }
func (e *exprBase) Pos() int       { return e.Offset }

// -----------------------------------------------------------------------
// Expressions

type IntLit struct {
	exprBase
	Value int32
}

type FloatLit struct {
	exprBase
	Value float32
}

type DoubleLit struct {
	exprBase
	Value float64
}

type BoolLit struct {
	exprBase
	Value bool
}

type VarExpr struct {
	exprBase
	Name string
}

// IndexExpr is buf[i].
type IndexExpr struct {
	exprBase
	Buffer string
	Index  Expr
}

type UnaryExpr struct {
	exprBase
	Op   TokenKind // TK_MINUS, TK_NOT, TK_INC, TK_DEC; TK_INC/TK_DEC here is the prefix expression form (++x) — the postfix statement form (x++;) parses to IncDecStmt instead
	Expr Expr
}

type BinaryExpr struct {
	exprBase
	Op    TokenKind
	Left  Expr
	Right Expr
}

type AssignExpr struct {
	exprBase
	Op     TokenKind // TK_ASSIGN or a compound *_ASN
	Target Expr      // VarExpr or IndexExpr
	Value  Expr
}

type TernaryExpr struct {
	exprBase
	Cond Expr
	Then Expr
	Else Expr
}

type CallExpr struct {
	exprBase
	Name string
	Args []Expr
}

// MethodCallExpr is buf.setSize(n) — the one supported buffer method
// (SPEC_FULL.md §4.4 / spec.md §9 open question).
type MethodCallExpr struct {
	exprBase
	Receiver string
	Method   string
	Args     []Expr
}

type CastExpr struct {
	exprBase
	Target Kind
	Expr   Expr
}

// -----------------------------------------------------------------------
// Statements

type stmtBase struct{ Offset int }

func (s *stmtBase) node()    {}
func (s *stmtBase) Pos() int { return s.Offset }

// DeclStmt declares a local: `[const] type ident [= expr];`
type DeclStmt struct {
	stmtBase
	Name  string
	Kind  Kind
	Const bool
	Init  Expr // nil if uninitialized (defaults to zero value)
}

// ExprStmt wraps a bare expression statement (assignment, call, buffer op,
// prefix inc/dec) used as a statement.
type ExprStmt struct {
	stmtBase
	Expr Expr
}

// IncDecStmt is the postfix `ident++;` / `ident--;` statement form, valid
// only on int lvalues (spec.md §4.4).
type IncDecStmt struct {
	stmtBase
	Name string
	Op   TokenKind // TK_INC or TK_DEC
}

type ReturnStmt struct {
	stmtBase
	Expr Expr // nil for a void return
}

// -----------------------------------------------------------------------
// Top-level declarations

// GlobalDecl declares a global scalar or Buffer, with an optional literal
// initializer and const flag (spec.md §4.3).
type GlobalDecl struct {
	Offset     int
	Name       string
	Kind       Kind
	Const      bool
	Init       Expr // literal initializer, or nil (zero value)
	BufferSize int  // valid only when Kind == KBuffer
}

// Param is a function parameter: name + declared type.
type Param struct {
	Name string
	Kind Kind
}

// FuncDecl is a top-level function declaration. Body is parsed in a second
// pass so forward references among top-level functions resolve (spec.md
// §4.3 "all function bodies are collected, then a second pass compiles
// them").
type FuncDecl struct {
	Offset       int
	Name         string
	Params       []Param
	Ret          Kind
	Body         []Stmt
	SyntheticRet bool // true if a missing `return;` was synthesized for void
}

// Program is the parsed, not-yet-type-checked translation unit.
type Program struct {
	Source  string
	Globals []*GlobalDecl
	Funcs   []*FuncDecl
	Flags   Flags
}
