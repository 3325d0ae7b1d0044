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

package codegen

import (
	"fmt"
	"math"
	"unsafe"

	"golang.org/x/arch/x86/x86asm"

	"github.com/hisesub022/falconjit/internal/diag"
	"github.com/hisesub022/falconjit/internal/lang"
	"github.com/hisesub022/falconjit/internal/scope"
)

// value is the tagged IR node SPEC_FULL.md §6 describes: a Kind, the
// register currently holding it, or (isImm) an integer or floating-point
// immediate; global change tracking lives in globalBinding, not here.
// This collapses the teacher's
// fifteen-odd concrete AstExpr types plus the original C++'s
// template-instantiated node factory into one struct with a kind tag, per
// §9's instruction to replace the template explosion with tagged variants.
type value struct {
	kind  lang.Kind
	reg   Reg
	isImm bool
	immI  int64   // valid when isImm && kind.Class() == ClassGP
	immF  float64 // valid when isImm && kind.Class() == ClassXMM (the float32 or float64 value, widened)
}

// globalBinding tracks a mutable global's in-register working copy: the
// register it was loaded into on first use, and whether it has been
// written since (spec.md §4.4's load-on-first-use / flush-on-every-return
// protocol — "the semantic contract, not an optimization pass").
type globalBinding struct {
	g       *scope.Global
	reg     Reg
	changed bool
}

// Emitter lowers one function body directly to machine code, one
// statement/expression at a time, with no intervening IR-to-IR lowering
// pass (no SSA, spec.md §1 Non-goals). Persistent bindings (parameters,
// locals, referenced globals) each own one physical register for the
// function's whole lifetime, assigned from a small free-list as they are
// declared or first referenced; transient expression temporaries are
// allocated on top of that and freed as soon as their parent node
// consumes them — the direct-emitter analogue of "each IR node owns
// exactly one physical register... for its lifetime" (SPEC_FULL.md §3).
type Emitter struct {
	asm    *Assembler
	ctx    *lang.CheckContext
	source string
	flags  lang.Flags
	sc     *scope.Scope

	gpFree  []Reg
	xmmFree []Reg

	locals      map[string]*value
	globals     map[string]*globalBinding
	globalOrder []string

	labelSeq int
}

var persistentGP = []Reg{RBX, R12, R13, R14, R15, RDX, RCX, RSI, RDI, R8, R9}
var persistentXMM = []Reg{XMM1, XMM2, XMM3, XMM4, XMM5, XMM6}

func newEmitter(ctx *lang.CheckContext, source string, flags lang.Flags, sc *scope.Scope) *Emitter {
	e := &Emitter{
		asm:     NewAssembler(),
		ctx:     ctx,
		source:  source,
		flags:   flags,
		sc:      sc,
		gpFree:  append([]Reg(nil), persistentGP...),
		xmmFree: append([]Reg(nil), persistentXMM...),
		locals:  map[string]*value{},
		globals: map[string]*globalBinding{},
	}
	return e
}

func (e *Emitter) allocReg(class lang.RegisterClass) Reg {
	if class == lang.ClassXMM {
		if len(e.xmmFree) == 0 {
			panic(diag.New(diag.Emit, e.source, 0, "ASM Error: out of xmm registers for this function"))
		}
		r := e.xmmFree[len(e.xmmFree)-1]
		e.xmmFree = e.xmmFree[:len(e.xmmFree)-1]
		return r
	}
	if len(e.gpFree) == 0 {
		panic(diag.New(diag.Emit, e.source, 0, "ASM Error: out of general-purpose registers for this function"))
	}
	r := e.gpFree[len(e.gpFree)-1]
	e.gpFree = e.gpFree[:len(e.gpFree)-1]
	return r
}

func (e *Emitter) freeReg(r Reg) {
	if r.IsXMM() {
		e.xmmFree = append(e.xmmFree, r)
	} else {
		e.gpFree = append(e.gpFree, r)
	}
}

func (e *Emitter) label(prefix string) string {
	e.labelSeq++
	return fmt.Sprintf("%s_%d", prefix, e.labelSeq)
}

// EmitFunction encodes fn's full prologue, body and epilogue, returning
// the finished machine code buffer ready for internal/codegen.NewExecPage.
func EmitFunction(ctx *lang.CheckContext, source string, flags lang.Flags, sc *scope.Scope, fn *lang.FuncDecl) (code []byte, err error) {
	defer diag.Recover(&err)
	e := newEmitter(ctx, source, flags, sc)
	e.asm.Prologue()

	bindings := BindParams(paramKinds(fn.Params))
	for i, p := range fn.Params {
		reg := e.allocReg(p.Kind.Class())
		e.moveReg(reg, bindings[i].Reg, p.Kind)
		e.locals[p.Name] = &value{kind: p.Kind, reg: reg}
	}

	for _, stmt := range fn.Body {
		e.emitStmt(stmt, fn.Ret)
	}

	code = e.asm.Finish()
	return code, nil
}

func paramKinds(params []lang.Param) []lang.Kind {
	ks := make([]lang.Kind, len(params))
	for i, p := range params {
		ks[i] = p.Kind
	}
	return ks
}

// moveReg copies src into dst using the right-width move for kind's class.
func (e *Emitter) moveReg(dst, src Reg, k lang.Kind) {
	if dst == src {
		return
	}
	switch k.Class() {
	case lang.ClassXMM:
		if k == lang.KDouble {
			e.asm.MovsdRegReg(dst, src)
		} else {
			e.asm.MovssRegReg(dst, src)
		}
	default:
		e.asm.MovRegReg(dst, src, k == lang.KBuffer)
	}
}

// ---- statements ----

func (e *Emitter) emitStmt(stmt lang.Stmt, ret lang.Kind) {
	switch s := stmt.(type) {
	case *lang.DeclStmt:
		reg := e.allocReg(s.Kind.Class())
		if s.Init != nil {
			v := e.emitExpr(s.Init)
			e.materializeInto(reg, v)
		} else {
			e.zeroReg(reg, s.Kind)
		}
		e.locals[s.Name] = &value{kind: s.Kind, reg: reg}

	case *lang.IncDecStmt:
		local := e.locals[s.Name]
		if local != nil {
			if s.Op == lang.TK_INC {
				e.asm.MovRegImm32(R10, 1)
			} else {
				e.asm.MovRegImm32(R10, -1)
			}
			e.asm.AddRegReg(local.reg, R10, false)
			return
		}
		gb := e.globalBindingFor(s.Name)
		if s.Op == lang.TK_INC {
			e.asm.MovRegImm32(R10, 1)
		} else {
			e.asm.MovRegImm32(R10, -1)
		}
		e.asm.AddRegReg(gb.reg, R10, false)
		gb.changed = true

	case *lang.ReturnStmt:
		var v value
		if s.Expr != nil {
			v = e.emitExpr(s.Expr)
		}
		e.flushChangedGlobals()
		if s.Expr != nil {
			dst := ReturnRegister(ret)
			e.materializeInto(dst, v)
		}
		e.asm.Epilogue()

	case *lang.ExprStmt:
		v := e.emitExpr(s.Expr)
		e.releaseIfTransient(v)

	default:
		panic(diag.New(diag.Emit, e.source, stmt.Pos(), "ASM Error: unsupported statement"))
	}
}

func (e *Emitter) zeroReg(r Reg, k lang.Kind) {
	switch k.Class() {
	case lang.ClassXMM:
		// xorps-equivalent via sub-self is avoided; instead load a zero
		// immediate through a GP scratch and convert, keeping the encoder
		// small (this is not on any hot numeric path, only declaration
		// without an initializer).
		e.asm.MovRegImm32(R10, 0)
		if k == lang.KDouble {
			e.asm.Cvtsi2sd(r, R10)
		} else {
			e.asm.Cvtsi2ss(r, R10)
		}
	default:
		e.asm.MovRegImm32(r, 0)
	}
}

// flushChangedGlobals stores every mutable global's working register back
// to its storage slot, immediately before a return — spec.md §4.4: "a
// flush store back to the global's slot is emitted immediately before
// every return path (including synthesised void returns)".
func (e *Emitter) flushChangedGlobals() {
	for _, name := range e.globalOrder {
		gb := e.globals[name]
		if !gb.changed {
			continue
		}
		e.asm.MovRegImm64(R11, uint64(uintptr(unsafe.Pointer(gb.g.Slot()))))
		e.moveReg(RAX, gb.reg, gb.g.Kind)
		if gb.g.Kind.Class() == lang.ClassXMM {
			// stash through RAX isn't valid for xmm; store directly.
			e.storeXMMToAddr(gb.reg, R11, gb.g.Kind)
		} else {
			e.asm.MovMemReg(R11, gb.reg, gb.g.Kind == lang.KBuffer)
		}
	}
}

// storeXMMToAddr stores src to the address held in addrReg via the
// movss/movsd-to-memory form; the scalar-arith opcodes above cover
// register-to-register math only, so global flush and unsafe buffer
// stores come through here instead.
func (e *Emitter) storeXMMToAddr(src Reg, addrReg Reg, k lang.Kind) {
	// F3 0F 11 /r (MOVSS) / F2 0F 11 /r (MOVSD), mem operand via [addrReg].
	if k == lang.KDouble {
		e.asm.code = append(e.asm.code, 0xF2)
	} else {
		e.asm.code = append(e.asm.code, 0xF3)
	}
	e.asm.emitREXIfNeeded(false, src, addrReg)
	e.asm.emit(0x0F, 0x11)
	e.asm.emitMemOperand(src, addrReg)
}

// globalBindingFor loads a mutable global into a fresh persistent register
// on first reference, memoizing the binding for the rest of the function
// (spec.md §4.4's load-on-first-use protocol).
func (e *Emitter) globalBindingFor(name string) *globalBinding {
	if gb, ok := e.globals[name]; ok {
		return gb
	}
	g, ok := e.sc.Global(name)
	if !ok {
		panic(diag.New(diag.NameResolution, e.source, 0, "Unknown identifier: %s", name))
	}
	reg := e.allocReg(g.Kind.Class())
	e.asm.MovRegImm64(R11, uint64(uintptr(unsafe.Pointer(g.Slot()))))
	if g.Kind.Class() == lang.ClassXMM {
		e.loadXMMFromAddr(reg, R11, g.Kind)
	} else {
		e.asm.MovRegMem(reg, R11, g.Kind == lang.KBuffer)
	}
	gb := &globalBinding{g: g, reg: reg}
	e.globals[name] = gb
	e.globalOrder = append(e.globalOrder, name)
	return gb
}

func (e *Emitter) loadXMMFromAddr(dst Reg, addrReg Reg, k lang.Kind) {
	if k == lang.KDouble {
		e.asm.code = append(e.asm.code, 0xF2)
	} else {
		e.asm.code = append(e.asm.code, 0xF3)
	}
	e.asm.emitREXIfNeeded(false, dst, addrReg)
	e.asm.emit(0x0F, 0x10)
	e.asm.emitMemOperand(dst, addrReg)
}

// releaseIfTransient frees a value's register back to the pool if it is
// not one of this function's persistent bindings (locals/params/globals),
// avoiding leaking scratch registers allocated for a bare expression
// statement's intermediate results.
func (e *Emitter) releaseIfTransient(v value) {
	if v.isImm {
		return
	}
	for _, l := range e.locals {
		if l.reg == v.reg {
			return
		}
	}
	for _, g := range e.globals {
		if g.reg == v.reg {
			return
		}
	}
	e.freeReg(v.reg)
}

// materializeInto moves v (immediate or register) into dst.
func (e *Emitter) materializeInto(dst Reg, v value) {
	if v.isImm {
		switch v.kind.Class() {
		case lang.ClassXMM:
			// load the IEEE bit pattern into R10, then MOVD/MOVQ xmm, r
			// (66 [REX.W] 0F 6E /r).
			if v.kind == lang.KDouble {
				e.asm.MovRegImm64(R10, math.Float64bits(v.immF))
			} else {
				e.asm.MovRegImm32(R10, int32(math.Float32bits(float32(v.immF))))
			}
			e.asm.emit(0x66)
			e.asm.emitREXIfNeeded(v.kind == lang.KDouble, dst, R10)
			e.asm.emit(0x0F, 0x6E, modrm(3, dst.num(), R10.num()))
		default:
			e.asm.MovRegImm32(dst, int32(v.immI))
		}
		return
	}
	e.moveReg(dst, v.reg, v.kind)
}

// ---- expressions ----

func (e *Emitter) emitExpr(expr lang.Expr) value {
	switch ex := expr.(type) {
	case *lang.IntLit:
		return value{kind: lang.KInt, isImm: true, immI: int64(ex.Value)}
	case *lang.FloatLit:
		return value{kind: lang.KFloat, isImm: true, immF: float64(ex.Value)}
	case *lang.DoubleLit:
		return value{kind: lang.KDouble, isImm: true, immF: ex.Value}
	case *lang.BoolLit:
		n := int64(0)
		if ex.Value {
			n = 1
		}
		return value{kind: lang.KBool, isImm: true, immI: n}

	case *lang.VarExpr:
		if l, ok := e.locals[ex.Name]; ok {
			return *l
		}
		gb := e.globalBindingFor(ex.Name)
		return value{kind: gb.g.Kind, reg: gb.reg}

	case *lang.UnaryExpr:
		return e.emitUnary(ex)
	case *lang.BinaryExpr:
		return e.emitBinary(ex)
	case *lang.AssignExpr:
		return e.emitAssign(ex)
	case *lang.TernaryExpr:
		return e.emitTernary(ex)
	case *lang.IndexExpr:
		return e.emitIndexLoad(ex)
	case *lang.CallExpr:
		return e.emitCall(ex)
	case *lang.MethodCallExpr:
		return e.emitMethodCall(ex)
	case *lang.CastExpr:
		return e.emitCast(ex)
	}
	panic(diag.New(diag.Emit, e.source, expr.Pos(), "ASM Error: unsupported expression"))
}

func (e *Emitter) materializeToReg(v value) Reg {
	if !v.isImm {
		// a local's or global's own register is copied, so that the
		// caller's in-place arithmetic does not overwrite the variable.
		persistent := false
		for _, l := range e.locals {
			persistent = persistent || l.reg == v.reg
		}
		for _, g := range e.globals {
			persistent = persistent || g.reg == v.reg
		}
		if !persistent {
			return v.reg
		}
	}
	r := e.allocReg(v.kind.Class())
	e.materializeInto(r, v)
	return r
}

func (e *Emitter) emitUnary(ex *lang.UnaryExpr) value {
	switch ex.Op {
	case lang.TK_NOT:
		v := e.emitExpr(ex.Expr)
		r := e.materializeToReg(v)
		e.asm.NotReg(r, false)
		e.asm.AndRegImm8(r, 1)
		return value{kind: lang.KBool, reg: r}
	case lang.TK_MINUS:
		v := e.emitExpr(ex.Expr)
		if v.isImm {
			if v.kind.Class() == lang.ClassXMM {
				v.immF = -v.immF
			} else {
				v.immI = -v.immI
			}
			return v
		}
		r := v.reg
		if v.kind.Class() == lang.ClassXMM {
			// multiply by -1.0: load -1 into scratch xmm via GP bit trick.
			neg := e.allocReg(lang.ClassXMM)
			e.loadNegOneXMM(neg, v.kind)
			if v.kind == lang.KDouble {
				e.asm.MulsdRegReg(r, neg)
			} else {
				e.asm.MulssRegReg(r, neg)
			}
			e.freeReg(neg)
		} else {
			e.asm.NegReg(r, false)
		}
		return value{kind: v.kind, reg: r}
	case lang.TK_INC, lang.TK_DEC:
		name := ex.Expr.(*lang.VarExpr).Name
		if l, ok := e.locals[name]; ok {
			if ex.Op == lang.TK_INC {
				e.asm.MovRegImm32(R10, 1)
			} else {
				e.asm.MovRegImm32(R10, -1)
			}
			e.asm.AddRegReg(l.reg, R10, false)
			return *l
		}
		gb := e.globalBindingFor(name)
		if ex.Op == lang.TK_INC {
			e.asm.MovRegImm32(R10, 1)
		} else {
			e.asm.MovRegImm32(R10, -1)
		}
		e.asm.AddRegReg(gb.reg, R10, false)
		gb.changed = true
		return value{kind: gb.g.Kind, reg: gb.reg}
	}
	panic(diag.New(diag.Emit, e.source, ex.Pos(), "ASM Error: unsupported unary operator"))
}

// loadNegOneXMM materializes -1.0 (float or double) into an xmm register
// via a GP immediate + int-to-float conversion, since the encoder has no
// memory-operand constant pool.
func (e *Emitter) loadNegOneXMM(dst Reg, k lang.Kind) {
	e.asm.MovRegImm32(R10, -1)
	if k == lang.KDouble {
		e.asm.Cvtsi2sd(dst, R10)
	} else {
		e.asm.Cvtsi2ss(dst, R10)
	}
}

func (e *Emitter) emitBinary(ex *lang.BinaryExpr) value {
	switch ex.Op {
	case lang.TK_AND_AND, lang.TK_OR_OR:
		// No short-circuit: both sides always evaluated (spec.md §4.4).
		l := e.emitExpr(ex.Left)
		r := e.emitExpr(ex.Right)
		lr := e.materializeToReg(l)
		rr := e.materializeToReg(r)
		if ex.Op == lang.TK_AND_AND {
			e.asm.emit(0x21) // AND r/m32, r32 (raw opcode: bitwise AND on booleans)
			e.asm.emitREXIfNeeded(false, rr, lr)
			e.asm.emit(modrm(3, rr.num(), lr.num()))
		} else {
			e.asm.emit(0x09) // OR r/m32, r32
			e.asm.emitREXIfNeeded(false, rr, lr)
			e.asm.emit(modrm(3, rr.num(), lr.num()))
		}
		return value{kind: lang.KBool, reg: lr}

	case lang.TK_LT, lang.TK_LE, lang.TK_GT, lang.TK_GE, lang.TK_EQ, lang.TK_NE:
		return e.emitCompare(ex)

	case lang.TK_PLUS, lang.TK_MINUS, lang.TK_STAR, lang.TK_SLASH:
		return e.emitArith(ex)

	case lang.TK_PERCENT:
		return e.emitMod(ex)
	}
	panic(diag.New(diag.Emit, e.source, ex.Pos(), "ASM Error: unsupported binary operator"))
}

func (e *Emitter) emitArith(ex *lang.BinaryExpr) value {
	left := e.emitExpr(ex.Left)
	right := e.emitExpr(ex.Right)
	kind := left.kind

	if kind.Class() == lang.ClassXMM {
		dst := e.materializeToReg(left)
		src := e.materializeToReg(right)
		isDouble := kind == lang.KDouble
		switch ex.Op {
		case lang.TK_PLUS:
			if isDouble {
				e.asm.AddsdRegReg(dst, src)
			} else {
				e.asm.AddssRegReg(dst, src)
			}
		case lang.TK_MINUS:
			if isDouble {
				e.asm.SubsdRegReg(dst, src)
			} else {
				e.asm.SubssRegReg(dst, src)
			}
		case lang.TK_STAR:
			if isDouble {
				e.asm.MulsdRegReg(dst, src)
			} else {
				e.asm.MulssRegReg(dst, src)
			}
		case lang.TK_SLASH:
			if isDouble {
				e.asm.DivsdRegReg(dst, src)
			} else {
				e.asm.DivssRegReg(dst, src)
			}
		}
		if src != dst {
			e.releaseIfTransient(value{kind: kind, reg: src})
		}
		return value{kind: kind, reg: dst}
	}

	dst := e.materializeToReg(left)
	src := e.materializeToReg(right)
	switch ex.Op {
	case lang.TK_PLUS:
		e.asm.AddRegReg(dst, src, false)
	case lang.TK_MINUS:
		e.asm.SubRegReg(dst, src, false)
	case lang.TK_STAR:
		e.asm.ImulRegReg(dst, src, false)
	case lang.TK_SLASH:
		return e.emitIntDivide(dst, src)
	}
	if src != dst {
		e.releaseIfTransient(value{kind: kind, reg: src})
	}
	return value{kind: kind, reg: dst}
}

// emitIntDivide implements the signed 32-bit division idiom spec.md §4.5
// names: sign-extend eax into edx:eax with cdq, then idiv. Division by
// zero is undefined, matching spec.md §4.4 ("division by zero is undefined
// (not checked)").
func (e *Emitter) emitIntDivide(dst, src Reg) value {
	e.moveReg(RAX, dst, lang.KInt)
	e.asm.Cdq()
	e.asm.IdivReg(src)
	result := e.allocReg(lang.ClassGP)
	e.moveReg(result, RAX, lang.KInt)
	e.releaseIfTransient(value{kind: lang.KInt, reg: dst})
	e.releaseIfTransient(value{kind: lang.KInt, reg: src})
	return value{kind: lang.KInt, reg: result}
}

// emitMod implements integer `%`: a bit-mask for a positive power-of-two
// immediate right-hand side, otherwise a signed division (spec.md §4.4:
// "if the right-hand side is an integer immediate power of two, emits a
// bit-mask; otherwise uses signed division").
func (e *Emitter) emitMod(ex *lang.BinaryExpr) value {
	left := e.emitExpr(ex.Left)
	if lit, ok := ex.Right.(*lang.IntLit); ok && lit.Value > 0 && isPowerOfTwo(lit.Value) {
		dst := e.materializeToReg(left)
		// AND r/m32, imm32 (81 /4 id): the mask can exceed an imm8.
		e.asm.emitREXIfNeeded(false, 0, dst)
		e.asm.emit(0x81, modrm(3, 4, dst.num()))
		e.asm.emit32(uint32(lit.Value - 1))
		return value{kind: lang.KInt, reg: dst}
	}
	right := e.emitExpr(ex.Right)
	dst := e.materializeToReg(left)
	src := e.materializeToReg(right)
	e.moveReg(RAX, dst, lang.KInt)
	e.asm.Cdq()
	e.asm.IdivReg(src)
	result := e.allocReg(lang.ClassGP)
	e.moveReg(result, RDX, lang.KInt) // remainder lands in edx
	e.releaseIfTransient(value{kind: lang.KInt, reg: dst})
	e.releaseIfTransient(value{kind: lang.KInt, reg: src})
	return value{kind: lang.KInt, reg: result}
}

func isPowerOfTwo(v int32) bool { return v > 0 && v&(v-1) == 0 }

func (e *Emitter) emitCompare(ex *lang.BinaryExpr) value {
	left := e.emitExpr(ex.Left)
	right := e.emitExpr(ex.Right)
	kind := left.kind
	dst := e.materializeToReg(left)
	src := e.materializeToReg(right)

	if kind.Class() == lang.ClassXMM {
		if kind == lang.KDouble {
			e.asm.UcomisdRegReg(dst, src)
		} else {
			e.asm.UcomissRegReg(dst, src)
		}
	} else {
		e.asm.CmpRegReg(dst, src, kind == lang.KBuffer)
	}

	cond := compareCondCode(ex.Op, kind.Class() == lang.ClassXMM)
	result := e.allocReg(lang.ClassGP)
	e.asm.MovRegImm32(result, 0) // zero-extend: MOV leaves the flags intact
	e.asm.SetCC(cond, result)
	e.releaseIfTransient(value{kind: kind, reg: dst})
	e.releaseIfTransient(value{kind: kind, reg: src})
	return value{kind: lang.KBool, reg: result}
}

// compareCondCode maps a comparison operator to the SETcc condition code,
// using the unordered-aware variants for float/double per spec.md §4.5.
func compareCondCode(op lang.TokenKind, isFloat bool) x86asm.CondCode {
	switch op {
	case lang.TK_LT:
		if isFloat {
			return x86asm.CondB
		}
		return x86asm.CondL
	case lang.TK_LE:
		if isFloat {
			return x86asm.CondBE
		}
		return x86asm.CondLE
	case lang.TK_GT:
		if isFloat {
			return x86asm.CondA
		}
		return x86asm.CondG
	case lang.TK_GE:
		if isFloat {
			return x86asm.CondAE
		}
		return x86asm.CondGE
	case lang.TK_EQ:
		return x86asm.CondE
	case lang.TK_NE:
		return x86asm.CondNE
	}
	return x86asm.CondE
}

func (e *Emitter) emitAssign(ex *lang.AssignExpr) value {
	switch t := ex.Target.(type) {
	case *lang.VarExpr:
		rhs := e.emitExpr(ex.Value)
		if l, ok := e.locals[t.Name]; ok {
			e.applyCompound(l.reg, rhs, ex.Op, l.kind)
			return *l
		}
		gb := e.globalBindingFor(t.Name)
		e.applyCompound(gb.reg, rhs, ex.Op, gb.g.Kind)
		gb.changed = true
		return value{kind: gb.g.Kind, reg: gb.reg}

	case *lang.IndexExpr:
		rhs := e.emitExpr(ex.Value)
		e.emitIndexStore(t, rhs, ex.Op)
		return rhs
	}
	panic(diag.New(diag.Emit, e.source, ex.Pos(), "ASM Error: unsupported assignment target"))
}

// applyCompound folds a compound assignment operator's arithmetic in
// place into dst.
func (e *Emitter) applyCompound(dst Reg, rhs value, op lang.TokenKind, kind lang.Kind) {
	if op == lang.TK_ASSIGN {
		e.materializeInto(dst, rhs)
		return
	}
	src := e.materializeToReg(rhs)
	if kind.Class() == lang.ClassXMM {
		isDouble := kind == lang.KDouble
		switch op {
		case lang.TK_PLUS_ASN:
			if isDouble {
				e.asm.AddsdRegReg(dst, src)
			} else {
				e.asm.AddssRegReg(dst, src)
			}
		case lang.TK_MINUS_ASN:
			if isDouble {
				e.asm.SubsdRegReg(dst, src)
			} else {
				e.asm.SubssRegReg(dst, src)
			}
		case lang.TK_STAR_ASN:
			if isDouble {
				e.asm.MulsdRegReg(dst, src)
			} else {
				e.asm.MulssRegReg(dst, src)
			}
		case lang.TK_SLASH_ASN:
			if isDouble {
				e.asm.DivsdRegReg(dst, src)
			} else {
				e.asm.DivssRegReg(dst, src)
			}
		}
	} else {
		switch op {
		case lang.TK_PLUS_ASN:
			e.asm.AddRegReg(dst, src, false)
		case lang.TK_MINUS_ASN:
			e.asm.SubRegReg(dst, src, false)
		case lang.TK_STAR_ASN:
			e.asm.ImulRegReg(dst, src, false)
		case lang.TK_SLASH_ASN:
			e.moveReg(RAX, dst, lang.KInt)
			e.asm.Cdq()
			e.asm.IdivReg(src)
			e.moveReg(dst, RAX, lang.KInt)
		case lang.TK_PCT_ASN:
			e.moveReg(RAX, dst, lang.KInt)
			e.asm.Cdq()
			e.asm.IdivReg(src)
			e.moveReg(dst, RDX, lang.KInt)
		}
	}
	e.releaseIfTransient(value{kind: kind, reg: src})
}

func (e *Emitter) emitTernary(ex *lang.TernaryExpr) value {
	rhsLabel := e.label("ternary_rhs")
	endLabel := e.label("ternary_end")

	cond := e.emitExpr(ex.Cond)
	cr := e.materializeToReg(cond)
	e.asm.MovRegImm32(R10, 1)
	e.asm.CmpRegReg(cr, R10, false)
	e.releaseIfTransient(value{kind: lang.KBool, reg: cr})
	e.asm.Jcc(x86asm.CondNE, rhsLabel)

	result := e.allocReg(ex.Then.GetKind().Class())
	thenVal := e.emitExpr(ex.Then)
	e.materializeInto(result, thenVal)
	e.releaseIfTransient(thenVal)
	e.asm.Jmp(endLabel)

	e.asm.Label(rhsLabel)
	elseVal := e.emitExpr(ex.Else)
	e.materializeInto(result, elseVal)
	e.releaseIfTransient(elseVal)

	e.asm.Label(endLabel)
	return value{kind: ex.GetKind(), reg: result}
}

// emitIndexLoad implements buf[i] reads, safe or unsafe per e.flags
// (spec.md §4.4).
func (e *Emitter) emitIndexLoad(ex *lang.IndexExpr) value {
	g, ok := e.sc.Global(ex.Buffer)
	if !ok || g.Buffer == nil {
		panic(diag.New(diag.NameResolution, e.source, ex.Pos(), "Unknown identifier: %s", ex.Buffer))
	}
	idx := e.emitExpr(ex.Index)
	idxReg := e.materializeToReg(idx)
	result := e.allocReg(lang.ClassXMM)

	if !e.flags.SafeBufferAccess {
		base := e.allocReg(lang.ClassGP)
		e.asm.MovRegImm64(base, uint64(uintptr(unsafe.Pointer(g.Buffer.DataPointer()))))
		e.asm.MovRegReg(R10, idxReg, false)
		e.asm.AddRegReg(R10, R10, true)
		e.asm.AddRegReg(R10, R10, true) // R10 = i*4
		e.asm.AddRegReg(base, R10, true)
		e.loadXMMFromAddr(result, base, lang.KFloat)
		e.freeReg(base)
		e.releaseIfTransient(value{kind: lang.KInt, reg: idxReg})
		return value{kind: lang.KFloat, reg: result}
	}

	// Safe mode: the bounds check, sentinel write and zero-on-overflow
	// behavior are delegated to scope.Buffer.Load via a host call rather
	// than inlined compare+branch machine code, matching spec.md §4.4's
	// "compare i against the buffer size; if out of range, emit a call to
	// an out-of-range handler" — here the handler IS scope.Buffer.Load.
	bufReg := e.allocReg(lang.ClassGP)
	e.asm.MovRegImm64(bufReg, uint64(uintptr(unsafe.Pointer(g.Buffer))))
	e.moveReg(RDI, bufReg, lang.KBuffer)
	e.moveReg(RSI, idxReg, lang.KInt)
	fn := bufferLoadTrampoline
	e.asm.MovRegImm64(R11, uint64(uintptr(unsafe.Pointer(&fn))))
	e.asm.CallReg(R11)
	e.moveReg(result, XMM0, lang.KFloat)
	e.freeReg(bufReg)
	e.releaseIfTransient(value{kind: lang.KInt, reg: idxReg})
	return value{kind: lang.KFloat, reg: result}
}

func (e *Emitter) emitIndexStore(ex *lang.IndexExpr, rhs value, op lang.TokenKind) {
	g, ok := e.sc.Global(ex.Buffer)
	if !ok || g.Buffer == nil {
		panic(diag.New(diag.NameResolution, e.source, ex.Pos(), "Unknown identifier: %s", ex.Buffer))
	}
	if op != lang.TK_ASSIGN {
		// compound buffer assignment: load current value, combine, then
		// fall through to the same store path below.
		cur := e.emitIndexLoad(ex)
		e.applyCompound(e.materializeToReg(cur), rhs, op, lang.KFloat)
		rhs = cur
	}
	idx := e.emitExpr(ex.Index)
	idxReg := e.materializeToReg(idx)
	valReg := e.materializeToReg(rhs)

	if !e.flags.SafeBufferAccess {
		base := e.allocReg(lang.ClassGP)
		e.asm.MovRegImm64(base, uint64(uintptr(unsafe.Pointer(g.Buffer.DataPointer()))))
		e.asm.MovRegReg(R10, idxReg, false)
		e.asm.AddRegReg(R10, R10, true)
		e.asm.AddRegReg(R10, R10, true) // R10 = i*4
		e.asm.AddRegReg(base, R10, true)
		e.storeXMMToAddr(valReg, base, lang.KFloat)
		e.freeReg(base)
		e.releaseIfTransient(value{kind: lang.KInt, reg: idxReg})
		e.releaseIfTransient(value{kind: lang.KFloat, reg: valReg})
		return
	}

	bufReg := e.allocReg(lang.ClassGP)
	e.asm.MovRegImm64(bufReg, uint64(uintptr(unsafe.Pointer(g.Buffer))))
	e.moveReg(RDI, bufReg, lang.KBuffer)
	e.moveReg(RSI, idxReg, lang.KInt)
	e.moveReg(XMM0, valReg, lang.KFloat)
	fn := bufferStoreTrampoline
	e.asm.MovRegImm64(R11, uint64(uintptr(unsafe.Pointer(&fn))))
	e.asm.CallReg(R11)
	e.freeReg(bufReg)
	e.releaseIfTransient(value{kind: lang.KInt, reg: idxReg})
	e.releaseIfTransient(value{kind: lang.KFloat, reg: valReg})
}

// bufferLoadTrampoline / bufferStoreTrampoline are the Go-side handlers
// the safe-buffer-access path calls into; they ARE scope.Buffer's own
// bounds-checked Load/Store, invoked across the JIT/Go boundary the same
// way the launix-de-memcp reference file's callback trampolines work.
var bufferLoadTrampoline = func(b *scope.Buffer, i int32) float32 { return b.Load(i) }
var bufferStoreTrampoline = func(b *scope.Buffer, i int32, v float32) { b.Store(i, v) }

func (e *Emitter) emitCall(ex *lang.CallExpr) value {
	argVals := make([]value, len(ex.Args))
	for i, a := range ex.Args {
		argVals[i] = e.emitExpr(a)
	}
	kinds := make([]lang.Kind, len(ex.Args))
	for i, v := range argVals {
		kinds[i] = v.kind
	}
	bindings := BindParams(kinds)
	for i, v := range argVals {
		e.materializeInto(bindings[i].Reg, v)
	}

	var retKind lang.Kind
	var entry unsafe.Pointer
	if cf, ok := e.sc.Function(ex.Name); ok {
		retKind = cf.Ret
		entry = cf.Entry
	} else if sig, ok := e.ctx.Natives[ex.Name]; ok {
		n, err := e.sc.Native(ex.Name, sig.Ret, sig.Params...)
		if err != nil {
			panic(diag.New(diag.Signature, e.source, ex.Pos(), "%s", err.Error()))
		}
		retKind = n.Ret
		entry = n.Fn
	} else {
		panic(diag.New(diag.NameResolution, e.source, ex.Pos(), "Unknown identifier: %s", ex.Name))
	}

	e.asm.MovRegImm64(R11, uint64(uintptr(entry)))
	e.asm.CallReg(R11)

	result := e.allocReg(retKind.Class())
	e.moveReg(result, ReturnRegister(retKind), retKind)
	for _, v := range argVals {
		e.releaseIfTransient(v)
	}
	return value{kind: retKind, reg: result}
}

// emitMethodCall implements `buf.setSize(n)`, the one supported buffer
// method (spec.md §4.4/§9); it calls directly into scope.Buffer.SetSize
// rather than emitting inline reallocation logic, since resizing involves
// a Go slice allocation that cannot happen inline in JIT-emitted code.
func (e *Emitter) emitMethodCall(ex *lang.MethodCallExpr) value {
	g, ok := e.sc.Global(ex.Receiver)
	if !ok || g.Buffer == nil {
		panic(diag.New(diag.NameResolution, e.source, ex.Pos(), "Unknown identifier: %s", ex.Receiver))
	}
	arg := e.emitExpr(ex.Args[0])
	argReg := e.materializeToReg(arg)
	bufReg := e.allocReg(lang.ClassGP)
	e.asm.MovRegImm64(bufReg, uint64(uintptr(unsafe.Pointer(g.Buffer))))
	e.moveReg(RDI, bufReg, lang.KBuffer)
	e.moveReg(RSI, argReg, lang.KInt)
	fn := bufferSetSizeTrampoline
	e.asm.MovRegImm64(R11, uint64(uintptr(unsafe.Pointer(&fn))))
	e.asm.CallReg(R11)
	e.freeReg(bufReg)
	e.releaseIfTransient(value{kind: lang.KInt, reg: argReg})
	return value{kind: lang.KVoid}
}

var bufferSetSizeTrampoline = func(b *scope.Buffer, n int32) { b.SetSize(int(n)) }

func (e *Emitter) emitCast(ex *lang.CastExpr) value {
	v := e.emitExpr(ex.Expr)
	from := v.kind
	to := ex.Target
	if from == to {
		v.kind = to
		return v
	}
	if v.isImm {
		r := e.materializeToReg(v)
		v = value{kind: from, reg: r}
	}
	src := v.reg

	switch {
	case from.Class() == lang.ClassGP && to.Class() == lang.ClassXMM:
		dst := e.allocReg(lang.ClassXMM)
		if to == lang.KDouble {
			e.asm.Cvtsi2sd(dst, src)
		} else {
			e.asm.Cvtsi2ss(dst, src)
		}
		e.releaseIfTransient(v)
		return value{kind: to, reg: dst}

	case from.Class() == lang.ClassXMM && to.Class() == lang.ClassGP:
		dst := e.allocReg(lang.ClassGP)
		if from == lang.KDouble {
			e.asm.Cvttsd2si(dst, src)
		} else {
			e.asm.Cvttss2si(dst, src)
		}
		e.releaseIfTransient(v)
		return value{kind: to, reg: dst}

	case from == lang.KFloat && to == lang.KDouble:
		dst := e.allocReg(lang.ClassXMM)
		e.asm.Cvtss2sd(dst, src)
		e.releaseIfTransient(v)
		return value{kind: to, reg: dst}

	case from == lang.KDouble && to == lang.KFloat:
		dst := e.allocReg(lang.ClassXMM)
		e.asm.Cvtsd2ss(dst, src)
		e.releaseIfTransient(v)
		return value{kind: to, reg: dst}
	}
	v.kind = to
	return v
}
