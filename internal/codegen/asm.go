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
	"encoding/binary"

	"golang.org/x/arch/x86/x86asm"
)

// Assembler accumulates encoded x86-64 machine code bytes for one
// function body. It plays the role the teacher's compile/codegen.Assembler
// plays (falcon/compile/codegen/asm_x86.go) — a stateful per-function code
// buffer with a fixed scratch-register convention — but emits real
// instruction bytes instead of AT&T-syntax text lines, since this backend
// has no assembler-and-linker step to hand text off to (SPEC_FULL.md §3).
//
// Scratch registers R10 (general purpose) and XMM7 (float/double) are
// reserved the way the teacher reserves R10/XMM15: never assigned to a
// user-visible IR node, always free for the emitter's own temporaries
// (global-flush staging, ternary branch shuffling, division idiom).
type Assembler struct {
	code   []byte
	labels map[string]int
	fixups []fixup
}

type fixup struct {
	pos    int // offset of the 4-byte rel32 field to patch
	label  string
	nextIP int // offset of the instruction following the rel32 field
}

func NewAssembler() *Assembler {
	return &Assembler{labels: map[string]int{}}
}

func (a *Assembler) Len() int { return len(a.code) }

func (a *Assembler) emit(b ...byte) { a.code = append(a.code, b...) }

func (a *Assembler) emit32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	a.emit(buf[:]...)
}

func (a *Assembler) emit64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	a.emit(buf[:]...)
}

// Label records the current code offset under name, for a later Jmp/Jcc to
// target. Each IR node that needs a jump target (ternary's rhs/end, safe
// buffer access's skip target) allocates a uniquely-suffixed label name.
func (a *Assembler) Label(name string) {
	a.labels[name] = len(a.code)
}

// rex builds a REX prefix: w = 64-bit operand size, r/x/b extend the
// ModRM.reg / SIB.index / ModRM.rm (or opcode-reg) fields into R8-R15.
func rex(w, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

func modrm(mod, reg, rm byte) byte {
	return mod<<6 | (reg&7)<<3 | (rm & 7)
}

func sib(scale, index, base byte) byte {
	return scale<<6 | (index&7)<<3 | (base & 7)
}

// emitMemOperand appends the ModRM byte (plus a SIB and/or displacement
// byte where the encoding requires one) for a `[rm]` no-displacement,
// no-index memory operand addressed through rm and carrying reg in the
// ModRM.reg field. x86-64 reserves two rm encodings under mod=00: low3==4
// (RSP/R12) is the SIB-byte escape, and low3==5 (RBP/R13) means
// RIP-relative addressing rather than `[RBP]`/`[R13]`. Both are worked
// around the standard way: low3==4 gets a plain `[rm]` SIB byte, and
// low3==5 uses mod=01 with an explicit disp8 of 0 instead of mod=00.
func (a *Assembler) emitMemOperand(reg, rm Reg) {
	switch rm.num() & 7 {
	case 4:
		a.emit(modrm(0, reg.num(), 4), sib(0, 4, rm.num()))
	case 5:
		a.emit(modrm(1, reg.num(), 5), 0x00)
	default:
		a.emit(modrm(0, reg.num(), rm.num()))
	}
}

// emitREXIfNeeded appends a REX prefix whenever 64-bit width or an
// extended register is involved; narrower GP ops that touch no R8-R15
// register need none, matching how real encoders minimize prefix bytes.
func (a *Assembler) emitREXIfNeeded(w bool, r, rm Reg) {
	if w || r.needsREX() || rm.needsREX() {
		a.emit(rex(w, r.needsREX(), false, rm.needsREX()))
	}
}

// ---- General purpose moves / arithmetic (32-bit operand size unless w64) ----

func (a *Assembler) MovRegReg(dst, src Reg, w64 bool) {
	a.emitREXIfNeeded(w64, src, dst)
	a.emit(0x89, modrm(3, src.num(), dst.num()))
}

func (a *Assembler) MovRegImm32(dst Reg, imm int32) {
	if dst.needsREX() {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0xB8 + dst.num()&7)
	a.emit32(uint32(imm))
}

// MovRegImm64 loads a full 64-bit immediate, used for baking absolute
// global-slot and buffer-data addresses into the instruction stream
// (spec.md §4.5: "storage address is fixed at compile time").
func (a *Assembler) MovRegImm64(dst Reg, imm uint64) {
	a.emit(rex(true, false, false, dst.needsREX()))
	a.emit(0xB8 + dst.num()&7)
	a.emit64(imm)
}

// MovRegMem / MovMemReg load/store through an absolute address already
// resident in a register (the common case here: global slots and buffer
// bases are loaded via MovRegImm64 into a scratch register first, then
// dereferenced with these).
func (a *Assembler) MovRegMem(dst Reg, base Reg, w64 bool) {
	a.emitREXIfNeeded(w64, dst, base)
	a.emit(0x8B)
	a.emitMemOperand(dst, base)
}

func (a *Assembler) MovMemReg(base Reg, src Reg, w64 bool) {
	a.emitREXIfNeeded(w64, src, base)
	a.emit(0x89)
	a.emitMemOperand(src, base)
}

func (a *Assembler) AddRegReg(dst, src Reg, w64 bool) {
	a.emitREXIfNeeded(w64, src, dst)
	a.emit(0x01, modrm(3, src.num(), dst.num()))
}

func (a *Assembler) SubRegReg(dst, src Reg, w64 bool) {
	a.emitREXIfNeeded(w64, src, dst)
	a.emit(0x29, modrm(3, src.num(), dst.num()))
}

// ImulRegReg is the two-operand signed multiply form (0F AF /r): dst *= src.
func (a *Assembler) ImulRegReg(dst, src Reg, w64 bool) {
	a.emitREXIfNeeded(w64, dst, src)
	a.emit(0x0F, 0xAF, modrm(3, dst.num(), src.num()))
}

func (a *Assembler) CmpRegReg(a1, a2 Reg, w64 bool) {
	a.emitREXIfNeeded(w64, a2, a1)
	a.emit(0x39, modrm(3, a2.num(), a1.num()))
}

func (a *Assembler) NegReg(r Reg, w64 bool) {
	a.emitREXIfNeeded(w64, 0, r)
	a.emit(0xF7, modrm(3, 3, r.num()))
}

func (a *Assembler) NotReg(r Reg, w64 bool) {
	a.emitREXIfNeeded(w64, 0, r)
	a.emit(0xF7, modrm(3, 2, r.num()))
}

func (a *Assembler) AndRegImm8(r Reg, imm int8) {
	a.emitREXIfNeeded(false, 0, r)
	a.emit(0x83, modrm(3, 4, r.num()), byte(imm))
}

// Cdq sign-extends eax into edx:eax, the first step of the signed 32-bit
// division idiom spec.md §4.5 names.
func (a *Assembler) Cdq() { a.emit(0x99) }

// IdivReg performs a signed divide of edx:eax by r, leaving the quotient
// in eax and remainder in edx (spec.md §4.5: "emits the signed 64/32 idiom
// (xor of high half, cdq, idiv) using a scratch register").
func (a *Assembler) IdivReg(r Reg) {
	a.emitREXIfNeeded(false, 0, r)
	a.emit(0xF7, modrm(3, 7, r.num()))
}

// SetCC emits `set<cond>` into the low byte of dst, zero-extending the
// rest of the register is the caller's job if needed.
func (a *Assembler) SetCC(cond x86asm.CondCode, dst Reg) {
	if dst >= RSP && dst <= RDI {
		// a bare REX selects SPL/BPL/SIL/DIL instead of AH/CH/DH/BH.
		a.emit(rex(false, false, false, false))
	} else {
		a.emitREXIfNeeded(false, 0, dst)
	}
	a.emit(0x0F, setccOpcode(cond), modrm(3, 0, dst.num()))
}

func setccOpcode(cond x86asm.CondCode) byte {
	// 0F 90 + cc encodes SETcc; x86asm.CondCode values line up with the
	// standard Intel condition-code nibble ordering.
	return 0x90 + byte(cond)
}

// ---- SSE scalar float/double ----

func (a *Assembler) MovssRegReg(dst, src Reg) {
	a.emit(0xF3)
	a.emitREXIfNeeded(false, dst, src)
	a.emit(0x0F, 0x10, modrm(3, dst.num(), src.num()))
}

func (a *Assembler) MovsdRegReg(dst, src Reg) {
	a.emit(0xF2)
	a.emitREXIfNeeded(false, dst, src)
	a.emit(0x0F, 0x10, modrm(3, dst.num(), src.num()))
}

func (a *Assembler) AddssRegReg(dst, src Reg) { a.sseArith(0xF3, 0x58, dst, src) }
func (a *Assembler) SubssRegReg(dst, src Reg) { a.sseArith(0xF3, 0x5C, dst, src) }
func (a *Assembler) MulssRegReg(dst, src Reg) { a.sseArith(0xF3, 0x59, dst, src) }
func (a *Assembler) DivssRegReg(dst, src Reg) { a.sseArith(0xF3, 0x5E, dst, src) }

func (a *Assembler) AddsdRegReg(dst, src Reg) { a.sseArith(0xF2, 0x58, dst, src) }
func (a *Assembler) SubsdRegReg(dst, src Reg) { a.sseArith(0xF2, 0x5C, dst, src) }
func (a *Assembler) MulsdRegReg(dst, src Reg) { a.sseArith(0xF2, 0x59, dst, src) }
func (a *Assembler) DivsdRegReg(dst, src Reg) { a.sseArith(0xF2, 0x5E, dst, src) }

func (a *Assembler) sseArith(prefix, op byte, dst, src Reg) {
	a.emit(prefix)
	a.emitREXIfNeeded(false, dst, src)
	a.emit(0x0F, op, modrm(3, dst.num(), src.num()))
}

// Ucomiss/Ucomisd compare and set EFLAGS the unordered-aware way spec.md
// §4.5 calls for ("FP comparisons use the unordered-aware flags").
func (a *Assembler) UcomissRegReg(a1, a2 Reg) {
	a.emitREXIfNeeded(false, a1, a2)
	a.emit(0x0F, 0x2E, modrm(3, a1.num(), a2.num()))
}

func (a *Assembler) UcomisdRegReg(a1, a2 Reg) {
	a.emit(0x66)
	a.emitREXIfNeeded(false, a1, a2)
	a.emit(0x0F, 0x2E, modrm(3, a1.num(), a2.num()))
}

// Cvttss2si / Cvttsd2si truncate float/double to a 32-bit int (spec.md
// §4.5's integer<-float cast direction).
func (a *Assembler) Cvttss2si(dst Reg, src Reg) {
	a.emit(0xF3)
	a.emitREXIfNeeded(false, dst, src)
	a.emit(0x0F, 0x2C, modrm(3, dst.num(), src.num()))
}

func (a *Assembler) Cvttsd2si(dst Reg, src Reg) {
	a.emit(0xF2)
	a.emitREXIfNeeded(false, dst, src)
	a.emit(0x0F, 0x2C, modrm(3, dst.num(), src.num()))
}

// Cvtsi2ss / Cvtsi2sd convert int -> float/double (the other cast
// direction: "the other direction uses the corresponding converting move").
func (a *Assembler) Cvtsi2ss(dst Reg, src Reg) {
	a.emit(0xF3)
	a.emitREXIfNeeded(false, dst, src)
	a.emit(0x0F, 0x2A, modrm(3, dst.num(), src.num()))
}

func (a *Assembler) Cvtsi2sd(dst Reg, src Reg) {
	a.emit(0xF2)
	a.emitREXIfNeeded(false, dst, src)
	a.emit(0x0F, 0x2A, modrm(3, dst.num(), src.num()))
}

// Cvtss2sd / Cvtsd2ss convert between float and double precision,
// supporting the `(double)floatVal` / `(float)doubleVal` cast forms.
func (a *Assembler) Cvtss2sd(dst, src Reg) { a.sseArith(0xF3, 0x5A, dst, src) }
func (a *Assembler) Cvtsd2ss(dst, src Reg) { a.sseArith(0xF2, 0x5A, dst, src) }

// ---- Control flow ----

// Jmp emits an unconditional near jump to a label, patched once the
// label's final offset is known (labels may be forward references, e.g.
// ternary's `jmp end` precedes `Label("end")`).
func (a *Assembler) Jmp(label string) {
	a.emit(0xE9)
	a.recordFixup(label)
	a.emit32(0)
}

// Jcc emits a conditional near jump.
func (a *Assembler) Jcc(cond x86asm.CondCode, label string) {
	a.emit(0x0F, 0x80+byte(cond))
	a.recordFixup(label)
	a.emit32(0)
}

func (a *Assembler) recordFixup(label string) {
	a.fixups = append(a.fixups, fixup{pos: len(a.code), label: label, nextIP: len(a.code) + 4})
}

// Call emits an indirect call through a register already loaded with the
// target's absolute address (spec.md §4.5: "loads the function address
// into a pointer register ... emits call").
func (a *Assembler) CallReg(r Reg) {
	a.emitREXIfNeeded(false, 0, r)
	a.emit(0xFF, modrm(3, 2, r.num()))
}

func (a *Assembler) Push(r Reg) {
	if r.needsREX() {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0x50 + r.num()&7)
}

func (a *Assembler) Pop(r Reg) {
	if r.needsREX() {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0x58 + r.num()&7)
}

func (a *Assembler) Ret() { a.emit(0xC3) }

// Prologue/Epilogue establish and tear down a standard rbp-based frame,
// matching the teacher's prologue/epilogue emission in asm_x86.go (there
// emitted as text, here as bytes): `push rbp; mov rbp, rsp` /
// `mov rsp, rbp; pop rbp; ret`.
func (a *Assembler) Prologue() {
	a.Push(RBP)
	a.emit(rex(true, false, false, false), 0x89, modrm(3, RSP.num(), RBP.num()))
}

func (a *Assembler) Epilogue() {
	a.emit(rex(true, false, false, false), 0x89, modrm(3, RBP.num(), RSP.num()))
	a.Pop(RBP)
	a.Ret()
}

// Finish resolves every recorded label fixup into a rel32 displacement and
// returns the finished code buffer.
func (a *Assembler) Finish() []byte {
	for _, f := range a.fixups {
		target, ok := a.labels[f.label]
		if !ok {
			panic("codegen: unresolved label " + f.label)
		}
		rel := int32(target - f.nextIP)
		binary.LittleEndian.PutUint32(a.code[f.pos:f.pos+4], uint32(rel))
	}
	return a.code
}

// Disassemble walks the finished buffer back into mnemonics with
// golang.org/x/arch/x86/x86asm, used as an encoder self-check in tests
// rather than as part of the compile path itself.
func Disassemble(code []byte) ([]string, error) {
	var lines []string
	for off := 0; off < len(code); {
		inst, err := x86asm.Decode(code[off:], 64)
		if err != nil {
			return lines, err
		}
		lines = append(lines, x86asm.GNUSyntax(inst, 0, nil))
		if inst.Len == 0 {
			break
		}
		off += inst.Len
	}
	return lines, nil
}
