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
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"
)

func TestAssemblerEncodesDisassemblableFunction(t *testing.T) {
	a := NewAssembler()
	a.Prologue()
	a.MovRegReg(RAX, RDI, true)
	a.AddRegReg(RAX, RSI, true)
	a.Epilogue()
	code := a.Finish()

	lines, err := Disassemble(code)
	require.NoError(t, err)
	require.NotEmpty(t, lines)
}

func TestAssemblerResolvesForwardLabelJump(t *testing.T) {
	a := NewAssembler()
	a.Jmp("end")
	a.MovRegImm32(RAX, 1) // skipped
	a.Label("end")
	a.MovRegImm32(RAX, 2)
	a.Ret()
	code := a.Finish()

	lines, err := Disassemble(code)
	require.NoError(t, err)
	require.Contains(t, lines[0], "jmp")
}

func TestSetCCEncodesRequestedCondition(t *testing.T) {
	a := NewAssembler()
	a.CmpRegReg(RAX, RBX, true)
	a.SetCC(x86asm.CondL, RCX)
	code := a.Finish()

	lines, err := Disassemble(code)
	require.NoError(t, err)
	require.Contains(t, lines[len(lines)-1], "setl")
}

func TestUnresolvedLabelPanics(t *testing.T) {
	a := NewAssembler()
	a.Jmp("nowhere")
	require.Panics(t, func() { a.Finish() })
}

// R12 is the SIB-byte escape under mod=00: a plain [R12] memory operand
// must carry an explicit SIB byte or it decodes as something else
// entirely.
func TestMemOperandAddressesR12WithSIBByte(t *testing.T) {
	a := NewAssembler()
	a.MovRegMem(RAX, R12, false)
	code := a.code

	inst, err := x86asm.Decode(code, 64)
	require.NoError(t, err)
	require.Equal(t, len(code), inst.Len)
	mem, ok := inst.Args[1].(x86asm.Mem)
	require.True(t, ok)
	require.Equal(t, x86asm.R12, mem.Base)
	require.Equal(t, uint8(0), mem.Scale)
}

// R13 is the RIP-relative escape under mod=00: [R13] with no
// displacement must be encoded as mod=01 disp8=0 instead, or it decodes
// as a RIP-relative load from an unrelated address.
func TestMemOperandAddressesR13WithoutRIPRelativeCollision(t *testing.T) {
	a := NewAssembler()
	a.MovRegMem(RAX, R13, false)
	code := a.code

	inst, err := x86asm.Decode(code, 64)
	require.NoError(t, err)
	require.Equal(t, len(code), inst.Len)
	mem, ok := inst.Args[1].(x86asm.Mem)
	require.True(t, ok)
	require.Equal(t, x86asm.R13, mem.Base)
	require.Equal(t, int64(0), mem.Disp)
}

func TestMemOperandOrdinaryBaseUnaffected(t *testing.T) {
	a := NewAssembler()
	a.MovRegMem(RAX, RBX, false)
	code := a.code

	inst, err := x86asm.Decode(code, 64)
	require.NoError(t, err)
	require.Equal(t, len(code), inst.Len)
	mem, ok := inst.Args[1].(x86asm.Mem)
	require.True(t, ok)
	require.Equal(t, x86asm.RBX, mem.Base)
	require.Equal(t, int64(0), mem.Disp)
}
