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

// Package codegen is the from-scratch x86-64 encoder and executable-page
// allocator that replaces the teacher's textual-assembly-plus-gcc backend
// (SPEC_FULL.md §3). The physical-register table below is lifted from the
// teacher's compile/codegen/register_x86.go, but drops the
// virtual-register/linear-scan-allocator machinery entirely: there is no
// SSA and no global register allocation here (spec.md §1 Non-goals), so
// every IR node in internal/codegen/emit.go is assigned exactly one
// physical register or stack slot for its lifetime at emission time.
package codegen

// Reg is a physical x86-64 register, general-purpose or xmm, named the way
// the teacher's register_x86.go names its PhyReg table.
type Reg int

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15

	XMM0
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
)

// IsXMM reports whether this register lives in the xmm file.
func (r Reg) IsXMM() bool { return r >= XMM0 }

// num is the 0-7 (or 8-15 via REX.B/REX.R/REX.X) encoding used in ModRM and
// REX byte fields; GP and XMM registers share the same 0-7 numbering.
func (r Reg) num() byte {
	if r.IsXMM() {
		return byte(r - XMM0)
	}
	return byte(r)
}

// needsREX reports whether referencing this register requires a REX
// prefix to access the extended (R8-R15) register file.
func (r Reg) needsREX() bool { return !r.IsXMM() && r >= R8 }

// gpArgOrder is the System V AMD64 integer argument-register order; used
// by abi.go to bind parameters, and by emit.go's native/compiled call
// sites to place arguments before `call`.
var gpArgOrder = []Reg{RDI, RSI, RDX, RCX, R8, R9}

// xmmArgOrder is the corresponding floating-point argument order.
var xmmArgOrder = []Reg{XMM0, XMM1, XMM2, XMM3, XMM4, XMM5, XMM6, XMM7}
