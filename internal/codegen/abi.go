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

import "github.com/hisesub022/falconjit/internal/lang"

// ArgBinding says which physical register (or, once past the register
// file, stack slot) a given parameter lands in under the System V AMD64
// calling convention: integer/pointer/bool/Buffer-handle arguments consume
// the next GP argument register, float/double arguments consume the next
// xmm argument register, counted independently (spec.md §6: "arguments in
// the conventional GP/XMM registers").
type ArgBinding struct {
	Kind  lang.Kind
	Reg   Reg
	Stack bool // true if this argument didn't fit in registers (not used: max arity is 2)
}

// BindParams assigns each parameter a physical argument register. Because
// spec.md §4.3 caps user-defined functions at two parameters, every
// parameter always fits in a register and Stack is always false here; the
// field exists so native calls with a wider native arity (there are none
// in the default table, all natives take <= 2 args) still have a defined
// fallback to reason about.
func BindParams(params []lang.Kind) []ArgBinding {
	bindings := make([]ArgBinding, len(params))
	gpIdx, xmmIdx := 0, 0
	for i, k := range params {
		b := ArgBinding{Kind: k}
		if k.Class() == lang.ClassXMM {
			if xmmIdx < len(xmmArgOrder) {
				b.Reg = xmmArgOrder[xmmIdx]
				xmmIdx++
			} else {
				b.Stack = true
			}
		} else {
			if gpIdx < len(gpArgOrder) {
				b.Reg = gpArgOrder[gpIdx]
				gpIdx++
			} else {
				b.Stack = true
			}
		}
		bindings[i] = b
	}
	return bindings
}

// ReturnRegister is the register a function's return value is placed in
// before `ret`: xmm0 for float/double, rax for everything else (spec.md
// §4.5/§6: "moves the final expression into the return register (xmm0 or
// eax/rax per platform)").
func ReturnRegister(k lang.Kind) Reg {
	if k.Class() == lang.ClassXMM {
		return XMM0
	}
	return RAX
}
