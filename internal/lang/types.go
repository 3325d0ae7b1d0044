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

import "fmt"

// Kind is the closed set of scalar types plus the one buffer type
// (SPEC_FULL.md §6 / spec.md §3). There is deliberately no array type, no
// struct type, no pointer type.
type Kind int

const (
	KInt Kind = iota
	KFloat
	KDouble
	KBool
	KBuffer
	KVoid
)

func (k Kind) String() string {
	switch k {
	case KInt:
		return "int"
	case KFloat:
		return "float"
	case KDouble:
		return "double"
	case KBool:
		return "bool"
	case KBuffer:
		return "Buffer"
	case KVoid:
		return "void"
	default:
		return "<invalid-kind>"
	}
}

// IsNumeric reports whether values of this kind participate in arithmetic.
func (k Kind) IsNumeric() bool {
	return k == KInt || k == KFloat || k == KDouble
}

// Width is the size in bytes of one value of this kind when held in a
// register or storage slot. Buffers are reference-counted handles, so they
// occupy a pointer-sized slot (8 bytes) regardless of backing size.
func (k Kind) Width() int {
	switch k {
	case KInt:
		return 4
	case KFloat:
		return 4
	case KDouble:
		return 8
	case KBool:
		return 1
	case KBuffer:
		return 8
	case KVoid:
		return 0
	default:
		return 0
	}
}

// RegisterClass says which physical register family a value of this kind
// lives in: general-purpose integer registers for int/bool/Buffer-handle,
// or scalar xmm registers for float/double.
type RegisterClass int

const (
	ClassGP RegisterClass = iota
	ClassXMM
)

func (k Kind) Class() RegisterClass {
	switch k {
	case KFloat, KDouble:
		return ClassXMM
	default:
		return ClassGP
	}
}

// TypeError formats the canonical "Type mismatch: got T1, expected T2"
// message used throughout SPEC_FULL.md §10/§7.
func TypeError(got, expected Kind) string {
	return fmt.Sprintf("Type mismatch: got %v, expected %v", got, expected)
}
