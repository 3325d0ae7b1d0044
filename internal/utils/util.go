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

// Package utils holds small cross-cutting helpers, in the spirit of the
// teacher compiler's own grab-bag utils package. No other package in this
// module imports it.
package utils

import "fmt"

// Assert panics with a formatted message if cond is false. Used for
// internal invariants, never for user-facing input validation.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

// Any reports whether c equals any of cs.
func Any[T comparable](c T, cs ...T) bool {
	for _, cc := range cs {
		if c == cc {
			return true
		}
	}
	return false
}

// Unimplement marks a code path that the language deliberately does not
// support yet.
func Unimplement(what string) {
	panic("not implemented: " + what)
}

// ShouldNotReachHere marks an internal invariant violation.
func ShouldNotReachHere(why string) {
	panic("should not reach here: " + why)
}

// Align16 rounds n up to the next multiple of 16, used for stack frame and
// page-size alignment.
func Align16(n int) int {
	return (n + 15) &^ 15
}

// AlignUp rounds n up to the next multiple of align, align must be a power
// of two.
func AlignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
