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

package scope

import (
	"encoding/binary"
	"math"
)

// Small endian/bit-pattern helpers backing Global's typed accessors: a
// global's storage cell is a raw 8-byte slot (spec.md §3), so reading it
// as int/float/double/bool goes through these rather than a Go union,
// which the language has no equivalent of.

func leUint32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func leUint64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }

func putLeUint32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func putLeUint64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }

func float32bits(v float32) uint32      { return math.Float32bits(v) }
func float32frombits(b uint32) float32  { return math.Float32frombits(b) }
func float64bits(v float64) uint64      { return math.Float64bits(v) }
func float64frombits(b uint64) float64  { return math.Float64frombits(b) }
