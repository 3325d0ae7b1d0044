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

// Package scope implements the compiled program's runtime container: its
// globals, exposed natives and compiled function pointers, matching the
// teacher's separation of parsing/codegen (internal/lang, internal/codegen)
// from the thing those phases populate (SPEC_FULL.md §2).
package scope

// Buffer is a fixed-size, reference-counted array of float32 with an
// overflow sentinel (spec.md §3): "a variable of buffer type is a shared
// handle... any out-of-range access writes the offending index into the
// sentinel".
type Buffer struct {
	data     []float32
	overflow int32
}

// NewBuffer allocates a zero-filled buffer of the given size with the
// sentinel at its initial -1 (meaning "no overflow yet").
func NewBuffer(size int) *Buffer {
	return &Buffer{data: make([]float32, size), overflow: -1}
}

func (b *Buffer) Size() int { return len(b.data) }

// Overflow returns the current sentinel value: -1 if no out-of-range
// access has happened yet, otherwise the offending index.
func (b *Buffer) Overflow() int32 { return b.overflow }

// ResetOverflow clears the sentinel back to -1, called by the host after
// it has handled a reported breach (dsp.Harness does not call it; the
// sentinel keeps its value until the host does).
func (b *Buffer) ResetOverflow() { b.overflow = -1 }

// Load performs a bounds-checked read used by the safe-mode buffer access
// path emitted per spec.md §4.4: out-of-range reads record the index in
// the sentinel and yield 0.0.
func (b *Buffer) Load(i int32) float32 {
	if i < 0 || int(i) >= len(b.data) {
		b.overflow = i
		return 0
	}
	return b.data[i]
}

// Store performs a bounds-checked write; out-of-range writes record the
// index in the sentinel and are otherwise a no-op.
func (b *Buffer) Store(i int32, v float32) {
	if i < 0 || int(i) >= len(b.data) {
		b.overflow = i
		return
	}
	b.data[i] = v
}

// LoadUnsafe/StoreUnsafe are the unsafe-mode accessors: no bounds check, no
// sentinel write, matching spec.md §4.4's "direct load/store ... no bounds
// check" path, for Go-side callers. The emitter's unsafe path does not
// call them: it addresses the backing (DataPointer) inline.
func (b *Buffer) LoadUnsafe(i int32) float32   { return b.data[i] }
func (b *Buffer) StoreUnsafe(i int32, v float32) { b.data[i] = v }

// SetSize reallocates the buffer's backing, used by the `setSize` buffer
// method (spec.md §4.4/§9). Existing contents are discarded; the sentinel
// is reset. Callers must not invoke this from the audio thread
// concurrently with a call reading/writing the same buffer (§5: "callers
// must resize off the audio thread").
func (b *Buffer) SetSize(n int) {
	b.data = make([]float32, n)
	b.overflow = -1
}

// DataPointer exposes the backing slice's base address for the codegen
// package to bake into generated machine code as a fixed memory operand.
// It must not be called again after a SetSize, since that replaces the
// slice (and therefore its address) entirely.
func (b *Buffer) DataPointer() *float32 {
	if len(b.data) == 0 {
		return nil
	}
	return &b.data[0]
}
