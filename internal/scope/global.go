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
	"github.com/pkg/errors"

	"github.com/hisesub022/falconjit/internal/lang"
)

// Global is one top-level variable: a stable 8-byte storage cell for
// scalars, or an owned Buffer for buffer globals (spec.md §3: "Storage is
// one 8-byte cell (wide enough for double); buffer globals additionally
// own a buffer handle"). The slot's address is fixed for the scope's
// lifetime — codegen bakes it in as an absolute memory operand, so Global
// values must never be copied or reallocated after BuildScope.
type Global struct {
	Name   string
	Kind   lang.Kind
	Const  bool
	slot   [8]byte
	Buffer *Buffer
}

// Slot returns the address of this global's 8-byte storage cell, for the
// codegen package to bake in as a fixed load/store target.
func (g *Global) Slot() *[8]byte { return &g.slot }

func (g *Global) AsInt() int32    { return int32(leUint32(g.slot[:4])) }
func (g *Global) AsFloat() float32 { return float32frombits(leUint32(g.slot[:4])) }
func (g *Global) AsDouble() float64 { return float64frombits(leUint64(g.slot[:8])) }
func (g *Global) AsBool() bool    { return g.slot[0] != 0 }

func (g *Global) SetInt(v int32)    { putLeUint32(g.slot[:4], uint32(v)) }
func (g *Global) SetFloat(v float32) { putLeUint32(g.slot[:4], float32bits(v)) }
func (g *Global) SetDouble(v float64) { putLeUint64(g.slot[:8], float64bits(v)) }
func (g *Global) SetBool(v bool) {
	if v {
		g.slot[0] = 1
	} else {
		g.slot[0] = 0
	}
}

// Variant is the tagged value `SetGlobal`/`GlobalValue` exchange with the
// host (spec.md §6): "setGlobal accepts a tagged variant: integer-ish ->
// int; floating-ish -> float/double per the global's declared type;
// buffer-shaped -> bound to a buffer global."
type Variant struct {
	isBuffer bool
	i        int64
	f        float64
	buf      []float32
}

func IntVariant(v int64) Variant        { return Variant{i: v} }
func FloatVariant(v float64) Variant    { return Variant{f: v, i: int64(v)} }
func BufferVariant(v []float32) Variant { return Variant{isBuffer: true, buf: v} }

// Coerce applies setGlobalVariable's coercion rules (grounded on
// JitScope.h's Pimpl::setGlobalVariable): numeric variants bind to
// numeric globals per their declared kind, buffer-shaped variants bind
// only to Buffer globals, and any other combination is an error.
func (g *Global) Coerce(v Variant) error {
	if g.Const {
		return errors.New("can't assign to const global")
	}
	if v.isBuffer {
		if g.Kind != lang.KBuffer {
			return errors.Errorf("global %q is not a Buffer", g.Name)
		}
		g.Buffer.data = append([]float32(nil), v.buf...)
		g.Buffer.overflow = -1
		return nil
	}
	switch g.Kind {
	case lang.KInt:
		g.SetInt(int32(v.i))
	case lang.KFloat:
		g.SetFloat(float32(v.f))
	case lang.KDouble:
		g.SetDouble(v.f)
	case lang.KBool:
		g.SetBool(v.i != 0)
	default:
		return errors.Errorf("global %q expects a buffer value", g.Name)
	}
	return nil
}

// Value reads the global's current value back out as a Variant, for
// introspection via Scope.GlobalValue.
func (g *Global) Value() Variant {
	switch g.Kind {
	case lang.KInt:
		return IntVariant(int64(g.AsInt()))
	case lang.KFloat:
		return FloatVariant(float64(g.AsFloat()))
	case lang.KDouble:
		return FloatVariant(g.AsDouble())
	case lang.KBool:
		if g.AsBool() {
			return IntVariant(1)
		}
		return IntVariant(0)
	case lang.KBuffer:
		return BufferVariant(g.Buffer.data)
	}
	return Variant{}
}
