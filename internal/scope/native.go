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
	"math"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/hisesub022/falconjit/internal/lang"
)

// Native is an exposed host/libm function: name, signature, and the
// address the emitter bakes into a `call` instruction. Grounded on
// JitFunctions.h's BaseFunction/TypedFunction<R,Ps...> pattern — this
// rework collapses the C++ template hierarchy into one struct with a
// Kind-tagged signature and a raw function pointer, per SPEC_FULL.md §6's
// direction to replace template instantiation with a flat table.
type Native struct {
	Name   string
	Ret    lang.Kind
	Params []lang.Kind
	Fn     unsafe.Pointer
}

// defaultNatives is the allow-listed math shim spec.md §3 names: "sinf,
// cosf, powf, fabsf, sqrtf, exp, tan, atan, atanh, abs, tanh, and a small
// host-defined set." Every entry here is a trivial, non-blocking,
// non-allocating pure function, which is what makes it safe to call from
// compiled code running on the audio thread (§5).
func defaultNatives() map[string]*Native {
	reg := func(name string, ret lang.Kind, params []lang.Kind, fn unsafe.Pointer) *Native {
		return &Native{Name: name, Ret: ret, Params: params, Fn: fn}
	}
	f1 := []lang.Kind{lang.KFloat}
	d1 := []lang.Kind{lang.KDouble}

	sinf := func(x float32) float32 { return float32(math.Sin(float64(x))) }
	sin := math.Sin
	cosf := func(x float32) float32 { return float32(math.Cos(float64(x))) }
	cos := math.Cos
	tanf := func(x float32) float32 { return float32(math.Tan(float64(x))) }
	tan := math.Tan
	atanf := func(x float32) float32 { return float32(math.Atan(float64(x))) }
	atan := math.Atan
	atanhf := func(x float32) float32 { return float32(math.Atanh(float64(x))) }
	atanh := math.Atanh
	sqrtf := func(x float32) float32 { return float32(math.Sqrt(float64(x))) }
	sqrt := math.Sqrt
	tanhf := func(x float32) float32 { return float32(math.Tanh(float64(x))) }
	tanh := math.Tanh
	fabsf := func(x float32) float32 { return float32(math.Abs(float64(x))) }
	fabs := math.Abs
	absInt := func(x int32) int32 {
		if x < 0 {
			return -x
		}
		return x
	}
	expf := func(x float32) float32 { return float32(math.Exp(float64(x))) }
	exp := math.Exp
	powf := func(base, exponent float32) float32 {
		return float32(math.Pow(float64(base), float64(exponent)))
	}
	pow := math.Pow

	m := map[string]*Native{}
	add := func(n *Native) { m[n.Name] = n }

	add(reg("sinf", lang.KFloat, f1, unsafe.Pointer(&sinf)))
	add(reg("sin", lang.KDouble, d1, unsafe.Pointer(&sin)))
	add(reg("cosf", lang.KFloat, f1, unsafe.Pointer(&cosf)))
	add(reg("cos", lang.KDouble, d1, unsafe.Pointer(&cos)))
	add(reg("tanf", lang.KFloat, f1, unsafe.Pointer(&tanf)))
	add(reg("tan", lang.KDouble, d1, unsafe.Pointer(&tan)))
	add(reg("atanf", lang.KFloat, f1, unsafe.Pointer(&atanf)))
	add(reg("atan", lang.KDouble, d1, unsafe.Pointer(&atan)))
	add(reg("atanhf", lang.KFloat, f1, unsafe.Pointer(&atanhf)))
	add(reg("atanh", lang.KDouble, d1, unsafe.Pointer(&atanh)))
	add(reg("sqrtf", lang.KFloat, f1, unsafe.Pointer(&sqrtf)))
	add(reg("sqrt", lang.KDouble, d1, unsafe.Pointer(&sqrt)))
	add(reg("tanhf", lang.KFloat, f1, unsafe.Pointer(&tanhf)))
	add(reg("tanh", lang.KDouble, d1, unsafe.Pointer(&tanh)))
	add(reg("fabsf", lang.KFloat, f1, unsafe.Pointer(&fabsf)))
	add(reg("fabs", lang.KDouble, d1, unsafe.Pointer(&fabs)))
	add(reg("abs", lang.KInt, []lang.Kind{lang.KInt}, unsafe.Pointer(&absInt)))
	add(reg("expf", lang.KFloat, f1, unsafe.Pointer(&expf)))
	add(reg("exp", lang.KDouble, d1, unsafe.Pointer(&exp)))
	add(reg("powf", lang.KFloat, []lang.Kind{lang.KFloat, lang.KFloat}, unsafe.Pointer(&powf)))
	add(reg("pow", lang.KDouble, []lang.Kind{lang.KDouble, lang.KDouble}, unsafe.Pointer(&pow)))
	return m
}

// Native looks a name up and validates its signature against (ret,
// params...), mirroring JitScope.h's checkTypeMatch<ExpectedType>: an
// exact-match lookup that errors rather than silently coercing
// (SPEC_FULL.md §11).
func (s *Scope) Native(name string, ret lang.Kind, params ...lang.Kind) (*Native, error) {
	n, ok := s.natives[name]
	if !ok {
		return nil, errors.Errorf("unknown identifier: %s", name)
	}
	if n.Ret != ret || len(n.Params) != len(params) {
		return nil, errors.Errorf("function type mismatch for native %q", name)
	}
	for i, p := range params {
		if n.Params[i] != p {
			return nil, errors.Errorf("parameter %d: type mismatch for native %q", i+1, name)
		}
	}
	return n, nil
}

// RegisterNative adds (or overrides) a host-defined native function,
// extending the "small host-defined set" spec.md §3 mentions beyond the
// built-in libm shim.
func (s *Scope) RegisterNative(n *Native) {
	s.natives[n.Name] = n
}
