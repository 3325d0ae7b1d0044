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

// Package falconjit is the host-facing facade over the compiler, scope
// and DSP harness packages (SPEC_FULL.md §9 "External interfaces"). It
// deliberately stays thin: all real work lives in internal/compiler,
// internal/scope, internal/codegen and internal/lang; this file only
// re-exports the handful of operations spec.md §6 names as the host API,
// plus the generic typed-function-pointer lookup that replaces the
// original C++'s getCompiledFunction0/1/2 template instantiation table
// (JitScope.h).
package falconjit

import (
	"reflect"
	"unsafe"

	"github.com/hisesub022/falconjit/internal/compiler"
	"github.com/hisesub022/falconjit/internal/lang"
	"github.com/hisesub022/falconjit/internal/scope"
)

type (
	Compiler = compiler.Compiler
	Scope    = scope.Scope
	Variant  = scope.Variant
	Option   = compiler.Option
)

var (
	WithSafeBufferAccess = compiler.WithSafeBufferAccess
	IntVariant           = scope.IntVariant
	FloatVariant         = scope.FloatVariant
	BufferVariant        = scope.BufferVariant
)

// Compile parses and type-checks source, returning a handle that captures
// any compile error rather than returning it directly — matching spec.md
// §6's `compile(source) -> compiler handle (captures errors)` shape, so a
// host can call OK()/ErrorMessage() the way the original JIT's API does.
func Compile(source string, opts ...Option) *Compiler {
	c, err := compiler.Compile(source, opts...)
	if err != nil {
		// compiler.Compile only returns a non-nil error for conditions
		// outside the compiled program itself (an unrecovered internal
		// panic); wrap it the same way a located error would present so
		// callers have a single OK()/ErrorMessage() surface regardless.
		return compiler.Failed(err)
	}
	return c
}

// GetFunction0 looks up a zero-argument compiled function by name and
// returns it as a typed, callable Go func value, or (nil, false) if
// absent or its signature doesn't match R. The returned function is
// produced by reinterpreting the JIT'd code's entry pointer as a Go func
// value of the requested shape, the same unsafe.Pointer trampoline trick
// the launix-de-memcp scm JIT uses (other_examples/33950481_...).
func GetFunction0[R any](s *Scope, name string) (func() R, bool) {
	cf, ok := s.Function(name)
	if !ok || len(cf.Params) != 0 || !kindMatches[R](cf.Ret) {
		return nil, false
	}
	return castEntry[func() R](cf.Entry), true
}

// GetFunction1 is GetFunction0's one-parameter counterpart.
func GetFunction1[R, P1 any](s *Scope, name string) (func(P1) R, bool) {
	cf, ok := s.Function(name)
	if !ok || len(cf.Params) != 1 || !kindMatches[R](cf.Ret) || !kindMatches[P1](cf.Params[0]) {
		return nil, false
	}
	return castEntry[func(P1) R](cf.Entry), true
}

// GetFunction2 is GetFunction0's two-parameter counterpart, the largest
// arity spec.md §4.3 allows.
func GetFunction2[R, P1, P2 any](s *Scope, name string) (func(P1, P2) R, bool) {
	cf, ok := s.Function(name)
	if !ok || len(cf.Params) != 2 || !kindMatches[R](cf.Ret) || !kindMatches[P1](cf.Params[0]) || !kindMatches[P2](cf.Params[1]) {
		return nil, false
	}
	return castEntry[func(P1, P2) R](cf.Entry), true
}

// GetProc0 is GetFunction0's void-returning counterpart — Go has no
// "void" type to parametrize GetFunction0[R] with, so void-returning
// entry points (init, prepareToPlay) get their own non-generic lookup.
func GetProc0(s *Scope, name string) (func(), bool) {
	cf, ok := s.Function(name)
	if !ok || len(cf.Params) != 0 || cf.Ret != lang.KVoid {
		return nil, false
	}
	return castEntry[func()](cf.Entry), true
}

// GetProc1 is GetProc0's one-parameter counterpart.
func GetProc1[P1 any](s *Scope, name string) (func(P1), bool) {
	cf, ok := s.Function(name)
	if !ok || len(cf.Params) != 1 || cf.Ret != lang.KVoid || !kindMatches[P1](cf.Params[0]) {
		return nil, false
	}
	return castEntry[func(P1)](cf.Entry), true
}

// GetProc2 is GetProc0's two-parameter counterpart, used for
// prepareToPlay(double, int).
func GetProc2[P1, P2 any](s *Scope, name string) (func(P1, P2), bool) {
	cf, ok := s.Function(name)
	if !ok || len(cf.Params) != 2 || cf.Ret != lang.KVoid || !kindMatches[P1](cf.Params[0]) || !kindMatches[P2](cf.Params[1]) {
		return nil, false
	}
	return castEntry[func(P1, P2)](cf.Entry), true
}

// castEntry reinterprets a raw code pointer as a Go function value of
// type F, the same struct-wrapped indirection the grounding reference
// file uses to turn a `*byte` into a callable closure value without
// calling through cgo.
func castEntry[F any](entry unsafe.Pointer) F {
	wrapped := unsafe.Pointer(&struct{ p unsafe.Pointer }{entry})
	return *(*F)(unsafe.Pointer(&wrapped))
}

// kindMatches reports whether Go type T is the host-side representation
// of the JIT-side Kind k (int32<->int, float32<->float, float64<->double,
// bool<->bool, nothing<->void). Evaluated once per GetFunctionN call via
// reflection over the zero value, since Go generics have no direct
// "T == int32" type constraint short of this.
func kindMatches[T any](k lang.Kind) bool {
	var zero T
	t := reflect.TypeOf(zero)
	switch k {
	case lang.KInt:
		return t != nil && t.Kind() == reflect.Int32
	case lang.KFloat:
		return t != nil && t.Kind() == reflect.Float32
	case lang.KDouble:
		return t != nil && t.Kind() == reflect.Float64
	case lang.KBool:
		return t != nil && t.Kind() == reflect.Bool
	case lang.KVoid:
		return t == nil
	}
	return false
}
