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
	"unsafe"

	"github.com/pkg/errors"

	"github.com/hisesub022/falconjit/internal/lang"
)

// CompiledFunction is a function whose body has been emitted into an
// executable page; the page is owned by the Scope and stays valid until
// Scope.Close (spec.md §3).
type CompiledFunction struct {
	Name   string
	Ret    lang.Kind
	Params []lang.Kind
	Entry  unsafe.Pointer // address of the first instruction
}

// execPage is implemented by internal/codegen (a Scope only holds the
// interface so internal/scope never has to import internal/codegen,
// avoiding an import cycle between "the thing that builds code" and "the
// thing that holds it").
type execPage interface {
	Close() error
}

// Scope is the compiled program's runtime container: globals, natives,
// compiled functions and the executable pages backing them (spec.md §3
// Scope, §5 "owned by the scope; never shared between scopes").
type Scope struct {
	globalOrder []string
	globals     map[string]*Global
	natives     map[string]*Native
	funcs       map[string]*CompiledFunction
	pages       []execPage
}

// New creates an empty scope seeded with the default exposed-native math
// shim (spec.md §3's sinf/cosf/powf/... set).
func New() *Scope {
	return &Scope{
		globals: map[string]*Global{},
		natives: defaultNatives(),
		funcs:   map[string]*CompiledFunction{},
	}
}

// DeclareGlobal registers a new global in declaration order; used by
// internal/compiler while lowering a Program's GlobalDecls.
func (s *Scope) DeclareGlobal(g *Global) {
	s.globalOrder = append(s.globalOrder, g.Name)
	s.globals[g.Name] = g
}

func (s *Scope) Global(name string) (*Global, bool) {
	g, ok := s.globals[name]
	return g, ok
}

func (s *Scope) GlobalCount() int { return len(s.globalOrder) }

func (s *Scope) GlobalName(i int) string { return s.globalOrder[i] }

func (s *Scope) GlobalType(i int) lang.Kind {
	return s.globals[s.globalOrder[i]].Kind
}

func (s *Scope) GlobalValue(i int) Variant {
	return s.globals[s.globalOrder[i]].Value()
}

// SetGlobal type-checks and writes a host-supplied value into a named
// global, per the coercion rules in SPEC_FULL.md §11 / spec.md §6.
func (s *Scope) SetGlobal(name string, v Variant) error {
	g, ok := s.globals[name]
	if !ok {
		return errors.Errorf("unknown identifier: %s", name)
	}
	return g.Coerce(v)
}

// RegisterFunction records a compiled function's entry point; called by
// internal/compiler once internal/codegen has finalised the function's
// machine code.
func (s *Scope) RegisterFunction(fn *CompiledFunction) {
	s.funcs[fn.Name] = fn
}

func (s *Scope) Function(name string) (*CompiledFunction, bool) {
	fn, ok := s.funcs[name]
	return fn, ok
}

// TrackPage registers an executable page's owner for cleanup on Close.
func (s *Scope) TrackPage(p execPage) { s.pages = append(s.pages, p) }

// Close frees every executable page owned by this scope. It must not be
// called while any of the scope's compiled function pointers might still
// be in flight on the audio thread (spec.md §5: the host is responsible
// for quiescing first).
func (s *Scope) Close() error {
	var firstErr error
	for _, p := range s.pages {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.pages = nil
	return firstErr
}
