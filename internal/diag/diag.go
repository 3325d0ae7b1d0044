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

// Package diag implements the compiler's structured error reporter (see
// SPEC_FULL.md §4.7 / §10). Parser and emitter failures are represented as
// *Error values carrying the source text and a byte offset; the top-level
// compiler renders them as "Line N: <message>" by counting newlines up to
// that offset, the way the original JIT's exception-to-line-number
// conversion works.
package diag

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies an error for callers that want to branch on error
// category (e.g. a host reporting "Unknown identifier" differently from
// "Type mismatch").
type Kind int

const (
	Lexical Kind = iota
	Grammar
	NameResolution
	Typing
	Semantic
	Signature
	Emit
)

func (k Kind) String() string {
	switch k {
	case Lexical:
		return "lexical"
	case Grammar:
		return "grammar"
	case NameResolution:
		return "name-resolution"
	case Typing:
		return "typing"
	case Semantic:
		return "semantic"
	case Signature:
		return "signature"
	case Emit:
		return "emit"
	default:
		return "unknown"
	}
}

// Error is a located compile-time error. It is never raised by compiled
// code or during audio processing (SPEC_FULL.md §8) — only by the
// lexer/parser/type-checker/emitter during the compile role.
type Error struct {
	Kind    Kind
	Source  string // full source text the offset is relative to
	Offset  int    // byte offset of the offending token
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("Line %d: %s", e.Line(), e.Message)
}

// Line returns the 1-based source line containing Offset.
func (e *Error) Line() int {
	if e.Offset < 0 || e.Offset > len(e.Source) {
		return 1 + strings.Count(e.Source, "\n")
	}
	return 1 + strings.Count(e.Source[:e.Offset], "\n")
}

// New constructs a located error. Call sites pass the source text and the
// byte offset of the token that triggered the failure.
func New(kind Kind, source string, offset int, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Source:  source,
		Offset:  offset,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap attaches additional context to err using github.com/pkg/errors,
// preserving the original *Error for errors.As callers while giving
// intermediate stack frames a chance to add what they were doing.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, context)
}

// AsCompileError extracts the *Error from a possibly-wrapped error chain.
func AsCompileError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// Recover turns a panic value raised by the lexer/parser/emitter (which use
// panic(*Error) as their throw-on-error mechanism, mirroring the teacher's
// own exception-based parser) into a returned error. It must be called via
// `defer` at every entry point exposed to a host (Compile, BuildScope, …).
func Recover(errp *error) {
	if r := recover(); r != nil {
		if ce, ok := r.(*Error); ok {
			*errp = ce
			return
		}
		if err, ok := r.(error); ok {
			*errp = errors.Wrap(err, "internal compiler error")
			return
		}
		*errp = errors.Errorf("internal compiler error: %v", r)
	}
}

var (
	ErrUnknownIdentifier   = errors.New("unknown identifier")
	ErrAlreadyDefined      = errors.New("identifier already defined")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrConstAssign         = errors.New("can't assign to const variable")
	ErrNotSupported        = errors.New("not supported")
	ErrSignatureMismatch   = errors.New("function type mismatch")
	ErrConditionNotBool    = errors.New("condition must be bool")
	ErrUnbalancedPreproc   = errors.New("unbalanced #if/#endif")
	ErrNonNumericOperand   = errors.New("operand must be numeric")
	ErrNonIntegerOperand   = errors.New("operand must be an integer")
)
