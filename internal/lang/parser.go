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

import (
	"github.com/hisesub022/falconjit/internal/diag"
)

// Parser is a hand-written recursive-descent parser, in the same
// one-token-lookahead style as the teacher's ast.Parser
// (falcon/ast/parser.go): a current token plus a single peeked token,
// advanced by consume(). Parse failures panic(*diag.Error); callers at the
// package boundary (ParseProgram) recover them into a returned
// error (SPEC_FULL.md §10).
type Parser struct {
	source string
	lex    *Lexer
	tok    Token
	peeked *Token
}

func newParser(source string) *Parser {
	p := &Parser{source: source, lex: NewLexer(source)}
	p.tok = p.lex.Next()
	return p
}

func (p *Parser) peek() Token {
	if p.peeked == nil {
		t := p.lex.Next()
		p.peeked = &t
	}
	return *p.peeked
}

func (p *Parser) consume() {
	if p.peeked != nil {
		p.tok = *p.peeked
		p.peeked = nil
		return
	}
	p.tok = p.lex.Next()
}

func (p *Parser) fail(format string, args ...interface{}) {
	panic(diag.New(diag.Grammar, p.source, p.tok.Offset, format, args...))
}

func (p *Parser) expect(kind TokenKind) Token {
	if p.tok.Kind != kind {
		p.fail("Found %v when expecting %v", p.tok.Kind, kind)
	}
	t := p.tok
	p.consume()
	return t
}

func (p *Parser) at(kind TokenKind) bool { return p.tok.Kind == kind }

// typeKeyword reports whether the current token starts a type name.
func (p *Parser) typeKeyword() (Kind, bool) {
	switch p.tok.Kind {
	case KW_INT:
		return KInt, true
	case KW_FLOAT:
		return KFloat, true
	case KW_DOUBLE:
		return KDouble, true
	case KW_BOOL:
		return KBool, true
	case KW_VOID:
		return KVoid, true
	case KW_BUFFER:
		return KBuffer, true
	}
	return KVoid, false
}

// ParseProgram parses a complete translation unit (already preprocessed)
// and returns the untyped-but-structured Program (spec.md §4.3). It
// recovers internal panics into a returned error, matching the teacher's
// mechanical throw-on-error parser translated to Go idiom (SPEC_FULL.md
// §10).
func ParseProgram(source string, flags Flags) (prog *Program, err error) {
	defer diag.Recover(&err)
	p := newParser(source)
	prog = parseTopLevel(p)
	prog.Source = source
	prog.Flags = flags
	return prog, nil
}
