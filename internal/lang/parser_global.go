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

import "strconv"

// parseTopLevel implements the top-level grammar (spec.md §4.3): it accepts
// both the raw form and the `class Name { public: … };` wrapper form,
// selected by whether the first token is `class`. Function bodies are
// delimited (brace-matched) in a first pass and compiled in a second pass,
// so forward references among top-level functions resolve — mirroring
// GlobalParser.h's two-pass structure in the original C++ source.
func parseTopLevel(p *Parser) *Program {
	prog := &Program{}

	if p.at(KW_CLASS) {
		p.consume()
		p.expect(TK_IDENT) // class name, unused beyond delimiting the wrapper
		p.expect(TK_LBRACE)
		// `public:` / `private:` are accepted as bare access-specifier
		// labels and otherwise ignored, since this language has no
		// member-visibility semantics of its own.
		parseMembers(p, prog)
		p.expect(TK_RBRACE)
		if p.at(TK_SEMICOLON) {
			p.consume()
		}
		return prog
	}

	parseMembers(p, prog)
	return prog
}

func parseMembers(p *Parser, prog *Program) {
	type pendingFunc struct {
		decl  *FuncDecl
		body  string // delimited, not-yet-parsed body source (without braces)
		start int    // byte offset of body within p.source
	}
	var pending []pendingFunc

	for !p.at(TK_EOF) && !p.at(TK_RBRACE) {
		if p.at(KW_PUBLIC) || p.at(KW_PRIVATE) {
			p.consume()
			p.expect(TK_COLON)
			continue
		}

		isConst := false
		if p.at(KW_CONST) {
			isConst = true
			p.consume()
			if _, isType := p.typeKeyword(); !isType {
				p.fail("Expected type after const")
			}
		}
		_ = isConst

		kind, isType := p.typeKeyword()
		if !isType {
			p.fail("Found %v when expecting a type, 'public:'/'private:' or '}'", p.tok.Kind)
		}

		offset := p.tok.Offset
		p.consume() // consume type keyword

		name := p.expect(TK_IDENT).Lexeme

		switch {
		case kind == KBuffer:
			// Buffer ident(size);
			p.expect(TK_LPAREN)
			sizeTok := p.expect(LIT_NUMBER)
			size, err := strconv.Atoi(sizeTok.Lexeme)
			if err != nil || size <= 0 {
				p.fail("Buffer size must be a positive integer literal")
			}
			p.expect(TK_RPAREN)
			p.expect(TK_SEMICOLON)
			prog.Globals = append(prog.Globals, &GlobalDecl{
				Offset: offset, Name: name, Kind: KBuffer, BufferSize: size,
			})

		case p.at(TK_LPAREN):
			// function declaration: type ident(params) { body }
			fn := &FuncDecl{Offset: offset, Name: name, Ret: kind}
			fn.Params = parseParamList(p)
			p.expect(TK_LBRACE)
			bodyStart := p.tok.Offset
			bodySrc := delimitBody(p)
			p.expect(TK_RBRACE)
			if p.at(TK_SEMICOLON) {
				p.consume()
			}
			pending = append(pending, pendingFunc{decl: fn, body: bodySrc, start: bodyStart})

		default:
			// one or more scalar global declarations, optionally const,
			// optionally with a literal initializer, comma-separated.
			isConstGlobal := isConst
			for {
				g := &GlobalDecl{Offset: offset, Name: name, Kind: kind, Const: isConstGlobal}
				if p.at(TK_ASSIGN) {
					p.consume()
					g.Init = parseLiteralOnly(p, kind)
				}
				prog.Globals = append(prog.Globals, g)
				if p.at(TK_COMMA) {
					p.consume()
					name = p.expect(TK_IDENT).Lexeme
					continue
				}
				break
			}
			p.expect(TK_SEMICOLON)
		}
	}

	// second pass: parse each delimited body now that every top-level
	// function signature is known, so forward calls between top-level
	// functions resolve.
	for _, pf := range pending {
		fn := pf.decl
		// lex the body in place so node offsets stay relative to the
		// whole source, which is what diag.Error's line numbers count in.
		lx := &Lexer{source: p.source[:pf.start+len(pf.body)], pos: pf.start}
		bodyParser := &Parser{source: p.source, lex: lx}
		bodyParser.tok = lx.Next()
		fn.Body = parseStatementList(bodyParser)
		if fn.Ret == KVoid {
			fn.Body, fn.SyntheticRet = ensureVoidReturn(fn.Body)
		}
		prog.Funcs = append(prog.Funcs, fn)
	}
}

// parseParamList parses `(type ident, type ident)`, up to two parameters
// per spec.md §4.3's closed signature table.
func parseParamList(p *Parser) []Param {
	p.expect(TK_LPAREN)
	var params []Param
	for !p.at(TK_RPAREN) {
		kind, isType := p.typeKeyword()
		if !isType {
			p.fail("Found %v when expecting a parameter type", p.tok.Kind)
		}
		p.consume()
		name := p.expect(TK_IDENT).Lexeme
		params = append(params, Param{Name: name, Kind: kind})
		if p.at(TK_COMMA) {
			p.consume()
		}
	}
	p.expect(TK_RPAREN)
	if len(params) > 2 {
		p.fail("functions with more than two parameters are not supported")
	}
	return params
}

// delimitBody consumes tokens up to (but not including) the matching '}'
// for the '{' already consumed by the caller, returning the raw source
// text spanned — the "body is not parsed immediately, just delimited"
// step of spec.md §4.3.
func delimitBody(p *Parser) string {
	start := p.tok.Offset
	depth := 1
	end := start
	for depth > 0 {
		if p.at(TK_EOF) {
			p.fail("Unexpected end of file inside function body")
		}
		if p.at(TK_LBRACE) {
			depth++
		} else if p.at(TK_RBRACE) {
			depth--
			if depth == 0 {
				break
			}
		}
		end = p.tok.Offset + len(p.tok.Lexeme)
		p.consume()
	}
	if end < start {
		end = start
	}
	return p.source[start:end]
}

// parseLiteralOnly parses a single literal initializer for a global
// declaration; globals may only be initialized with a literal (spec.md
// §4.3: "declare global with literal initializer").
func parseLiteralOnly(p *Parser, kind Kind) Expr {
	switch kind {
	case KBool:
		if p.at(KW_TRUE) {
			p.consume()
			return &BoolLit{exprBase: exprBase{Kind: KBool}, Value: true}
		}
		if p.at(KW_FALSE) {
			p.consume()
			return &BoolLit{exprBase: exprBase{Kind: KBool}, Value: false}
		}
		p.fail("expected a bool literal")
	case KInt, KFloat, KDouble:
		neg := false
		if p.at(TK_MINUS) {
			neg = true
			p.consume()
		}
		tok := p.expect(LIT_NUMBER)
		return numberLiteral(p, tok, neg)
	}
	p.fail("unsupported global initializer type")
	return nil
}

func ensureVoidReturn(body []Stmt) ([]Stmt, bool) {
	if len(body) > 0 {
		if _, ok := body[len(body)-1].(*ReturnStmt); ok {
			return body, false
		}
	}
	return append(body, &ReturnStmt{}), true
}
