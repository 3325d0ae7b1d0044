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

// parseStatementList parses statements until EOF (the delimited function
// body source contains exactly one function body and nothing else, see
// delimitBody in parser_global.go).
func parseStatementList(p *Parser) []Stmt {
	var stmts []Stmt
	for !p.at(TK_EOF) {
		stmts = append(stmts, parseStatement(p))
	}
	return stmts
}

// parseStatement implements the statement grammar of spec.md §4.4:
//
//	stmt := declaration | assignment | buffer-op | return | expr ';'
func parseStatement(p *Parser) Stmt {
	offset := p.tok.Offset

	if p.at(KW_RETURN) {
		p.consume()
		stmt := &ReturnStmt{stmtBase: stmtBase{Offset: offset}}
		if !p.at(TK_SEMICOLON) {
			stmt.Expr = parseExpr(p)
		}
		p.expect(TK_SEMICOLON)
		return stmt
	}

	if p.at(KW_CONST) || isTypeKeyword(p) {
		return parseDeclaration(p)
	}

	if p.at(TK_IDENT) {
		return parseIdentStatement(p)
	}

	// expr ';' (e.g. a prefix `++x;`)
	expr := parseExpr(p)
	p.expect(TK_SEMICOLON)
	return &ExprStmt{stmtBase: stmtBase{Offset: offset}, Expr: expr}
}

func isTypeKeyword(p *Parser) bool {
	_, ok := p.typeKeyword()
	return ok
}

// parseDeclaration implements `['const'] type ident [ '=' expr ] ';'`.
func parseDeclaration(p *Parser) Stmt {
	offset := p.tok.Offset
	isConst := false
	if p.at(KW_CONST) {
		isConst = true
		p.consume()
	}
	kind, ok := p.typeKeyword()
	if !ok {
		p.fail("Found %v when expecting a type", p.tok.Kind)
	}
	p.consume()
	name := p.expect(TK_IDENT).Lexeme
	decl := &DeclStmt{stmtBase: stmtBase{Offset: offset}, Name: name, Kind: kind, Const: isConst}
	if p.at(TK_ASSIGN) {
		p.consume()
		decl.Init = parseExpr(p)
	}
	p.expect(TK_SEMICOLON)
	return decl
}

// parseIdentStatement disambiguates assignment / buffer-op / bare call
// expression statements, all of which start with an identifier.
func parseIdentStatement(p *Parser) Stmt {
	offset := p.tok.Offset
	name := p.tok.Lexeme
	p.consume()

	switch p.tok.Kind {
	case TK_INC, TK_DEC:
		op := p.tok.Kind
		p.consume()
		p.expect(TK_SEMICOLON)
		return &IncDecStmt{stmtBase: stmtBase{Offset: offset}, Name: name, Op: op}

	case TK_LBRACKET:
		// buffer-op := ident '[' expr ']' (op-assign expr | ';')
		p.consume()
		index := parseExpr(p)
		p.expect(TK_RBRACKET)
		target := &IndexExpr{exprBase: exprBase{Offset: offset}, Buffer: name, Index: index}
		if p.tok.IsAssignOp() {
			op := p.tok.Kind
			p.consume()
			value := parseExpr(p)
			p.expect(TK_SEMICOLON)
			return &ExprStmt{stmtBase: stmtBase{Offset: offset}, Expr: &AssignExpr{
				exprBase: exprBase{Offset: offset}, Op: op, Target: target, Value: value,
			}}
		}
		p.expect(TK_SEMICOLON)
		return &ExprStmt{stmtBase: stmtBase{Offset: offset}, Expr: target}

	case TK_DOT:
		// buffer-op := ident '.' ident '(' arg-list ')' ';'
		p.consume()
		method := p.expect(TK_IDENT).Lexeme
		args := parseArgList(p)
		p.expect(TK_SEMICOLON)
		return &ExprStmt{stmtBase: stmtBase{Offset: offset}, Expr: &MethodCallExpr{
			exprBase: exprBase{Offset: offset}, Receiver: name, Method: method, Args: args,
		}}

	case TK_LPAREN:
		// bare call used as a statement: ident '(' arg-list ')' ';'
		args := parseArgList(p)
		p.expect(TK_SEMICOLON)
		return &ExprStmt{stmtBase: stmtBase{Offset: offset}, Expr: &CallExpr{
			exprBase: exprBase{Offset: offset}, Name: name, Args: args,
		}}

	default:
		if p.tok.IsAssignOp() {
			op := p.tok.Kind
			p.consume()
			value := parseExpr(p)
			p.expect(TK_SEMICOLON)
			return &ExprStmt{stmtBase: stmtBase{Offset: offset}, Expr: &AssignExpr{
				exprBase: exprBase{Offset: offset}, Op: op,
				Target:   &VarExpr{exprBase: exprBase{Offset: offset}, Name: name},
				Value:    value,
			}}
		}
	}

	p.fail("Found %v when expecting an assignment, buffer operation or call", p.tok.Kind)
	return nil
}

func parseArgList(p *Parser) []Expr {
	p.expect(TK_LPAREN)
	var args []Expr
	for !p.at(TK_RPAREN) {
		args = append(args, parseExpr(p))
		if p.at(TK_COMMA) {
			p.consume()
		}
	}
	p.expect(TK_RPAREN)
	return args
}

// -----------------------------------------------------------------------
// Expression grammar (spec.md §4.4), precedence low to high:
//
//	ternary  := logicOr ( '?' expr ':' expr )?
//	logicOr  := logicAnd ( '||' logicAnd )*
//	logicAnd := compare  ( '&&' compare  )*
//	compare  := sum      (('<'|'<='|'>'|'>='|'=='|'!=') sum)?
//	sum      := product  (('+'|'-') product)*
//	product  := term     (('*'|'/'|'%') term)*
//	term     := '(' cast-or-expr ')' | unary
//	unary    := '!' bool | '-' primary | '++'|'--' ident | primary
//	primary  := literal | ident | ident '(' arg-list ')'
//	          | ident '[' expr ']' | ident '.' ident '(' arg-list ')'

func parseExpr(p *Parser) Expr { return parseTernary(p) }

func parseTernary(p *Parser) Expr {
	offset := p.tok.Offset
	cond := parseLogicOr(p)
	if p.at(TK_QUESTION) {
		p.consume()
		then := parseExpr(p)
		p.expect(TK_COLON)
		els := parseExpr(p)
		return &TernaryExpr{exprBase: exprBase{Offset: offset}, Cond: cond, Then: then, Else: els}
	}
	return cond
}

func parseLogicOr(p *Parser) Expr {
	left := parseLogicAnd(p)
	for p.at(TK_OR_OR) {
		offset := p.tok.Offset
		p.consume()
		right := parseLogicAnd(p)
		left = &BinaryExpr{exprBase: exprBase{Offset: offset}, Op: TK_OR_OR, Left: left, Right: right}
	}
	return left
}

func parseLogicAnd(p *Parser) Expr {
	left := parseCompare(p)
	for p.at(TK_AND_AND) {
		offset := p.tok.Offset
		p.consume()
		right := parseCompare(p)
		left = &BinaryExpr{exprBase: exprBase{Offset: offset}, Op: TK_AND_AND, Left: left, Right: right}
	}
	return left
}

func parseCompare(p *Parser) Expr {
	left := parseSum(p)
	if isCompareOp(p.tok.Kind) {
		offset := p.tok.Offset
		op := p.tok.Kind
		p.consume()
		right := parseSum(p)
		return &BinaryExpr{exprBase: exprBase{Offset: offset}, Op: op, Left: left, Right: right}
	}
	return left
}

func isCompareOp(k TokenKind) bool {
	switch k {
	case TK_LT, TK_LE, TK_GT, TK_GE, TK_EQ, TK_NE:
		return true
	}
	return false
}

func parseSum(p *Parser) Expr {
	left := parseProduct(p)
	for p.at(TK_PLUS) || p.at(TK_MINUS) {
		offset := p.tok.Offset
		op := p.tok.Kind
		p.consume()
		right := parseProduct(p)
		left = &BinaryExpr{exprBase: exprBase{Offset: offset}, Op: op, Left: left, Right: right}
	}
	return left
}

func parseProduct(p *Parser) Expr {
	left := parseTerm(p)
	for p.at(TK_STAR) || p.at(TK_SLASH) || p.at(TK_PERCENT) {
		offset := p.tok.Offset
		op := p.tok.Kind
		p.consume()
		right := parseTerm(p)
		left = &BinaryExpr{exprBase: exprBase{Offset: offset}, Op: op, Left: left, Right: right}
	}
	return left
}

// parseTerm handles the parenthesised cast form `(type)expr` in addition to
// a plain parenthesised sub-expression, then falls through to unary.
func parseTerm(p *Parser) Expr {
	if p.at(TK_LPAREN) {
		offset := p.tok.Offset
		// lookahead: '(' type ')' is a cast iff the next token is a type
		// keyword and the one after that is ')'.
		if kind, ok := p.typeKeywordAfterLParen(); ok {
			p.consume() // '('
			p.consume() // type keyword
			p.expect(TK_RPAREN)
			operand := parseUnary(p)
			return &CastExpr{exprBase: exprBase{Offset: offset}, Target: kind, Expr: operand}
		}
		p.consume()
		inner := parseExpr(p)
		p.expect(TK_RPAREN)
		return inner
	}
	return parseUnary(p)
}

// typeKeywordAfterLParen peeks past the current '(' to see whether it is
// immediately followed by a type keyword and then ')': the unambiguous
// shape of a cast expression in this grammar.
func (p *Parser) typeKeywordAfterLParen() (Kind, bool) {
	next := p.peek()
	kind, isType := kindFromToken(next.Kind)
	if !isType {
		return KVoid, false
	}
	// We only have one token of lookahead in this parser, so we rely on the
	// fact that a type keyword can never itself start a sub-expression:
	// `(int)x` and `(int + 1)` are never both valid, because `int` is not a
	// primary expression. Any time the token after '(' is a type keyword,
	// we are looking at a cast.
	return kind, true
}

func kindFromToken(t TokenKind) (Kind, bool) {
	switch t {
	case KW_INT:
		return KInt, true
	case KW_FLOAT:
		return KFloat, true
	case KW_DOUBLE:
		return KDouble, true
	case KW_BOOL:
		return KBool, true
	}
	return KVoid, false
}

func parseUnary(p *Parser) Expr {
	offset := p.tok.Offset
	switch p.tok.Kind {
	case TK_NOT:
		p.consume()
		operand := parseUnary(p)
		return &UnaryExpr{exprBase: exprBase{Offset: offset}, Op: TK_NOT, Expr: operand}
	case TK_MINUS:
		p.consume()
		operand := parsePrimary(p)
		return &UnaryExpr{exprBase: exprBase{Offset: offset}, Op: TK_MINUS, Expr: operand}
	case TK_INC, TK_DEC:
		op := p.tok.Kind
		p.consume()
		name := p.expect(TK_IDENT).Lexeme
		return &UnaryExpr{exprBase: exprBase{Offset: offset}, Op: op,
			Expr: &VarExpr{exprBase: exprBase{Offset: offset}, Name: name}}
	default:
		return parsePrimary(p)
	}
}

func parsePrimary(p *Parser) Expr {
	offset := p.tok.Offset
	switch p.tok.Kind {
	case LIT_NUMBER:
		tok := p.tok
		p.consume()
		return numberLiteral(p, tok, false)
	case KW_TRUE:
		p.consume()
		return &BoolLit{exprBase: exprBase{Offset: offset, Kind: KBool}, Value: true}
	case KW_FALSE:
		p.consume()
		return &BoolLit{exprBase: exprBase{Offset: offset, Kind: KBool}, Value: false}
	case TK_LPAREN:
		p.consume()
		inner := parseExpr(p)
		p.expect(TK_RPAREN)
		return inner
	case TK_IDENT:
		name := p.tok.Lexeme
		p.consume()
		switch p.tok.Kind {
		case TK_LPAREN:
			args := parseArgList(p)
			return &CallExpr{exprBase: exprBase{Offset: offset}, Name: name, Args: args}
		case TK_LBRACKET:
			p.consume()
			index := parseExpr(p)
			p.expect(TK_RBRACKET)
			return &IndexExpr{exprBase: exprBase{Offset: offset}, Buffer: name, Index: index}
		case TK_DOT:
			p.consume()
			method := p.expect(TK_IDENT).Lexeme
			args := parseArgList(p)
			return &MethodCallExpr{exprBase: exprBase{Offset: offset}, Receiver: name, Method: method, Args: args}
		default:
			return &VarExpr{exprBase: exprBase{Offset: offset}, Name: name}
		}
	}
	p.fail("Found %v when expecting an expression", p.tok.Kind)
	return nil
}

// numberLiteral converts a LIT_NUMBER token into the right literal AST node
// per the literal typing rule: trailing 'f' -> float, contains '.' ->
// double, otherwise -> int (spec.md §4.2).
func numberLiteral(p *Parser, tok Token, negate bool) Expr {
	sign := int32(1)
	fsign := float32(1)
	dsign := float64(1)
	if negate {
		sign, fsign, dsign = -1, -1, -1
	}
	switch tok.Num {
	case NumInt:
		v, err := strconv.ParseInt(tok.Lexeme, 10, 32)
		if err != nil {
			panic2(p, tok, "Syntax error in numeric constant %q", tok.Lexeme)
		}
		return &IntLit{exprBase: exprBase{Offset: tok.Offset, Kind: KInt}, Value: int32(v) * sign}
	case NumFloat:
		lex := tok.Lexeme
		if len(lex) > 0 && (lex[len(lex)-1] == 'f' || lex[len(lex)-1] == 'F') {
			lex = lex[:len(lex)-1]
		}
		v, err := strconv.ParseFloat(lex, 32)
		if err != nil {
			panic2(p, tok, "Syntax error in numeric constant %q", tok.Lexeme)
		}
		return &FloatLit{exprBase: exprBase{Offset: tok.Offset, Kind: KFloat}, Value: float32(v) * fsign}
	case NumDouble:
		v, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			panic2(p, tok, "Syntax error in numeric constant %q", tok.Lexeme)
		}
		return &DoubleLit{exprBase: exprBase{Offset: tok.Offset, Kind: KDouble}, Value: v * dsign}
	}
	panic2(p, tok, "Syntax error in numeric constant %q", tok.Lexeme)
	return nil
}

func panic2(p *Parser, tok Token, format string, args ...interface{}) {
	p2 := *p
	p2.tok = tok
	p2.fail(format, args...)
}
