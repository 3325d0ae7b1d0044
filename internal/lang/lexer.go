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
	"strings"

	"github.com/hisesub022/falconjit/internal/diag"
)

// Lexer turns preprocessed source text into a stream of Tokens. It is a
// byte-at-a-time hand-written scanner in the same style as the teacher's
// ast.Lexer (falcon/ast/lexer.go): a cur()/at()/advance() cursor over the raw bytes,
// no regex, no lexer generator. Unlike the teacher, it scans an in-memory
// string (the preprocessor's output) rather than a *os.File, since sources
// here are always supplied as strings by the host (SPEC_FULL.md §6).
type Lexer struct {
	source string
	pos    int
}

func NewLexer(source string) *Lexer {
	return &Lexer{source: source}
}

const eof = -1

func (l *Lexer) cur() int {
	if l.pos >= len(l.source) {
		return eof
	}
	return int(l.source[l.pos])
}

func (l *Lexer) at(off int) int {
	i := l.pos + off
	if i >= len(l.source) {
		return eof
	}
	return int(l.source[i])
}

func (l *Lexer) advance() {
	if l.pos < len(l.source) {
		l.pos++
	}
}

func isSpace(c int) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\n' }
func isDigit(c int) bool { return c >= '0' && c <= '9' }
func isAlpha(c int) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}
func isAlnum(c int) bool { return isAlpha(c) || isDigit(c) }

// Next produces the next token, skipping whitespace and comments. It
// panics with a *diag.Error (the lexer/parser's mechanical
// throw-on-error convention, see SPEC_FULL.md §10) on malformed input.
func (l *Lexer) Next() Token {
	for {
		for isSpace(l.cur()) {
			l.advance()
		}
		if l.cur() == '/' && l.at(1) == '/' {
			for l.cur() != '\n' && l.cur() != eof {
				l.advance()
			}
			continue
		}
		if l.cur() == '/' && l.at(1) == '*' {
			start := l.pos
			l.advance()
			l.advance()
			closed := false
			for l.cur() != eof {
				if l.cur() == '*' && l.at(1) == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				panic(diag.New(diag.Lexical, l.source, start, "Unterminated '/*' comment"))
			}
			continue
		}
		break
	}

	start := l.pos
	c := l.cur()
	if c == eof {
		return Token{Kind: TK_EOF, Offset: start}
	}

	if isDigit(c) || (c == '.' && isDigit(l.at(1))) {
		return l.scanNumber()
	}
	if isAlpha(c) {
		return l.scanIdentOrKeyword()
	}
	if c == '"' {
		return l.scanString()
	}

	return l.scanOperator()
}

func (l *Lexer) scanNumber() Token {
	start := l.pos
	hasDot := false
	for isDigit(l.cur()) || (l.cur() == '.' && !hasDot && isDigit(l.at(1))) {
		if l.cur() == '.' {
			hasDot = true
		}
		l.advance()
	}
	kind := NumInt
	if l.cur() == 'f' || l.cur() == 'F' {
		kind = NumFloat
		l.advance()
	} else if hasDot {
		kind = NumDouble
	}
	lexeme := l.source[start:l.pos]
	return Token{Kind: LIT_NUMBER, Lexeme: lexeme, Offset: start, Num: kind}
}

func (l *Lexer) scanIdentOrKeyword() Token {
	start := l.pos
	for isAlnum(l.cur()) {
		l.advance()
	}
	lexeme := l.source[start:l.pos]
	if lexeme == "true" {
		return Token{Kind: KW_TRUE, Lexeme: lexeme, Offset: start}
	}
	if lexeme == "false" {
		return Token{Kind: KW_FALSE, Lexeme: lexeme, Offset: start}
	}
	if kw, ok := keywords[lexeme]; ok {
		return Token{Kind: kw, Lexeme: lexeme, Offset: start}
	}
	return Token{Kind: TK_IDENT, Lexeme: lexeme, Offset: start}
}

func (l *Lexer) scanString() Token {
	start := l.pos
	l.advance() // opening quote
	var b strings.Builder
	for l.cur() != '"' {
		if l.cur() == eof {
			panic(diag.New(diag.Lexical, l.source, start, "Unterminated string literal"))
		}
		b.WriteByte(byte(l.cur()))
		l.advance()
	}
	l.advance() // closing quote
	return Token{Kind: LIT_STRING, Lexeme: b.String(), Offset: start}
}

// two-char operator helper: if the next char is want, consume both and
// return tkTwo, else consume one and return tkOne.
func (l *Lexer) two(want byte, tkOne, tkTwo TokenKind, start int) Token {
	lex := string(byte(l.cur()))
	l.advance()
	if l.cur() == int(want) {
		lex += string(want)
		l.advance()
		return Token{Kind: tkTwo, Lexeme: lex, Offset: start}
	}
	return Token{Kind: tkOne, Lexeme: lex, Offset: start}
}

func (l *Lexer) scanOperator() Token {
	start := l.pos
	c := l.cur()
	switch c {
	case ';':
		l.advance()
		return Token{Kind: TK_SEMICOLON, Lexeme: ";", Offset: start}
	case '.':
		l.advance()
		return Token{Kind: TK_DOT, Lexeme: ".", Offset: start}
	case ',':
		l.advance()
		return Token{Kind: TK_COMMA, Lexeme: ",", Offset: start}
	case '(':
		l.advance()
		return Token{Kind: TK_LPAREN, Lexeme: "(", Offset: start}
	case ')':
		l.advance()
		return Token{Kind: TK_RPAREN, Lexeme: ")", Offset: start}
	case '{':
		l.advance()
		return Token{Kind: TK_LBRACE, Lexeme: "{", Offset: start}
	case '}':
		l.advance()
		return Token{Kind: TK_RBRACE, Lexeme: "}", Offset: start}
	case '[':
		l.advance()
		return Token{Kind: TK_LBRACKET, Lexeme: "[", Offset: start}
	case ']':
		l.advance()
		return Token{Kind: TK_RBRACKET, Lexeme: "]", Offset: start}
	case ':':
		l.advance()
		return Token{Kind: TK_COLON, Lexeme: ":", Offset: start}
	case '?':
		l.advance()
		return Token{Kind: TK_QUESTION, Lexeme: "?", Offset: start}
	case '+':
		l.advance()
		if l.cur() == '+' {
			l.advance()
			return Token{Kind: TK_INC, Lexeme: "++", Offset: start}
		}
		if l.cur() == '=' {
			l.advance()
			return Token{Kind: TK_PLUS_ASN, Lexeme: "+=", Offset: start}
		}
		return Token{Kind: TK_PLUS, Lexeme: "+", Offset: start}
	case '-':
		l.advance()
		if l.cur() == '-' {
			l.advance()
			return Token{Kind: TK_DEC, Lexeme: "--", Offset: start}
		}
		if l.cur() == '=' {
			l.advance()
			return Token{Kind: TK_MINUS_ASN, Lexeme: "-=", Offset: start}
		}
		return Token{Kind: TK_MINUS, Lexeme: "-", Offset: start}
	case '*':
		l.advance()
		if l.cur() == '=' {
			l.advance()
			return Token{Kind: TK_STAR_ASN, Lexeme: "*=", Offset: start}
		}
		return Token{Kind: TK_STAR, Lexeme: "*", Offset: start}
	case '/':
		l.advance()
		if l.cur() == '=' {
			l.advance()
			return Token{Kind: TK_SLASH_ASN, Lexeme: "/=", Offset: start}
		}
		return Token{Kind: TK_SLASH, Lexeme: "/", Offset: start}
	case '%':
		l.advance()
		if l.cur() == '=' {
			l.advance()
			return Token{Kind: TK_PCT_ASN, Lexeme: "%=", Offset: start}
		}
		return Token{Kind: TK_PERCENT, Lexeme: "%", Offset: start}
	case '=':
		l.advance()
		if l.cur() == '=' {
			l.advance()
			if l.cur() == '=' {
				l.advance()
				return Token{Kind: TK_EQ_STRICT, Lexeme: "===", Offset: start}
			}
			return Token{Kind: TK_EQ, Lexeme: "==", Offset: start}
		}
		return Token{Kind: TK_ASSIGN, Lexeme: "=", Offset: start}
	case '!':
		l.advance()
		if l.cur() == '=' {
			l.advance()
			if l.cur() == '=' {
				l.advance()
				return Token{Kind: TK_NE_STRICT, Lexeme: "!==", Offset: start}
			}
			return Token{Kind: TK_NE, Lexeme: "!=", Offset: start}
		}
		return Token{Kind: TK_NOT, Lexeme: "!", Offset: start}
	case '&':
		l.advance()
		if l.cur() == '&' {
			l.advance()
			return Token{Kind: TK_AND_AND, Lexeme: "&&", Offset: start}
		}
		if l.cur() == '=' {
			l.advance()
			return Token{Kind: TK_AND_ASN, Lexeme: "&=", Offset: start}
		}
		return Token{Kind: TK_AND, Lexeme: "&", Offset: start}
	case '|':
		l.advance()
		if l.cur() == '|' {
			l.advance()
			return Token{Kind: TK_OR_OR, Lexeme: "||", Offset: start}
		}
		if l.cur() == '=' {
			l.advance()
			return Token{Kind: TK_OR_ASN, Lexeme: "|=", Offset: start}
		}
		return Token{Kind: TK_OR, Lexeme: "|", Offset: start}
	case '^':
		l.advance()
		if l.cur() == '=' {
			l.advance()
			return Token{Kind: TK_XOR_ASN, Lexeme: "^=", Offset: start}
		}
		return Token{Kind: TK_XOR, Lexeme: "^", Offset: start}
	case '<':
		l.advance()
		if l.cur() == '=' {
			l.advance()
			return Token{Kind: TK_LE, Lexeme: "<=", Offset: start}
		}
		if l.cur() == '<' {
			l.advance()
			if l.cur() == '=' {
				l.advance()
				return Token{Kind: TK_SHL_ASN, Lexeme: "<<=", Offset: start}
			}
			return Token{Kind: TK_SHL, Lexeme: "<<", Offset: start}
		}
		return Token{Kind: TK_LT, Lexeme: "<", Offset: start}
	case '>':
		l.advance()
		if l.cur() == '=' {
			l.advance()
			return Token{Kind: TK_GE, Lexeme: ">=", Offset: start}
		}
		if l.cur() == '>' {
			l.advance()
			if l.cur() == '>' {
				l.advance()
				return Token{Kind: TK_USHR, Lexeme: ">>>", Offset: start}
			}
			if l.cur() == '=' {
				l.advance()
				return Token{Kind: TK_SHR_ASN, Lexeme: ">>=", Offset: start}
			}
			return Token{Kind: TK_SHR, Lexeme: ">>", Offset: start}
		}
		return Token{Kind: TK_GT, Lexeme: ">", Offset: start}
	default:
		panic(diag.New(diag.Lexical, l.source, start, "Unexpected character %q", rune(c)))
	}
}
