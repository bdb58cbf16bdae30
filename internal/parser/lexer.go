package parser

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokErrorLit
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokColon
)

type token struct {
	kind tokenKind
	// text is the decoded payload for strings, the symbol for operators,
	// and the raw source slice otherwise.
	text string
	pos  int
}

type lexer struct {
	src string
	pos int
}

func lex(src string) ([]token, error) {
	lx := &lexer{src: src}
	var toks []token
	for {
		t, err := lx.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			return toks, nil
		}
	}
}

func (lx *lexer) next() (token, error) {
	for lx.pos < len(lx.src) && isSpace(lx.src[lx.pos]) {
		lx.pos++
	}
	start := lx.pos
	if lx.pos >= len(lx.src) {
		return token{kind: tokEOF, pos: start}, nil
	}

	c := lx.src[lx.pos]
	switch {
	case c >= '0' && c <= '9':
		return lx.number(start)
	case c == '"':
		return lx.stringLit(start)
	case c == '#':
		return lx.errorLit(start)
	case isIdentStart(c):
		return lx.ident(start)
	}

	switch c {
	case '(':
		lx.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case ')':
		lx.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case ',':
		lx.pos++
		return token{kind: tokComma, text: ",", pos: start}, nil
	case ':':
		lx.pos++
		return token{kind: tokColon, text: ":", pos: start}, nil
	case '+', '-', '*', '/', '^', '&', '=':
		lx.pos++
		return token{kind: tokOp, text: string(c), pos: start}, nil
	case '<':
		lx.pos++
		if lx.pos < len(lx.src) && (lx.src[lx.pos] == '=' || lx.src[lx.pos] == '>') {
			lx.pos++
			return token{kind: tokOp, text: lx.src[start:lx.pos], pos: start}, nil
		}
		return token{kind: tokOp, text: "<", pos: start}, nil
	case '>':
		lx.pos++
		if lx.pos < len(lx.src) && lx.src[lx.pos] == '=' {
			lx.pos++
			return token{kind: tokOp, text: ">=", pos: start}, nil
		}
		return token{kind: tokOp, text: ">", pos: start}, nil
	}

	return token{}, &ParseError{Pos: start, Message: fmt.Sprintf("unexpected character %q", c)}
}

// number scans digits, an optional fraction, and an optional exponent.
func (lx *lexer) number(start int) (token, error) {
	for lx.pos < len(lx.src) && isDigit(lx.src[lx.pos]) {
		lx.pos++
	}
	if lx.pos < len(lx.src) && lx.src[lx.pos] == '.' {
		lx.pos++
		for lx.pos < len(lx.src) && isDigit(lx.src[lx.pos]) {
			lx.pos++
		}
	}
	if lx.pos < len(lx.src) && (lx.src[lx.pos] == 'e' || lx.src[lx.pos] == 'E') {
		mark := lx.pos
		lx.pos++
		if lx.pos < len(lx.src) && (lx.src[lx.pos] == '+' || lx.src[lx.pos] == '-') {
			lx.pos++
		}
		if lx.pos < len(lx.src) && isDigit(lx.src[lx.pos]) {
			for lx.pos < len(lx.src) && isDigit(lx.src[lx.pos]) {
				lx.pos++
			}
		} else {
			// Not an exponent after all; "3E" starts a reference like E1.
			lx.pos = mark
		}
	}
	return token{kind: tokNumber, text: lx.src[start:lx.pos], pos: start}, nil
}

// stringLit scans a double-quoted literal. A doubled quote is the escape
// for a literal quote character.
func (lx *lexer) stringLit(start int) (token, error) {
	lx.pos++ // opening quote
	var b strings.Builder
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		if c == '"' {
			if lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '"' {
				b.WriteByte('"')
				lx.pos += 2
				continue
			}
			lx.pos++
			return token{kind: tokString, text: b.String(), pos: start}, nil
		}
		b.WriteByte(c)
		lx.pos++
	}
	return token{}, &ParseError{Pos: start, Message: "unterminated string literal"}
}

// errorLit scans an error constant such as #DIV/0! or #NAME?. The tag is
// validated by the parser, not here.
func (lx *lexer) errorLit(start int) (token, error) {
	lx.pos++ // '#'
	for lx.pos < len(lx.src) && isErrorLitChar(lx.src[lx.pos]) {
		lx.pos++
	}
	return token{kind: tokErrorLit, text: lx.src[start:lx.pos], pos: start}, nil
}

func (lx *lexer) ident(start int) (token, error) {
	for lx.pos < len(lx.src) && isIdentChar(lx.src[lx.pos]) {
		lx.pos++
	}
	return token{kind: tokIdent, text: lx.src[start:lx.pos], pos: start}, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isIdentStart(c byte) bool { return isLetter(c) || c == '_' }

func isIdentChar(c byte) bool { return isLetter(c) || isDigit(c) || c == '_' || c == '.' }

func isErrorLitChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '/' || c == '!' || c == '?'
}
