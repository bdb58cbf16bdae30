package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cellgrid/cellgrid/internal/sheet"
	"github.com/cellgrid/cellgrid/internal/value"
)

// ParseError reports a syntax failure with the byte offset of the token
// that caused it, relative to the formula body.
type ParseError struct {
	Pos     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Pos, e.Message)
}

// Parse parses a formula body (leading "=" already stripped) into an AST.
func Parse(body string) (Node, error) {
	toks, err := lex(body)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, &ParseError{Pos: t.pos, Message: fmt.Sprintf("unexpected %q after expression", t.text)}
	}
	return node, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

// Precedence ladder, loosest first: comparison, concatenation, additive,
// multiplicative, exponent, unary, primary.

func (p *parser) parseExpr() (Node, error) {
	return p.parseComparison()
}

func (p *parser) parseComparison() (Node, error) {
	left, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp {
			return left, nil
		}
		switch Op(t.text) {
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: Op(t.text), Left: left, Right: right}
	}
}

func (p *parser) parseConcat() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOp && Op(p.peek().text) == OpConcat {
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: OpConcat, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: Op(t.text), Left: left, Right: right}
	}
}

func (p *parser) parseMultiplicative() (Node, error) {
	left, err := p.parseExponent()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/") {
			return left, nil
		}
		p.advance()
		right, err := p.parseExponent()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: Op(t.text), Left: left, Right: right}
	}
}

// parseExponent is right-associative: 2^3^2 is 2^(3^2).
func (p *parser) parseExponent() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind == tokOp && t.text == "^" {
		p.advance()
		right, err := p.parseExponent()
		if err != nil {
			return nil, err
		}
		return &Binary{Op: OpPow, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	if t := p.peek(); t.kind == tokOp && (t.text == "+" || t.text == "-") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: Op(t.text), Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.advance()
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, &ParseError{Pos: t.pos, Message: fmt.Sprintf("invalid number %q", t.text)}
		}
		return &NumberLit{Val: f}, nil

	case tokString:
		p.advance()
		return &TextLit{Val: t.text}, nil

	case tokErrorLit:
		p.advance()
		tag, ok := value.ParseErrorLiteral(t.text)
		if !ok {
			return nil, &ParseError{Pos: t.pos, Message: fmt.Sprintf("unknown error literal %q", t.text)}
		}
		return &ErrorLit{Tag: tag}, nil

	case tokIdent:
		return p.parseIdent()

	case tokLParen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, &ParseError{Pos: p.peek().pos, Message: "missing closing parenthesis"}
		}
		p.advance()
		return inner, nil

	case tokEOF:
		return nil, &ParseError{Pos: t.pos, Message: "unexpected end of formula"}
	}
	return nil, &ParseError{Pos: t.pos, Message: fmt.Sprintf("unexpected %q", t.text)}
}

// parseIdent disambiguates a word token: a function call when followed
// by "(", the TRUE/FALSE literals, or an A1 cell reference (optionally
// extended into a range by ":").
func (p *parser) parseIdent() (Node, error) {
	t := p.advance()

	if p.peek().kind == tokLParen {
		return p.parseCall(t)
	}

	switch strings.ToUpper(t.text) {
	case "TRUE":
		return &BoolLit{Val: true}, nil
	case "FALSE":
		return &BoolLit{Val: false}, nil
	}

	start, ok := refCoord(t.text)
	if !ok {
		return nil, &ParseError{Pos: t.pos, Message: fmt.Sprintf("unknown name %q", t.text)}
	}
	if p.peek().kind != tokColon {
		return &CellRef{Coord: start}, nil
	}
	p.advance()
	endTok := p.peek()
	if endTok.kind != tokIdent {
		return nil, &ParseError{Pos: endTok.pos, Message: "malformed range: expected cell reference after ':'"}
	}
	end, ok := refCoord(endTok.text)
	if !ok {
		return nil, &ParseError{Pos: endTok.pos, Message: fmt.Sprintf("malformed range: %q is not a cell reference", endTok.text)}
	}
	p.advance()
	return &RangeRef{Range: sheet.NewRange(start, end)}, nil
}

func (p *parser) parseCall(name token) (Node, error) {
	p.advance() // '('
	call := &Call{Name: name.text}
	if p.peek().kind == tokRParen {
		p.advance()
		return call, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		switch p.peek().kind {
		case tokComma:
			p.advance()
		case tokRParen:
			p.advance()
			return call, nil
		default:
			return nil, &ParseError{Pos: p.peek().pos, Message: fmt.Sprintf("missing closing parenthesis in call to %s", name.text)}
		}
	}
}

// refCoord converts an A1-style word into a coordinate without bounds
// checking; out-of-grid references become #REF! at evaluation time.
// Oversized components saturate so they stay representable.
func refCoord(text string) (sheet.Coord, bool) {
	i := 0
	col := 0
	for i < len(text) && isLetter(text[i]) {
		c := text[i]
		if c >= 'a' {
			c -= 'a' - 'A'
		}
		if col <= sheet.MaxCols {
			col = col*26 + int(c-'A') + 1
		}
		i++
	}
	if i == 0 || i == len(text) {
		return sheet.Coord{}, false
	}
	row := 0
	for ; i < len(text); i++ {
		if !isDigit(text[i]) {
			return sheet.Coord{}, false
		}
		if row <= sheet.MaxRows {
			row = row*10 + int(text[i]-'0')
		}
	}
	if row == 0 {
		return sheet.Coord{}, false
	}
	return sheet.Coord{Row: row - 1, Col: col - 1}, true
}
