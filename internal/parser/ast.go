// Package parser turns formula body text into an abstract syntax tree.
//
// Parsing is pure: it never consults cell storage, and a failed parse
// returns a *ParseError carrying the byte offset of the offending token.
// The input is the formula body with the leading "=" already stripped.
package parser

import (
	"github.com/cellgrid/cellgrid/internal/sheet"
	"github.com/cellgrid/cellgrid/internal/value"
)

// Node is the closed set of AST node kinds. The unexported method keeps
// the set closed so evaluation and folding can switch exhaustively.
type Node interface {
	isNode()
}

// NumberLit is a numeric literal.
type NumberLit struct {
	Val float64
}

// TextLit is a string literal, quotes and escape sequences already decoded.
type TextLit struct {
	Val string
}

// BoolLit is a TRUE or FALSE literal.
type BoolLit struct {
	Val bool
}

// ErrorLit is an error constant written literally in the formula,
// such as #DIV/0!.
type ErrorLit struct {
	Tag value.ErrorTag
}

// CellRef reads a single cell. The coordinate may lie outside the grid
// bounds; evaluation turns such references into #REF! rather than the
// parser rejecting them.
type CellRef struct {
	Coord sheet.Coord
}

// RangeRef reads a rectangular block of cells, normalized corners.
type RangeRef struct {
	Range sheet.Range
}

// Unary applies + or - to a single operand.
type Unary struct {
	Op      Op
	Operand Node
}

// Binary applies an infix operator to two operands.
type Binary struct {
	Op    Op
	Left  Node
	Right Node
}

// Call invokes a registered function. The name is kept as written;
// lookup is case-insensitive.
type Call struct {
	Name string
	Args []Node
}

func (*NumberLit) isNode() {}
func (*TextLit) isNode()   {}
func (*BoolLit) isNode()   {}
func (*ErrorLit) isNode()  {}
func (*CellRef) isNode()   {}
func (*RangeRef) isNode()  {}
func (*Unary) isNode()     {}
func (*Binary) isNode()    {}
func (*Call) isNode()      {}

// Op is an infix or prefix operator symbol.
type Op string

const (
	OpEq Op = "="
	OpNe Op = "<>"
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="

	OpConcat Op = "&"

	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpDiv Op = "/"
	OpPow Op = "^"
)

// Walk visits n and every node beneath it in depth-first order, stopping
// early if visit returns false. It reports whether the walk ran to
// completion.
func Walk(n Node, visit func(Node) bool) bool {
	if n == nil {
		return true
	}
	if !visit(n) {
		return false
	}
	switch t := n.(type) {
	case *Unary:
		return Walk(t.Operand, visit)
	case *Binary:
		return Walk(t.Left, visit) && Walk(t.Right, visit)
	case *Call:
		for _, arg := range t.Args {
			if !Walk(arg, visit) {
				return false
			}
		}
	}
	return true
}

// Precedents collects every cell and range reference the expression
// reads, in source order. Duplicates are preserved; callers that need a
// set deduplicate themselves.
func Precedents(n Node) (cells []sheet.Coord, ranges []sheet.Range) {
	Walk(n, func(n Node) bool {
		switch t := n.(type) {
		case *CellRef:
			cells = append(cells, t.Coord)
		case *RangeRef:
			ranges = append(ranges, t.Range)
		}
		return true
	})
	return cells, ranges
}
