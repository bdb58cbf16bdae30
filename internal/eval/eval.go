// Package eval walks a parsed formula and produces its value.
//
// Evaluation is total: data-dependent failures come back as error
// values, never as Go errors or panics. Reference resolution goes
// through an Env so the evaluator itself never touches storage.
package eval

import (
	"iter"
	"math"
	"strings"

	"github.com/cellgrid/cellgrid/internal/fn"
	"github.com/cellgrid/cellgrid/internal/parser"
	"github.com/cellgrid/cellgrid/internal/sheet"
	"github.com/cellgrid/cellgrid/internal/value"
)

// Env resolves references for one evaluation. ResolveCell returns nil
// for an empty cell; ResolveRange yields the rectangle's values lazily
// in row-major order, nil for empty positions.
type Env interface {
	ResolveCell(sheet.Coord) value.Value
	ResolveRange(sheet.Range) iter.Seq[value.Value]
}

// Evaluator computes formula values against a function registry.
type Evaluator struct {
	registry *fn.Registry
}

// New creates an evaluator using the given registry.
func New(registry *fn.Registry) *Evaluator {
	return &Evaluator{registry: registry}
}

// Evaluate computes the value of node. A nil result is an empty value
// (a bare reference to an empty cell).
func (e *Evaluator) Evaluate(node parser.Node, env Env) value.Value {
	switch t := node.(type) {
	case *parser.NumberLit:
		return value.Number(t.Val)
	case *parser.TextLit:
		return value.NewText(t.Val)
	case *parser.BoolLit:
		return value.Bool(t.Val)
	case *parser.ErrorLit:
		return value.NewError(t.Tag)

	case *parser.CellRef:
		if !t.Coord.InBounds() {
			return value.NewError(value.TagRef)
		}
		return env.ResolveCell(t.Coord)

	case *parser.RangeRef:
		// A range is only meaningful as an aggregate argument.
		return value.NewError(value.TagValue)

	case *parser.Unary:
		return e.evalUnary(t, env)

	case *parser.Binary:
		return e.evalBinary(t, env)

	case *parser.Call:
		return e.evalCall(t, env)
	}
	return value.NewError(value.TagError)
}

func (e *Evaluator) evalUnary(u *parser.Unary, env Env) value.Value {
	x, errv := value.AsNumber(e.Evaluate(u.Operand, env))
	if errv != nil {
		return errv
	}
	if u.Op == parser.OpSub {
		return value.Number(-x)
	}
	return value.Number(x)
}

func (e *Evaluator) evalBinary(b *parser.Binary, env Env) value.Value {
	left := e.Evaluate(b.Left, env)
	right := e.Evaluate(b.Right, env)

	switch b.Op {
	case parser.OpAdd, parser.OpSub, parser.OpMul, parser.OpDiv, parser.OpPow:
		// Left operand coerces first, so with two bad operands the
		// left one decides the error tag.
		x, errv := value.AsNumber(left)
		if errv != nil {
			return errv
		}
		y, errv := value.AsNumber(right)
		if errv != nil {
			return errv
		}
		return arith(b.Op, x, y)

	case parser.OpConcat:
		ls, errv := value.AsText(left)
		if errv != nil {
			return errv
		}
		rs, errv := value.AsText(right)
		if errv != nil {
			return errv
		}
		return value.NewText(ls + rs)

	case parser.OpEq, parser.OpNe, parser.OpLt, parser.OpLe, parser.OpGt, parser.OpGe:
		return compare(b.Op, left, right)
	}
	return value.NewError(value.TagError)
}

func arith(op parser.Op, x, y float64) value.Value {
	switch op {
	case parser.OpAdd:
		return value.Number(x + y)
	case parser.OpSub:
		return value.Number(x - y)
	case parser.OpMul:
		return value.Number(x * y)
	case parser.OpDiv:
		if y == 0 {
			return value.NewError(value.TagDiv0)
		}
		return value.Number(x / y)
	case parser.OpPow:
		res := math.Pow(x, y)
		if math.IsNaN(res) || math.IsInf(res, 0) {
			return value.NewError(value.TagValue)
		}
		return value.Number(res)
	}
	return value.NewError(value.TagError)
}

// compare implements the comparison operators. Errors propagate left
// first. Operands compare numerically when both are numeric-like
// (numbers, booleans, numeric text, empty); otherwise as
// case-insensitive text when both are text-like. Equality across
// mismatched types is simply false; ordering across them is a type
// error.
func compare(op parser.Op, left, right value.Value) value.Value {
	if tag, ok := value.IsError(left); ok {
		return value.NewError(tag)
	}
	if tag, ok := value.IsError(right); ok {
		return value.NewError(tag)
	}

	cmp, comparable := compareValues(left, right)
	switch op {
	case parser.OpEq:
		return value.Bool(comparable && cmp == 0)
	case parser.OpNe:
		return value.Bool(!comparable || cmp != 0)
	}
	if !comparable {
		return value.NewError(value.TagValue)
	}
	switch op {
	case parser.OpLt:
		return value.Bool(cmp < 0)
	case parser.OpLe:
		return value.Bool(cmp <= 0)
	case parser.OpGt:
		return value.Bool(cmp > 0)
	case parser.OpGe:
		return value.Bool(cmp >= 0)
	}
	return value.NewError(value.TagError)
}

func compareValues(left, right value.Value) (cmp int, comparable bool) {
	lf, lNum := asNumeric(left)
	rf, rNum := asNumeric(right)
	if lNum && rNum {
		switch {
		case lf < rf:
			return -1, true
		case lf > rf:
			return 1, true
		}
		return 0, true
	}

	ls, lText := asTextual(left)
	rs, rText := asTextual(right)
	if lText && rText {
		return strings.Compare(strings.ToLower(ls), strings.ToLower(rs)), true
	}
	return 0, false
}

func asNumeric(v value.Value) (float64, bool) {
	switch v.(type) {
	case nil, value.Number, value.Bool, value.Text:
		f, errv := value.AsNumber(v)
		return f, errv == nil
	}
	return 0, false
}

func asTextual(v value.Value) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case value.Text:
		return string(t), true
	}
	return "", false
}

func (e *Evaluator) evalCall(call *parser.Call, env Env) value.Value {
	spec, ok := e.registry.Resolve(call.Name)
	if !ok {
		return value.NewError(value.TagName)
	}
	if !spec.AcceptsArgCount(len(call.Args)) {
		return value.NewError(value.TagValue)
	}

	args := make([]fn.Arg, len(call.Args))
	for i, argNode := range call.Args {
		if rr, isRange := argNode.(*parser.RangeRef); isRange {
			if !rr.Range.Start.InBounds() || !rr.Range.End.InBounds() {
				args[i] = fn.Scalar(value.NewError(value.TagRef))
				continue
			}
			args[i] = fn.RangeOf(env.ResolveRange(rr.Range))
			continue
		}
		args[i] = fn.Scalar(e.Evaluate(argNode, env))
	}
	return spec.Impl(args)
}

// Volatile reports whether the expression calls a function marked
// volatile in the registry.
func Volatile(node parser.Node, registry *fn.Registry) bool {
	volatile := false
	parser.Walk(node, func(n parser.Node) bool {
		if call, ok := n.(*parser.Call); ok && registry.IsVolatile(call.Name) {
			volatile = true
			return false
		}
		return true
	})
	return volatile
}
