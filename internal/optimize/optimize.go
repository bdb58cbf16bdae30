// Package optimize rewrites formula ASTs into equivalent cheaper forms
// before they are stored for evaluation.
//
// Constant folding replaces any subtree built purely from literals and
// non-volatile calls with its evaluated result. Identity rewrites drop
// no-op arithmetic (x+0, x-0, x*1, x/1, x^1, --x, +x) and collapse IF
// with a constant condition to the taken branch.
//
// Rewrites preserve evaluation semantics exactly: a subtree that folds
// to an error stays unfolded so the error surfaces through the
// evaluator, volatile calls never fold, and identity rewrites apply
// only to operands that already evaluate to a number or an error. A
// bare reference in x+0 stays put because the addition is what coerces
// its text or boolean content.
package optimize

import (
	"iter"
	"strings"

	"github.com/cellgrid/cellgrid/internal/eval"
	"github.com/cellgrid/cellgrid/internal/fn"
	"github.com/cellgrid/cellgrid/internal/parser"
	"github.com/cellgrid/cellgrid/internal/sheet"
	"github.com/cellgrid/cellgrid/internal/value"
)

// constEnv backs constant evaluation. Foldable subtrees contain no
// references, so it is never consulted.
type constEnv struct{}

func (constEnv) ResolveCell(sheet.Coord) value.Value { return nil }

func (constEnv) ResolveRange(sheet.Range) iter.Seq[value.Value] {
	return func(func(value.Value) bool) {}
}

// Fold returns an AST equivalent to node with constant subexpressions
// pre-evaluated and no-op operations removed. The input tree is never
// mutated; leaves may be shared between input and output.
func Fold(node parser.Node, reg *fn.Registry) parser.Node {
	f := folder{ev: eval.New(reg), reg: reg}
	return f.fold(node)
}

type folder struct {
	ev  *eval.Evaluator
	reg *fn.Registry
}

func (f *folder) fold(n parser.Node) parser.Node {
	switch n := n.(type) {
	case *parser.Unary:
		out := &parser.Unary{Op: n.Op, Operand: f.fold(n.Operand)}
		if lit, ok := f.constant(out); ok {
			return lit
		}
		return simplifyUnary(out)
	case *parser.Binary:
		out := &parser.Binary{Op: n.Op, Left: f.fold(n.Left), Right: f.fold(n.Right)}
		if lit, ok := f.constant(out); ok {
			return lit
		}
		return simplifyBinary(out)
	case *parser.Call:
		args := make([]parser.Node, len(n.Args))
		for i, a := range n.Args {
			args[i] = f.fold(a)
		}
		out := &parser.Call{Name: n.Name, Args: args}
		if lit, ok := f.constant(out); ok {
			return lit
		}
		return simplifyIf(out)
	default:
		return n
	}
}

// foldable reports whether n can be evaluated without an environment:
// no references anywhere, and every call resolvable, non-volatile and
// arity-correct.
func (f *folder) foldable(n parser.Node) bool {
	switch n := n.(type) {
	case *parser.NumberLit, *parser.TextLit, *parser.BoolLit, *parser.ErrorLit:
		return true
	case *parser.Unary:
		return f.foldable(n.Operand)
	case *parser.Binary:
		return f.foldable(n.Left) && f.foldable(n.Right)
	case *parser.Call:
		spec, ok := f.reg.Resolve(n.Name)
		if !ok || spec.Volatile || !spec.AcceptsArgCount(len(n.Args)) {
			return false
		}
		for _, a := range n.Args {
			if !f.foldable(a) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (f *folder) constant(n parser.Node) (parser.Node, bool) {
	if !f.foldable(n) {
		return nil, false
	}
	switch v := f.ev.Evaluate(n, constEnv{}).(type) {
	case value.Number:
		return &parser.NumberLit{Val: float64(v)}, true
	case value.Text:
		return &parser.TextLit{Val: string(v)}, true
	case value.Bool:
		return &parser.BoolLit{Val: bool(v)}, true
	default:
		return nil, false
	}
}

func simplifyBinary(n *parser.Binary) parser.Node {
	switch n.Op {
	case parser.OpAdd:
		if isZero(n.Right) && numeric(n.Left) {
			return n.Left
		}
		if isZero(n.Left) && numeric(n.Right) {
			return n.Right
		}
	case parser.OpSub:
		if isZero(n.Right) && numeric(n.Left) {
			return n.Left
		}
	case parser.OpMul:
		if isOne(n.Right) && numeric(n.Left) {
			return n.Left
		}
		if isOne(n.Left) && numeric(n.Right) {
			return n.Right
		}
	case parser.OpDiv:
		if isOne(n.Right) && numeric(n.Left) {
			return n.Left
		}
	case parser.OpPow:
		if isOne(n.Right) && numeric(n.Left) {
			return n.Left
		}
	}
	return n
}

func simplifyUnary(n *parser.Unary) parser.Node {
	if n.Op == parser.OpAdd && numeric(n.Operand) {
		return n.Operand
	}
	if n.Op == parser.OpSub {
		if inner, ok := n.Operand.(*parser.Unary); ok && inner.Op == parser.OpSub && numeric(inner.Operand) {
			return inner.Operand
		}
	}
	return n
}

// simplifyIf collapses IF with a statically known condition to the
// branch the evaluator would take. Branches carrying references keep
// their meaning: the builtin returns the taken branch value untouched.
func simplifyIf(n *parser.Call) parser.Node {
	if !strings.EqualFold(n.Name, "IF") || len(n.Args) < 2 || len(n.Args) > 3 {
		return n
	}
	var cond, known bool
	switch c := n.Args[0].(type) {
	case *parser.BoolLit:
		cond, known = c.Val, true
	case *parser.NumberLit:
		cond, known = c.Val != 0, true
	}
	if !known {
		return n
	}
	if cond {
		return n.Args[1]
	}
	if len(n.Args) == 3 {
		return n.Args[2]
	}
	return &parser.BoolLit{Val: false}
}

// numeric reports whether n always evaluates to a number or an error,
// never to text, a boolean or an empty value. Identity rewrites are
// restricted to such operands; dropping the operation around anything
// else would skip its coercion.
func numeric(n parser.Node) bool {
	switch n := n.(type) {
	case *parser.NumberLit:
		return true
	case *parser.Unary:
		return true
	case *parser.Binary:
		switch n.Op {
		case parser.OpAdd, parser.OpSub, parser.OpMul, parser.OpDiv, parser.OpPow:
			return true
		}
	}
	return false
}

func isZero(n parser.Node) bool {
	lit, ok := n.(*parser.NumberLit)
	return ok && lit.Val == 0
}

func isOne(n parser.Node) bool {
	lit, ok := n.(*parser.NumberLit)
	return ok && lit.Val == 1
}
