package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellgrid/cellgrid/internal/sheet"
	"github.com/cellgrid/cellgrid/internal/value"
)

func mustParse(t *testing.T, body string) Node {
	t.Helper()
	n, err := Parse(body)
	require.NoError(t, err)
	return n
}

func TestParseLiterals(t *testing.T) {
	assert.Equal(t, &NumberLit{Val: 42}, mustParse(t, "42"))
	assert.Equal(t, &NumberLit{Val: 2.5}, mustParse(t, "2.5"))
	assert.Equal(t, &NumberLit{Val: 300}, mustParse(t, "3e2"))
	assert.Equal(t, &TextLit{Val: "hello"}, mustParse(t, `"hello"`))
	assert.Equal(t, &TextLit{Val: `say "hi"`}, mustParse(t, `"say ""hi"""`))
	assert.Equal(t, &BoolLit{Val: true}, mustParse(t, "TRUE"))
	assert.Equal(t, &BoolLit{Val: false}, mustParse(t, "false"))
	assert.Equal(t, &ErrorLit{Tag: value.TagDiv0}, mustParse(t, "#DIV/0!"))
	assert.Equal(t, &ErrorLit{Tag: value.TagName}, mustParse(t, "#NAME?"))
}

func TestParseReferences(t *testing.T) {
	assert.Equal(t, &CellRef{Coord: sheet.Coord{Row: 0, Col: 0}}, mustParse(t, "A1"))
	assert.Equal(t, &CellRef{Coord: sheet.Coord{Row: 9, Col: 27}}, mustParse(t, "ab10"))

	want := &RangeRef{Range: sheet.NewRange(sheet.Coord{Row: 0, Col: 1}, sheet.Coord{Row: 2, Col: 1})}
	assert.Equal(t, want, mustParse(t, "B1:B3"))
	// Reversed corners normalize to the same rectangle.
	assert.Equal(t, want, mustParse(t, "B3:B1"))
}

func TestParseOutOfBoundsReference(t *testing.T) {
	// Structurally valid but outside the grid; kept for evaluation to
	// turn into #REF!.
	n := mustParse(t, "XFE1")
	ref, ok := n.(*CellRef)
	require.True(t, ok)
	assert.False(t, ref.Coord.InBounds())

	n = mustParse(t, "A1048577")
	ref, ok = n.(*CellRef)
	require.True(t, ok)
	assert.False(t, ref.Coord.InBounds())
}

func TestParsePrecedence(t *testing.T) {
	// 1+2*3 groups as 1+(2*3).
	n := mustParse(t, "1+2*3")
	bin, ok := n.(*Binary)
	require.True(t, ok)
	assert.Equal(t, OpAdd, bin.Op)
	assert.Equal(t, &NumberLit{Val: 1}, bin.Left)
	right, ok := bin.Right.(*Binary)
	require.True(t, ok)
	assert.Equal(t, OpMul, right.Op)

	// Comparison binds loosest: A1+1>B1 is (A1+1)>B1.
	n = mustParse(t, "A1+1>B1")
	bin, ok = n.(*Binary)
	require.True(t, ok)
	assert.Equal(t, OpGt, bin.Op)

	// Concatenation sits between comparison and additive:
	// "a"&1+2 is "a"&(1+2).
	n = mustParse(t, `"a"&1+2`)
	bin, ok = n.(*Binary)
	require.True(t, ok)
	assert.Equal(t, OpConcat, bin.Op)

	// Parentheses override: (1+2)*3.
	n = mustParse(t, "(1+2)*3")
	bin, ok = n.(*Binary)
	require.True(t, ok)
	assert.Equal(t, OpMul, bin.Op)
}

func TestParseExponentRightAssociative(t *testing.T) {
	n := mustParse(t, "2^3^2")
	bin, ok := n.(*Binary)
	require.True(t, ok)
	assert.Equal(t, OpPow, bin.Op)
	assert.Equal(t, &NumberLit{Val: 2}, bin.Left)
	right, ok := bin.Right.(*Binary)
	require.True(t, ok)
	assert.Equal(t, OpPow, right.Op)
}

func TestParseUnaryBindsTighterThanExponent(t *testing.T) {
	// -2^2 groups as (-2)^2.
	n := mustParse(t, "-2^2")
	bin, ok := n.(*Binary)
	require.True(t, ok)
	assert.Equal(t, OpPow, bin.Op)
	_, ok = bin.Left.(*Unary)
	assert.True(t, ok)

	// 2^-3 parses with the unary on the right.
	n = mustParse(t, "2^-3")
	bin, ok = n.(*Binary)
	require.True(t, ok)
	_, ok = bin.Right.(*Unary)
	assert.True(t, ok)
}

func TestParseCalls(t *testing.T) {
	n := mustParse(t, "SUM(A1,B2:B4,3)")
	call, ok := n.(*Call)
	require.True(t, ok)
	assert.Equal(t, "SUM", call.Name)
	require.Len(t, call.Args, 3)
	assert.IsType(t, &CellRef{}, call.Args[0])
	assert.IsType(t, &RangeRef{}, call.Args[1])
	assert.IsType(t, &NumberLit{}, call.Args[2])

	n = mustParse(t, "PI()")
	call, ok = n.(*Call)
	require.True(t, ok)
	assert.Equal(t, "PI", call.Name)
	assert.Empty(t, call.Args)

	// Nested calls.
	n = mustParse(t, "IF(A1>0,SUM(B1:B3),0)")
	call, ok = n.(*Call)
	require.True(t, ok)
	assert.Len(t, call.Args, 3)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		body string
	}{
		{""},
		{"1+"},
		{"(1+2"},
		{"SUM(1,2"},
		{"SUM(1 2)"},
		{"1+2)"},
		{"@"},
		{`"unterminated`},
		{"A1:"},
		{"A1:5"},
		{"bogus"},
		{"#WAT!"},
		{"1 2"},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			_, err := Parse(tt.body)
			require.Error(t, err)
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "want *ParseError, got %T", err)
			assert.GreaterOrEqual(t, pe.Pos, 0)
			assert.NotEmpty(t, pe.Message)
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("1+2)")
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Pos)
}

func TestPrecedents(t *testing.T) {
	n := mustParse(t, "A1+SUM(B1:B3)*C2")
	cells, ranges := Precedents(n)
	assert.Equal(t, []sheet.Coord{{Row: 0, Col: 0}, {Row: 1, Col: 2}}, cells)
	require.Len(t, ranges, 1)
	assert.Equal(t, "B1:B3", ranges[0].A1())
}

func TestWalkEarlyStop(t *testing.T) {
	n := mustParse(t, "1+2+3")
	count := 0
	Walk(n, func(Node) bool {
		count++
		return count < 2
	})
	assert.Equal(t, 2, count)
}
