package persist

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellgrid/cellgrid/internal/engine"
	"github.com/cellgrid/cellgrid/internal/fn"
	"github.com/cellgrid/cellgrid/internal/sheet"
	"github.com/cellgrid/cellgrid/internal/testutil"
	"github.com/cellgrid/cellgrid/internal/value"
)

func testEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	clock := testutil.NewFixedClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	reg := fn.Builtins(clock, testutil.NewSeqRNG(0.25))
	return engine.New(engine.Config{Registry: reg}, opts...)
}

func coord(t *testing.T, label string) sheet.Coord {
	t.Helper()
	c, err := sheet.ParseA1(label)
	require.NoError(t, err)
	return c
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "wb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := testEngine(t)
	require.NoError(t, src.Input(coord(t, "A1"), "5"))
	require.NoError(t, src.Input(coord(t, "B1"), "=A1*2"))
	require.NoError(t, src.Input(coord(t, "C1"), "hello"))
	require.NoError(t, src.SetCellValue(coord(t, "D1"), value.NewText("123")))
	require.NoError(t, src.Input(coord(t, "E1"), "=SUM(A1:B1)"))
	require.NoError(t, src.Input(coord(t, "F1"), "=SUM("))

	s := openStore(t)
	require.NoError(t, s.Save(ctx, src))

	dst := testEngine(t)
	require.NoError(t, s.Load(ctx, dst))

	want := src.Cells()
	got := dst.Cells()
	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.Equal(t, want[i].Coord, got[i].Coord)
		assert.Equal(t, want[i].Raw, got[i].Raw, "cell %s", want[i].Coord.A1())
		assert.True(t, value.Equal(want[i].Value, got[i].Value),
			"cell %s: want %v, got %v", want[i].Coord.A1(), want[i].Value, got[i].Value)
	}

	// Derived state was rebuilt, not copied: edits ripple.
	require.NoError(t, dst.Input(coord(t, "A1"), "10"))
	assert.Equal(t, value.Number(20), dst.Value(coord(t, "B1")))
	assert.Equal(t, value.Number(30), dst.Value(coord(t, "E1")))
}

func TestSaveLoad_CycleSurvives(t *testing.T) {
	ctx := context.Background()
	src := testEngine(t)
	require.NoError(t, src.Input(coord(t, "A1"), "=B1+1"))
	require.NoError(t, src.Input(coord(t, "B1"), "=A1+1"))

	s := openStore(t)
	require.NoError(t, s.Save(ctx, src))

	dst := testEngine(t)
	require.NoError(t, s.Load(ctx, dst))

	for _, label := range []string{"A1", "B1"} {
		tag, ok := value.IsError(dst.Value(coord(t, label)))
		require.True(t, ok, "cell %s", label)
		assert.Equal(t, value.TagCircular, tag, "cell %s", label)
	}
}

func TestSave_ReplacesPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t)
	require.NoError(t, e.Input(coord(t, "A1"), "1"))
	require.NoError(t, e.Input(coord(t, "B2"), "2"))
	require.NoError(t, e.Input(coord(t, "C3"), "3"))

	s := openStore(t)
	require.NoError(t, s.Save(ctx, e))

	require.NoError(t, e.Clear(coord(t, "B2")))
	require.NoError(t, s.Save(ctx, e))

	cells, err := s.Cells(ctx)
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, "A1", cells[0].Coord.A1())
	assert.Equal(t, "C3", cells[1].Coord.A1())
}

func TestWriteCell_Upserts(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	b2 := coord(t, "B2")
	require.NoError(t, s.WriteCell(ctx, b2, "1"))
	require.NoError(t, s.WriteCell(ctx, b2, "=A1+1"))
	require.NoError(t, s.WriteCell(ctx, coord(t, "A1"), "7"))

	cells, err := s.Cells(ctx)
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, CellRecord{Coord: coord(t, "A1"), Raw: "7"}, cells[0])
	assert.Equal(t, CellRecord{Coord: b2, Raw: "=A1+1"}, cells[1])
}

func TestDeleteCell(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.WriteCell(ctx, coord(t, "A1"), "1"))
	require.NoError(t, s.DeleteCell(ctx, coord(t, "A1")))
	require.NoError(t, s.DeleteCell(ctx, coord(t, "Z9")))

	cells, err := s.Cells(ctx)
	require.NoError(t, err)
	assert.Empty(t, cells)
}

func TestCellsInRange(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	for _, label := range []string{"A1", "B2", "C3", "D4"} {
		require.NoError(t, s.WriteCell(ctx, coord(t, label), label))
	}

	r, err := sheet.ParseRangeA1("B1:C4")
	require.NoError(t, err)
	cells, err := s.CellsInRange(ctx, r)
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, "B2", cells[0].Raw)
	assert.Equal(t, "C3", cells[1].Raw)
}

func TestPassSeq_ContinuesAcrossReload(t *testing.T) {
	ctx := context.Background()
	src := testEngine(t)
	require.NoError(t, src.Input(coord(t, "A1"), "1"))
	require.NoError(t, src.Input(coord(t, "A1"), "2"))
	require.Equal(t, int64(2), src.LastPassStats().Seq)

	s := openStore(t)
	require.NoError(t, s.Save(ctx, src))

	seq, err := s.PassSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)

	dst := testEngine(t, engine.WithClock(engine.NewClockAt(seq)))
	require.NoError(t, s.Load(ctx, dst))
	// The replay pass continues the saved numbering.
	assert.Equal(t, int64(3), dst.LastPassStats().Seq)
}

func TestPassSeq_FreshDatabase(t *testing.T) {
	s := openStore(t)
	seq, err := s.PassSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)
}

func TestLoad_RestoresCalcMode(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.WriteCell(ctx, coord(t, "A1"), "1"))

	e := testEngine(t)
	require.NoError(t, s.Load(ctx, e))
	assert.Equal(t, engine.Automatic, e.Mode())
	assert.Equal(t, value.Number(1), e.Value(coord(t, "A1")))
}
