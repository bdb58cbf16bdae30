// Package store is the sparse cell store: a coordinate-addressed map
// holding only non-default cells, with constant-time access and an
// incrementally maintained used range.
//
// Cells are partitioned into 64x64 chunks for spatial locality. A chunk
// allocates its cell array lazily on first write; until then its cost is
// the occupancy bitmap. Spreadsheet data clusters, so chunks keep
// neighboring cells adjacent in memory without paying for empty regions.
package store

import (
	"iter"
	"sync"

	"github.com/cellgrid/cellgrid/internal/parser"
	"github.com/cellgrid/cellgrid/internal/sheet"
	"github.com/cellgrid/cellgrid/internal/value"
)

// State tracks where a cell is in the recompute cycle.
type State uint8

const (
	// StateClean means the cached value reflects current inputs.
	StateClean State = iota
	// StateDirty means an input changed and the cell awaits evaluation.
	StateDirty
	// StateEvaluating marks a cell currently being computed.
	StateEvaluating
	// StateError marks a cell whose input failed to parse or whose
	// evaluation produced an error value. Revisited on next input change.
	StateError
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateEvaluating:
		return "evaluating"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Cell is one stored cell. A literal cell has Formula nil; a formula
// cell keeps its parsed AST alongside the settled value. A cell whose
// input failed to parse records the failure in ParseErr. Value nil with
// a non-empty Raw is valid (a formula that has not settled yet).
type Cell struct {
	Raw      string
	Formula  parser.Node
	Value    value.Value
	State    State
	ParseErr *parser.ParseError
}

const (
	chunkRowBits = 6
	chunkColBits = 6
	chunkRows    = 1 << chunkRowBits
	chunkCols    = 1 << chunkColBits
	chunkSize    = chunkRows * chunkCols
	chunkWords   = chunkSize / 64
)

type chunkKey struct {
	row, col int
}

// chunk is a 64x64 block. The bitmap is part of the struct so an empty
// chunk costs no allocation beyond itself; the cell array appears on
// first write.
type chunk struct {
	occupied [chunkWords]uint64
	count    int
	cells    []Cell
}

func (ch *chunk) has(idx int) bool {
	return ch.occupied[idx/64]&(1<<(idx%64)) != 0
}

func (ch *chunk) mark(idx int) {
	ch.occupied[idx/64] |= 1 << (idx % 64)
}

func (ch *chunk) unmark(idx int) {
	ch.occupied[idx/64] &^= 1 << (idx % 64)
}

// Store maps coordinates to cells. Safe for concurrent use: reads take
// a shared lock so settled values can be displayed while a recompute
// pass is preparing writes.
type Store struct {
	mu     sync.RWMutex
	chunks map[chunkKey]*chunk
	count  int

	// Occupied-cell tallies per row and column keep the used range
	// maintainable without scanning the grid.
	rowCounts map[int]int
	colCounts map[int]int
	maxRow    int
	maxCol    int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		chunks:    make(map[chunkKey]*chunk),
		rowCounts: make(map[int]int),
		colCounts: make(map[int]int),
		maxRow:    -1,
		maxCol:    -1,
	}
}

func split(c sheet.Coord) (chunkKey, int) {
	key := chunkKey{row: c.Row >> chunkRowBits, col: c.Col >> chunkColBits}
	idx := (c.Row&(chunkRows-1))<<chunkColBits | (c.Col & (chunkCols - 1))
	return key, idx
}

// Get returns the cell at c. The boolean reports presence; absent cells
// return the zero Cell. Get performs no allocation.
func (s *Store) Get(c sheet.Coord) (Cell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, idx := split(c)
	ch, ok := s.chunks[key]
	if !ok || !ch.has(idx) {
		return Cell{}, false
	}
	return ch.cells[idx], true
}

// Set inserts or replaces the cell at c.
func (s *Store) Set(c sheet.Coord, cell Cell) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, idx := split(c)
	ch, ok := s.chunks[key]
	if !ok {
		ch = &chunk{}
		s.chunks[key] = ch
	}
	if ch.cells == nil {
		ch.cells = make([]Cell, chunkSize)
	}
	if !ch.has(idx) {
		ch.mark(idx)
		ch.count++
		s.count++
		s.trackInsert(c)
	}
	ch.cells[idx] = cell
}

// Remove drops the cell at c, reporting whether it was present. A
// chunk whose last cell goes away is released so cleared regions give
// their memory back.
func (s *Store) Remove(c sheet.Coord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, idx := split(c)
	ch, ok := s.chunks[key]
	if !ok || !ch.has(idx) {
		return false
	}
	ch.cells[idx] = Cell{}
	ch.unmark(idx)
	ch.count--
	s.count--
	if ch.count == 0 {
		delete(s.chunks, key)
	}
	s.trackRemove(c)
	return true
}

// Len returns the number of stored cells.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// UsedRange returns the bounding rectangle from A1 through the maximum
// occupied row and column. The boolean is false when the store is
// empty.
func (s *Store) UsedRange() (sheet.Range, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.count == 0 {
		return sheet.Range{}, false
	}
	return sheet.NewRange(sheet.Coord{}, sheet.Coord{Row: s.maxRow, Col: s.maxCol}), true
}

// All iterates every stored cell. Order is unspecified; callers needing
// determinism sort the coordinates themselves.
func (s *Store) All() iter.Seq2[sheet.Coord, Cell] {
	return func(yield func(sheet.Coord, Cell) bool) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for key, ch := range s.chunks {
			for idx := 0; idx < chunkSize; idx++ {
				if !ch.has(idx) {
					continue
				}
				c := sheet.Coord{
					Row: key.row<<chunkRowBits | idx>>chunkColBits,
					Col: key.col<<chunkColBits | idx&(chunkCols-1),
				}
				if !yield(c, ch.cells[idx]) {
					return
				}
			}
		}
	}
}

func (s *Store) trackInsert(c sheet.Coord) {
	s.rowCounts[c.Row]++
	s.colCounts[c.Col]++
	if c.Row > s.maxRow {
		s.maxRow = c.Row
	}
	if c.Col > s.maxCol {
		s.maxCol = c.Col
	}
}

// trackRemove keeps the maxima exact. When the last cell of the extreme
// row or column goes away the new maximum is recomputed over the
// occupied tallies, bounded by the number of distinct occupied rows or
// columns, never by grid size.
func (s *Store) trackRemove(c sheet.Coord) {
	s.rowCounts[c.Row]--
	if s.rowCounts[c.Row] == 0 {
		delete(s.rowCounts, c.Row)
		if c.Row == s.maxRow {
			s.maxRow = maxKey(s.rowCounts)
		}
	}
	s.colCounts[c.Col]--
	if s.colCounts[c.Col] == 0 {
		delete(s.colCounts, c.Col)
		if c.Col == s.maxCol {
			s.maxCol = maxKey(s.colCounts)
		}
	}
}

func maxKey(m map[int]int) int {
	best := -1
	for k := range m {
		if k > best {
			best = k
		}
	}
	return best
}
