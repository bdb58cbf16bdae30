package engine

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/cellgrid/cellgrid/internal/eval"
	"github.com/cellgrid/cellgrid/internal/fn"
	"github.com/cellgrid/cellgrid/internal/graph"
	"github.com/cellgrid/cellgrid/internal/optimize"
	"github.com/cellgrid/cellgrid/internal/parser"
	"github.com/cellgrid/cellgrid/internal/sheet"
	"github.com/cellgrid/cellgrid/internal/store"
	"github.com/cellgrid/cellgrid/internal/value"
)

// CalcMode selects when recompute passes run.
type CalcMode int

const (
	// Automatic runs a recompute pass after every mutation.
	Automatic CalcMode = iota

	// Manual defers recomputation: mutations mark cells dirty and
	// Recalculate runs the deferred pass.
	Manual
)

func (m CalcMode) String() string {
	switch m {
	case Automatic:
		return "automatic"
	case Manual:
		return "manual"
	default:
		return "unknown"
	}
}

// Config carries the collaborators and limits an Engine is constructed
// with. The zero value works: builtin functions on the system clock,
// the full grid, serial evaluation, automatic mode.
type Config struct {
	// Registry resolves function calls. Nil means fn.Builtins on the
	// system clock and RNG.
	Registry *fn.Registry

	// MaxRows and MaxCols bound the addressable area for mutations.
	// Values outside 1..sheet.MaxRows (resp. MaxCols) fall back to the
	// sheet limits. Formula references beyond the sheet limits still
	// evaluate to #REF! regardless of these bounds.
	MaxRows int
	MaxCols int

	// Workers sizes the per-layer evaluation pool. Below 2 evaluates
	// serially.
	Workers int

	// Mode is the initial calculation mode.
	Mode CalcMode
}

// Option configures an Engine beyond its Config.
type Option func(*Engine)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock sets the pass clock, so a resumed workbook continues its
// saved pass numbering.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// Engine is the single-writer formula engine for one workbook.
//
// Thread-safety model:
//   - Mutations (SetCellFormula, SetCellValue, Input, Clear,
//     Recalculate, RecalculateAll, SetMode) serialize on the writer
//     mutex; each runs its pass to completion before the next starts.
//   - Reads (Value, FormulaText, UsedRange, Cell, Cells, Evaluate) go
//     to the store under its own read lock and may run concurrently
//     with a pass; each cell is observed settled, pre- or post-pass.
type Engine struct {
	mu sync.Mutex

	cells *store.Store
	deps  *graph.Graph
	reg   *fn.Registry
	ev    *eval.Evaluator
	clock *Clock
	log   *slog.Logger

	maxRows int
	maxCols int
	workers int
	mode    CalcMode

	// dirty maps each cell mutated since the last pass to its value
	// before the first mutation, seeding change reports.
	dirty map[sheet.Coord]value.Value

	// volatile holds cells whose formulas call a volatile function;
	// they join every pass.
	volatile map[sheet.Coord]struct{}

	subs      map[SubscriptionID]func([]Change)
	lastStats PassStats
}

// New creates an Engine from cfg, applying opts.
func New(cfg Config, opts ...Option) *Engine {
	reg := cfg.Registry
	if reg == nil {
		reg = fn.Builtins(fn.SystemClock{}, fn.SystemRNG{})
	}
	e := &Engine{
		cells:    store.New(),
		deps:     graph.New(),
		reg:      reg,
		ev:       eval.New(reg),
		clock:    NewClock(),
		log:      slog.Default(),
		maxRows:  gridLimit(cfg.MaxRows, sheet.MaxRows),
		maxCols:  gridLimit(cfg.MaxCols, sheet.MaxCols),
		workers:  max(cfg.Workers, 1),
		mode:     cfg.Mode,
		dirty:    make(map[sheet.Coord]value.Value),
		volatile: make(map[sheet.Coord]struct{}),
		subs:     make(map[SubscriptionID]func([]Change)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func gridLimit(v, limit int) int {
	if v < 1 || v > limit {
		return limit
	}
	return v
}

func (e *Engine) inGrid(c sheet.Coord) bool {
	return c.Row >= 0 && c.Row < e.maxRows && c.Col >= 0 && c.Col < e.maxCols
}

// SetCellFormula stores a formula cell and recomputes its dependents.
//
// The text may carry a leading "=", which is stripped before parsing;
// the raw input (normalized to the "=" form) is preserved for
// FormulaText and persistence. A parse failure still stores the cell:
// it keeps the raw text, settles to #ERROR! and has no precedents.
func (e *Engine) SetCellFormula(c sheet.Coord, text string) error {
	if !e.inGrid(c) {
		return newOutOfGridError(c, e.maxRows, e.maxCols)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	body, found := strings.CutPrefix(text, "=")
	raw := text
	if !found {
		raw = "=" + text
	}

	prev, _ := e.cells.Get(c)
	e.trackDirty(c, prev.Value)

	node, err := parser.Parse(body)
	if err != nil {
		var perr *parser.ParseError
		errors.As(err, &perr)
		e.log.Warn("formula parse failed", "cell", c.A1(), "err", err)
		e.deps.SetEdges(c, nil, nil)
		delete(e.volatile, c)
		e.cells.Set(c, store.Cell{
			Raw:      raw,
			Value:    value.NewError(value.TagError),
			State:    store.StateError,
			ParseErr: perr,
		})
		e.afterMutation(c)
		return nil
	}

	cells, ranges := parser.Precedents(node)
	e.deps.SetEdges(c, boundedCells(cells), boundedRanges(ranges))
	if eval.Volatile(node, e.reg) {
		e.volatile[c] = struct{}{}
	} else {
		delete(e.volatile, c)
	}

	e.cells.Set(c, store.Cell{
		Raw:     raw,
		Formula: optimize.Fold(node, e.reg),
		Value:   prev.Value,
		State:   store.StateDirty,
	})
	e.log.Debug("formula set", "cell", c.A1(), "raw", raw)
	e.afterMutation(c)
	return nil
}

// SetCellValue stores a literal value, clearing any formula the cell
// held. A nil value clears the cell.
func (e *Engine) SetCellValue(c sheet.Coord, v value.Value) error {
	if v == nil {
		return e.Clear(c)
	}
	if !e.inGrid(c) {
		return newOutOfGridError(c, e.maxRows, e.maxCols)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setLiteral(c, rawForValue(v), v)
	return nil
}

// Input routes a raw cell entry: "=" prefix means formula, empty
// string clears, anything else is typed as a literal (number,
// TRUE/FALSE, error constant, text; a leading apostrophe forces text).
// The raw string is preserved exactly for FormulaText and persistence.
func (e *Engine) Input(c sheet.Coord, raw string) error {
	if strings.HasPrefix(raw, "=") {
		return e.SetCellFormula(c, raw)
	}
	if raw == "" {
		return e.Clear(c)
	}
	if !e.inGrid(c) {
		return newOutOfGridError(c, e.maxRows, e.maxCols)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setLiteral(c, raw, value.ParseLiteral(raw))
	return nil
}

// setLiteral is the shared literal write path. Caller holds e.mu and
// has bounds-checked c.
func (e *Engine) setLiteral(c sheet.Coord, raw string, v value.Value) {
	prev, _ := e.cells.Get(c)
	e.trackDirty(c, prev.Value)
	e.deps.RemoveCell(c)
	delete(e.volatile, c)
	e.cells.Set(c, store.Cell{Raw: raw, Value: v, State: store.StateClean})
	e.log.Debug("value set", "cell", c.A1(), "raw", raw)
	e.afterMutation(c)
}

// Clear removes the cell's value and formula, drops its store entry
// and graph node, and recomputes dependents. Clearing an absent cell
// is a no-op.
func (e *Engine) Clear(c sheet.Coord) error {
	if !e.inGrid(c) {
		return newOutOfGridError(c, e.maxRows, e.maxCols)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	prev, ok := e.cells.Get(c)
	if !ok {
		return nil
	}
	e.trackDirty(c, prev.Value)
	e.cells.Remove(c)
	e.deps.RemoveCell(c)
	delete(e.volatile, c)
	e.log.Debug("cell cleared", "cell", c.A1())
	e.afterMutation(c)
	return nil
}

// trackDirty records the pre-mutation value the first time a cell is
// touched since the last pass, so cumulative change reports compare
// against what subscribers last saw.
func (e *Engine) trackDirty(c sheet.Coord, prev value.Value) {
	if _, tracked := e.dirty[c]; !tracked {
		e.dirty[c] = prev
	}
}

// afterMutation runs the automatic pass, or in manual mode marks the
// affected formula cells dirty for the next Recalculate.
func (e *Engine) afterMutation(c sheet.Coord) {
	if e.mode == Automatic {
		e.runPass(false)
		return
	}
	for _, a := range e.deps.AffectedSet(c) {
		if cell, ok := e.cells.Get(a); ok && cell.Formula != nil {
			cell.State = store.StateDirty
			e.cells.Set(a, cell)
		}
	}
}

// Recalculate runs the deferred pass over the cells mutated since the
// last pass, plus every volatile cell. In automatic mode the dirty set
// is empty, so this refreshes volatile cells.
func (e *Engine) Recalculate() PassStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runPass(false)
}

// RecalculateAll forces every stored formula cell through a pass.
func (e *Engine) RecalculateAll() PassStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runPass(true)
}

// LastPassStats returns the stats of the most recent pass.
func (e *Engine) LastPassStats() PassStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastStats
}

// Mode returns the current calculation mode.
func (e *Engine) Mode() CalcMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// SetMode switches the calculation mode. Switching to Automatic does
// not run a pass by itself; pending dirty cells settle on the next
// mutation or Recalculate.
func (e *Engine) SetMode(m CalcMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = m
}

// Value returns the settled (or error) value at c, nil when the cell
// is empty. It never triggers recomputation.
func (e *Engine) Value(c sheet.Coord) value.Value {
	cell, ok := e.cells.Get(c)
	if !ok {
		return nil
	}
	return cell.Value
}

// FormulaText returns the raw input if the cell holds a formula,
// including one that failed to parse.
func (e *Engine) FormulaText(c sheet.Coord) (string, bool) {
	cell, ok := e.cells.Get(c)
	if !ok || (cell.Formula == nil && cell.ParseErr == nil) {
		return "", false
	}
	return cell.Raw, true
}

// UsedRange returns the bounding rectangle from A1 through the maximum
// occupied row and column; false when the workbook is empty.
func (e *Engine) UsedRange() (sheet.Range, bool) {
	return e.cells.UsedRange()
}

// CellCount returns the number of stored cells.
func (e *Engine) CellCount() int {
	return e.cells.Len()
}

// CellView is a read-only snapshot of one stored cell.
type CellView struct {
	Coord   sheet.Coord
	Raw     string
	Value   value.Value
	Formula bool
}

// Cell returns the stored view of a single cell; false when the cell
// has never been set or was cleared.
func (e *Engine) Cell(c sheet.Coord) (CellView, bool) {
	cell, ok := e.cells.Get(c)
	if !ok {
		return CellView{}, false
	}
	return CellView{
		Coord:   c,
		Raw:     cell.Raw,
		Value:   cell.Value,
		Formula: cell.Formula != nil || cell.ParseErr != nil,
	}, true
}

// Cells snapshots every stored cell in (row, col) order.
func (e *Engine) Cells() []CellView {
	out := make([]CellView, 0, e.cells.Len())
	for c, cell := range e.cells.All() {
		out = append(out, CellView{
			Coord:   c,
			Raw:     cell.Raw,
			Value:   cell.Value,
			Formula: cell.Formula != nil || cell.ParseErr != nil,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Coord.Less(out[j].Coord) })
	return out
}

// Evaluate parses and evaluates a formula against the current cells
// without storing anything. A leading "=" is accepted. Parse failures
// come back as the Go error; evaluation failures are error values.
func (e *Engine) Evaluate(text string) (value.Value, error) {
	body, _ := strings.CutPrefix(text, "=")
	node, err := parser.Parse(body)
	if err != nil {
		return nil, err
	}
	return e.ev.Evaluate(optimize.Fold(node, e.reg), storeEnv{cells: e.cells}), nil
}

// rawForValue renders a literal value as the input string that parses
// back to it: text that would type as something else gets the
// apostrophe prefix.
func rawForValue(v value.Value) string {
	t, ok := v.(value.Text)
	if !ok {
		return v.Display()
	}
	s := string(t)
	if _, isText := value.ParseLiteral(s).(value.Text); !isText || strings.HasPrefix(s, "'") {
		return "'" + s
	}
	return s
}

// boundedCells drops references outside the sheet limits: such
// references evaluate to #REF! regardless of grid content, so they
// carry no data dependency.
func boundedCells(cells []sheet.Coord) []sheet.Coord {
	out := cells[:0:0]
	for _, c := range cells {
		if c.InBounds() {
			out = append(out, c)
		}
	}
	return out
}

func boundedRanges(ranges []sheet.Range) []sheet.Range {
	out := ranges[:0:0]
	for _, r := range ranges {
		if r.Start.InBounds() && r.End.InBounds() {
			out = append(out, r)
		}
	}
	return out
}
