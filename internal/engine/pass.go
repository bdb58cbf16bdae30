package engine

import (
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/cellgrid/cellgrid/internal/parser"
	"github.com/cellgrid/cellgrid/internal/sheet"
	"github.com/cellgrid/cellgrid/internal/store"
	"github.com/cellgrid/cellgrid/internal/value"
)

// PassStats summarizes one recompute pass.
type PassStats struct {
	// Seq is the pass sequence number.
	Seq int64

	// CellsEvaluated counts formulas actually evaluated; cells skipped
	// because no precedent changed are not included.
	CellsEvaluated int

	// Errors counts cells that settled to an error value, cycle
	// members included.
	Errors int

	// CycleCells counts cells marked #CIRCULAR! this pass.
	CycleCells int

	// Changed counts cells whose observable value changed.
	Changed int

	Elapsed  time.Duration
	Parallel bool
}

// storeEnv resolves references against the cell store. Evaluation
// workers share one instance; the store's read lock makes concurrent
// lookups safe.
type storeEnv struct {
	cells *store.Store
}

func (s storeEnv) ResolveCell(c sheet.Coord) value.Value {
	cell, ok := s.cells.Get(c)
	if !ok {
		return nil
	}
	return cell.Value
}

func (s storeEnv) ResolveRange(r sheet.Range) iter.Seq[value.Value] {
	return func(yield func(value.Value) bool) {
		for c := range r.Cells() {
			if !yield(s.ResolveCell(c)) {
				return
			}
		}
	}
}

// task is one planned evaluation: the cell and its formula, captured
// so workers never touch store entries directly.
type task struct {
	coord sheet.Coord
	node  parser.Node
}

// runPass recomputes everything affected by the mutations since the
// last pass. Caller holds e.mu. forceAll additionally roots every
// stored formula cell.
//
// The pass consumes the dirty set: each entry's recorded pre-mutation
// value becomes the Old side of that cell's change report.
func (e *Engine) runPass(forceAll bool) PassStats {
	seeds := e.dirty
	e.dirty = make(map[sheet.Coord]value.Value)

	rootSet := make(map[sheet.Coord]struct{}, len(seeds)+len(e.volatile))
	for c := range seeds {
		rootSet[c] = struct{}{}
	}
	for c := range e.volatile {
		rootSet[c] = struct{}{}
	}
	if forceAll {
		for c, cell := range e.cells.All() {
			if cell.Formula != nil {
				rootSet[c] = struct{}{}
			}
		}
	}
	if len(rootSet) == 0 {
		return PassStats{}
	}

	roots := make([]sheet.Coord, 0, len(rootSet))
	for c := range rootSet {
		roots = append(roots, c)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Less(roots[j]) })

	start := time.Now()
	stats := PassStats{Seq: e.clock.Next(), Parallel: e.workers > 1}
	changed := make(map[sheet.Coord]bool)
	var batch []Change

	oldFor := func(c sheet.Coord, stored value.Value) value.Value {
		if old, tracked := seeds[c]; tracked {
			return old
		}
		return stored
	}
	report := func(c sheet.Coord, old, cur value.Value) {
		if value.Equal(old, cur) {
			return
		}
		changed[c] = true
		batch = append(batch, Change{Coord: c, Old: old, New: cur})
	}

	// Cycle members settle to #CIRCULAR! and sit out the layered
	// evaluation below.
	cycle := e.deps.CyclesFrom(roots...)
	inCycle := make(map[sheet.Coord]bool, len(cycle))
	circular := value.NewError(value.TagCircular)
	for _, c := range cycle {
		inCycle[c] = true
		cell, ok := e.cells.Get(c)
		if !ok {
			continue
		}
		old := oldFor(c, cell.Value)
		cell.Value = circular
		cell.State = store.StateError
		e.cells.Set(c, cell)
		stats.CycleCells++
		stats.Errors++
		report(c, old, circular)
	}

	// Non-formula seeds (literals, cleared cells, unparsable inputs)
	// already hold their settled value; report them directly.
	for c, old := range seeds {
		if inCycle[c] {
			continue
		}
		cell, ok := e.cells.Get(c)
		if ok && cell.Formula != nil {
			continue
		}
		var cur value.Value
		if ok {
			cur = cell.Value
		}
		report(c, old, cur)
	}

	layers := e.deps.Layers(roots...)
	e.markDirty(layers)

	env := storeEnv{cells: e.cells}
	for _, layer := range layers {
		todo := e.planLayer(layer, rootSet, changed)
		if len(todo) == 0 {
			continue
		}
		results := e.evalLayer(todo, env)
		for i, t := range todo {
			cell, ok := e.cells.Get(t.coord)
			if !ok {
				continue
			}
			old := oldFor(t.coord, cell.Value)
			res := results[i]
			cell.Value = res
			cell.State = store.StateClean
			if _, isErr := value.IsError(res); isErr {
				cell.State = store.StateError
				stats.Errors++
			}
			e.cells.Set(t.coord, cell)
			stats.CellsEvaluated++
			report(t.coord, old, res)
		}
	}

	sort.Slice(batch, func(i, j int) bool { return batch[i].Coord.Less(batch[j].Coord) })
	stats.Changed = len(batch)
	stats.Elapsed = time.Since(start)
	e.lastStats = stats

	e.log.Debug("recompute pass",
		"seq", stats.Seq,
		"roots", len(roots),
		"layers", len(layers),
		"evaluated", stats.CellsEvaluated,
		"cycle_cells", stats.CycleCells,
		"errors", stats.Errors,
		"changed", stats.Changed,
		"elapsed", stats.Elapsed,
	)
	e.dispatch(batch)
	return stats
}

// markDirty transitions every affected formula cell to dirty before
// evaluation starts, so readers observing mid-pass state see pending
// cells flagged rather than stale-but-clean.
func (e *Engine) markDirty(layers [][]sheet.Coord) {
	for _, layer := range layers {
		for _, c := range layer {
			if cell, ok := e.cells.Get(c); ok && cell.Formula != nil {
				cell.State = store.StateDirty
				e.cells.Set(c, cell)
			}
		}
	}
}

// planLayer selects the layer's cells that actually need evaluation:
// roots always, others only when some precedent changed this pass.
// Skipped cells return to clean; planned cells move to evaluating.
func (e *Engine) planLayer(layer []sheet.Coord, rootSet map[sheet.Coord]struct{}, changed map[sheet.Coord]bool) []task {
	var todo []task
	for _, c := range layer {
		cell, ok := e.cells.Get(c)
		if !ok || cell.Formula == nil {
			continue
		}
		_, forced := rootSet[c]
		if !forced && !e.precedentChanged(c, changed) {
			cell.State = store.StateClean
			e.cells.Set(c, cell)
			continue
		}
		cell.State = store.StateEvaluating
		e.cells.Set(c, cell)
		todo = append(todo, task{coord: c, node: cell.Formula})
	}
	return todo
}

func (e *Engine) precedentChanged(c sheet.Coord, changed map[sheet.Coord]bool) bool {
	for _, p := range e.deps.Precedents(c) {
		if changed[p] {
			return true
		}
	}
	return false
}

// evalLayer evaluates one layer's tasks, fanning out across the worker
// pool when it pays. Workers only read the store through env; results
// land by index so the write-back order is the plan order.
func (e *Engine) evalLayer(todo []task, env storeEnv) []value.Value {
	results := make([]value.Value, len(todo))
	workers := min(e.workers, len(todo))
	if workers < 2 {
		for i, t := range todo {
			results[i] = e.ev.Evaluate(t.node, env)
		}
		return results
	}

	idx := make(chan int, len(todo))
	for i := range todo {
		idx <- i
	}
	close(idx)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				results[i] = e.ev.Evaluate(todo[i].node, env)
			}
		}()
	}
	wg.Wait()
	return results
}
