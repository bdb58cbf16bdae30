// Package graph maintains the dependency graph between cells: which
// cells a formula reads (precedents) and the reverse edges (dependents)
// used to schedule recomputation.
//
// The graph only does bookkeeping and ordering. It never evaluates and
// never touches cell storage, so a cyclic edge set is representable;
// cycles are detected and reported, not rejected.
package graph

import (
	"container/heap"
	"sort"

	"github.com/cellgrid/cellgrid/internal/sheet"
)

type node struct {
	dependsOn  map[sheet.Coord]struct{}
	dependents map[sheet.Coord]struct{}
	watches    []sheet.Range
}

func (n *node) unused() bool {
	return len(n.dependsOn) == 0 && len(n.dependents) == 0
}

// Graph holds dependency edges between cell coordinates. Not safe for
// concurrent use; the engine serializes all graph mutation.
type Graph struct {
	nodes map[sheet.Coord]*node
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[sheet.Coord]*node)}
}

func (g *Graph) get(c sheet.Coord) *node {
	n, ok := g.nodes[c]
	if !ok {
		n = &node{
			dependsOn:  make(map[sheet.Coord]struct{}),
			dependents: make(map[sheet.Coord]struct{}),
		}
		g.nodes[c] = n
	}
	return n
}

// release drops a node once nothing references it.
func (g *Graph) release(c sheet.Coord) {
	if n, ok := g.nodes[c]; ok && n.unused() {
		delete(g.nodes, c)
	}
}

// SetEdges atomically replaces every outgoing edge of cell with the
// given precedents. Ranges are expanded to their constituent
// coordinates for edge bookkeeping; the rectangles themselves are
// remembered on the node so callers can ask what a cell watches.
func (g *Graph) SetEdges(cell sheet.Coord, cells []sheet.Coord, ranges []sheet.Range) {
	precedents := make(map[sheet.Coord]struct{}, len(cells))
	for _, c := range cells {
		precedents[c] = struct{}{}
	}
	for _, r := range ranges {
		for c := range r.Cells() {
			precedents[c] = struct{}{}
		}
	}

	n := g.get(cell)
	for old := range n.dependsOn {
		if _, keep := precedents[old]; keep {
			continue
		}
		delete(g.nodes[old].dependents, cell)
		g.release(old)
	}
	n.dependsOn = precedents
	n.watches = append([]sheet.Range(nil), ranges...)
	for p := range precedents {
		g.get(p).dependents[cell] = struct{}{}
	}
	g.release(cell)
}

// RemoveCell drops the cell's outgoing edges and watches. Reverse edges
// pointing at the cell survive, because they belong to the formulas of
// the cells that reference it; the node itself is released once nothing
// points at it.
func (g *Graph) RemoveCell(cell sheet.Coord) {
	n, ok := g.nodes[cell]
	if !ok {
		return
	}
	for p := range n.dependsOn {
		delete(g.nodes[p].dependents, cell)
		g.release(p)
	}
	n.dependsOn = make(map[sheet.Coord]struct{})
	n.watches = nil
	g.release(cell)
}

// Precedents returns the coordinates the cell's formula reads,
// ascending, expanded from any ranges.
func (g *Graph) Precedents(cell sheet.Coord) []sheet.Coord {
	n, ok := g.nodes[cell]
	if !ok {
		return nil
	}
	return sortedCoords(n.dependsOn)
}

// Dependents returns the cells whose formulas read this cell,
// ascending.
func (g *Graph) Dependents(cell sheet.Coord) []sheet.Coord {
	n, ok := g.nodes[cell]
	if !ok {
		return nil
	}
	return sortedCoords(n.dependents)
}

// WatchedRanges returns the rectangles the cell's formula watches.
func (g *Graph) WatchedRanges(cell sheet.Coord) []sheet.Range {
	n, ok := g.nodes[cell]
	if !ok {
		return nil
	}
	return append([]sheet.Range(nil), n.watches...)
}

// reach collects every cell transitively reachable from the roots via
// dependents edges, roots included.
func (g *Graph) reach(roots []sheet.Coord) map[sheet.Coord]struct{} {
	seen := make(map[sheet.Coord]struct{}, len(roots))
	stack := append([]sheet.Coord(nil), roots...)
	for _, r := range roots {
		seen[r] = struct{}{}
	}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := g.nodes[c]
		if !ok {
			continue
		}
		for d := range n.dependents {
			if _, dup := seen[d]; dup {
				continue
			}
			seen[d] = struct{}{}
			stack = append(stack, d)
		}
	}
	return seen
}

// CyclesFrom returns every coordinate that sits on a dependency cycle
// reachable from the roots, ascending. Cells that merely read a cyclic
// cell are not included.
func (g *Graph) CyclesFrom(roots ...sheet.Coord) []sheet.Coord {
	affected := g.reach(roots)
	onCycle := g.cyclesIn(affected)
	return sortedCoords(onCycle)
}

// DetectCycle reports the cycle members reachable from cell, if any.
func (g *Graph) DetectCycle(cell sheet.Coord) ([]sheet.Coord, bool) {
	members := g.CyclesFrom(cell)
	return members, len(members) > 0
}

// cyclesIn finds all cycle members inside the induced subgraph via
// depth-first strongly connected components (iterative Tarjan). A
// component is cyclic when it has more than one member, or a single
// member with a self edge.
func (g *Graph) cyclesIn(within map[sheet.Coord]struct{}) map[sheet.Coord]struct{} {
	onCycle := make(map[sheet.Coord]struct{})
	index := make(map[sheet.Coord]int, len(within))
	lowlink := make(map[sheet.Coord]int, len(within))
	onStack := make(map[sheet.Coord]bool, len(within))
	var stack []sheet.Coord
	next := 0

	type frame struct {
		c     sheet.Coord
		succs []sheet.Coord
		i     int
	}

	succsOf := func(c sheet.Coord) []sheet.Coord {
		n, ok := g.nodes[c]
		if !ok {
			return nil
		}
		var out []sheet.Coord
		for d := range n.dependents {
			if _, in := within[d]; in {
				out = append(out, d)
			}
		}
		return out
	}

	for start := range within {
		if _, visited := index[start]; visited {
			continue
		}
		frames := []frame{{c: start, succs: succsOf(start)}}
		index[start] = next
		lowlink[start] = next
		next++
		stack = append(stack, start)
		onStack[start] = true

		for len(frames) > 0 {
			f := &frames[len(frames)-1]
			if f.i < len(f.succs) {
				s := f.succs[f.i]
				f.i++
				if _, visited := index[s]; !visited {
					index[s] = next
					lowlink[s] = next
					next++
					stack = append(stack, s)
					onStack[s] = true
					frames = append(frames, frame{c: s, succs: succsOf(s)})
				} else if onStack[s] {
					if index[s] < lowlink[f.c] {
						lowlink[f.c] = index[s]
					}
				}
				continue
			}

			// Frame finished: close out its component if it is a root.
			if lowlink[f.c] == index[f.c] {
				var comp []sheet.Coord
				for {
					top := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[top] = false
					comp = append(comp, top)
					if top == f.c {
						break
					}
				}
				if len(comp) > 1 {
					for _, c := range comp {
						onCycle[c] = struct{}{}
					}
				} else if g.selfLoop(comp[0]) {
					onCycle[comp[0]] = struct{}{}
				}
			}
			done := *f
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := &frames[len(frames)-1]
				if lowlink[done.c] < lowlink[parent.c] {
					lowlink[parent.c] = lowlink[done.c]
				}
			}
		}
	}
	return onCycle
}

func (g *Graph) selfLoop(c sheet.Coord) bool {
	n, ok := g.nodes[c]
	if !ok {
		return false
	}
	_, self := n.dependsOn[c]
	return self
}

// AffectedSet returns every cell that must recompute when the roots
// change, roots included, in topological order: each cell appears after
// all of its in-set precedents. Cells with no ordering constraint
// between them come out ascending by (row, column), so the schedule is
// reproducible across runs. Cycle members are excluded; cells
// downstream of a cycle are ordered as if the cycle members were
// already settled.
func (g *Graph) AffectedSet(roots ...sheet.Coord) []sheet.Coord {
	order, _ := g.schedule(roots)
	return order
}

// Layers partitions the affected set into evaluation layers: a cell's
// layer is one past the deepest of its in-set precedents. Cells within
// one layer have no path between them and may evaluate in parallel;
// layers must run in sequence. Concatenating the layers yields a valid
// topological order.
func (g *Graph) Layers(roots ...sheet.Coord) [][]sheet.Coord {
	order, inOrder := g.schedule(roots)
	if len(order) == 0 {
		return nil
	}
	level := make(map[sheet.Coord]int, len(order))
	var layers [][]sheet.Coord
	for _, c := range order {
		lvl := 0
		if n, ok := g.nodes[c]; ok {
			for p := range n.dependsOn {
				if _, in := inOrder[p]; !in {
					continue
				}
				if level[p]+1 > lvl {
					lvl = level[p] + 1
				}
			}
		}
		level[c] = lvl
		if lvl == len(layers) {
			layers = append(layers, nil)
		}
		layers[lvl] = append(layers[lvl], c)
	}
	for _, layer := range layers {
		sort.Slice(layer, func(i, j int) bool { return layer[i].Less(layer[j]) })
	}
	return layers
}

// schedule computes the ordered affected set and its membership map.
func (g *Graph) schedule(roots []sheet.Coord) ([]sheet.Coord, map[sheet.Coord]struct{}) {
	affected := g.reach(roots)
	onCycle := g.cyclesIn(affected)

	members := make(map[sheet.Coord]struct{}, len(affected))
	for c := range affected {
		if _, cyc := onCycle[c]; !cyc {
			members[c] = struct{}{}
		}
	}

	// Kahn's algorithm with a min-heap frontier: precedents outside the
	// member set are already settled and do not gate evaluation.
	indegree := make(map[sheet.Coord]int, len(members))
	for c := range members {
		deg := 0
		if n, ok := g.nodes[c]; ok {
			for p := range n.dependsOn {
				if _, in := members[p]; in && p != c {
					deg++
				}
			}
		}
		indegree[c] = deg
	}

	frontier := &coordHeap{}
	heap.Init(frontier)
	for c, deg := range indegree {
		if deg == 0 {
			heap.Push(frontier, c)
		}
	}

	order := make([]sheet.Coord, 0, len(members))
	for frontier.Len() > 0 {
		c := heap.Pop(frontier).(sheet.Coord)
		order = append(order, c)
		n, ok := g.nodes[c]
		if !ok {
			continue
		}
		for d := range n.dependents {
			if _, in := members[d]; !in || d == c {
				continue
			}
			indegree[d]--
			if indegree[d] == 0 {
				heap.Push(frontier, d)
			}
		}
	}
	return order, members
}

func sortedCoords(set map[sheet.Coord]struct{}) []sheet.Coord {
	if len(set) == 0 {
		return nil
	}
	out := make([]sheet.Coord, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// coordHeap is a min-heap ordered by (row, column).
type coordHeap []sheet.Coord

func (h coordHeap) Len() int           { return len(h) }
func (h coordHeap) Less(i, j int) bool { return h[i].Less(h[j]) }
func (h coordHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *coordHeap) Push(x any)        { *h = append(*h, x.(sheet.Coord)) }
func (h *coordHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
