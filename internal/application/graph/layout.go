package graph

import (
	"sort"

	"github.com/powers-protocol/powers/pkg/domain"
)

// Grid spacing in canvas units.
const (
	SpacingX = 500
	SpacingY = 450
)

// Cell is a grid position.
type Cell struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Placement is the result of a layout run.
type Placement struct {
	Positions map[string]domain.Position `json:"positions"`
	// Cells is nil when positions came from the cache.
	Cells     map[string]Cell `json:"cells,omitempty"`
	FromCache bool            `json:"fromCache"`
}

// Layout builds the graph of mandates and places it.
func Layout(mandates []domain.Mandate, cache map[string]domain.Position) *Placement {
	return Build(mandates).Layout(cache)
}

// Layout places every node on the grid. A cache that holds a position for
// every node is returned verbatim; anything less is ignored.
//
// Columns are longest-path depths, so a node always sits right of each of
// its dependencies. Rows are assigned depth-first from the roots: children
// are visited in descending subtree size and each child claims as many rows
// as its subtree needs. Roots without dependents share a single row. Nodes
// only reachable through a cycle get a row each. Unused rows are removed at
// the end.
//
// Cycles never stop the layout; their members are placed with best effort.
func (g *Graph) Layout(cache map[string]domain.Position) *Placement {
	if p, ok := g.cached(cache); ok {
		return p
	}

	l := &layouter{
		g:      g,
		size:   make(map[string]int, len(g.ids)),
		column: make(map[string]int, len(g.ids)),
		cells:  make(map[string]Cell, len(g.ids)),
	}
	roots := g.Roots()
	for _, r := range roots {
		l.subtreeSize(r, map[string]bool{})
	}

	row := 0
	singletons := false
	singletonCol := 0
	for _, r := range roots {
		if len(g.dependents[r]) == 0 {
			if !singletons {
				singletons = true
				singletonCol = 0
			}
			l.cells[r] = Cell{Row: row, Column: singletonCol}
			singletonCol++
			continue
		}
		if singletons {
			row++
			singletons = false
		}
		l.place(r, row, map[string]bool{})
		row += l.sizeOf(r)
	}
	if singletons {
		row++
	}

	for _, id := range g.ids {
		if _, ok := l.cells[id]; ok {
			continue
		}
		l.cells[id] = Cell{Row: row, Column: l.columnOf(id, map[string]bool{})}
		row++
	}

	// Column depths inside a cycle depend on where the walk entered it, so
	// two cycle members can land on the same cell. Move later ones down.
	occupied := make(map[Cell]bool, len(l.cells))
	for _, id := range g.ids {
		c := l.cells[id]
		if occupied[c] {
			c.Row = row
			row++
			l.cells[id] = c
		}
		occupied[c] = true
	}

	compactRows(l.cells)

	positions := make(map[string]domain.Position, len(l.cells))
	for id, c := range l.cells {
		positions[id] = domain.Position{
			X: float64(c.Column * SpacingX),
			Y: float64(c.Row * SpacingY),
		}
	}
	return &Placement{Positions: positions, Cells: l.cells}
}

func (g *Graph) cached(cache map[string]domain.Position) (*Placement, bool) {
	if len(cache) == 0 || len(g.ids) == 0 {
		return nil, false
	}
	positions := make(map[string]domain.Position, len(g.ids))
	for _, id := range g.ids {
		pos, ok := cache[id]
		if !ok {
			return nil, false
		}
		positions[id] = pos
	}
	return &Placement{Positions: positions, FromCache: true}, true
}

type layouter struct {
	g      *Graph
	size   map[string]int
	column map[string]int
	cells  map[string]Cell
}

// subtreeSize counts the rows id's dependents need, at least one. A node
// already on the current path counts as zero.
func (l *layouter) subtreeSize(id string, visiting map[string]bool) int {
	if visiting[id] {
		return 0
	}
	if s, ok := l.size[id]; ok {
		return s
	}
	visiting[id] = true
	total := 0
	for _, child := range l.g.dependents[id] {
		total += l.subtreeSize(child, visiting)
	}
	delete(visiting, id)
	if total < 1 {
		total = 1
	}
	l.size[id] = total
	return total
}

func (l *layouter) sizeOf(id string) int {
	if s, ok := l.size[id]; ok {
		return s
	}
	return l.subtreeSize(id, map[string]bool{})
}

// columnOf is one more than the deepest dependency column. Edges back into
// the current path are skipped.
func (l *layouter) columnOf(id string, visiting map[string]bool) int {
	if c, ok := l.column[id]; ok {
		return c
	}
	visiting[id] = true
	col := 0
	for _, dep := range l.g.dependencies[id] {
		if visiting[dep] {
			continue
		}
		if c := l.columnOf(dep, visiting) + 1; c > col {
			col = c
		}
	}
	delete(visiting, id)
	l.column[id] = col
	return col
}

func (l *layouter) place(id string, row int, visiting map[string]bool) {
	if _, done := l.cells[id]; done || visiting[id] {
		return
	}
	l.cells[id] = Cell{Row: row, Column: l.columnOf(id, map[string]bool{})}

	visiting[id] = true
	children := append([]string(nil), l.g.dependents[id]...)
	sort.SliceStable(children, func(i, j int) bool {
		return l.sizeOf(children[i]) > l.sizeOf(children[j])
	})
	childRow := row
	for _, child := range children {
		l.place(child, childRow, visiting)
		childRow += l.sizeOf(child)
	}
	delete(visiting, id)
}

func compactRows(cells map[string]Cell) {
	used := make(map[int]bool)
	for _, c := range cells {
		used[c.Row] = true
	}
	rows := make([]int, 0, len(used))
	for r := range used {
		rows = append(rows, r)
	}
	sort.Ints(rows)
	remap := make(map[int]int, len(rows))
	for i, r := range rows {
		remap[r] = i
	}
	for id, c := range cells {
		c.Row = remap[c.Row]
		cells[id] = c
	}
}
