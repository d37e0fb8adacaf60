// Package spatial provides the uniform hash grid used by room simulation for
// proximity queries. The grid is room-private and must only be touched from
// the owning room's tick.
package spatial

import (
	"iter"
	"math"
)

const defaultCellSize = 10

type cellKey struct {
	x, y, z int32
}

// Grid buckets entity ids into uniform 3-D cells keyed by floor division of
// world coordinates. Each id occupies exactly one cell; inserting an id that
// is already present replaces its previous binding.
type Grid struct {
	cellSize float64
	cells    map[cellKey]map[uint64]struct{}
	binding  map[uint64]cellKey
}

func NewGrid(cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = defaultCellSize
	}
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[cellKey]map[uint64]struct{}),
		binding:  make(map[uint64]cellKey),
	}
}

func (g *Grid) keyAt(x, y, z float64) cellKey {
	return cellKey{
		x: int32(math.Floor(x / g.cellSize)),
		y: int32(math.Floor(y / g.cellSize)),
		z: int32(math.Floor(z / g.cellSize)),
	}
}

// Insert binds id to the cell containing (x, y, z).
func (g *Grid) Insert(id uint64, x, y, z float64) {
	k := g.keyAt(x, y, z)
	if prev, ok := g.binding[id]; ok {
		if prev == k {
			return
		}
		g.unlink(prev, id)
	}
	cell, ok := g.cells[k]
	if !ok {
		cell = make(map[uint64]struct{})
		g.cells[k] = cell
	}
	cell[id] = struct{}{}
	g.binding[id] = k
}

// Remove drops id from the grid. Removing an absent id is a no-op.
func (g *Grid) Remove(id uint64) {
	k, ok := g.binding[id]
	if !ok {
		return
	}
	g.unlink(k, id)
	delete(g.binding, id)
}

// Move re-buckets id for its new position. Same-cell moves are free.
func (g *Grid) Move(id uint64, x, y, z float64) {
	g.Insert(id, x, y, z)
}

func (g *Grid) unlink(k cellKey, id uint64) {
	cell, ok := g.cells[k]
	if !ok {
		return
	}
	delete(cell, id)
	if len(cell) == 0 {
		delete(g.cells, k)
	}
}

// Query yields every id bucketed in a cell overlapping the cube that encloses
// the given radius around the center. The sequence is lazy and single-pass;
// ids are unique because each id occupies exactly one cell. Callers still
// perform precise distance checks against entity positions.
func (g *Grid) Query(cx, cy, cz, radius float64) iter.Seq[uint64] {
	lo := g.keyAt(cx-radius, cy-radius, cz-radius)
	hi := g.keyAt(cx+radius, cy+radius, cz+radius)
	return func(yield func(uint64) bool) {
		for x := lo.x; x <= hi.x; x++ {
			for y := lo.y; y <= hi.y; y++ {
				for z := lo.z; z <= hi.z; z++ {
					cell, ok := g.cells[cellKey{x, y, z}]
					if !ok {
						continue
					}
					for id := range cell {
						if !yield(id) {
							return
						}
					}
				}
			}
		}
	}
}

// QueryAppend appends matching ids to buf and returns it. Rooms keep a
// reusable buffer to avoid per-tick allocations on the hot collision path.
func (g *Grid) QueryAppend(cx, cy, cz, radius float64, buf []uint64) []uint64 {
	for id := range g.Query(cx, cy, cz, radius) {
		buf = append(buf, id)
	}
	return buf
}

// Len reports the number of bound ids.
func (g *Grid) Len() int {
	return len(g.binding)
}

// Clear drops every binding. Used during room disposal.
func (g *Grid) Clear() {
	g.cells = make(map[cellKey]map[uint64]struct{})
	g.binding = make(map[uint64]cellKey)
}
