package game

import "math"

// Kind tags an entity reference in the grid
type Kind byte

const (
	KindCell    Kind = 'c'
	KindFood    Kind = 'f'
	KindVirus   Kind = 'v'
	KindEjected Kind = 'e'
)

// EntityRef identifies an entity in the grid
type EntityRef struct {
	Kind Kind
	ID   EntityID
}

// SpatialGrid is a uniform grid over [0, worldSize]^2 for broad-phase queries.
// Entities are bucketed by their centre; callers filter candidates by exact distance.
type SpatialGrid struct {
	cellSize float64
	cols     int
	buckets  [][]EntityRef
}

// NewSpatialGrid sizes a grid to cover the world with square buckets of cellSize
func NewSpatialGrid(worldSize, cellSize float64) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = 100
	}
	cols := int(math.Ceil(worldSize/cellSize)) + 1
	if cols < 1 {
		cols = 1
	}
	return &SpatialGrid{
		cellSize: cellSize,
		cols:     cols,
		buckets:  make([][]EntityRef, cols*cols),
	}
}

// Clear resets all buckets (keeps allocated capacity)
func (g *SpatialGrid) Clear() {
	for i := range g.buckets {
		g.buckets[i] = g.buckets[i][:0]
	}
}

func (g *SpatialGrid) coord(v float64) int {
	c := int(math.Floor(v / g.cellSize))
	if c < 0 {
		return 0
	}
	if c >= g.cols {
		return g.cols - 1
	}
	return c
}

// Insert adds an entity reference at the given position
func (g *SpatialGrid) Insert(pos Vec2, ref EntityRef) {
	idx := g.coord(pos[1])*g.cols + g.coord(pos[0])
	g.buckets[idx] = append(g.buckets[idx], ref)
}

// Query returns the contents of every bucket within ceil(radius/cellSize) of pos's bucket
func (g *SpatialGrid) Query(pos Vec2, radius float64) []EntityRef {
	return g.QueryBuf(pos, radius, nil)
}

// QueryBuf appends results to buf and returns the extended slice, avoiding per-call allocation
func (g *SpatialGrid) QueryBuf(pos Vec2, radius float64, buf []EntityRef) []EntityRef {
	span := int(math.Ceil(radius / g.cellSize))
	cx, cy := g.coord(pos[0]), g.coord(pos[1])
	minX, maxX := max(cx-span, 0), min(cx+span, g.cols-1)
	minY, maxY := max(cy-span, 0), min(cy+span, g.cols-1)
	for y := minY; y <= maxY; y++ {
		row := y * g.cols
		for x := minX; x <= maxX; x++ {
			buf = append(buf, g.buckets[row+x]...)
		}
	}
	return buf
}

// Len returns the number of references currently stored
func (g *SpatialGrid) Len() int {
	n := 0
	for _, b := range g.buckets {
		n += len(b)
	}
	return n
}
