package occupancy

import (
	"math"

	"github.com/pkg/errors"
)

// Geometry is the fixed layout of a grid in its frame.
type Geometry struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Resolution float64 `json:"resolution"`
	OriginX    float64 `json:"origin_x"`
	OriginY    float64 `json:"origin_y"`
	Frame      string  `json:"frame"`
}

// Validate ensures the geometry describes a non-empty grid.
func (geo Geometry) Validate() error {
	if geo.Width <= 0 || geo.Height <= 0 {
		return errors.Errorf("grid dimensions must be positive, got %dx%d", geo.Width, geo.Height)
	}
	if !(geo.Resolution > 0) || math.IsInf(geo.Resolution, 1) {
		return errors.Errorf("grid resolution must be a positive number, got %v", geo.Resolution)
	}
	if math.IsNaN(geo.OriginX) || math.IsNaN(geo.OriginY) || math.IsInf(geo.OriginX, 0) || math.IsInf(geo.OriginY, 0) {
		return errors.Errorf("grid origin must be finite, got (%v, %v)", geo.OriginX, geo.OriginY)
	}
	return nil
}

// Len is the number of cells.
func (geo Geometry) Len() int {
	return geo.Width * geo.Height
}

// IndexOf maps a point in the grid frame to the row-major index of the cell covering it.
// Coordinates are truncated toward the lower-left corner. ok is false if the point is outside the grid.
func (geo Geometry) IndexOf(x, y float64) (idx int, ok bool) {
	col := cellAlong(x, geo.OriginX, geo.Resolution)
	row := cellAlong(y, geo.OriginY, geo.Resolution)
	// comparisons with NaN are false, so non-finite input lands here too
	if !(col >= 0 && col < float64(geo.Width) && row >= 0 && row < float64(geo.Height)) {
		return -1, false
	}
	return int(row)*geo.Width + int(col), true
}

// cellAlong floors v onto the cell boundaries origin + k*res, the same boundaries CornerOf
// produces, stepping once when rounding in the division lands on the wrong side of one.
func cellAlong(v, origin, res float64) float64 {
	k := math.Floor((v - origin) / res)
	switch {
	case origin+(k+1)*res <= v:
		k++
	case origin+k*res > v:
		k--
	}
	return k
}

// CornerOf returns the lower-left corner of the cell at idx in the grid frame.
func (geo Geometry) CornerOf(idx int) (x, y float64) {
	col, row := geo.ColRow(idx)
	return geo.OriginX + float64(col)*geo.Resolution, geo.OriginY + float64(row)*geo.Resolution
}

// ColRow splits a row-major index into its column and row; row 0 is the minimum-y edge.
func (geo Geometry) ColRow(idx int) (col, row int) {
	return idx % geo.Width, idx / geo.Width
}

// A Grid is a fixed-size array of cells. Its geometry never changes after construction.
// A Grid is not safe for concurrent use.
type Grid struct {
	geometry Geometry
	cellType CellType
	cells    []Cell
}

// NewGrid returns a grid of unknown cells of the given type.
func NewGrid(geometry Geometry, cellType CellType) (*Grid, error) {
	if err := geometry.Validate(); err != nil {
		return nil, err
	}
	newCell, err := NewCellFactory(cellType)
	if err != nil {
		return nil, err
	}
	if cellType == "" {
		cellType = CellTypeLogOdds
	}
	cells := make([]Cell, geometry.Len())
	for i := range cells {
		cells[i] = newCell()
	}
	return &Grid{geometry: geometry, cellType: cellType, cells: cells}, nil
}

// Geometry returns the layout of the grid.
func (g *Grid) Geometry() Geometry {
	return g.geometry
}

// CellType returns the kind of cell the grid holds.
func (g *Grid) CellType() CellType {
	return g.cellType
}

// Len is the number of cells.
func (g *Grid) Len() int {
	return len(g.cells)
}

// IndexOf is Geometry.IndexOf for this grid.
func (g *Grid) IndexOf(x, y float64) (int, bool) {
	return g.geometry.IndexOf(x, y)
}

// CornerOf is Geometry.CornerOf for this grid.
func (g *Grid) CornerOf(idx int) (x, y float64) {
	return g.geometry.CornerOf(idx)
}

// Cell returns the cell at idx. It panics if idx is out of range.
func (g *Grid) Cell(idx int) Cell {
	return g.cells[idx]
}

// Counts returns how many cells are occupied, free and unknown.
func (g *Grid) Counts() (occupied, free, unknown int) {
	for _, c := range g.cells {
		switch {
		case c.IsOccupied():
			occupied++
		case c.IsFree():
			free++
		default:
			unknown++
		}
	}
	return occupied, free, unknown
}
