package occupancy

import (
	"math"

	"github.com/pkg/errors"
)

// Unknown is the exported value of a cell with no decisive evidence.
const Unknown int8 = -1

// Export converts a cell to its exported value: Unknown, or its occupancy probability as a
// percentage rounded to the nearest integer.
func Export(c Cell) int8 {
	if IsUnknown(c) {
		return Unknown
	}
	return int8(math.Round(100 * c.OccupancyProbability()))
}

// A Snapshot is an exported copy of a grid. Data is row-major with
// index = row*Width + col and row 0 on the minimum-y edge.
type Snapshot struct {
	Geometry
	Data []int8 `json:"data"`
}

// Snapshot exports every cell of the grid.
func (g *Grid) Snapshot() Snapshot {
	data := make([]int8, len(g.cells))
	for i, c := range g.cells {
		data[i] = Export(c)
	}
	return Snapshot{Geometry: g.geometry, Data: data}
}

// Validate ensures the snapshot data matches its geometry and holds only exportable values.
func (s Snapshot) Validate() error {
	if err := s.Geometry.Validate(); err != nil {
		return err
	}
	if len(s.Data) != s.Len() {
		return errors.Errorf("snapshot has %d values for a %dx%d grid", len(s.Data), s.Width, s.Height)
	}
	for i, v := range s.Data {
		if v < Unknown || v > 100 {
			return errors.Errorf("snapshot value %d at index %d is outside [-1, 100]", v, i)
		}
	}
	return nil
}

// At returns the value at column col and row row.
func (s Snapshot) At(col, row int) int8 {
	return s.Data[row*s.Width+col]
}
