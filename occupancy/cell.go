// Package occupancy holds the fixed 2D grid of probabilistic cells built up by the floor mapper,
// and the exported views of it: integer snapshots, grayscale and heatmap images, and map files.
package occupancy

import (
	"github.com/pkg/errors"
)

// DefaultWeight is the weight of a reinforcement when the caller has no better estimate.
const DefaultWeight = 1.0

// A Cell accumulates weighted occupied/free evidence for one square of the grid. A cell
// that is neither occupied nor free is unknown.
type Cell interface {
	IsOccupied() bool
	IsFree() bool

	// OccupancyProbability returns the current belief that the cell is occupied, in [0, 1].
	OccupancyProbability() float64

	// ReinforceOccupied and ReinforceFree apply one piece of evidence. Weights that are not
	// strictly positive are ignored.
	ReinforceOccupied(weight float64)
	ReinforceFree(weight float64)
}

// CellType names a Cell implementation.
type CellType string

// The available cell types.
const (
	CellTypeLogOdds        CellType = "log_odds"
	CellTypeRunningAverage CellType = "running_average"
)

// Validate returns an error if the type is not a known cell type.
func (t CellType) Validate() error {
	switch t {
	case CellTypeLogOdds, CellTypeRunningAverage:
		return nil
	default:
		return errors.Errorf("unknown cell type %q, expected %q or %q", t, CellTypeLogOdds, CellTypeRunningAverage)
	}
}

// NewCellFactory returns a constructor for fresh, unknown cells of the given type.
// An empty type selects log-odds cells.
func NewCellFactory(t CellType) (func() Cell, error) {
	switch t {
	case CellTypeLogOdds, "":
		return func() Cell { return &LogOddsCell{} }, nil
	case CellTypeRunningAverage:
		return func() Cell { return NewRunningAverageCell() }, nil
	default:
		return nil, t.Validate()
	}
}

// IsUnknown reports whether the cell holds no decisive evidence either way.
func IsUnknown(c Cell) bool {
	return !c.IsOccupied() && !c.IsFree()
}

func usableWeight(weight float64) bool {
	// false for NaN as well
	return weight > 0
}
