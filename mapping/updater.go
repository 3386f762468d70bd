package mapping

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/floormap/occupancy"
	"go.viam.com/floormap/pointcloud"
	"go.viam.com/floormap/spatialmath"
)

// Classification is the verdict for one cell in one batch.
type Classification int

// The possible classifications.
const (
	Skipped Classification = iota
	Free
	Occupied
)

func (c Classification) String() string {
	switch c {
	case Free:
		return "free"
	case Occupied:
		return "occupied"
	default:
		return "skipped"
	}
}

// Classify calls a plane occupied when its flatness falls below threshold.
func Classify(plane pointcloud.Plane, threshold float64) Classification {
	if plane.Flatness() < threshold {
		return Occupied
	}
	return Free
}

// Weight is the confidence given to evidence at planar distance d from the robot.
func Weight(d float64) float64 {
	return math.Exp(-d)
}

// UpdateStats summarizes one batch.
type UpdateStats struct {
	BinStats
	CellsFitted     int
	FitFailures     int
	OccupiedUpdates int
	FreeUpdates     int
}

// An Updater fits and classifies bucketed cells and reinforces them on the grid.
type Updater struct {
	// MinPoints is the bucket size a cell must exceed to be fit.
	MinPoints int
	// FlatnessThreshold separates occupied (below) from free (at or above).
	FlatnessThreshold float64
}

// Update applies one batch of buckets to grid. world holds the map frame points the bucket
// indices refer to and mapInBase takes map coordinates to the robot base frame.
// Cells with too few points are left untouched.
func (u Updater) Update(
	grid *occupancy.Grid,
	buckets Buckets,
	world pointcloud.Vectors,
	mapInBase spatialmath.Pose,
) UpdateStats {
	var stats UpdateStats
	for idx, bucket := range buckets {
		if len(bucket) <= u.MinPoints {
			continue
		}
		plane, err := pointcloud.FitPlane(world, bucket)
		if err != nil {
			stats.FitFailures++
			continue
		}
		stats.CellsFitted++

		x, y := grid.CornerOf(idx)
		inBase := spatialmath.TransformPoint(mapInBase, r3.Vector{X: x, Y: y})
		weight := Weight(spatialmath.PlanarDistance(inBase))

		cell := grid.Cell(idx)
		switch Classify(plane, u.FlatnessThreshold) {
		case Occupied:
			cell.ReinforceOccupied(weight)
			stats.OccupiedUpdates++
		default:
			cell.ReinforceFree(weight)
			stats.FreeUpdates++
		}
	}
	return stats
}
