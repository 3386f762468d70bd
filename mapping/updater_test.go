package mapping

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/floormap/occupancy"
	"go.viam.com/floormap/pointcloud"
	"go.viam.com/floormap/spatialmath"
	"go.viam.com/floormap/testutils"
)

func TestClassify(t *testing.T) {
	test.That(t, Classify(pointcloud.Plane{A: 0, B: 0, C: 3}, DefaultFlatnessThreshold), test.ShouldEqual, Free)
	test.That(t, Classify(pointcloud.Plane{A: 1, B: 1}, DefaultFlatnessThreshold), test.ShouldEqual, Occupied)
	// flatness 0.8 exactly is not below the threshold
	test.That(t, Classify(pointcloud.Plane{A: 0.5}, DefaultFlatnessThreshold), test.ShouldEqual, Free)
	test.That(t, Classify(pointcloud.Plane{A: 0.51}, DefaultFlatnessThreshold), test.ShouldEqual, Occupied)
	test.That(t, Occupied.String(), test.ShouldEqual, "occupied")
	test.That(t, Skipped.String(), test.ShouldEqual, "skipped")

	test.That(t, Weight(0), test.ShouldEqual, 1.0)
	test.That(t, Weight(2), test.ShouldAlmostEqual, math.Exp(-2))
}

func TestUpdate(t *testing.T) {
	geo := scenarioGeometry()
	grid, err := occupancy.NewGrid(geo, occupancy.CellTypeLogOdds)
	test.That(t, err, test.ShouldBeNil)

	// a floor in cell 55, a wall in cell 37 and too few points in cell 11
	floor := testutils.FloorPatch(0.1, 0.1, 0, 0.2, 3)
	wall := testutils.WallPatch(2.1, -1.9, 0, 0.1, 3)
	sparse := pointcloud.Vectors{pointcloud.NewVector(-3.5, -3.5, 0), pointcloud.NewVector(-3.4, -3.4, 0)}
	world := append(append(append(pointcloud.Vectors{}, floor...), wall...), sparse...)

	buckets := make(Buckets, geo.Len())
	for i, pt := range world {
		idx, ok := geo.IndexOf(pt.X, pt.Y)
		test.That(t, ok, test.ShouldBeTrue)
		buckets[idx] = append(buckets[idx], i)
	}
	test.That(t, buckets[55], test.ShouldHaveLength, 9)
	test.That(t, buckets[37], test.ShouldHaveLength, 9)
	test.That(t, buckets[11], test.ShouldHaveLength, 2)

	// the robot stands at (-1, 0) in the map
	mapInBase := spatialmath.NewPoseFromPoint(r3.Vector{X: 1})
	u := Updater{MinPoints: DefaultMinPoints, FlatnessThreshold: DefaultFlatnessThreshold}
	stats := u.Update(grid, buckets, world, mapInBase)
	test.That(t, stats.CellsFitted, test.ShouldEqual, 2)
	test.That(t, stats.FreeUpdates, test.ShouldEqual, 1)
	test.That(t, stats.OccupiedUpdates, test.ShouldEqual, 1)
	test.That(t, stats.FitFailures, test.ShouldEqual, 0)

	floorCell := grid.Cell(55).(*occupancy.LogOddsCell)
	test.That(t, floorCell.IsFree(), test.ShouldBeTrue)
	test.That(t, floorCell.LogOdds(), test.ShouldAlmostEqual, -occupancy.LogOddsIncrement*math.Exp(-1))

	wallCell := grid.Cell(37).(*occupancy.LogOddsCell)
	test.That(t, wallCell.IsOccupied(), test.ShouldBeTrue)
	// corner (2, -2) is sqrt(9+4) from the robot
	test.That(t, wallCell.LogOdds(), test.ShouldAlmostEqual, occupancy.LogOddsIncrement*math.Exp(-math.Sqrt(13)))

	test.That(t, occupancy.IsUnknown(grid.Cell(11)), test.ShouldBeTrue)
	_, _, unknown := grid.Counts()
	test.That(t, unknown, test.ShouldEqual, 98)
}

func TestUpdateMinPoints(t *testing.T) {
	geo := scenarioGeometry()
	grid, err := occupancy.NewGrid(geo, occupancy.CellTypeRunningAverage)
	test.That(t, err, test.ShouldBeNil)

	world := testutils.FloorPatch(0.1, 0.1, 0, 0.2, 2)
	buckets := make(Buckets, geo.Len())
	buckets[55] = []int{0, 1, 2, 3}

	u := Updater{MinPoints: 4, FlatnessThreshold: DefaultFlatnessThreshold}
	stats := u.Update(grid, buckets, world, spatialmath.NewZeroPose())
	test.That(t, stats.CellsFitted, test.ShouldEqual, 0)
	test.That(t, occupancy.IsUnknown(grid.Cell(55)), test.ShouldBeTrue)

	u.MinPoints = 3
	stats = u.Update(grid, buckets, world, spatialmath.NewZeroPose())
	test.That(t, stats.CellsFitted, test.ShouldEqual, 1)
	test.That(t, grid.Cell(55).IsFree(), test.ShouldBeTrue)
}
