package mapping

import (
	"math"

	"go.viam.com/floormap/occupancy"
	"go.viam.com/floormap/pointcloud"
)

// Buckets holds, per grid cell, the indices of the batch points that landed in it.
// A nil entry is an empty bucket.
type Buckets [][]int

// BinStats counts what happened to the points of one batch.
type BinStats struct {
	Points      int
	NonFinite   int
	SelfReturns int
	OutOfRange  int
	OutsideGrid int
	Accepted    int
}

// A Binner assigns points to cells, discarding those the sensor cannot vouch for.
type Binner struct {
	Geometry occupancy.Geometry

	// MinSensorRange rejects points closer than this to the sensor origin in the sensor xy plane.
	MinSensorRange float64
	// MaxRange rejects points farther than this from the base origin in the base xy plane.
	MaxRange float64
}

// Bin buckets the points of obs. The observation must be valid.
func (b Binner) Bin(obs Observation) (Buckets, BinStats) {
	buckets := make(Buckets, b.Geometry.Len())
	stats := BinStats{Points: len(obs.Sensor)}
	for i := range obs.Sensor {
		sensor, base, world := obs.Sensor[i], obs.Base[i], obs.World[i]
		switch {
		case !pointcloud.IsFinite(sensor) || !pointcloud.IsFinite(base) || !pointcloud.IsFinite(world):
			stats.NonFinite++
			continue
		case math.Hypot(sensor.X, sensor.Y) < b.MinSensorRange:
			stats.SelfReturns++
			continue
		case math.Hypot(base.X, base.Y) > b.MaxRange:
			stats.OutOfRange++
			continue
		}
		idx, ok := b.Geometry.IndexOf(world.X, world.Y)
		if !ok {
			stats.OutsideGrid++
			continue
		}
		buckets[idx] = append(buckets[idx], i)
		stats.Accepted++
	}
	return buckets, stats
}
