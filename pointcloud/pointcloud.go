// Package pointcloud defines the ordered point batches fed to the mapper, readers for
// common point cloud file formats, and the local plane fit used to classify cells.
//
// Unlike a keyed cloud, a batch keeps every point in arrival order. The mapper relies on
// index i naming the same physical return in the sensor, base and world projections.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/floormap/spatialmath"
)

// NewVector convenience method for creating a vector.
func NewVector(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

// Vectors is an ordered series of three-dimensional points.
type Vectors []r3.Vector

// Len returns the number of vectors.
func (vs Vectors) Len() int {
	return len(vs)
}

// Swap swaps two vectors positionally.
func (vs Vectors) Swap(i, j int) {
	vs[i], vs[j] = vs[j], vs[i]
}

// Less returns which vector is less than the other based on
// r3.Vector.Cmp.
func (vs Vectors) Less(i, j int) bool {
	cmp := vs[i].Cmp(vs[j])
	if cmp == 0 {
		return false
	}
	return cmp < 0
}

// Transform returns a new batch with pose applied to every point, preserving order.
func (vs Vectors) Transform(pose spatialmath.Pose) Vectors {
	out := make(Vectors, len(vs))
	for i, v := range vs {
		out[i] = spatialmath.TransformPoint(pose, v)
	}
	return out
}

// MetaData is data about what's stored in a batch of points.
type MetaData struct {
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64

	// NonFinite counts points with a NaN or infinite coordinate; they are excluded from the bounds.
	NonFinite int
}

// NewMetaData returns bounds that any finite point will expand.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
		MaxZ: -math.MaxFloat64,
	}
}

// Merge expands the bounds to include v.
func (meta *MetaData) Merge(v r3.Vector) {
	if !IsFinite(v) {
		meta.NonFinite++
		return
	}
	meta.MinX = math.Min(meta.MinX, v.X)
	meta.MaxX = math.Max(meta.MaxX, v.X)
	meta.MinY = math.Min(meta.MinY, v.Y)
	meta.MaxY = math.Max(meta.MaxY, v.Y)
	meta.MinZ = math.Min(meta.MinZ, v.Z)
	meta.MaxZ = math.Max(meta.MaxZ, v.Z)
}

// MetaData computes the bounds of the batch.
func (vs Vectors) MetaData() MetaData {
	meta := NewMetaData()
	for _, v := range vs {
		meta.Merge(v)
	}
	return meta
}

// IsFinite reports whether every coordinate of v is a finite number.
func IsFinite(v r3.Vector) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsNaN(v.Z) &&
		!math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0) && !math.IsInf(v.Z, 0)
}
