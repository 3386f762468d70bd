// Package mapping turns batches of 3D points into evidence on a floor occupancy grid. Each batch
// is binned by grid cell, a plane is fit to every cell with enough points, and the cell is
// reinforced as free when that plane is close to horizontal and as occupied otherwise.
package mapping

import (
	"time"

	"github.com/pkg/errors"

	"go.viam.com/floormap/pointcloud"
	"go.viam.com/floormap/spatialmath"
)

var (
	// ErrBatchDropped is matched by the error returned for a batch that was skipped without
	// touching the grid.
	ErrBatchDropped = errors.New("batch dropped")

	// ErrInconsistentObservation is returned when the projections of a batch do not line up.
	ErrInconsistentObservation = errors.New("inconsistent observation")
)

// An Observation is one batch of points in three frames at once. Index i of Sensor, Base and
// World is the same return.
type Observation struct {
	Stamp time.Time
	Frame string

	Sensor pointcloud.Vectors
	Base   pointcloud.Vectors
	World  pointcloud.Vectors

	// MapInBase is the pose of the map frame in the base frame at Stamp. It takes map
	// coordinates to base coordinates.
	MapInBase spatialmath.Pose
}

// Validate returns ErrInconsistentObservation if the projections differ in length or the
// map to base pose is missing.
func (obs Observation) Validate() error {
	if len(obs.Base) != len(obs.Sensor) || len(obs.World) != len(obs.Sensor) {
		return errors.Wrapf(ErrInconsistentObservation,
			"point counts differ: sensor %d, base %d, world %d", len(obs.Sensor), len(obs.Base), len(obs.World))
	}
	if obs.MapInBase == nil {
		return errors.Wrap(ErrInconsistentObservation, "missing map to base pose")
	}
	return nil
}

type droppedError struct {
	cause error
}

func newDroppedError(cause error) error {
	return &droppedError{cause: cause}
}

func (e *droppedError) Error() string {
	return ErrBatchDropped.Error() + ": " + e.cause.Error()
}

func (e *droppedError) Is(target error) bool {
	return target == ErrBatchDropped
}

func (e *droppedError) Unwrap() error {
	return e.cause
}
