package cli

import (
	"math"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"go.viam.com/floormap/spatialmath"
	rutils "go.viam.com/floormap/utils"
)

// TrajectoryPose is one recorded pose of the base in the map frame. Time is in seconds on the
// same clock as the replayed clouds, and Yaw is in degrees.
type TrajectoryPose struct {
	Time float64 `yaml:"time"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
	Yaw  float64 `yaml:"yaw"`
}

// Stamp returns Time as an absolute time.
func (tp TrajectoryPose) Stamp() time.Time {
	return replayEpoch.Add(time.Duration(tp.Time * float64(time.Second)))
}

// Pose returns the planar pose of the base.
func (tp TrajectoryPose) Pose() spatialmath.Pose {
	return spatialmath.NewPlanarPose(tp.X, tp.Y, rutils.DegToRad(tp.Yaw))
}

// ReadTrajectory reads a YAML list of poses and returns them in time order.
func ReadTrajectory(path string) ([]TrajectoryPose, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var poses []TrajectoryPose
	if err := yaml.Unmarshal(data, &poses); err != nil {
		return nil, errors.Wrapf(err, "parsing trajectory %q", path)
	}
	if len(poses) == 0 {
		return nil, errors.Errorf("trajectory %q has no poses", path)
	}
	for i, p := range poses {
		for _, v := range []float64{p.Time, p.X, p.Y, p.Yaw} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.Errorf("trajectory %q pose %d is not finite", path, i)
			}
		}
	}
	sort.SliceStable(poses, func(i, j int) bool { return poses[i].Time < poses[j].Time })
	return poses, nil
}
