package config

import (
	"github.com/golang/geo/r3"
	"go.viam.com/utils"

	"go.viam.com/floormap/spatialmath"
	rutils "go.viam.com/floormap/utils"
)

// Translation is the offset of a child frame in its parent, in meters.
type Translation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Orientation is the rotation of a child frame in its parent as roll, pitch and yaw in degrees,
// applied yaw first.
type Orientation struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// TransformConfig is one static link of the transform tree.
type TransformConfig struct {
	Parent      string      `json:"parent"`
	Child       string      `json:"child"`
	Translation Translation `json:"translation"`
	Orientation Orientation `json:"orientation"`
}

// Validate ensures the link names both ends.
func (tc *TransformConfig) Validate(path string) error {
	if tc.Parent == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "parent")
	}
	if tc.Child == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "child")
	}
	return nil
}

// Pose returns the pose of the child in the parent.
func (tc *TransformConfig) Pose() spatialmath.Pose {
	ea := &spatialmath.EulerAngles{
		Roll:  rutils.DegToRad(tc.Orientation.Roll),
		Pitch: rutils.DegToRad(tc.Orientation.Pitch),
		Yaw:   rutils.DegToRad(tc.Orientation.Yaw),
	}
	return spatialmath.NewPose(r3.Vector{X: tc.Translation.X, Y: tc.Translation.Y, Z: tc.Translation.Z}, ea)
}
