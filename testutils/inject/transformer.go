package inject

import (
	"context"
	"time"

	"go.viam.com/floormap/referenceframe"
	"go.viam.com/floormap/spatialmath"
)

// Transformer is an injected referenceframe.Transformer.
type Transformer struct {
	referenceframe.Transformer
	WaitForTransformFunc func(ctx context.Context, dst, src string, stamp time.Time, timeout time.Duration) error
	LookupTransformFunc  func(dst, src string, stamp time.Time) (spatialmath.Pose, error)
}

// WaitForTransform calls the injected WaitForTransform or the real version.
func (t *Transformer) WaitForTransform(ctx context.Context, dst, src string, stamp time.Time, timeout time.Duration) error {
	if t.WaitForTransformFunc == nil {
		return t.Transformer.WaitForTransform(ctx, dst, src, stamp, timeout)
	}
	return t.WaitForTransformFunc(ctx, dst, src, stamp, timeout)
}

// LookupTransform calls the injected LookupTransform or the real version.
func (t *Transformer) LookupTransform(dst, src string, stamp time.Time) (spatialmath.Pose, error) {
	if t.LookupTransformFunc == nil {
		return t.Transformer.LookupTransform(dst, src, stamp)
	}
	return t.LookupTransformFunc(dst, src, stamp)
}
