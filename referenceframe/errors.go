package referenceframe

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrTransformUnavailable is returned, possibly wrapped, whenever a transform between two frames
// cannot be produced for the requested time.
var ErrTransformUnavailable = errors.New("transform unavailable")

// NewFrameMissingError returns an error indicating that the given frame is not known to the buffer.
func NewFrameMissingError(frameName string) error {
	return errors.Wrapf(ErrTransformUnavailable, "frame %q does not exist", frameName)
}

// NewUnconnectedFramesError returns an error indicating that two frames do not share a root.
func NewUnconnectedFramesError(dst, src string) error {
	return errors.Wrapf(ErrTransformUnavailable, "frames %q and %q are not connected", dst, src)
}

// ExtrapolationError is returned when a link has no data bracketing the requested time.
// It unwraps to ErrTransformUnavailable.
type ExtrapolationError struct {
	Parent, Child         string
	Stamp, Oldest, Newest time.Time
}

// NewExtrapolationError returns an error indicating that a link has no data bracketing the requested time.
func NewExtrapolationError(parent, child string, stamp, oldest, newest time.Time) error {
	return &ExtrapolationError{Parent: parent, Child: child, Stamp: stamp, Oldest: oldest, Newest: newest}
}

func (e *ExtrapolationError) Error() string {
	return fmt.Sprintf("%v: link %q -> %q has no data at %s (history spans %s to %s)",
		ErrTransformUnavailable, e.Parent, e.Child, e.Stamp.Format(time.RFC3339Nano),
		e.Oldest.Format(time.RFC3339Nano), e.Newest.Format(time.RFC3339Nano))
}

func (e *ExtrapolationError) Unwrap() error {
	return ErrTransformUnavailable
}

// Expired reports whether the requested time is older than every retained sample. Newer samples
// never fill that gap.
func (e *ExtrapolationError) Expired() bool {
	return e.Stamp.Before(e.Oldest)
}

// NewCycleError returns an error indicating that adding a link would create a cycle.
func NewCycleError(parent, child string) error {
	return errors.Errorf("linking %q under %q would create a cycle", child, parent)
}

// NewReparentError returns an error indicating a frame already has a different parent.
func NewReparentError(child, existing, requested string) error {
	return errors.Errorf("frame %q already has parent %q, cannot set parent %q", child, existing, requested)
}
