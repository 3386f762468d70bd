// Package referenceframe keeps the tree of named frames and the timestamped transforms between them.
package referenceframe

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/floormap/spatialmath"
)

// World is the string "world", but made into an exported constant.
const World = "world"

// DefaultHistoryLength is how many timestamped samples a dynamic link keeps by default.
const DefaultHistoryLength = 256

// Transformer converts between named frames at a point in time.
type Transformer interface {
	// WaitForTransform blocks until the transform taking points in src to dst is available at stamp,
	// the context is done, or the timeout elapses. Failure is always an ErrTransformUnavailable.
	WaitForTransform(ctx context.Context, dst, src string, stamp time.Time, timeout time.Duration) error

	// LookupTransform returns the pose of src expressed in dst at stamp. A zero stamp means the
	// most recent data.
	LookupTransform(dst, src string, stamp time.Time) (spatialmath.Pose, error)
}

type stampedPose struct {
	stamp time.Time
	pose  spatialmath.Pose
}

// link is the edge from a child frame to its parent.
type link struct {
	parent  string
	static  spatialmath.Pose
	history []stampedPose
}

// Buffer is an in-process Transformer built from static and timestamped parent->child links.
type Buffer struct {
	mu            sync.Mutex
	links         map[string]*link
	changed       chan struct{}
	historyLength int
}

// NewBuffer returns an empty Buffer keeping historyLength samples per dynamic link.
func NewBuffer(historyLength int) *Buffer {
	if historyLength <= 0 {
		historyLength = DefaultHistoryLength
	}
	return &Buffer{
		links:         map[string]*link{},
		changed:       make(chan struct{}),
		historyLength: historyLength,
	}
}

// SetStaticTransform records a time invariant pose of child in parent.
func (b *Buffer) SetStaticTransform(parent, child string, pose spatialmath.Pose) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, err := b.linkLocked(parent, child)
	if err != nil {
		return err
	}
	l.static = pose
	l.history = nil
	b.notifyLocked()
	return nil
}

// SetTransform records the pose of child in parent at stamp.
func (b *Buffer) SetTransform(parent, child string, stamp time.Time, pose spatialmath.Pose) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, err := b.linkLocked(parent, child)
	if err != nil {
		return err
	}
	l.static = nil

	idx := sort.Search(len(l.history), func(i int) bool {
		return !l.history[i].stamp.Before(stamp)
	})
	switch {
	case idx < len(l.history) && l.history[idx].stamp.Equal(stamp):
		l.history[idx].pose = pose
	default:
		l.history = append(l.history, stampedPose{})
		copy(l.history[idx+1:], l.history[idx:])
		l.history[idx] = stampedPose{stamp: stamp, pose: pose}
	}
	if over := len(l.history) - b.historyLength; over > 0 {
		l.history = append(l.history[:0], l.history[over:]...)
	}
	b.notifyLocked()
	return nil
}

// FrameNames returns the names of every frame that appears in the buffer, sorted.
func (b *Buffer) FrameNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := lo.Keys(b.links)
	for _, l := range b.links {
		names = append(names, l.parent)
	}
	names = lo.Uniq(names)
	sort.Strings(names)
	return names
}

// CanTransform returns nil if LookupTransform would succeed right now.
func (b *Buffer) CanTransform(dst, src string, stamp time.Time) error {
	_, err := b.LookupTransform(dst, src, stamp)
	return err
}

// LookupTransform returns the pose of src expressed in dst at stamp.
func (b *Buffer) LookupTransform(dst, src string, stamp time.Time) (spatialmath.Pose, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lookupLocked(dst, src, stamp)
}

// WaitForTransform blocks until LookupTransform(dst, src, stamp) succeeds, ctx is done or timeout elapses.
// A stamp older than a link's retained history fails immediately.
func (b *Buffer) WaitForTransform(ctx context.Context, dst, src string, stamp time.Time, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		b.mu.Lock()
		_, err := b.lookupLocked(dst, src, stamp)
		changed := b.changed
		b.mu.Unlock()
		if err == nil {
			return nil
		}
		var extErr *ExtrapolationError
		if errors.As(err, &extErr) && extErr.Expired() {
			return err
		}

		select {
		case <-ctx.Done():
			if errors.Is(err, ErrTransformUnavailable) {
				return errors.Wrapf(err, "timed out after %s", timeout)
			}
			return errors.Wrapf(ErrTransformUnavailable, "timed out after %s: %v", timeout, err)
		case <-changed:
		}
	}
}

func (b *Buffer) notifyLocked() {
	close(b.changed)
	b.changed = make(chan struct{})
}

func (b *Buffer) linkLocked(parent, child string) (*link, error) {
	if parent == "" || child == "" {
		return nil, errors.New("frame names must not be empty")
	}
	if parent == child {
		return nil, NewCycleError(parent, child)
	}
	if l, ok := b.links[child]; ok {
		if l.parent != parent {
			return nil, NewReparentError(child, l.parent, parent)
		}
		return l, nil
	}
	for name := parent; ; {
		up, ok := b.links[name]
		if !ok {
			break
		}
		if up.parent == child {
			return nil, NewCycleError(parent, child)
		}
		name = up.parent
	}
	l := &link{parent: parent}
	b.links[child] = l
	return l, nil
}

// poseAt returns the pose of the link's child in its parent at stamp.
func (l *link) poseAt(child string, stamp time.Time) (spatialmath.Pose, error) {
	if l.static != nil {
		return l.static, nil
	}
	if len(l.history) == 0 {
		return nil, errors.Wrapf(ErrTransformUnavailable, "link %q -> %q has no data", l.parent, child)
	}
	newest := l.history[len(l.history)-1]
	if stamp.IsZero() {
		return newest.pose, nil
	}
	oldest := l.history[0]
	if stamp.Before(oldest.stamp) || stamp.After(newest.stamp) {
		return nil, NewExtrapolationError(l.parent, child, stamp, oldest.stamp, newest.stamp)
	}

	idx := sort.Search(len(l.history), func(i int) bool {
		return !l.history[i].stamp.Before(stamp)
	})
	after := l.history[idx]
	if after.stamp.Equal(stamp) {
		return after.pose, nil
	}
	before := l.history[idx-1]
	span := after.stamp.Sub(before.stamp)
	by := float64(stamp.Sub(before.stamp)) / float64(span)
	return spatialmath.Interpolate(before.pose, after.pose, by), nil
}

// rootPoseLocked returns the name of the root of frame and the pose of frame in that root.
func (b *Buffer) rootPoseLocked(frame string, stamp time.Time) (string, spatialmath.Pose, error) {
	pose := spatialmath.NewZeroPose()
	name := frame
	for {
		l, ok := b.links[name]
		if !ok {
			return name, pose, nil
		}
		linkPose, err := l.poseAt(name, stamp)
		if err != nil {
			return "", nil, err
		}
		pose = spatialmath.Compose(linkPose, pose)
		name = l.parent
	}
}

func (b *Buffer) knownLocked(frame string) bool {
	if _, ok := b.links[frame]; ok {
		return true
	}
	for _, l := range b.links {
		if l.parent == frame {
			return true
		}
	}
	return false
}

func (b *Buffer) lookupLocked(dst, src string, stamp time.Time) (spatialmath.Pose, error) {
	if dst == src {
		return spatialmath.NewZeroPose(), nil
	}
	for _, name := range []string{dst, src} {
		if !b.knownLocked(name) {
			return nil, NewFrameMissingError(name)
		}
	}
	srcRoot, srcInRoot, err := b.rootPoseLocked(src, stamp)
	if err != nil {
		return nil, err
	}
	dstRoot, dstInRoot, err := b.rootPoseLocked(dst, stamp)
	if err != nil {
		return nil, err
	}
	if srcRoot != dstRoot {
		return nil, NewUnconnectedFramesError(dst, src)
	}
	return spatialmath.Compose(spatialmath.PoseInverse(dstInRoot), srcInRoot), nil
}
