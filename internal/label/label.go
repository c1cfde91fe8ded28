// Package label stores the key-points marked on each frame of a video.
//
// A Label holds one ordered point sequence per frame, each bounded by a fixed
// capacity. Insert and RemoveLast report capacity and emptiness as Status
// values rather than errors: both are ordinary outcomes of user input and the
// caller decides what they mean.
package label

import (
	"errors"
	"fmt"
)

// DefaultCapacity is the number of key-points per frame of the default
// skeleton.
const DefaultCapacity = 11

// Point is a pixel coordinate in the frame it was marked on.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Status is the outcome of a mutation.
type Status int

const (
	// OK means the mutation was applied.
	OK Status = iota
	// Full means the frame already held Capacity points; nothing changed.
	Full
	// Empty means the frame held no points; nothing changed.
	Empty
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case Full:
		return "full"
	case Empty:
		return "empty"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// RangeError reports a frame index outside the label. It is raised as a
// panic: callers clamp indices before touching the label, so an
// out-of-range index is a broken invariant, not user input.
type RangeError struct {
	Index int
	Depth int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("label: frame index %d out of range [0,%d)", e.Index, e.Depth)
}

// ErrIncomplete is returned by Export when some frame is not full.
var ErrIncomplete = errors.New("label is not full")

// Label is the per-frame point store.
type Label struct {
	capacity int
	frames   [][]Point
}

// New creates an empty label for depth frames of capacity points each.
func New(capacity, depth int) (*Label, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("label capacity must be at least 1, got %d", capacity)
	}
	if depth < 1 {
		return nil, fmt.Errorf("label depth must be at least 1, got %d", depth)
	}
	frames := make([][]Point, depth)
	for i := range frames {
		frames[i] = make([]Point, 0, capacity)
	}
	return &Label{capacity: capacity, frames: frames}, nil
}

// Capacity returns the per-frame point limit.
func (l *Label) Capacity() int { return l.capacity }

// Depth returns the number of frames.
func (l *Label) Depth() int { return len(l.frames) }

func (l *Label) check(i int) {
	if i < 0 || i >= len(l.frames) {
		panic(&RangeError{Index: i, Depth: len(l.frames)})
	}
}

// Insert appends p to frame i.
func (l *Label) Insert(i int, p Point) Status {
	l.check(i)
	if len(l.frames[i]) >= l.capacity {
		return Full
	}
	l.frames[i] = append(l.frames[i], p)
	return OK
}

// RemoveLast removes and returns the most recent point of frame i.
func (l *Label) RemoveLast(i int) (Point, Status) {
	l.check(i)
	n := len(l.frames[i])
	if n == 0 {
		return Point{}, Empty
	}
	p := l.frames[i][n-1]
	l.frames[i] = l.frames[i][:n-1]
	return p, OK
}

// PointsAt returns a copy of frame i's points in insertion order.
func (l *Label) PointsAt(i int) []Point {
	l.check(i)
	out := make([]Point, len(l.frames[i]))
	copy(out, l.frames[i])
	return out
}

// Count returns the number of points on frame i.
func (l *Label) Count(i int) int {
	l.check(i)
	return len(l.frames[i])
}

// Counts returns the number of points on every frame.
func (l *Label) Counts() []int {
	out := make([]int, len(l.frames))
	for i, f := range l.frames {
		out[i] = len(f)
	}
	return out
}

// FullFrames returns how many frames hold Capacity points.
func (l *Label) FullFrames() int {
	n := 0
	for _, f := range l.frames {
		if len(f) == l.capacity {
			n++
		}
	}
	return n
}

// CheckFull reports whether every frame holds exactly Capacity points.
func (l *Label) CheckFull() bool {
	return l.FullFrames() == len(l.frames)
}
