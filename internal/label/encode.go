package label

import (
	"fmt"

	"github.com/roach88/motionvdl/internal/bitstream"
)

// CoordBits is the field width of each coordinate in the export stream.
const CoordBits = 16

const maxCoord = 1<<CoordBits - 1

// ErrCoordinate is returned by Export for a coordinate that does not fit in
// CoordBits unsigned bits.
var ErrCoordinate = fmt.Errorf("coordinate outside [0,%d]", maxCoord)

// CoordinateError names the first point Export could not encode.
type CoordinateError struct {
	Frame int
	Index int
	Point Point
}

func (e *CoordinateError) Error() string {
	return fmt.Sprintf("frame %d point %d %s: %v", e.Frame, e.Index, e.Point, ErrCoordinate)
}

func (e *CoordinateError) Unwrap() error { return ErrCoordinate }

// Export encodes every frame's points in order: for each frame, for each
// point, x then y as CoordBits-bit unsigned fields. The label must be full.
func (l *Label) Export() (bitstream.Stream, error) {
	if !l.CheckFull() {
		return bitstream.Stream{}, fmt.Errorf("export: %d of %d frames full: %w",
			l.FullFrames(), len(l.frames), ErrIncomplete)
	}
	w := bitstream.NewWriter(len(l.frames) * l.capacity * 2 * CoordBits)
	for i, f := range l.frames {
		for j, p := range f {
			if p.X < 0 || p.X > maxCoord || p.Y < 0 || p.Y > maxCoord {
				return bitstream.Stream{}, fmt.Errorf("export: %w", &CoordinateError{Frame: i, Index: j, Point: p})
			}
			_ = w.WriteBits(uint64(p.X), CoordBits)
			_ = w.WriteBits(uint64(p.Y), CoordBits)
		}
	}
	return w.Stream(), nil
}

// Decode rebuilds a full label from a stream produced by Export.
func Decode(s bitstream.Stream, capacity, depth int) (*Label, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("decode label: %w", err)
	}
	l, err := New(capacity, depth)
	if err != nil {
		return nil, fmt.Errorf("decode label: %w", err)
	}
	if want := depth * capacity * 2 * CoordBits; s.Bits != want {
		return nil, fmt.Errorf("decode label: stream has %d bits, shape needs %d", s.Bits, want)
	}

	r := bitstream.NewReader(s)
	for i := 0; i < depth; i++ {
		for j := 0; j < capacity; j++ {
			x, err := r.ReadBits(CoordBits)
			if err != nil {
				return nil, fmt.Errorf("decode label: frame %d point %d: %w", i, j, err)
			}
			y, err := r.ReadBits(CoordBits)
			if err != nil {
				return nil, fmt.Errorf("decode label: frame %d point %d: %w", i, j, err)
			}
			l.Insert(i, Point{X: int(x), Y: int(y)})
		}
	}
	return l, nil
}
