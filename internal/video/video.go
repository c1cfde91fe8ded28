// Package video holds decoded video frames for annotation.
//
// A Video is an immutable, ordered sequence of equally sized 8-bit grayscale
// frames. It is produced once by a Loader and then only read: the annotation
// session borrows it, steps through it by index, and encodes it for export
// once the label is complete.
package video

import (
	"errors"
	"fmt"
	"image"
	"math/bits"
)

// DefaultMaxLevel is the brightest level of an 8-bit frame.
const DefaultMaxLevel uint8 = 255

// ErrOutOfRange is returned by Frame for an index outside [0, FrameCount()-1].
var ErrOutOfRange = errors.New("frame index out of range")

// Frame is one immutable grayscale image.
type Frame struct {
	width    int
	height   int
	maxLevel uint8
	pix      []uint8
}

// NewFrame builds a frame from row-major pixel levels. The slice is copied.
func NewFrame(width, height int, maxLevel uint8, pix []uint8) (Frame, error) {
	if width <= 0 || height <= 0 {
		return Frame{}, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if len(pix) != width*height {
		return Frame{}, fmt.Errorf("frame %dx%d needs %d pixels, got %d", width, height, width*height, len(pix))
	}
	for i, p := range pix {
		if p > maxLevel {
			return Frame{}, fmt.Errorf("pixel %d level %d exceeds max level %d", i, p, maxLevel)
		}
	}
	cp := make([]uint8, len(pix))
	copy(cp, pix)
	return Frame{width: width, height: height, maxLevel: maxLevel, pix: cp}, nil
}

// FrameFromImage converts any image to a grayscale frame.
func FrameFromImage(img image.Image) (Frame, error) {
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	pix := make([]uint8, 0, b.Dx()*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()]
		pix = append(pix, row...)
	}
	return NewFrame(b.Dx(), b.Dy(), DefaultMaxLevel, pix)
}

// Width returns the frame width in pixels.
func (f Frame) Width() int { return f.width }

// Height returns the frame height in pixels.
func (f Frame) Height() int { return f.height }

// MaxLevel returns the brightest level a pixel may hold.
func (f Frame) MaxLevel() uint8 { return f.maxLevel }

// At returns the level at (x, y). It panics when the coordinate is outside
// the frame, like indexing a slice.
func (f Frame) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		panic(fmt.Sprintf("video: pixel (%d,%d) outside %dx%d frame", x, y, f.width, f.height))
	}
	return f.pix[y*f.width+x]
}

// Image returns a copy of the frame as an *image.Gray for renderers.
func (f Frame) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.width, f.height))
	copy(img.Pix, f.pix)
	return img
}

// Video is an ordered, fixed-length sequence of frames of one size.
type Video struct {
	frames []Frame
}

// New builds a video from at least one frame. All frames must share width,
// height and max level.
func New(frames ...Frame) (*Video, error) {
	if len(frames) == 0 {
		return nil, errors.New("video must contain at least one frame")
	}
	first := frames[0]
	for i, f := range frames[1:] {
		if f.width != first.width || f.height != first.height || f.maxLevel != first.maxLevel {
			return nil, fmt.Errorf("frame %d is %dx%d/%d, want %dx%d/%d",
				i+1, f.width, f.height, f.maxLevel, first.width, first.height, first.maxLevel)
		}
	}
	cp := make([]Frame, len(frames))
	copy(cp, frames)
	return &Video{frames: cp}, nil
}

// FrameCount returns the number of frames. It never changes.
func (v *Video) FrameCount() int {
	return len(v.frames)
}

// Frame returns frame i.
func (v *Video) Frame(i int) (Frame, error) {
	if i < 0 || i >= len(v.frames) {
		return Frame{}, fmt.Errorf("frame %d of %d: %w", i, len(v.frames), ErrOutOfRange)
	}
	return v.frames[i], nil
}

// Width returns the shared frame width.
func (v *Video) Width() int { return v.frames[0].width }

// Height returns the shared frame height.
func (v *Video) Height() int { return v.frames[0].height }

// MaxLevel returns the shared max pixel level.
func (v *Video) MaxLevel() uint8 { return v.frames[0].maxLevel }

// BitsPerLevel is the field width used to encode a pixel whose level never
// exceeds maxLevel.
func BitsPerLevel(maxLevel uint8) int {
	if maxLevel == 0 {
		return 1
	}
	return bits.Len8(maxLevel)
}
