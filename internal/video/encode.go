package video

import (
	"fmt"

	"github.com/roach88/motionvdl/internal/bitstream"
)

// Export encodes every pixel of every frame, frame-major then row-major,
// using BitsPerLevel(MaxLevel()) bits per pixel. Dimensions are not part of
// the stream; the exporter carries them as metadata.
func (v *Video) Export() bitstream.Stream {
	width := BitsPerLevel(v.MaxLevel())
	total := v.FrameCount() * v.Width() * v.Height() * width
	w := bitstream.NewWriter(total)
	for _, f := range v.frames {
		for _, p := range f.pix {
			// Levels were bounded by maxLevel at construction.
			_ = w.WriteBits(uint64(p), width)
		}
	}
	return w.Stream()
}

// Decode rebuilds a video from a stream produced by Export.
func Decode(s bitstream.Stream, width, height, depth int, maxLevel uint8) (*Video, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("decode video: %w", err)
	}
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("decode video: invalid shape %dx%dx%d", width, height, depth)
	}
	field := BitsPerLevel(maxLevel)
	if want := width * height * depth * field; s.Bits != want {
		return nil, fmt.Errorf("decode video: stream has %d bits, shape needs %d", s.Bits, want)
	}

	r := bitstream.NewReader(s)
	frames := make([]Frame, depth)
	for i := range frames {
		pix := make([]uint8, width*height)
		for j := range pix {
			level, err := r.ReadBits(field)
			if err != nil {
				return nil, fmt.Errorf("decode video: frame %d pixel %d: %w", i, j, err)
			}
			pix[j] = uint8(level)
		}
		f, err := NewFrame(width, height, maxLevel, pix)
		if err != nil {
			return nil, fmt.Errorf("decode video: frame %d: %w", i, err)
		}
		frames[i] = f
	}
	return New(frames...)
}
