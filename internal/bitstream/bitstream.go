// Package bitstream packs and unpacks fixed-width unsigned fields into a
// contiguous bit sequence.
//
// Bits are written most significant first. A Stream records its exact bit
// length so trailing padding in the last byte is never mistaken for data.
package bitstream

import (
	"errors"
	"fmt"
)

// ErrShortStream is returned when a read runs past the end of the stream.
var ErrShortStream = errors.New("bitstream: read past end of stream")

// Stream is an encoded bit sequence.
type Stream struct {
	Data []byte `cbor:"data" json:"data"`
	Bits int    `cbor:"bits" json:"bits"`
}

// Writer appends bits to a growing buffer.
type Writer struct {
	buf  []byte
	bits int
}

// NewWriter creates a writer with room for sizeHint bits.
func NewWriter(sizeHint int) *Writer {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Writer{buf: make([]byte, 0, (sizeHint+7)/8)}
}

// WriteBits appends the low width bits of v. Width must be in [0, 64].
func (w *Writer) WriteBits(v uint64, width int) error {
	if width < 0 || width > 64 {
		return fmt.Errorf("bitstream: invalid width %d", width)
	}
	if width < 64 && v>>uint(width) != 0 {
		return fmt.Errorf("bitstream: value %d does not fit in %d bits", v, width)
	}
	for i := width - 1; i >= 0; i-- {
		w.writeBit(v>>uint(i)&1 == 1)
	}
	return nil
}

func (w *Writer) writeBit(b bool) {
	if w.bits%8 == 0 {
		w.buf = append(w.buf, 0)
	}
	if b {
		w.buf[len(w.buf)-1] |= 0x80 >> uint(w.bits%8)
	}
	w.bits++
}

// Len returns the number of bits written.
func (w *Writer) Len() int {
	return w.bits
}

// Stream returns the written bits. The writer must not be used afterwards.
func (w *Writer) Stream() Stream {
	return Stream{Data: w.buf, Bits: w.bits}
}

// Reader consumes bits from a Stream.
type Reader struct {
	s   Stream
	pos int
}

// NewReader creates a reader positioned at the first bit.
func NewReader(s Stream) *Reader {
	return &Reader{s: s}
}

// ReadBits reads width bits as an unsigned value.
func (r *Reader) ReadBits(width int) (uint64, error) {
	if width < 0 || width > 64 {
		return 0, fmt.Errorf("bitstream: invalid width %d", width)
	}
	if r.pos+width > r.s.Bits {
		return 0, ErrShortStream
	}
	var v uint64
	for i := 0; i < width; i++ {
		v <<= 1
		if r.s.Data[r.pos/8]&(0x80>>uint(r.pos%8)) != 0 {
			v |= 1
		}
		r.pos++
	}
	return v, nil
}

// Validate checks that Data is long enough to hold Bits.
func (s Stream) Validate() error {
	if s.Bits < 0 {
		return fmt.Errorf("bitstream: negative length %d", s.Bits)
	}
	if need := (s.Bits + 7) / 8; len(s.Data) < need {
		return fmt.Errorf("bitstream: %d bits need %d bytes, have %d", s.Bits, need, len(s.Data))
	}
	return nil
}
