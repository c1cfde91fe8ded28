// Package export persists completed annotation sessions.
//
// A Bundle carries the encoded video, the encoded label and everything
// needed to decode them again. Bundles are serialized as CBOR and identified
// by their session ID; a domain-separated digest over their canonical
// metadata and streams detects corruption on read.
//
// Three archives are provided: DirSink (one file per bundle), Store
// (SQLite) and S3Sink (object storage). All of them implement Archive.
package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/motionvdl/internal/bitstream"
	"github.com/roach88/motionvdl/internal/canonical"
	"github.com/roach88/motionvdl/internal/label"
	"github.com/roach88/motionvdl/internal/session"
	"github.com/roach88/motionvdl/internal/video"
)

// Domain prefixes for content digests. The version suffix allows the digest
// layout to change without colliding with old values.
const (
	DomainBundle = "motionvdl/bundle/v1"
	DomainStream = "motionvdl/stream/v1"
)

// FormatVersion is written into every bundle.
const FormatVersion = 1

// Extension is the file suffix for bundles written to disk or object storage.
const Extension = ".mvdl"

var (
	// ErrNotFound is returned when no bundle exists for a session ID.
	ErrNotFound = errors.New("bundle not found")
	// ErrDigestMismatch is returned when a bundle's content does not match
	// its recorded digest.
	ErrDigestMismatch = errors.New("bundle digest mismatch")
	// ErrConflict is returned when a different bundle is already stored
	// under the same session ID.
	ErrConflict = errors.New("bundle conflicts with stored bundle")
)

// Bundle is one exported (video, label) pair.
type Bundle struct {
	Version   int              `cbor:"version" json:"version"`
	SessionID string           `cbor:"session_id" json:"session_id"`
	Source    string           `cbor:"source" json:"source"`
	Width     int              `cbor:"width" json:"width"`
	Height    int              `cbor:"height" json:"height"`
	Depth     int              `cbor:"depth" json:"depth"`
	MaxLevel  uint8            `cbor:"max_level" json:"max_level"`
	Capacity  int              `cbor:"capacity" json:"capacity"`
	Joints    []string         `cbor:"joints,omitempty" json:"joints,omitempty"`
	Video     bitstream.Stream `cbor:"video" json:"-"`
	Label     bitstream.Stream `cbor:"label" json:"-"`
	Digest    string           `cbor:"digest" json:"digest"`
}

// Summary is the listing view of a stored bundle.
type Summary struct {
	SessionID string `json:"session_id"`
	Source    string `json:"source"`
	Depth     int    `json:"depth"`
	Capacity  int    `json:"capacity"`
	Digest    string `json:"digest"`
}

// Sink accepts bundles and returns the key each was stored under.
type Sink interface {
	Write(ctx context.Context, b *Bundle) (key string, err error)
}

// Archive is a Sink that can also read back and enumerate bundles.
type Archive interface {
	Sink
	Read(ctx context.Context, sessionID string) (*Bundle, error)
	List(ctx context.Context) ([]Summary, error)
	Close() error
}

// NewBundle wraps a session result and computes its digest.
func NewBundle(sessionID, source string, r session.Result) (*Bundle, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("new bundle: empty session id")
	}
	b := &Bundle{
		Version:   FormatVersion,
		SessionID: sessionID,
		Source:    source,
		Width:     r.Width,
		Height:    r.Height,
		Depth:     r.Depth,
		MaxLevel:  r.MaxLevel,
		Capacity:  r.Capacity,
		Joints:    append([]string(nil), r.Joints...),
		Video:     r.Video,
		Label:     r.Label,
	}
	digest, err := Digest(b)
	if err != nil {
		return nil, fmt.Errorf("new bundle: %w", err)
	}
	b.Digest = digest
	return b, nil
}

// Summary returns the listing view of b.
func (b *Bundle) Summary() Summary {
	return Summary{
		SessionID: b.SessionID,
		Source:    b.Source,
		Depth:     b.Depth,
		Capacity:  b.Capacity,
		Digest:    b.Digest,
	}
}

// Digest computes the content digest of b. The Digest field itself is not
// part of the input.
func Digest(b *Bundle) (string, error) {
	joints := make([]any, len(b.Joints))
	for i, j := range b.Joints {
		joints[i] = j
	}
	meta := map[string]any{
		"version":    b.Version,
		"session_id": b.SessionID,
		"source":     b.Source,
		"width":      b.Width,
		"height":     b.Height,
		"depth":      b.Depth,
		"max_level":  b.MaxLevel,
		"capacity":   b.Capacity,
		"joints":     joints,
		"video":      streamMeta(b.Video),
		"label":      streamMeta(b.Label),
	}
	return canonical.Hash(DomainBundle, meta)
}

func streamMeta(s bitstream.Stream) map[string]any {
	return map[string]any{
		"bits": s.Bits,
		"hash": canonical.HashWithDomain(DomainStream, s.Data),
	}
}

// Verify recomputes the digest and compares it to the recorded one.
func (b *Bundle) Verify() error {
	want, err := Digest(b)
	if err != nil {
		return fmt.Errorf("verify %s: %w", b.SessionID, err)
	}
	if want != b.Digest {
		return fmt.Errorf("verify %s: %w", b.SessionID, ErrDigestMismatch)
	}
	return nil
}

// DecodeVideo rebuilds the video stored in b.
func (b *Bundle) DecodeVideo() (*video.Video, error) {
	v, err := video.Decode(b.Video, b.Width, b.Height, b.Depth, b.MaxLevel)
	if err != nil {
		return nil, fmt.Errorf("bundle %s: video: %w", b.SessionID, err)
	}
	return v, nil
}

// DecodeLabel rebuilds the label stored in b.
func (b *Bundle) DecodeLabel() (*label.Label, error) {
	l, err := label.Decode(b.Label, b.Capacity, b.Depth)
	if err != nil {
		return nil, fmt.Errorf("bundle %s: label: %w", b.SessionID, err)
	}
	return l, nil
}

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// Encode serializes b as deterministic CBOR.
func Encode(b *Bundle) ([]byte, error) {
	data, err := encMode.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}
	return data, nil
}

// DecodeBundle parses CBOR produced by Encode and verifies the digest.
func DecodeBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := cbor.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if b.Version != FormatVersion {
		return nil, fmt.Errorf("decode bundle: unsupported version %d", b.Version)
	}
	if err := b.Video.Validate(); err != nil {
		return nil, fmt.Errorf("decode bundle: video: %w", err)
	}
	if err := b.Label.Validate(); err != nil {
		return nil, fmt.Errorf("decode bundle: label: %w", err)
	}
	if err := b.Verify(); err != nil {
		return nil, err
	}
	return &b, nil
}
