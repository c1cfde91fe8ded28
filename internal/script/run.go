package script

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/motionvdl/internal/display"
	"github.com/roach88/motionvdl/internal/export"
	"github.com/roach88/motionvdl/internal/host"
	"github.com/roach88/motionvdl/internal/label"
	"github.com/roach88/motionvdl/internal/session"
	"github.com/roach88/motionvdl/internal/skeleton"
	"github.com/roach88/motionvdl/internal/video"
)

// Result is the outcome of running a script.
type Result struct {
	// Pass is true when every expectation held.
	Pass bool `json:"pass"`

	// Errors lists failed expectations and rejected events.
	Errors []string `json:"errors,omitempty"`

	// Transcript interleaves the events ("> point 1 1") with the display
	// commands each one produced.
	Transcript string `json:"transcript"`

	FrameIndex int    `json:"frame_index"`
	Counts     []int  `json:"counts"`
	Full       bool   `json:"full"`
	Exported   bool   `json:"exported"`
	Message    string `json:"message,omitempty"`

	// Bundle is the exported bundle, if any.
	Bundle *export.Bundle `json:"bundle,omitempty"`
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Option configures Run.
type Option func(*runner)

type runner struct {
	loader video.Loader
	logger *slog.Logger
}

// WithLoader sets the video loader. Defaults to noise sources only.
func WithLoader(l video.Loader) Option {
	return func(r *runner) {
		r.loader = l
	}
}

// WithLogger sets the logger passed to the host and session.
func WithLogger(l *slog.Logger) Option {
	return func(r *runner) {
		r.logger = l
	}
}

// Run executes s against a recorder and an in-memory host.
//
// The returned error covers setup failures (unloadable video, bad
// skeleton). Failed expectations are reported in Result.Errors.
func Run(ctx context.Context, s *Script, opts ...Option) (*Result, error) {
	r := &runner{
		loader: video.SourceLoader{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}

	v, err := r.loader.Load(ctx, s.Video)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", s.Name, err)
	}

	sk := skeletonFor(s)
	if err := sk.Validate(); err != nil {
		return nil, fmt.Errorf("script %s: skeleton: %w", s.Name, err)
	}

	id := s.SessionID
	if id == "" {
		id = DefaultSessionID
	}

	rec := display.NewRecorder()
	h := host.New(rec, nil,
		host.WithSkeleton(sk),
		host.WithIDGenerator(host.NewFixedGenerator(id)),
		host.WithLogger(r.logger),
	)
	sess, err := h.Start(v, s.Video)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", s.Name, err)
	}

	res := &Result{Pass: true, Errors: []string{}}
	var transcript strings.Builder
	transcript.WriteString(rec.Transcript())
	lastIndex := sess.FrameIndex()

	for i, line := range s.Events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec.Reset()
		e, err := session.ParseEvent(line)
		if err != nil {
			return nil, fmt.Errorf("script %s: events[%d]: %w", s.Name, i, err)
		}
		fmt.Fprintf(&transcript, "> %s\n", e)
		if err := sess.Apply(e); err != nil {
			res.addError("events[%d] %s: %v", i, e, err)
		}
		transcript.WriteString(rec.Transcript())
		for _, c := range rec.Commands() {
			if c.Op == display.OpSetMessage {
				res.Message = c.Text
			}
		}
		if sess.Active() {
			lastIndex = sess.FrameIndex()
		}
	}

	res.Transcript = transcript.String()
	res.FrameIndex = lastIndex

	var lbl *label.Label
	if pending := h.Pending(); len(pending) > 0 {
		res.Exported = true
		res.Bundle = pending[0]
		lbl, err = res.Bundle.DecodeLabel()
		if err != nil {
			return nil, fmt.Errorf("script %s: %w", s.Name, err)
		}
		res.Counts = lbl.Counts()
		res.Full = lbl.CheckFull()
	} else {
		res.Counts = sess.Counts()
		res.Full = sess.Full()
	}

	pointsAt := func(i int) []label.Point {
		if lbl != nil {
			return lbl.PointsAt(i)
		}
		return sess.PointsAt(i)
	}
	check(s.Expect, res, pointsAt)
	return res, nil
}

func skeletonFor(s *Script) *skeleton.Skeleton {
	if len(s.Joints) > 0 {
		return &skeleton.Skeleton{Name: s.Name, Joints: s.Joints}
	}
	if s.Capacity > 0 {
		return skeleton.Numbered(s.Capacity)
	}
	return skeleton.Default()
}

func check(want Expect, res *Result, pointsAt func(int) []label.Point) {
	if want.FrameIndex != nil && *want.FrameIndex != res.FrameIndex {
		res.addError("frame_index: want %d, got %d", *want.FrameIndex, res.FrameIndex)
	}
	if want.Counts != nil && !slices.Equal(want.Counts, res.Counts) {
		res.addError("counts: want %v, got %v", want.Counts, res.Counts)
	}
	if want.Full != nil && *want.Full != res.Full {
		res.addError("full: want %t, got %t", *want.Full, res.Full)
	}
	if want.Exported != nil && *want.Exported != res.Exported {
		res.addError("exported: want %t, got %t", *want.Exported, res.Exported)
	}
	if want.Message != nil && *want.Message != res.Message {
		res.addError("message: want %q, got %q", *want.Message, res.Message)
	}

	frames := make([]int, 0, len(want.Points))
	for f := range want.Points {
		frames = append(frames, f)
	}
	slices.Sort(frames)
	for _, f := range frames {
		if f < 0 || f >= len(res.Counts) {
			res.addError("points[%d]: frame out of range [0,%d)", f, len(res.Counts))
			continue
		}
		got := pointsAt(f)
		if !slices.Equal(want.Points[f], got) {
			res.addError("points[%d]: want %v, got %v", f, want.Points[f], got)
		}
	}
}
