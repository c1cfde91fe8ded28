// Package session implements the annotation state machine.
//
// A Session steps through the frames of one borrowed video and accumulates
// up to Capacity key-points per frame. It reacts to five events coming from
// the rendering layer (Point, Undo, FrameUp, FrameDown, Complete) and answers
// with display commands. When the label is full, Complete encodes the video
// and the label and hands both to the Receiver that owns the session.
//
// # Event semantics
//
//   - Point(x, y) records (x, y) on the current frame. If the frame already
//     holds Capacity points the click is treated as FrameUp and nothing is
//     recorded.
//   - Undo() removes the last point of the current frame. If the frame is
//     empty it is treated as FrameDown.
//   - FrameUp()/FrameDown() clamp at the last/first frame.
//   - Complete() exports only when every frame is full and every point fits
//     the export encoding; otherwise it shows a message and changes nothing.
//
// The session is single-threaded: each event runs to completion before the
// next. Hosts that receive input on several goroutines funnel it through a
// Dispatcher.
package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/motionvdl/internal/bitstream"
	"github.com/roach88/motionvdl/internal/display"
	"github.com/roach88/motionvdl/internal/label"
	"github.com/roach88/motionvdl/internal/video"
)

// Title is shown when a video is bound to a session.
const Title = "MotionVDL Labelling stage"

// MsgLabelNotFull is shown when Complete is requested on a partial label.
const MsgLabelNotFull = "The label must be full to export to file"

// MsgPointNotExportable is shown when a full label holds a point outside the
// export coordinate range. Arguments are the point, its index and its frame.
const MsgPointNotExportable = "Point %d %s on frame %d cannot be exported; undo it and click again"

// ErrInactive is returned by Complete when no video is bound.
var ErrInactive = errors.New("session is not active")

// Receiver takes ownership of a finished (video, label) pair.
type Receiver interface {
	Receive(Result) error
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(Result) error

// Receive implements Receiver.
func (f ReceiverFunc) Receive(r Result) error { return f(r) }

// Result is the encoded pair produced by a completed session, with the
// metadata needed to decode it later.
type Result struct {
	Video    bitstream.Stream
	Label    bitstream.Stream
	Width    int
	Height   int
	Depth    int
	MaxLevel uint8
	Capacity int
	Joints   []string
}

// Session is one annotation pass over one video.
type Session struct {
	display  display.Display
	receiver Receiver
	logger   *slog.Logger
	capacity int
	joints   []string

	video  *video.Video
	label  *label.Label
	cursor Cursor
}

// Option configures a Session.
type Option func(*Session)

// WithCapacity sets the number of points per frame.
func WithCapacity(k int) Option {
	return func(s *Session) {
		s.capacity = k
	}
}

// WithJoints names the points of a frame in insertion order. The capacity
// becomes len(names).
func WithJoints(names []string) Option {
	return func(s *Session) {
		s.joints = append([]string(nil), names...)
		s.capacity = len(names)
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// New creates an inactive session. Call Activate to bind a video.
func New(d display.Display, r Receiver, opts ...Option) *Session {
	s := &Session{
		display:  d,
		receiver: r,
		capacity: label.DefaultCapacity,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Activate binds v to the session, resets the cursor to frame 0, starts an
// empty label and shows the first frame.
func (s *Session) Activate(v *video.Video) error {
	if v == nil || v.FrameCount() < 1 {
		return errors.New("activate: video must have at least one frame")
	}
	l, err := label.New(s.capacity, v.FrameCount())
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}

	s.video = v
	s.label = l
	s.cursor = NewCursor(v.FrameCount())

	s.display.SetTitle(Title)
	s.display.ShowFrame(s.frame())

	s.logger.Info("session activated", "frames", v.FrameCount(), "capacity", s.capacity,
		"width", v.Width(), "height", v.Height())
	return nil
}

// Active reports whether a video is bound.
func (s *Session) Active() bool {
	return s.video != nil
}

// FrameIndex returns the current frame.
func (s *Session) FrameIndex() int {
	return s.cursor.Index()
}

// Capacity returns the per-frame point limit.
func (s *Session) Capacity() int {
	return s.capacity
}

// PointsAt returns the points recorded on frame i.
func (s *Session) PointsAt(i int) []label.Point {
	if s.label == nil {
		return nil
	}
	return s.label.PointsAt(i)
}

// Counts returns the number of points on each frame, or nil when inactive.
func (s *Session) Counts() []int {
	if s.label == nil {
		return nil
	}
	return s.label.Counts()
}

// Full reports whether every frame holds Capacity points.
func (s *Session) Full() bool {
	return s.label != nil && s.label.CheckFull()
}

// Point records a click at (x, y) on the current frame, or advances when the
// frame is already full.
func (s *Session) Point(x, y int) {
	if !s.ready("point") {
		return
	}
	switch s.label.Insert(s.cursor.Index(), label.Point{X: x, Y: y}) {
	case label.OK:
		s.display.DrawPoint(x, y)
		s.logger.Debug("point recorded", "frame", s.cursor.Index(), "x", x, "y", y,
			"count", s.label.Count(s.cursor.Index()))
	case label.Full:
		s.logger.Debug("frame full, advancing", "frame", s.cursor.Index())
		s.FrameUp()
	}
}

// Undo removes the last point of the current frame, or retreats when the
// frame is empty.
func (s *Session) Undo() {
	if !s.ready("undo") {
		return
	}
	p, status := s.label.RemoveLast(s.cursor.Index())
	switch status {
	case label.OK:
		s.display.ClearPoints()
		s.display.DrawPoints(s.label.PointsAt(s.cursor.Index()))
		s.logger.Debug("point removed", "frame", s.cursor.Index(), "x", p.X, "y", p.Y)
	case label.Empty:
		s.logger.Debug("frame empty, retreating", "frame", s.cursor.Index())
		s.FrameDown()
	}
}

// FrameUp moves to the next frame, clamping at the last one, and redraws.
func (s *Session) FrameUp() {
	if !s.ready("frame up") {
		return
	}
	s.cursor.Up()
	s.refresh()
}

// FrameDown moves to the previous frame, clamping at 0, and redraws.
func (s *Session) FrameDown() {
	if !s.ready("frame down") {
		return
	}
	s.cursor.Down()
	s.refresh()
}

// Complete exports the session when the label is full. On a partial label
// it shows MsgLabelNotFull and returns nil without changing state.
//
// A full label holding a point the export encoding cannot represent is
// treated the same way: the message names the point and the session stays
// active so the user can undo it.
//
// On success the session releases its video and label before handing the
// Result to the receiver; the session is inactive afterwards.
func (s *Session) Complete() error {
	if !s.Active() {
		return ErrInactive
	}
	if !s.label.CheckFull() {
		s.display.SetMessage(MsgLabelNotFull)
		s.logger.Info("completion refused", "full_frames", s.label.FullFrames(), "frames", s.label.Depth())
		return nil
	}

	labelBits, err := s.label.Export()
	var ce *label.CoordinateError
	if errors.As(err, &ce) {
		s.display.SetMessage(fmt.Sprintf(MsgPointNotExportable, ce.Index, ce.Point, ce.Frame))
		s.logger.Info("completion refused", "frame", ce.Frame, "point", ce.Point.String())
		return nil
	}
	if err != nil {
		return fmt.Errorf("complete: %w", err)
	}
	res := Result{
		Video:    s.video.Export(),
		Label:    labelBits,
		Width:    s.video.Width(),
		Height:   s.video.Height(),
		Depth:    s.video.FrameCount(),
		MaxLevel: s.video.MaxLevel(),
		Capacity: s.capacity,
		Joints:   append([]string(nil), s.joints...),
	}

	s.release()
	s.logger.Info("session completed", "frames", res.Depth, "label_bits", res.Label.Bits, "video_bits", res.Video.Bits)

	if s.receiver == nil {
		return errors.New("complete: no receiver")
	}
	if err := s.receiver.Receive(res); err != nil {
		return fmt.Errorf("complete: hand off: %w", err)
	}
	return nil
}

// Abandon drops the session's state without exporting anything.
func (s *Session) Abandon() {
	if s.Active() {
		s.logger.Info("session abandoned", "full_frames", s.label.FullFrames(), "frames", s.label.Depth())
	}
	s.release()
}

func (s *Session) release() {
	s.video = nil
	s.label = nil
	s.cursor = Cursor{}
}

func (s *Session) ready(event string) bool {
	if s.Active() {
		return true
	}
	s.logger.Warn("event ignored on inactive session", "event", event)
	return false
}

func (s *Session) refresh() {
	i := s.cursor.Index()
	s.display.ClearPoints()
	s.display.DrawPoints(s.label.PointsAt(i))
	s.display.ShowFrame(s.frame())
}

// frame returns the frame under the cursor. The cursor is always clamped to
// the video, so a lookup failure is a broken invariant.
func (s *Session) frame() video.Frame {
	f, err := s.video.Frame(s.cursor.Index())
	if err != nil {
		panic(fmt.Sprintf("session: %v", err))
	}
	return f
}
