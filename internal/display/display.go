// Package display defines the commands the annotation core sends to the
// rendering layer, plus two renderers that need no GUI: a Recorder for tests
// and scripted runs, and a Text renderer for terminals.
//
// Commands are fire-and-forget. The core never reads rendering state back.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/roach88/motionvdl/internal/label"
	"github.com/roach88/motionvdl/internal/video"
)

// Display receives draw commands from the annotation session.
type Display interface {
	ShowFrame(f video.Frame)
	DrawPoint(x, y int)
	ClearPoints()
	DrawPoints(pts []label.Point)
	SetTitle(text string)
	SetMessage(text string)
}

// Op names a display command.
type Op string

const (
	OpShowFrame   Op = "show_frame"
	OpDrawPoint   Op = "draw_point"
	OpClearPoints Op = "clear_points"
	OpDrawPoints  Op = "draw_points"
	OpSetTitle    Op = "set_title"
	OpSetMessage  Op = "set_message"
)

// Command is one recorded display call.
type Command struct {
	Op     Op            `json:"op"`
	Text   string        `json:"text,omitempty"`
	Points []label.Point `json:"points,omitempty"`
	// Width and Height describe the frame for OpShowFrame.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// String renders the command as one transcript line.
func (c Command) String() string {
	switch c.Op {
	case OpShowFrame:
		return fmt.Sprintf("%s %dx%d", c.Op, c.Width, c.Height)
	case OpDrawPoint, OpDrawPoints:
		parts := make([]string, len(c.Points))
		for i, p := range c.Points {
			parts[i] = p.String()
		}
		return strings.TrimSpace(fmt.Sprintf("%s %s", c.Op, strings.Join(parts, " ")))
	case OpSetTitle, OpSetMessage:
		return fmt.Sprintf("%s %q", c.Op, c.Text)
	default:
		return string(c.Op)
	}
}

// Recorder stores every command it receives.
//
// Thread-safety: safe for concurrent use, so a Dispatcher goroutine can
// write while a test reads.
type Recorder struct {
	mu       sync.Mutex
	commands []Command
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(c Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, c)
}

func (r *Recorder) ShowFrame(f video.Frame) {
	r.add(Command{Op: OpShowFrame, Width: f.Width(), Height: f.Height()})
}

func (r *Recorder) DrawPoint(x, y int) {
	r.add(Command{Op: OpDrawPoint, Points: []label.Point{{X: x, Y: y}}})
}

func (r *Recorder) ClearPoints() {
	r.add(Command{Op: OpClearPoints})
}

func (r *Recorder) DrawPoints(pts []label.Point) {
	cp := make([]label.Point, len(pts))
	copy(cp, pts)
	r.add(Command{Op: OpDrawPoints, Points: cp})
}

func (r *Recorder) SetTitle(text string) {
	r.add(Command{Op: OpSetTitle, Text: text})
}

func (r *Recorder) SetMessage(text string) {
	r.add(Command{Op: OpSetMessage, Text: text})
}

// Commands returns a copy of everything recorded so far.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// Last returns the most recent command, or false if none was recorded.
func (r *Recorder) Last() (Command, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.commands) == 0 {
		return Command{}, false
	}
	return r.commands[len(r.commands)-1], true
}

// Reset forgets all recorded commands.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = nil
}

// Transcript renders all commands, one per line.
func (r *Recorder) Transcript() string {
	var buf strings.Builder
	for _, c := range r.Commands() {
		buf.WriteString(c.String())
		buf.WriteByte('\n')
	}
	return buf.String()
}

// Text writes each command as a line of text. It is the renderer behind the
// interactive terminal mode.
type Text struct {
	w io.Writer
}

// NewText creates a text renderer writing to w.
func NewText(w io.Writer) *Text {
	return &Text{w: w}
}

func (t *Text) ShowFrame(f video.Frame) {
	fmt.Fprintf(t.w, "[frame %dx%d]\n", f.Width(), f.Height())
}

func (t *Text) DrawPoint(x, y int) {
	fmt.Fprintf(t.w, "  + (%d,%d)\n", x, y)
}

func (t *Text) ClearPoints() {}

func (t *Text) DrawPoints(pts []label.Point) {
	if len(pts) == 0 {
		fmt.Fprintln(t.w, "  (no points)")
		return
	}
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = p.String()
	}
	fmt.Fprintf(t.w, "  points: %s\n", strings.Join(parts, " "))
}

func (t *Text) SetTitle(text string) {
	fmt.Fprintf(t.w, "== %s ==\n", text)
}

func (t *Text) SetMessage(text string) {
	fmt.Fprintf(t.w, "! %s\n", text)
}

// Discard drops every command.
type Discard struct{}

func (Discard) ShowFrame(video.Frame)    {}
func (Discard) DrawPoint(int, int)       {}
func (Discard) ClearPoints()             {}
func (Discard) DrawPoints([]label.Point) {}
func (Discard) SetTitle(string)          {}
func (Discard) SetMessage(string)        {}
