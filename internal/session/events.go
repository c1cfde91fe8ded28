package session

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies an input event.
type Kind int

const (
	// KindPoint is a click at (X, Y).
	KindPoint Kind = iota + 1
	// KindUndo removes the last point, or retreats on an empty frame.
	KindUndo
	// KindFrameUp moves to the next frame.
	KindFrameUp
	// KindFrameDown moves to the previous frame.
	KindFrameDown
	// KindComplete requests export.
	KindComplete
)

var kindNames = map[Kind]string{
	KindPoint:     "point",
	KindUndo:      "undo",
	KindFrameUp:   "up",
	KindFrameDown: "down",
	KindComplete:  "complete",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Event is one input from the rendering layer.
type Event struct {
	Kind Kind
	X    int
	Y    int
}

func (e Event) String() string {
	if e.Kind == KindPoint {
		return fmt.Sprintf("point %d %d", e.X, e.Y)
	}
	return e.Kind.String()
}

// Point builds a KindPoint event.
func Point(x, y int) Event { return Event{Kind: KindPoint, X: x, Y: y} }

// ParseEvent reads the textual form used by scripts and the terminal:
// "point X Y" (or "p X Y"), "undo" ("u"), "up" ("n"), "down" ("b"),
// "complete" ("c").
func ParseEvent(s string) (Event, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Event{}, fmt.Errorf("empty event")
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	var kind Kind
	switch name {
	case "point", "p":
		if len(args) != 2 {
			return Event{}, fmt.Errorf("event %q: point needs x and y", s)
		}
		x, err := strconv.Atoi(args[0])
		if err != nil {
			return Event{}, fmt.Errorf("event %q: x: %w", s, err)
		}
		y, err := strconv.Atoi(args[1])
		if err != nil {
			return Event{}, fmt.Errorf("event %q: y: %w", s, err)
		}
		return Point(x, y), nil
	case "undo", "u":
		kind = KindUndo
	case "up", "next", "n":
		kind = KindFrameUp
	case "down", "back", "b":
		kind = KindFrameDown
	case "complete", "c":
		kind = KindComplete
	default:
		return Event{}, fmt.Errorf("unknown event %q", name)
	}
	if len(args) != 0 {
		return Event{}, fmt.Errorf("event %q: %s takes no arguments", s, name)
	}
	return Event{Kind: kind}, nil
}

// Apply routes e to the matching operation.
func (s *Session) Apply(e Event) error {
	switch e.Kind {
	case KindPoint:
		s.Point(e.X, e.Y)
	case KindUndo:
		s.Undo()
	case KindFrameUp:
		s.FrameUp()
	case KindFrameDown:
		s.FrameDown()
	case KindComplete:
		return s.Complete()
	default:
		return fmt.Errorf("unknown event kind %d", int(e.Kind))
	}
	return nil
}
