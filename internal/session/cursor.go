package session

// Cursor is the frame position shared by every annotation mode. It moves
// one frame at a time and clamps at both ends; it never wraps.
type Cursor struct {
	index int
	depth int
}

// NewCursor returns a cursor at frame 0 of depth frames.
func NewCursor(depth int) Cursor {
	return Cursor{depth: depth}
}

// Index returns the current frame.
func (c Cursor) Index() int { return c.index }

// Depth returns the number of frames the cursor ranges over.
func (c Cursor) Depth() int { return c.depth }

// Up moves to min(depth-1, index+1) and reports whether the index changed.
func (c *Cursor) Up() bool {
	next := min(c.depth-1, c.index+1)
	moved := next != c.index
	c.index = next
	return moved
}

// Down moves to max(0, index-1) and reports whether the index changed.
func (c *Cursor) Down() bool {
	next := max(0, c.index-1)
	moved := next != c.index
	c.index = next
	return moved
}
