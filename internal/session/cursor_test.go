package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCursor_Clamps(t *testing.T) {
	c := NewCursor(3)
	assert.False(t, c.Down())
	assert.Equal(t, 0, c.Index())

	assert.True(t, c.Up())
	assert.True(t, c.Up())
	assert.False(t, c.Up())
	assert.Equal(t, 2, c.Index())

	assert.True(t, c.Down())
	assert.Equal(t, 1, c.Index())
	assert.Equal(t, 3, c.Depth())
}

func TestCursor_SingleFrame(t *testing.T) {
	c := NewCursor(1)
	assert.False(t, c.Up())
	assert.False(t, c.Down())
	assert.Equal(t, 0, c.Index())
}
