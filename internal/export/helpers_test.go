package export

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/motionvdl/internal/label"
	"github.com/roach88/motionvdl/internal/session"
	"github.com/roach88/motionvdl/internal/video"
)

// testResult builds the result of a fully labelled 3x2 noise video with
// depth frames of two points each.
func testResult(t *testing.T, depth int) session.Result {
	t.Helper()
	v, err := video.Noise(3, 2, depth, 42)
	require.NoError(t, err)

	l, err := label.New(2, depth)
	require.NoError(t, err)
	for i := 0; i < depth; i++ {
		require.Equal(t, label.OK, l.Insert(i, label.Point{X: i, Y: 1}))
		require.Equal(t, label.OK, l.Insert(i, label.Point{X: i, Y: 2}))
	}
	labelBits, err := l.Export()
	require.NoError(t, err)

	return session.Result{
		Video:    v.Export(),
		Label:    labelBits,
		Width:    3,
		Height:   2,
		Depth:    depth,
		MaxLevel: video.DefaultMaxLevel,
		Capacity: 2,
		Joints:   []string{"nose", "tail"},
	}
}

func testBundle(t *testing.T, id string) *Bundle {
	t.Helper()
	b, err := NewBundle(id, "noise:3x2x2", testResult(t, 2))
	require.NoError(t, err)
	return b
}
