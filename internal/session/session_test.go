package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/motionvdl/internal/display"
	"github.com/roach88/motionvdl/internal/label"
	"github.com/roach88/motionvdl/internal/video"
)

type captureReceiver struct {
	results []Result
	err     error
}

func (c *captureReceiver) Receive(r Result) error {
	c.results = append(c.results, r)
	return c.err
}

func noise(t *testing.T, depth int) *video.Video {
	t.Helper()
	v, err := video.Noise(4, 3, depth, 1)
	require.NoError(t, err)
	return v
}

func newActive(t *testing.T, depth, capacity int) (*Session, *display.Recorder, *captureReceiver) {
	t.Helper()
	rec := display.NewRecorder()
	recv := &captureReceiver{}
	s := New(rec, recv, WithCapacity(capacity))
	require.NoError(t, s.Activate(noise(t, depth)))
	return s, rec, recv
}

func fill(s *Session, capacity int) {
	for i := 0; i < capacity; i++ {
		s.Point(i, i)
	}
}

func TestActivate_ShowsTitleAndFirstFrame(t *testing.T) {
	s, rec, _ := newActive(t, 3, 2)

	assert.True(t, s.Active())
	assert.Equal(t, 0, s.FrameIndex())
	assert.Equal(t, []int{0, 0, 0}, s.Counts())
	assert.Equal(t, "set_title \"MotionVDL Labelling stage\"\nshow_frame 4x3\n", rec.Transcript())
}

func TestActivate_RejectsNil(t *testing.T) {
	s := New(display.Discard{}, nil)
	assert.Error(t, s.Activate(nil))
	assert.False(t, s.Active())
}

func TestActivate_RejectsZeroCapacity(t *testing.T) {
	s := New(display.Discard{}, nil, WithCapacity(0))
	assert.Error(t, s.Activate(noise(t, 1)))
}

func TestFrameDown_IdempotentAtFloor(t *testing.T) {
	s, _, _ := newActive(t, 3, 2)
	s.FrameDown()
	s.FrameDown()
	assert.Equal(t, 0, s.FrameIndex())
}

func TestFrameUp_ConvergesToLastFrame(t *testing.T) {
	s, _, _ := newActive(t, 4, 2)
	for i := 0; i < 10; i++ {
		s.FrameUp()
	}
	assert.Equal(t, 3, s.FrameIndex())
}

func TestFrameUp_RedrawsInOrder(t *testing.T) {
	s, rec, _ := newActive(t, 2, 2)
	s.Point(1, 2)
	rec.Reset()

	s.FrameDown()
	cmds := rec.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, display.OpClearPoints, cmds[0].Op)
	assert.Equal(t, display.OpDrawPoints, cmds[1].Op)
	assert.Equal(t, []label.Point{{X: 1, Y: 2}}, cmds[1].Points)
	assert.Equal(t, display.OpShowFrame, cmds[2].Op)
}

func TestPoint_DefaultCapacityThenAdvance(t *testing.T) {
	rec := display.NewRecorder()
	s := New(rec, nil)
	require.NoError(t, s.Activate(noise(t, 3)))
	require.Equal(t, 11, s.Capacity())

	fill(s, 11)
	assert.Equal(t, 11, len(s.PointsAt(0)))
	assert.Equal(t, 0, s.FrameIndex())

	s.Point(50, 50)
	assert.Equal(t, 1, s.FrameIndex(), "a click on a full frame advances")
	assert.Equal(t, 11, len(s.PointsAt(0)), "the extra click is not recorded")
	assert.Empty(t, s.PointsAt(1))
}

func TestPoint_FullLastFrameStaysPut(t *testing.T) {
	s, _, _ := newActive(t, 1, 1)
	s.Point(1, 1)
	s.Point(2, 2)
	assert.Equal(t, 0, s.FrameIndex())
	assert.Equal(t, []label.Point{{X: 1, Y: 1}}, s.PointsAt(0))
}

func TestPoint_DrawsOnAccept(t *testing.T) {
	s, rec, _ := newActive(t, 2, 2)
	rec.Reset()
	s.Point(7, 8)
	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, "draw_point (7,8)", last.String())
}

func TestUndo_EmptyFrameRetreats(t *testing.T) {
	s, _, _ := newActive(t, 3, 2)
	s.FrameUp()
	s.FrameUp()
	require.Equal(t, 2, s.FrameIndex())

	s.Undo()
	assert.Equal(t, 1, s.FrameIndex())
}

func TestUndo_RemovesLastAndRedraws(t *testing.T) {
	s, rec, _ := newActive(t, 2, 3)
	s.Point(1, 1)
	s.Point(2, 2)
	rec.Reset()

	s.Undo()
	assert.Equal(t, []label.Point{{X: 1, Y: 1}}, s.PointsAt(0))
	assert.Equal(t, "clear_points\ndraw_points (1,1)\n", rec.Transcript())
}

func TestInsertThenUndo_RestoresState(t *testing.T) {
	s, _, _ := newActive(t, 2, 3)
	s.Point(1, 1)
	before := s.PointsAt(0)

	s.Point(9, 9)
	s.Undo()
	assert.Equal(t, before, s.PointsAt(0))
	assert.Equal(t, 0, s.FrameIndex())
}

func TestScenario_TwoPointsAdvance(t *testing.T) {
	s, _, _ := newActive(t, 3, 2)
	s.Point(1, 1)
	s.Point(2, 2)
	s.Point(3, 3)

	assert.Equal(t, []label.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}, s.PointsAt(0))
	assert.Equal(t, 1, s.FrameIndex())
	assert.Equal(t, []int{2, 0, 0}, s.Counts())
}

func TestComplete_NotFullOnlySetsMessage(t *testing.T) {
	s, rec, recv := newActive(t, 2, 2)
	fill(s, 2)
	rec.Reset()

	require.NoError(t, s.Complete())
	assert.True(t, s.Active())
	assert.Equal(t, []int{2, 0}, s.Counts())
	assert.Equal(t, 0, s.FrameIndex())
	assert.Empty(t, recv.results)
	assert.Equal(t, "set_message \"The label must be full to export to file\"\n", rec.Transcript())
}

func TestComplete_FullHandsOffAndReleases(t *testing.T) {
	rec := display.NewRecorder()
	recv := &captureReceiver{}
	s := New(rec, recv, WithJoints([]string{"head", "tail"}))
	v := noise(t, 3)
	require.NoError(t, s.Activate(v))

	for f := 0; f < 3; f++ {
		s.Point(f, 1)
		s.Point(f, 2)
		s.FrameUp()
	}
	require.True(t, s.Full())
	require.NoError(t, s.Complete())

	assert.False(t, s.Active())
	assert.Nil(t, s.Counts())
	require.Len(t, recv.results, 1)

	res := recv.results[0]
	assert.Equal(t, 4, res.Width)
	assert.Equal(t, 3, res.Height)
	assert.Equal(t, 3, res.Depth)
	assert.Equal(t, uint8(255), res.MaxLevel)
	assert.Equal(t, 2, res.Capacity)
	assert.Equal(t, []string{"head", "tail"}, res.Joints)
	assert.Equal(t, v.Export(), res.Video)

	l, err := label.Decode(res.Label, res.Capacity, res.Depth)
	require.NoError(t, err)
	assert.Equal(t, []label.Point{{X: 2, Y: 1}, {X: 2, Y: 2}}, l.PointsAt(2))
}

func TestComplete_UnexportablePointOnlySetsMessage(t *testing.T) {
	s, rec, recv := newActive(t, 1, 1)
	s.Point(-1, 5)
	require.True(t, s.Full())
	rec.Reset()

	require.NoError(t, s.Complete())
	assert.True(t, s.Active())
	assert.Empty(t, recv.results)
	assert.Equal(t, "set_message \"Point 0 (-1,5) on frame 0 cannot be exported; undo it and click again\"\n", rec.Transcript())

	s.Undo()
	s.Point(3, 2)
	require.NoError(t, s.Complete())
	assert.False(t, s.Active())
	require.Len(t, recv.results, 1)
}

func TestComplete_Inactive(t *testing.T) {
	s := New(display.Discard{}, nil)
	assert.ErrorIs(t, s.Complete(), ErrInactive)
}

func TestComplete_ReceiverError(t *testing.T) {
	boom := errors.New("boom")
	s := New(display.Discard{}, ReceiverFunc(func(Result) error { return boom }), WithCapacity(1))
	require.NoError(t, s.Activate(noise(t, 1)))
	s.Point(0, 0)

	err := s.Complete()
	assert.ErrorIs(t, err, boom)
	assert.False(t, s.Active())
}

func TestEventsAfterComplete_Ignored(t *testing.T) {
	s, rec, _ := newActive(t, 1, 1)
	s.Point(0, 0)
	require.NoError(t, s.Complete())
	rec.Reset()

	s.Point(1, 1)
	s.Undo()
	s.FrameUp()
	s.FrameDown()
	assert.Empty(t, rec.Commands())
	assert.ErrorIs(t, s.Complete(), ErrInactive)
}

func TestAbandon(t *testing.T) {
	s, _, recv := newActive(t, 2, 1)
	s.Point(1, 1)
	s.Abandon()
	assert.False(t, s.Active())
	assert.Empty(t, recv.results)
}

func TestReactivate_StartsFresh(t *testing.T) {
	s, _, _ := newActive(t, 2, 1)
	s.Point(1, 1)
	s.FrameUp()
	s.Abandon()

	require.NoError(t, s.Activate(noise(t, 3)))
	assert.Equal(t, 0, s.FrameIndex())
	assert.Equal(t, []int{0, 0, 0}, s.Counts())
}
