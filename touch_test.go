package touchloop_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.yuchanns.xyz/touchloop"
)

func TestEventKindNames(t *testing.T) {
	assert := require.New(t)

	for _, kind := range []touchloop.EventKind{touchloop.TouchDown, touchloop.TouchMove, touchloop.TouchUp} {
		parsed, ok := touchloop.ParseEventKind(kind.String())
		assert.True(ok)
		assert.Equal(kind, parsed)
	}
	_, ok := touchloop.ParseEventKind("draw")
	assert.False(ok)
	assert.Equal("EventKind(42)", touchloop.EventKind(42).String())
}

func TestTouchMoveKeepsPrevious(t *testing.T) {
	assert := require.New(t)

	touch := touchloop.NewTouch("dev", 1, 0.1, 0.2)
	assert.Equal(0.1, touch.X)
	assert.Equal(0.1, touch.PX)

	touch.Move(0.3, 0.4)
	assert.Equal(0.3, touch.SX)
	assert.Equal(0.4, touch.Y)
	assert.Equal(0.1, touch.PX)
	assert.Equal(0.2, touch.PY)
	assert.False(touch.TimeUpdate.Before(touch.TimeStart))

	touch.ScaleForScreen(100, 50)
	assert.InDelta(30.0, touch.X, 1e-9)
	assert.InDelta(20.0, touch.Y, 1e-9)
}

func TestTouchPushPop(t *testing.T) {
	assert := require.New(t)

	touch := touchloop.NewTouch("dev", 1, 0.5, 0.5)
	touch.Push()
	touch.ScaleForScreen(200, 200)
	touch.Push()
	touch.X, touch.Y = -1, -2
	assert.Equal(2, touch.Depth())

	touch.Pop()
	assert.Equal(100.0, touch.X)
	touch.Pop()
	assert.Equal(0.5, touch.X)
	assert.Equal(0, touch.Depth())

	assert.Panics(touch.Pop)
}

func TestTouchGrabList(t *testing.T) {
	assert := require.New(t)

	touch := touchloop.NewTouch("dev", 1, 0, 0)
	touch.Grab(3)
	touch.Grab(1)
	touch.Grab(3)
	assert.Equal([]touchloop.WidgetID{3, 1, 3}, touch.GrabList)
	assert.True(touch.IsGrabbed(1))

	touch.Ungrab(3)
	assert.Equal([]touchloop.WidgetID{1}, touch.GrabList)
	assert.False(touch.IsGrabbed(3))
}
